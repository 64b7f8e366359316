package render

import (
	"bytes"
	"html"
	"sync"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer turns finalized assistant text into markup.
type Renderer interface {
	Render(raw string) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(raw string) (string, error)

func (f RendererFunc) Render(raw string) (string, error) { return f(raw) }

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

// Goldmark instances are safe for concurrent Convert calls once built.
func markdownEngine() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdown = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(
				gmhtml.WithHardWraps(),
			),
		)
	})
	return markdown
}

// Markdown renders GitHub-flavored markdown with single newlines kept as
// line breaks. Raw HTML in the input is never passed through.
type Markdown struct{}

var _ Renderer = Markdown{}

func (Markdown) Render(raw string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine().Convert([]byte(raw), &buf); err != nil {
		return "", errors.Wrap(err, "render markdown")
	}
	return buf.String(), nil
}

// PlainText is the fallback markup for text that failed to render.
func PlainText(raw string) string {
	return "<p>" + html.EscapeString(raw) + "</p>\n"
}
