package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkdownRendersGFM(t *testing.T) {
	out, err := Markdown{}.Render("**bold** and ~~gone~~\n\n| a | b |\n|---|---|\n| 1 | 2 |")
	require.NoError(t, err)
	require.Contains(t, out, "<strong>bold</strong>")
	require.Contains(t, out, "<del>gone</del>")
	require.Contains(t, out, "<table>")
}

func TestMarkdownKeepsSingleNewlinesAsBreaks(t *testing.T) {
	out, err := Markdown{}.Render("line one\nline two")
	require.NoError(t, err)
	require.Contains(t, out, "<br")
}

func TestMarkdownDoesNotPassRawHTML(t *testing.T) {
	out, err := Markdown{}.Render("hi <script>alert(1)</script>")
	require.NoError(t, err)
	require.NotContains(t, out, "<script>")
}

func TestSanitizeStripsScriptsAndHandlers(t *testing.T) {
	out := Sanitize(`<p onclick="x()">ok</p><script>alert(1)</script><a href="https://example.com">l</a>`)
	require.NotContains(t, out, "script")
	require.NotContains(t, out, "onclick")
	require.Contains(t, out, "<p>ok</p>")
	require.True(t, strings.Contains(out, `rel="nofollow`), out)
}

func TestPlainTextEscapes(t *testing.T) {
	require.Equal(t, "<p>a &lt;b&gt;</p>\n", PlainText("a <b>"))
}
