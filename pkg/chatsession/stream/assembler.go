package stream

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/hexchat/pkg/chatsession/store"
	"github.com/go-go-golems/hexchat/pkg/render"
)

// Assembler folds assistant_message_chunk events into one streaming message
// and finalizes it on assistant_stream_finalized.
type Assembler struct {
	store    *store.Store
	renderer render.Renderer
	newID    func() string
	now      func() time.Time
}

type Option func(*Assembler)

func WithRenderer(r render.Renderer) Option {
	return func(a *Assembler) {
		if r != nil {
			a.renderer = r
		}
	}
}

func WithIDGenerator(f func() string) Option {
	return func(a *Assembler) {
		if f != nil {
			a.newID = f
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAssembler(s *store.Store, opts ...Option) *Assembler {
	a := &Assembler{
		store:    s,
		renderer: render.Markdown{},
		newID:    func() string { return "asst-" + uuid.NewString() },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Chunk appends text to the last message while it is streaming and starts a
// new one otherwise. A streaming message that is no longer last was cut off
// (the server reported an error, or the user spoke since) and is finalized
// as it stands before the new one starts. It reports whether a new message
// was started.
func (a *Assembler) Chunk(text, packageLabel string) bool {
	if a.store.ReplaceLastStreaming(func(m store.Message) store.Message {
		m.Content += text
		return m
	}) {
		return false
	}
	if a.Finalize() {
		log.Debug().Str("component", "stream").Msg("closed interrupted streaming message")
	}
	err := a.store.Append(store.Message{
		ID:           a.newID(),
		Sender:       store.SenderAssistant,
		Content:      text,
		Timestamp:    a.now(),
		Streaming:    true,
		PackageLabel: packageLabel,
	})
	if err != nil {
		log.Warn().Err(err).Str("component", "stream").Msg("could not start streaming message")
		return false
	}
	return true
}

// Finalize closes the streaming message and renders its content. Content
// keeps the raw text; the rendered markup goes to HTML. Without a streaming
// message it does nothing and returns false.
func (a *Assembler) Finalize() bool {
	return a.store.ReplaceStreaming(func(m store.Message) store.Message {
		m.Streaming = false
		out, err := a.renderer.Render(m.Content)
		if err != nil {
			log.Warn().Err(err).Str("component", "stream").Str("message_id", m.ID).Msg("render failed, falling back to plain text")
			out = render.PlainText(m.Content)
		}
		m.HTML = out
		return m
	})
}
