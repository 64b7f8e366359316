package stream

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/hexchat/pkg/chatsession/store"
	"github.com/go-go-golems/hexchat/pkg/render"
)

func countStreaming(snap store.Snapshot) int {
	n := 0
	for _, m := range snap.Messages {
		if m.Streaming {
			n++
		}
	}
	return n
}

func TestAssemblerHelloWorld(t *testing.T) {
	s := store.New()
	a := NewAssembler(s)

	require.True(t, a.Chunk("Hel", "Pkg A"))
	require.False(t, a.Chunk("lo ", "Pkg A"))
	require.False(t, a.Chunk("world", "Pkg A"))
	require.True(t, a.Finalize())

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 1)
	m := snap.Messages[0]
	require.Equal(t, "Hello world", m.Content)
	require.False(t, m.Streaming)
	require.Equal(t, store.SenderAssistant, m.Sender)
	require.Equal(t, "Pkg A", m.PackageLabel)
	require.Equal(t, "<p>Hello world</p>\n", m.HTML)
	require.True(t, strings.HasPrefix(m.ID, "asst-"))
}

func TestAssemblerConcatenatesInArrivalOrder(t *testing.T) {
	s := store.New()
	a := NewAssembler(s)

	var want strings.Builder
	for i := 0; i < 50; i++ {
		c := fmt.Sprintf("[%d]", i)
		want.WriteString(c)
		a.Chunk(c, "")
		require.LessOrEqual(t, countStreaming(s.Snapshot()), 1)
	}
	m, ok := s.Snapshot().Streaming()
	require.True(t, ok)
	require.Equal(t, want.String(), m.Content)
	require.Empty(t, m.HTML)
}

func TestAssemblerStartsNewMessageAfterFinalize(t *testing.T) {
	s := store.New()
	a := NewAssembler(s)

	a.Chunk("one", "")
	a.Finalize()
	a.Chunk("two", "")

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 2)
	require.False(t, snap.Messages[0].Streaming)
	require.True(t, snap.Messages[1].Streaming)
	require.NotEqual(t, snap.Messages[0].ID, snap.Messages[1].ID)
	require.Equal(t, 1, countStreaming(snap))
}

func TestAssemblerFinalizeWithoutStreamIsNoop(t *testing.T) {
	s := store.New()
	require.NoError(t, s.Append(store.Message{ID: "u1", Sender: store.SenderUser, Content: "hi"}))
	a := NewAssembler(s)

	before := s.Snapshot()
	require.False(t, a.Finalize())
	require.Equal(t, before, s.Snapshot())
}

func TestAssemblerStartsNewMessageAfterInterleavedUserMessage(t *testing.T) {
	s := store.New()
	a := NewAssembler(s)

	require.True(t, a.Chunk("par", ""))
	require.NoError(t, s.Append(store.Message{ID: "u1", Sender: store.SenderUser, Content: "wait"}))
	require.True(t, a.Chunk("reply", ""))
	require.False(t, a.Chunk(" two", ""))

	snap := s.Snapshot()
	require.Len(t, snap.Messages, 3)
	require.Equal(t, "par", snap.Messages[0].Content)
	require.False(t, snap.Messages[0].Streaming)
	require.Equal(t, "<p>par</p>\n", snap.Messages[0].HTML)
	require.Equal(t, "u1", snap.Messages[1].ID)
	require.Equal(t, "reply two", snap.Messages[2].Content)
	require.True(t, snap.Messages[2].Streaming)
	require.Equal(t, 1, countStreaming(snap))
}

func TestAssemblerRenderFailureFallsBackToEscapedText(t *testing.T) {
	s := store.New()
	failing := render.RendererFunc(func(string) (string, error) { return "", errors.New("boom") })
	a := NewAssembler(s, WithRenderer(failing), WithIDGenerator(func() string { return "fixed" }))

	a.Chunk("<b>x</b>", "")
	require.True(t, a.Finalize())

	m := s.Snapshot().Messages[0]
	require.Equal(t, "fixed", m.ID)
	require.Equal(t, "<b>x</b>", m.Content)
	require.Equal(t, "<p>&lt;b&gt;x&lt;/b&gt;</p>\n", m.HTML)
}
