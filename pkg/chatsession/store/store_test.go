package store

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id string, sender Sender, content string) Message {
	return Message{ID: id, Sender: sender, Content: content, Timestamp: time.Unix(0, 0)}
}

func TestStoreAppendAndSnapshotOrder(t *testing.T) {
	s := New()
	require.NoError(t, s.Append(msg("1", SenderUser, "a")))
	require.NoError(t, s.Append(msg("2", SenderAssistant, "b")))

	want := []Message{msg("1", SenderUser, "a"), msg("2", SenderAssistant, "b")}
	if diff := cmp.Diff(want, s.Snapshot().Messages); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestStoreSnapshotIsDetached(t *testing.T) {
	s := New()
	require.NoError(t, s.Append(msg("1", SenderUser, "a")))
	snap := s.Snapshot()
	snap.Messages[0].Content = "mutated"
	require.Equal(t, "a", s.Snapshot().Messages[0].Content)
}

func TestStoreRejectsSecondStreamingMessage(t *testing.T) {
	s := New()
	m := msg("1", SenderAssistant, "x")
	m.Streaming = true
	require.NoError(t, s.Append(m))

	m2 := msg("2", SenderAssistant, "y")
	m2.Streaming = true
	require.ErrorIs(t, s.Append(m2), ErrStreamingInProgress)
	require.Equal(t, 1, s.Len())
}

func TestStoreReplaceStreaming(t *testing.T) {
	s := New()
	require.False(t, s.ReplaceStreaming(func(m Message) Message { return m }))

	m := msg("1", SenderAssistant, "He")
	m.Streaming = true
	require.NoError(t, s.Append(m))
	require.NoError(t, s.Append(msg("2", SenderUser, "interleaved")))

	ok := s.ReplaceStreaming(func(m Message) Message {
		m.Content += "llo"
		m.ID = "ignored"
		return m
	})
	require.True(t, ok)
	snap := s.Snapshot()
	require.Equal(t, "Hello", snap.Messages[0].Content)
	require.Equal(t, "1", snap.Messages[0].ID)
	require.True(t, s.HasStreaming())

	require.True(t, s.ReplaceStreaming(func(m Message) Message {
		m.Streaming = false
		return m
	}))
	require.False(t, s.HasStreaming())
	_, streaming := s.Snapshot().Streaming()
	require.False(t, streaming)
}

func TestStoreReplaceLastStreamingOnlyAtTail(t *testing.T) {
	s := New()
	m := msg("1", SenderAssistant, "He")
	m.Streaming = true
	require.NoError(t, s.Append(m))

	appendText := func(m Message) Message {
		m.Content += "y"
		return m
	}
	require.True(t, s.ReplaceLastStreaming(appendText))
	require.NoError(t, s.Append(msg("2", SenderSystemError, "Error: boom")))
	require.False(t, s.ReplaceLastStreaming(appendText))

	snap := s.Snapshot()
	require.Equal(t, "Hey", snap.Messages[0].Content)
	require.True(t, s.HasStreaming())
}

func TestStoreClearReplacesConversation(t *testing.T) {
	s := New()
	m := msg("1", SenderAssistant, "x")
	m.Streaming = true
	require.NoError(t, s.Append(m))

	s.Clear("conv-2", "pkg-a")
	snap := s.Snapshot()
	require.Empty(t, snap.Messages)
	require.Equal(t, Conversation{ID: "conv-2", PackageID: "pkg-a"}, snap.Conversation)
	require.False(t, s.HasStreaming())
}

func TestStoreObserversSeeCompleteStates(t *testing.T) {
	s := New()
	require.NoError(t, s.Append(msg("1", SenderUser, "a")))

	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) { got = append(got, snap) })

	s.Clear("c1", "p1")
	require.NoError(t, s.Append(msg("2", SenderUser, "b")))
	unsubscribe()
	require.NoError(t, s.Append(msg("3", SenderUser, "c")))

	require.Len(t, got, 2)
	require.Equal(t, "c1", got[0].Conversation.ID)
	require.Empty(t, got[0].Messages)
	require.Equal(t, "c1", got[1].Conversation.ID)
	require.Len(t, got[1].Messages, 1)
}

func TestStoreConcurrentReaders(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				snap := s.Snapshot()
				if snap.Conversation.ID == "" {
					assert.Empty(t, snap.Messages)
				}
			}
		}()
	}
	for j := 0; j < 100; j++ {
		s.Clear("c", "p")
		require.NoError(t, s.Append(msg("x", SenderUser, "y")))
	}
	wg.Wait()
}
