package store

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrStreamingInProgress is returned when a second streaming message would be appended.
var ErrStreamingInProgress = errors.New("store: a message is already streaming")

// Observer is called after every completed mutation with the resulting state.
// The snapshot is shared between observers and must not be modified.
type Observer func(Snapshot)

// Store holds the ordered message list of the active conversation. Every
// mutation completes under the lock before observers run, so readers never
// see a half-applied change.
type Store struct {
	mu           sync.RWMutex
	conversation Conversation
	messages     []Message
	streamingIdx int

	obsMu     sync.Mutex
	nextObsID int
	observers map[int]Observer
}

func New() *Store {
	return &Store{streamingIdx: -1, observers: map[int]Observer{}}
}

// Append adds a message at the end of the list.
func (s *Store) Append(m Message) error {
	s.mu.Lock()
	if m.Streaming && s.streamingIdx >= 0 {
		s.mu.Unlock()
		return ErrStreamingInProgress
	}
	s.messages = append(s.messages, m)
	if m.Streaming {
		s.streamingIdx = len(s.messages) - 1
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// ReplaceStreaming applies transform to the streaming message and stores the
// result. It returns false when no message is streaming. The ID is preserved.
func (s *Store) ReplaceStreaming(transform func(Message) Message) bool {
	return s.replaceStreaming(transform, false)
}

// ReplaceLastStreaming is ReplaceStreaming restricted to a streaming message
// at the end of the list. It returns false when anything was appended after
// the streaming message.
func (s *Store) ReplaceLastStreaming(transform func(Message) Message) bool {
	return s.replaceStreaming(transform, true)
}

func (s *Store) replaceStreaming(transform func(Message) Message, lastOnly bool) bool {
	if transform == nil {
		return false
	}
	s.mu.Lock()
	if s.streamingIdx < 0 || (lastOnly && s.streamingIdx != len(s.messages)-1) {
		s.mu.Unlock()
		return false
	}
	cur := s.messages[s.streamingIdx]
	next := transform(cur)
	next.ID = cur.ID
	s.messages[s.streamingIdx] = next
	if !next.Streaming {
		s.streamingIdx = -1
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Clear drops every message and switches to a new conversation in one step.
func (s *Store) Clear(conversationID, packageID string) {
	s.mu.Lock()
	s.conversation = Conversation{ID: conversationID, PackageID: packageID}
	s.messages = nil
	s.streamingIdx = -1
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Conversation() Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversation
}

func (s *Store) HasStreaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streamingIdx >= 0
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Subscribe registers an observer and returns a function removing it.
func (s *Store) Subscribe(o Observer) func() {
	if o == nil {
		return func() {}
	}
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = o
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) snapshotLocked() Snapshot {
	out := Snapshot{Conversation: s.conversation}
	if len(s.messages) > 0 {
		out.Messages = make([]Message, len(s.messages))
		copy(out.Messages, s.messages)
	}
	return out
}

func (s *Store) notify(snap Snapshot) {
	s.obsMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	observers := make([]Observer, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		observers = append(observers, s.observers[id])
	}
	s.obsMu.Unlock()

	for _, o := range observers {
		o(snap)
	}
}
