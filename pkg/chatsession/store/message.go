package store

import "time"

type Sender string

const (
	SenderUser        Sender = "user"
	SenderAssistant   Sender = "assistant"
	SenderSystemError Sender = "system_error"
)

// Message is one entry of the conversation. Content always holds the raw
// text; HTML is filled once an assistant message is finalized.
type Message struct {
	ID           string
	Sender       Sender
	Content      string
	HTML         string
	Timestamp    time.Time
	Streaming    bool
	PackageLabel string
}

// Conversation identifies the server-side conversation the messages belong to.
type Conversation struct {
	ID        string
	PackageID string
}

// Snapshot is a detached copy of the store contents.
type Snapshot struct {
	Conversation Conversation
	Messages     []Message
}

// Streaming returns the message currently being streamed, if any.
func (s Snapshot) Streaming() (Message, bool) {
	for _, m := range s.Messages {
		if m.Streaming {
			return m, true
		}
	}
	return Message{}, false
}

// Last returns the last message, if any.
func (s Snapshot) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}
