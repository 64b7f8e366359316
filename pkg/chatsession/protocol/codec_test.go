package protocol

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestEncodeCommands(t *testing.T) {
	cases := []struct {
		name string
		cmd  Command
		want string
	}{
		{"profile change", ProfileChange{ProfileID: "p1"}, `{"type":"profile_change","profile_id":"p1"}`},
		{"package change", PackageChange{PackageID: "g1"}, `{"type":"gpt_package_change","gpt_package_id":"g1"}`},
		{"new conversation", NewConversation{}, `{"type":"new_conversation"}`},
		{"chat message", ChatMessage{Text: "merhaba"}, `{"type":"chat_message","message":"merhaba"}`},
		{"pointer command", &ChatMessage{Text: ""}, `{"type":"chat_message","message":""}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Encode(tc.cmd)
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(b))
		})
	}
}

func TestEncodeRejectsNil(t *testing.T) {
	_, err := Encode(nil)
	require.Error(t, err)
}

func TestDecodeEvents(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		want  Event
	}{
		{"established", `{"type":"connection_established","message":"hi"}`, ConnectionEstablished{Message: "hi"}},
		{"profile ack", `{"type":"profile_change_ack","profile_id":"p1"}`, ProfileChangeAck{ProfileID: "p1"}},
		{"package ack", `{"type":"gpt_package_change_ack","gpt_package_id":"g1","conversation_id":"c9"}`, PackageChangeAck{PackageID: "g1", ConversationID: "c9"}},
		{"package ack null conversation", `{"type":"gpt_package_change_ack","gpt_package_id":"g1","conversation_id":null}`, PackageChangeAck{PackageID: "g1"}},
		{"new conversation ack", `{"type":"new_conversation_ack","conversation_id":"c2"}`, NewConversationAck{ConversationID: "c2"}},
		{"chunk", `{"type":"assistant_message_chunk","chunk":"Hel"}`, AssistantChunk{Chunk: "Hel"}},
		{"finalized", `{"type":"assistant_stream_finalized"}`, StreamFinalized{}},
		{"error", `{"type":"error","message":"boom"}`, Error{Message: "boom"}},
		{
			"ui actions",
			`{"type":"ui_actions","actions":[{"action":"open","target":"x"}]}`,
			UIActions{Actions: []map[string]any{{"action": "open", "target": "x"}}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Decode([]byte(tc.frame))
			require.NoError(t, err)
			require.Equal(t, tc.want, ev)
		})
	}
}

func TestDecodeUnknownType(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"gpt_package_switched","x":1}`))
	require.NoError(t, err)
	u, ok := ev.(Unknown)
	require.True(t, ok)
	require.Equal(t, "gpt_package_switched", u.Type)
	require.Equal(t, "gpt_package_switched", u.EventType())

	ev, err = Decode([]byte(`{}`))
	require.NoError(t, err)
	require.Equal(t, "", ev.(Unknown).Type)
}

func TestDecodeInvalidFrames(t *testing.T) {
	frames := []string{
		``,
		`not json`,
		`{"type":"assistant_message_chunk","chunk":`,
		`[1,2,3]`,
		`"assistant_message_chunk"`,
		`null`,
		`{"type":5}`,
		`{"type":"assistant_message_chunk","chunk":42}`,
		`{"type":"ui_actions","actions":"nope"}`,
	}
	for _, frame := range frames {
		ev, err := Decode([]byte(frame))
		require.Nil(t, ev, frame)
		require.Error(t, err, frame)
		require.True(t, errors.Is(err, ErrParse), frame)
	}
}
