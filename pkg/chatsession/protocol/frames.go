package protocol

// Outbound frame types.
const (
	TypeProfileChange   = "profile_change"
	TypePackageChange   = "gpt_package_change"
	TypeNewConversation = "new_conversation"
	TypeChatMessage     = "chat_message"
)

// Inbound frame types.
const (
	TypeConnectionEstablished = "connection_established"
	TypeProfileChangeAck      = "profile_change_ack"
	TypePackageChangeAck      = "gpt_package_change_ack"
	TypeNewConversationAck    = "new_conversation_ack"
	TypeAssistantChunk        = "assistant_message_chunk"
	TypeStreamFinalized       = "assistant_stream_finalized"
	TypeUIActions             = "ui_actions"
	TypeError                 = "error"
)

// Command is a client-to-server frame.
type Command interface {
	CommandType() string
}

type ProfileChange struct {
	ProfileID string
}

type PackageChange struct {
	PackageID string
}

type NewConversation struct{}

type ChatMessage struct {
	Text string
}

func (ProfileChange) CommandType() string   { return TypeProfileChange }
func (PackageChange) CommandType() string   { return TypePackageChange }
func (NewConversation) CommandType() string { return TypeNewConversation }
func (ChatMessage) CommandType() string     { return TypeChatMessage }

// Event is a server-to-client frame.
type Event interface {
	EventType() string
}

type ConnectionEstablished struct {
	Message string
}

type ProfileChangeAck struct {
	ProfileID string
}

// PackageChangeAck confirms a package switch. The server may omit the
// conversation id, in which case ConversationID is empty.
type PackageChangeAck struct {
	PackageID      string
	ConversationID string
}

type NewConversationAck struct {
	ConversationID string
}

type AssistantChunk struct {
	Chunk string
}

type StreamFinalized struct{}

// UIActions carries the action objects the assistant attached to its reply.
type UIActions struct {
	Actions []map[string]any
}

type Error struct {
	Message string
}

// Unknown is any well-formed frame whose type tag is not recognized.
type Unknown struct {
	Type string
	Raw  []byte
}

func (ConnectionEstablished) EventType() string { return TypeConnectionEstablished }
func (ProfileChangeAck) EventType() string      { return TypeProfileChangeAck }
func (PackageChangeAck) EventType() string      { return TypePackageChangeAck }
func (NewConversationAck) EventType() string    { return TypeNewConversationAck }
func (AssistantChunk) EventType() string        { return TypeAssistantChunk }
func (StreamFinalized) EventType() string       { return TypeStreamFinalized }
func (UIActions) EventType() string             { return TypeUIActions }
func (Error) EventType() string                 { return TypeError }
func (u Unknown) EventType() string             { return u.Type }
