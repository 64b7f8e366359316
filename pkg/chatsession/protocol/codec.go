package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrParse marks an inbound frame that could not be decoded.
var ErrParse = errors.New("protocol: unparsable frame")

type outboundFrame struct {
	Type      string  `json:"type"`
	ProfileID *string `json:"profile_id,omitempty"`
	PackageID *string `json:"gpt_package_id,omitempty"`
	Message   *string `json:"message,omitempty"`
}

type envelope struct {
	Type string `json:"type"`
}

type messageFrame struct {
	Message string `json:"message"`
}

type profileAckFrame struct {
	ProfileID string `json:"profile_id"`
}

type packageAckFrame struct {
	PackageID      string  `json:"gpt_package_id"`
	ConversationID *string `json:"conversation_id"`
}

type conversationAckFrame struct {
	ConversationID *string `json:"conversation_id"`
}

type chunkFrame struct {
	Chunk string `json:"chunk"`
}

type actionsFrame struct {
	Actions []map[string]any `json:"actions"`
}

// Encode serializes a command into its JSON wire frame.
func Encode(cmd Command) ([]byte, error) {
	var f outboundFrame
	switch c := cmd.(type) {
	case ProfileChange:
		f = outboundFrame{Type: TypeProfileChange, ProfileID: &c.ProfileID}
	case *ProfileChange:
		f = outboundFrame{Type: TypeProfileChange, ProfileID: &c.ProfileID}
	case PackageChange:
		f = outboundFrame{Type: TypePackageChange, PackageID: &c.PackageID}
	case *PackageChange:
		f = outboundFrame{Type: TypePackageChange, PackageID: &c.PackageID}
	case NewConversation, *NewConversation:
		f = outboundFrame{Type: TypeNewConversation}
	case ChatMessage:
		f = outboundFrame{Type: TypeChatMessage, Message: &c.Text}
	case *ChatMessage:
		f = outboundFrame{Type: TypeChatMessage, Message: &c.Text}
	case nil:
		return nil, errors.New("protocol: nil command")
	default:
		return nil, errors.Errorf("protocol: unsupported command %T", cmd)
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrapf(err, "protocol: encode %s", f.Type)
	}
	return b, nil
}

// Decode parses one inbound wire frame. Anything that is not a JSON object,
// or a known frame whose fields have the wrong types, yields an error
// wrapping ErrParse. An unrecognized or missing type tag yields Unknown.
func Decode(data []byte) (Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.Wrap(ErrParse, "not a json object")
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, errors.Wrap(ErrParse, err.Error())
	}

	switch env.Type {
	case TypeConnectionEstablished:
		var f messageFrame
		if err := unmarshalFrame(trimmed, &f); err != nil {
			return nil, err
		}
		return ConnectionEstablished{Message: f.Message}, nil
	case TypeProfileChangeAck:
		var f profileAckFrame
		if err := unmarshalFrame(trimmed, &f); err != nil {
			return nil, err
		}
		return ProfileChangeAck{ProfileID: f.ProfileID}, nil
	case TypePackageChangeAck:
		var f packageAckFrame
		if err := unmarshalFrame(trimmed, &f); err != nil {
			return nil, err
		}
		return PackageChangeAck{PackageID: f.PackageID, ConversationID: deref(f.ConversationID)}, nil
	case TypeNewConversationAck:
		var f conversationAckFrame
		if err := unmarshalFrame(trimmed, &f); err != nil {
			return nil, err
		}
		return NewConversationAck{ConversationID: deref(f.ConversationID)}, nil
	case TypeAssistantChunk:
		var f chunkFrame
		if err := unmarshalFrame(trimmed, &f); err != nil {
			return nil, err
		}
		return AssistantChunk{Chunk: f.Chunk}, nil
	case TypeStreamFinalized:
		return StreamFinalized{}, nil
	case TypeUIActions:
		var f actionsFrame
		if err := unmarshalFrame(trimmed, &f); err != nil {
			return nil, err
		}
		return UIActions{Actions: f.Actions}, nil
	case TypeError:
		var f messageFrame
		if err := unmarshalFrame(trimmed, &f); err != nil {
			return nil, err
		}
		return Error{Message: f.Message}, nil
	default:
		raw := make([]byte, len(trimmed))
		copy(raw, trimmed)
		return Unknown{Type: env.Type, Raw: raw}, nil
	}
}

func unmarshalFrame(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(ErrParse, err.Error())
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
