package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// Wire event names shared by inbound and outbound frames.
const (
	TypeUserJoined    = "user_joined"
	TypeChatMessage   = "chat_message"
	TypeTypingStart   = "typing_start"
	TypeTypingStop    = "typing_stop"
	TypeUserTyping    = "user_typing"
	TypeUserLeft      = "user_left"
	TypeSystemMessage = "system_message"
)

// ErrMalformedEvent is returned for frames that cannot be turned into an
// Event. The gateway drops such frames without closing the connection.
var ErrMalformedEvent = errors.New("malformed chat event")

// EventKind tags the variants of Event.
type EventKind uint8

// Inbound event kinds.
const (
	EventConnect EventKind = iota + 1
	EventJoin
	EventMessage
	EventTypingStart
	EventTypingStop
	EventDisconnect
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventJoin:
		return TypeUserJoined
	case EventMessage:
		return TypeChatMessage
	case EventTypingStart:
		return TypeTypingStart
	case EventTypingStop:
		return TypeTypingStop
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is one inbound step for the Engine. Only the fields of its Kind are
// meaningful: Conn for EventConnect, Join for EventJoin, Text for
// EventMessage.
type Event struct {
	Kind   EventKind
	ConnID string
	Conn   Conn
	Join   JoinPayload
	Text   string
}

// JoinPayload is the identity a client announces in user_joined.
type JoinPayload struct {
	Username string `json:"username" validate:"required,max=64"`
	UserID   string `json:"userId" validate:"max=64"`
}

type messagePayload struct {
	Message string `json:"message" validate:"required"`
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Envelope is the outbound frame written to clients.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Announcement is the payload of user_joined and user_left.
type Announcement struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// SystemMessage is the payload of system_message.
type SystemMessage struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ChatMessage is the payload of chat_message. It exists only for the
// duration of one fan-out.
type ChatMessage struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeEvent parses one client frame received on connID.
func DecodeEvent(connID string, raw []byte) (Event, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	ev := Event{ConnID: connID}
	switch strings.TrimSpace(frame.Type) {
	case TypeUserJoined:
		var p JoinPayload
		if err := decodePayload(frame.Data, &p); err != nil {
			return Event{}, err
		}
		p.Username = strings.TrimSpace(p.Username)
		if err := validate.Struct(p); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		ev.Kind = EventJoin
		ev.Join = p
	case TypeChatMessage:
		var p messagePayload
		if err := decodePayload(frame.Data, &p); err != nil {
			return Event{}, err
		}
		if err := validate.Struct(p); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		ev.Kind = EventMessage
		ev.Text = p.Message
	case TypeTypingStart:
		ev.Kind = EventTypingStart
	case TypeTypingStop:
		ev.Kind = EventTypingStop
	default:
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, frame.Type)
	}
	return ev, nil
}

func decodePayload(data json.RawMessage, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformedEvent)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

func encodeEnvelope(eventType string, data any) ([]byte, error) {
	return json.Marshal(Envelope{Type: eventType, Data: data})
}
