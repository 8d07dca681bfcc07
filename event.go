package ticketrelay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMalformedEvent = errors.New("malformed event payload")
	ErrUnknownEvent   = errors.New("unknown event")
)

// Inbound event names.
const (
	EventJoinTicket    = "join-ticket"
	EventLeaveTicket   = "leave-ticket"
	EventSendMessage   = "send-message"
	EventTyping        = "typing"
	EventTicketUpdated = "ticket-updated"
)

// Outbound event names.
const (
	EventUserOnline          = "user-online"
	EventUserOffline         = "user-offline"
	EventNewMessage          = "new-message"
	EventUserTyping          = "user-typing"
	EventTicketStatusChanged = "ticket-status-changed"
	EventNewNotification     = "new-notification"
)

// Inbound is one of JoinRoom, LeaveRoom, SendMessage, Typing, StatusUpdate.
type Inbound interface {
	inbound()
}

type JoinRoom struct{ TicketID string }
type LeaveRoom struct{ TicketID string }

type SendMessage struct {
	TicketID string
	Message  json.RawMessage
}

type Typing struct {
	TicketID string
	IsTyping bool
}

type StatusUpdate struct {
	TicketID string
	Updates  json.RawMessage
}

func (JoinRoom) inbound()     {}
func (LeaveRoom) inbound()    {}
func (SendMessage) inbound()  {}
func (Typing) inbound()       {}
func (StatusUpdate) inbound() {}

// Outbound is one of UserOnline, UserOffline, NewMessage, UserTyping,
// TicketStatusChanged, NewNotification. The value marshals to the event's
// single argument.
type Outbound interface {
	EventName() string
}

type UserOnline struct {
	UserID string `json:"userId"`
}

type UserOffline struct {
	UserID string `json:"userId"`
}

type NewMessage struct {
	TicketID string          `json:"ticketId"`
	Message  json.RawMessage `json:"message"`
}

type UserTyping struct {
	TicketID string `json:"ticketId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type TicketStatusChanged struct {
	TicketID string          `json:"ticketId"`
	Updates  json.RawMessage `json:"updates"`
}

// NewNotification carries an opaque payload that is emitted as is.
type NewNotification struct {
	Payload json.RawMessage
}

func (UserOnline) EventName() string          { return EventUserOnline }
func (UserOffline) EventName() string         { return EventUserOffline }
func (NewMessage) EventName() string          { return EventNewMessage }
func (UserTyping) EventName() string          { return EventUserTyping }
func (TicketStatusChanged) EventName() string { return EventTicketStatusChanged }
func (NewNotification) EventName() string     { return EventNewNotification }

func (n NewNotification) MarshalJSON() ([]byte, error) {
	if len(n.Payload) == 0 {
		return []byte("null"), nil
	}
	return n.Payload, nil
}

// TicketID accepts a JSON string or number and keeps its text.
type TicketID string

func (t *TicketID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = TicketID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ticket id must be a string or number: %s", data)
	}
	*t = TicketID(n.String())
	return nil
}

type messageArgs struct {
	TicketID TicketID        `json:"ticketId" validate:"required"`
	Message  json.RawMessage `json:"message" validate:"present"`
}

type typingArgs struct {
	TicketID TicketID `json:"ticketId" validate:"required"`
	IsTyping *bool    `json:"isTyping" validate:"required"`
}

type updateArgs struct {
	TicketID TicketID        `json:"ticketId" validate:"required"`
	Updates  json.RawMessage `json:"updates" validate:"present"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("present", func(fl validator.FieldLevel) bool {
		raw, ok := fl.Field().Interface().(json.RawMessage)
		return ok && isPresent(raw)
	}); err != nil {
		panic(err)
	}
	return v
}

func isPresent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// DecodeInbound turns a socket.io event name and its arguments into an
// Inbound value. Only the first argument is read.
func DecodeInbound(name string, args []json.RawMessage) (Inbound, error) {
	if len(args) == 0 {
		switch name {
		case EventJoinTicket, EventLeaveTicket, EventSendMessage, EventTyping, EventTicketUpdated:
			return nil, fmt.Errorf("%s: %w: no arguments", name, ErrMalformedEvent)
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
		}
	}
	arg := args[0]

	switch name {
	case EventJoinTicket, EventLeaveTicket:
		var id TicketID
		if err := json.Unmarshal(arg, &id); err != nil || id == "" {
			return nil, fmt.Errorf("%s: %w: ticket id", name, ErrMalformedEvent)
		}
		if name == EventJoinTicket {
			return JoinRoom{TicketID: string(id)}, nil
		}
		return LeaveRoom{TicketID: string(id)}, nil

	case EventSendMessage:
		var a messageArgs
		if err := decodeArgs(name, arg, &a); err != nil {
			return nil, err
		}
		return SendMessage{TicketID: string(a.TicketID), Message: a.Message}, nil

	case EventTyping:
		var a typingArgs
		if err := decodeArgs(name, arg, &a); err != nil {
			return nil, err
		}
		return Typing{TicketID: string(a.TicketID), IsTyping: *a.IsTyping}, nil

	case EventTicketUpdated:
		var a updateArgs
		if err := decodeArgs(name, arg, &a); err != nil {
			return nil, err
		}
		return StatusUpdate{TicketID: string(a.TicketID), Updates: a.Updates}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

func decodeArgs(name string, arg json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(arg, dst); err != nil {
		return fmt.Errorf("%s: %w: %v", name, ErrMalformedEvent, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%s: %w: %v", name, ErrMalformedEvent, err)
	}
	return nil
}
