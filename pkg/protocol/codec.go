package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrDecode matches every *DecodeError via errors.Is
	ErrDecode = errors.New("protocol: decode error")

	// ErrInvalidOutbound is returned by Encode for payloads the gateway would not understand
	ErrInvalidOutbound = errors.New("protocol: invalid outbound payload")
)

// frame is the JSON envelope shared by both directions
type frame struct {
	Type    string              `json:"type"`
	Payload jsoniter.RawMessage `json:"payload"`
}

// DecodeError reports an inbound frame that is not valid JSON or not a
// recognised event shape. It is a value, never a panic.
type DecodeError struct {
	Type   string // frame type, if one could be read
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "protocol: " + e.Reason
	if e.Type != "" {
		msg += fmt.Sprintf(" (type %q)", e.Type)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Decode parses an inbound frame into one of the Event variants.
// Frames that are not UTF-8, unparseable or unrecognised yield a *DecodeError.
func Decode(data []byte) (Event, error) {
	if !utf8.Valid(data) {
		return nil, &DecodeError{Reason: "invalid utf-8"}
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &DecodeError{Reason: "invalid json", Err: err}
	}
	if f.Type == "" {
		return nil, &DecodeError{Reason: "missing type"}
	}
	if isNull(f.Payload) {
		return nil, &DecodeError{Type: f.Type, Reason: "missing payload"}
	}

	switch EventType(f.Type) {
	case TypeMessage:
		var msg ChatMessage
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			return nil, malformed(f.Type, err)
		}
		if msg.ID == "" {
			return nil, &DecodeError{Type: f.Type, Reason: "message without id"}
		}
		if !validSender(msg.Sender) {
			return nil, &DecodeError{Type: f.Type, Reason: fmt.Sprintf("unknown sender %q", msg.Sender)}
		}
		if !validStatus(msg.Status) {
			return nil, &DecodeError{Type: f.Type, Reason: fmt.Sprintf("unknown message status %q", msg.Status)}
		}
		return MessageEvent{Message: msg}, nil

	case TypeStatus:
		var p statusPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, malformed(f.Type, err)
		}
		if p.Online == nil {
			return nil, &DecodeError{Type: f.Type, Reason: "status without online flag"}
		}
		return StatusEvent{Status: GatewayStatus{
			Online:       *p.Online,
			Model:        p.Model,
			Version:      p.Version,
			Capabilities: p.Capabilities,
		}}, nil

	case TypeTyping:
		var p typingPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, malformed(f.Type, err)
		}
		if p.IsTyping == nil {
			return nil, &DecodeError{Type: f.Type, Reason: "typing without isTyping"}
		}
		return TypingEvent{IsTyping: *p.IsTyping}, nil

	case TypeError:
		var p errorPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return nil, malformed(f.Type, err)
		}
		if p.Message == "" {
			return nil, &DecodeError{Type: f.Type, Reason: "error without message"}
		}
		return ErrorEvent{Message: p.Message}, nil

	default:
		return nil, &DecodeError{Type: f.Type, Reason: "unknown event type"}
	}
}

// Encode serialises an outbound payload to a JSON text frame
func Encode(o Outbound) ([]byte, error) {
	switch o.Type {
	case OutboundMessage:
		msg, ok := o.Message()
		if !ok {
			return nil, fmt.Errorf("%w: message frame needs a ChatMessage payload, got %T", ErrInvalidOutbound, o.Payload)
		}
		if msg.ID == "" {
			return nil, fmt.Errorf("%w: message without id", ErrInvalidOutbound)
		}
		return json.Marshal(Outbound{Type: o.Type, Payload: msg})

	case OutboundTyping:
		p, ok := o.Typing()
		if !ok {
			return nil, fmt.Errorf("%w: typing frame needs a TypingPayload, got %T", ErrInvalidOutbound, o.Payload)
		}
		return json.Marshal(Outbound{Type: o.Type, Payload: p})

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidOutbound)

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidOutbound, o.Type)
	}
}

// EncodeEvent serialises an inbound event the way a gateway would send it
func EncodeEvent(ev Event) ([]byte, error) {
	var payload any
	switch e := ev.(type) {
	case MessageEvent:
		payload = e.Message
	case StatusEvent:
		caps := e.Status.Capabilities
		if caps == nil {
			caps = []string{}
		}
		online := e.Status.Online
		payload = statusPayload{Online: &online, Model: e.Status.Model, Version: e.Status.Version, Capabilities: caps}
	case TypingEvent:
		payload = TypingPayload{IsTyping: e.IsTyping}
	case ErrorEvent:
		payload = errorPayload{Message: e.Message}
	default:
		return nil, fmt.Errorf("protocol: cannot encode event %T", ev)
	}
	return json.Marshal(struct {
		Type    EventType `json:"type"`
		Payload any       `json:"payload"`
	}{ev.Type(), payload})
}

// DecodeOutbound parses a client -> gateway frame. Gateways use it; the
// client only encodes.
func DecodeOutbound(data []byte) (Outbound, error) {
	if !utf8.Valid(data) {
		return Outbound{}, &DecodeError{Reason: "invalid utf-8"}
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Outbound{}, &DecodeError{Reason: "invalid json", Err: err}
	}
	if isNull(f.Payload) {
		return Outbound{}, &DecodeError{Type: f.Type, Reason: "missing payload"}
	}

	switch OutboundType(f.Type) {
	case OutboundMessage:
		var msg ChatMessage
		if err := json.Unmarshal(f.Payload, &msg); err != nil {
			return Outbound{}, malformed(f.Type, err)
		}
		return Outbound{Type: OutboundMessage, Payload: msg}, nil
	case OutboundTyping:
		var p typingPayload
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return Outbound{}, malformed(f.Type, err)
		}
		if p.IsTyping == nil {
			return Outbound{}, &DecodeError{Type: f.Type, Reason: "typing without isTyping"}
		}
		return Outbound{Type: OutboundTyping, Payload: TypingPayload{IsTyping: *p.IsTyping}}, nil
	case "":
		return Outbound{}, &DecodeError{Reason: "missing type"}
	default:
		return Outbound{}, &DecodeError{Type: f.Type, Reason: "unknown outbound type"}
	}
}

func malformed(typ string, err error) *DecodeError {
	return &DecodeError{Type: typ, Reason: "malformed payload", Err: err}
}

func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
