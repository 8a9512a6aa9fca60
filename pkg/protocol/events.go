package protocol

// EventType identifies the kind of an inbound gateway frame
type EventType string

const (
	TypeMessage EventType = "message" // gateway -> client: chat message record
	TypeStatus  EventType = "status"  // gateway -> client: gateway health
	TypeTyping  EventType = "typing"  // gateway -> client: assistant typing indicator
	TypeError   EventType = "error"   // gateway -> client: human-readable error
)

// Sender tags who authored a chat message
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// MessageStatus is the delivery status of a chat message
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusError   MessageStatus = "error"
)

// ChatMessage is a single chat record exchanged with the gateway.
// Timestamp is milliseconds since the Unix epoch.
type ChatMessage struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Sender    Sender        `json:"sender"`
	Timestamp int64         `json:"timestamp"`
	Status    MessageStatus `json:"status,omitempty"`
}

// GatewayStatus reports gateway health
type GatewayStatus struct {
	Online       bool     `json:"online"`
	Model        string   `json:"model"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

// Event is one decoded inbound frame. The set of implementations is closed:
// MessageEvent, StatusEvent, TypingEvent and ErrorEvent.
type Event interface {
	Type() EventType
	isEvent()
}

// MessageEvent carries a chat message from the gateway
type MessageEvent struct {
	Message ChatMessage
}

// StatusEvent carries a gateway health report
type StatusEvent struct {
	Status GatewayStatus
}

// TypingEvent signals whether the assistant is composing a reply
type TypingEvent struct {
	IsTyping bool
}

// ErrorEvent carries an error reported by the gateway
type ErrorEvent struct {
	Message string
}

func (MessageEvent) Type() EventType { return TypeMessage }
func (StatusEvent) Type() EventType  { return TypeStatus }
func (TypingEvent) Type() EventType  { return TypeTyping }
func (ErrorEvent) Type() EventType   { return TypeError }

func (MessageEvent) isEvent() {}
func (StatusEvent) isEvent()  {}
func (TypingEvent) isEvent()  {}
func (ErrorEvent) isEvent()   {}

// wire payloads use pointers where presence must be checked

type typingPayload struct {
	IsTyping *bool `json:"isTyping"`
}

type statusPayload struct {
	Online       *bool    `json:"online"`
	Model        string   `json:"model"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func validSender(s Sender) bool {
	return s == SenderUser || s == SenderBot
}

func validStatus(s MessageStatus) bool {
	switch s {
	case "", StatusSending, StatusSent, StatusError:
		return true
	}
	return false
}
