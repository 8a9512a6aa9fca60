package protocol

import (
	"time"

	"github.com/google/uuid"
)

// OutboundType identifies the kind of a client -> gateway frame
type OutboundType string

const (
	OutboundMessage OutboundType = "message" // user chat message
	OutboundTyping  OutboundType = "typing"  // user typing indicator
)

// TypingPayload is the payload of a typing frame in either direction
type TypingPayload struct {
	IsTyping bool `json:"isTyping"`
}

// Outbound is an application payload addressed to the gateway. Payload must
// be a ChatMessage for OutboundMessage and a TypingPayload for OutboundTyping.
type Outbound struct {
	Type    OutboundType `json:"type"`
	Payload any          `json:"payload"`
}

// NewChatMessage builds an outbound user message with a fresh ID
func NewChatMessage(content string) Outbound {
	return Outbound{
		Type: OutboundMessage,
		Payload: ChatMessage{
			ID:        uuid.NewString(),
			Content:   content,
			Sender:    SenderUser,
			Timestamp: time.Now().UnixMilli(),
			Status:    StatusSending,
		},
	}
}

// NewTyping builds an outbound typing indicator
func NewTyping(isTyping bool) Outbound {
	return Outbound{
		Type:    OutboundTyping,
		Payload: TypingPayload{IsTyping: isTyping},
	}
}

// Message returns the chat message carried by a message frame
func (o Outbound) Message() (ChatMessage, bool) {
	switch p := o.Payload.(type) {
	case ChatMessage:
		return p, true
	case *ChatMessage:
		if p != nil {
			return *p, true
		}
	}
	return ChatMessage{}, false
}

// Typing returns the indicator carried by a typing frame
func (o Outbound) Typing() (TypingPayload, bool) {
	switch p := o.Payload.(type) {
	case TypingPayload:
		return p, true
	case *TypingPayload:
		if p != nil {
			return *p, true
		}
	}
	return TypingPayload{}, false
}
