package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Variants(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Event
	}{
		{
			name: "message",
			data: `{"type":"message","payload":{"id":"m1","content":"hello","sender":"bot","timestamp":1700000000000,"status":"sent"}}`,
			want: MessageEvent{Message: ChatMessage{ID: "m1", Content: "hello", Sender: SenderBot, Timestamp: 1700000000000, Status: StatusSent}},
		},
		{
			name: "message without status",
			data: `{"type":"message","payload":{"id":"m2","content":"","sender":"user","timestamp":1}}`,
			want: MessageEvent{Message: ChatMessage{ID: "m2", Sender: SenderUser, Timestamp: 1}},
		},
		{
			name: "status",
			data: `{"type":"status","payload":{"online":true,"model":"claude","version":"1.2.0","capabilities":["chat","canvas"]}}`,
			want: StatusEvent{Status: GatewayStatus{Online: true, Model: "claude", Version: "1.2.0", Capabilities: []string{"chat", "canvas"}}},
		},
		{
			name: "status offline",
			data: `{"type":"status","payload":{"online":false}}`,
			want: StatusEvent{Status: GatewayStatus{}},
		},
		{
			name: "typing",
			data: `{"type":"typing","payload":{"isTyping":true}}`,
			want: TypingEvent{IsTyping: true},
		},
		{
			name: "typing stopped",
			data: `{"type":"typing","payload":{"isTyping":false}}`,
			want: TypingEvent{IsTyping: false},
		},
		{
			name: "error",
			data: `{"type":"error","payload":{"message":"model overloaded"}}`,
			want: ErrorEvent{Message: "model overloaded"},
		},
		{
			name: "unknown fields ignored",
			data: `{"type":"typing","id":"x","payload":{"isTyping":true,"extra":1}}`,
			want: TypingEvent{IsTyping: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.Type(), got.Type())
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		reason string
	}{
		{"not json", "this is not json", "invalid json"},
		{"binary garbage", "\x00\xff\x13", "invalid utf-8"},
		{"invalid utf-8 in string", "{\"type\":\"error\",\"payload\":{\"message\":\"\xff\xfe\"}}", "invalid utf-8"},
		{"json array", `[1,2,3]`, "invalid json"},
		{"empty object", `{}`, "missing type"},
		{"json null", `null`, "missing type"},
		{"unknown type", `{"type":"canvas","payload":{}}`, "unknown event type"},
		{"missing payload", `{"type":"typing"}`, "missing payload"},
		{"null payload", `{"type":"error","payload":null}`, "missing payload"},
		{"typing wrong type", `{"type":"typing","payload":{"isTyping":"yes"}}`, "malformed payload"},
		{"typing missing flag", `{"type":"typing","payload":{}}`, "typing without isTyping"},
		{"status missing online", `{"type":"status","payload":{"model":"m"}}`, "status without online flag"},
		{"message missing id", `{"type":"message","payload":{"content":"x","sender":"bot"}}`, "message without id"},
		{"message bad sender", `{"type":"message","payload":{"id":"1","sender":"robot"}}`, `unknown sender "robot"`},
		{"message bad status", `{"type":"message","payload":{"id":"1","sender":"bot","status":"lost"}}`, `unknown message status "lost"`},
		{"error empty", `{"type":"error","payload":{"message":""}}`, "error without message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode([]byte(tt.data))
			require.Error(t, err)
			assert.Nil(t, ev)

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.reason, de.Reason)
			assert.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestEncode_ChatMessage(t *testing.T) {
	out := NewChatMessage("hi there")
	msg, ok := out.Message()
	require.True(t, ok)
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, SenderUser, msg.Sender)
	assert.Equal(t, StatusSending, msg.Status)
	assert.NotZero(t, msg.Timestamp)

	data, err := Encode(out)
	require.NoError(t, err)

	back, err := DecodeOutbound(data)
	require.NoError(t, err)
	assert.Equal(t, OutboundMessage, back.Type)
	got, ok := back.Message()
	require.True(t, ok)
	assert.Equal(t, msg, got)
}

func TestEncode_PointerPayload(t *testing.T) {
	msg := &ChatMessage{ID: "p1", Content: "ptr", Sender: SenderUser, Timestamp: 5}
	data, err := Encode(Outbound{Type: OutboundMessage, Payload: msg})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"message","payload":{"id":"p1","content":"ptr","sender":"user","timestamp":5}}`, string(data))
}

func TestEncode_Typing(t *testing.T) {
	data, err := Encode(NewTyping(true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing","payload":{"isTyping":true}}`, string(data))
}

func TestEncode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		out  Outbound
	}{
		{"missing type", Outbound{Payload: TypingPayload{}}},
		{"unknown type", Outbound{Type: "canvas", Payload: map[string]string{}}},
		{"message with map payload", Outbound{Type: OutboundMessage, Payload: map[string]string{"content": "x"}}},
		{"message nil payload", Outbound{Type: OutboundMessage}},
		{"nil message pointer", Outbound{Type: OutboundMessage, Payload: (*ChatMessage)(nil)}},
		{"message without id", Outbound{Type: OutboundMessage, Payload: ChatMessage{Content: "x"}}},
		{"typing with bool payload", Outbound{Type: OutboundTyping, Payload: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.out)
			assert.Nil(t, data)
			assert.ErrorIs(t, err, ErrInvalidOutbound)
		})
	}
}

func TestEncodeEvent_DecodesBack(t *testing.T) {
	events := []Event{
		MessageEvent{Message: ChatMessage{ID: "b1", Content: "reply", Sender: SenderBot, Timestamp: 9, Status: StatusSent}},
		StatusEvent{Status: GatewayStatus{Online: true, Model: "m", Version: "v", Capabilities: []string{"chat"}}},
		TypingEvent{IsTyping: true},
		ErrorEvent{Message: "boom"},
	}

	for _, ev := range events {
		t.Run(string(ev.Type()), func(t *testing.T) {
			data, err := EncodeEvent(ev)
			require.NoError(t, err)
			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, ev, got)
		})
	}
}

func TestEncodeEvent_NilCapabilities(t *testing.T) {
	data, err := EncodeEvent(StatusEvent{Status: GatewayStatus{Online: true}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status","payload":{"online":true,"model":"","version":"","capabilities":[]}}`, string(data))
}

func TestDecodeOutbound_Errors(t *testing.T) {
	_, err := DecodeOutbound([]byte(`{"type":"status","payload":{}}`))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeOutbound([]byte(`{"payload":{}}`))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeOutbound([]byte(`garbage`))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = DecodeOutbound([]byte("{\"type\":\"message\",\"payload\":{\"id\":\"1\",\"content\":\"\xc3\x28\",\"sender\":\"user\"}}"))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "invalid utf-8", de.Reason)
}

func TestDecodeError_Message(t *testing.T) {
	err := &DecodeError{Type: "typing", Reason: "malformed payload", Err: errors.New("bad bool")}
	assert.Equal(t, `protocol: malformed payload (type "typing"): bad bool`, err.Error())
	assert.Equal(t, "protocol: missing type", (&DecodeError{Reason: "missing type"}).Error())
}
