package gateway

import "time"

// DiagnosticKind classifies an entry on the diagnostics channel
type DiagnosticKind uint64

const (
	DiagConnected DiagnosticKind = iota + 1
	DiagDisconnected
	DiagConnectFailure
	DiagTransportError
	DiagDecodeError
	DiagSendRejected
	DiagReconnectScheduled
	DiagReconnectExhausted
)

func (k DiagnosticKind) String() string {
	switch k {
	case DiagConnected:
		return "connected"
	case DiagDisconnected:
		return "disconnected"
	case DiagConnectFailure:
		return "connect_failure"
	case DiagTransportError:
		return "transport_error"
	case DiagDecodeError:
		return "decode_error"
	case DiagSendRejected:
		return "send_rejected"
	case DiagReconnectScheduled:
		return "reconnect_scheduled"
	case DiagReconnectExhausted:
		return "reconnect_exhausted"
	default:
		return "unknown"
	}
}

// Diagnostic is a lifecycle or failure notice. Attempt and Delay are set for
// reconnect related kinds; Err is set for failures.
type Diagnostic struct {
	Kind    DiagnosticKind
	Err     error
	Attempt int
	Delay   time.Duration
	Time    time.Time
}
