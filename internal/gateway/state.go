package gateway

// State is the connection state of a Client
type State uint64

const (
	Disconnected State = iota
	Connecting
	Connected

	// Reconnecting is Disconnected with a reconnect timer pending
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	default:
		return "Unknown"
	}
}
