package logstream

// ConnState is the connection state of a Client. All transitions happen in
// one place (Client.setStateLocked) so the retry-suppression rules stay
// auditable.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateDisconnected
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Quality is the coarse three-state connection indicator shown by the UI.
type Quality string

const (
	QualityConnected    Quality = "connected"
	QualityReconnecting Quality = "reconnecting"
	QualityDisconnected Quality = "disconnected"
)

func (s ConnState) quality() Quality {
	switch s {
	case StateOpen:
		return QualityConnected
	case StateConnecting, StateReconnecting:
		return QualityReconnecting
	default:
		return QualityDisconnected
	}
}
