package models

// -----------------------------------------------------------------------------

// MConnectionState is the lifecycle phase of the upstream feed connection.
type MConnectionState string

const (
	StateConnecting   MConnectionState = "connecting"
	StateConnected    MConnectionState = "connected"
	StateReconnecting MConnectionState = "reconnecting"
	StateDisconnected MConnectionState = "disconnected"
	StateError        MConnectionState = "error" // retries exhausted, manual reconnect required
)

// -----------------------------------------------------------------------------

// String implements fmt.Stringer.
func (s MConnectionState) String() string {
	return string(s)
}
