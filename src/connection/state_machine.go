package connection

import (
	"ticker-monitor/src/models"
)

// -----------------------------------------------------------------------------

// StateMachine tracks the connection state and the consecutive failure counter.
// It performs no I/O: each event returns the transitions to publish, in order.
//
//	any           --open succeeds-->            connected
//	connected     --transport closes-->         disconnected -> reconnecting
//	reconnecting  --retry fails (< max)-->      disconnected -> reconnecting
//	reconnecting  --max-th consecutive failure--> error (until manual reconnect)
//	any           --manual reconnect-->         connecting
type StateMachine struct {
	state       models.MConnectionState
	failures    int
	maxFailures int
}

// -----------------------------------------------------------------------------

// NewStateMachine starts disconnected. maxFailures below 1 is treated as 1.
func NewStateMachine(maxFailures int) *StateMachine {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &StateMachine{
		state:       models.StateDisconnected,
		maxFailures: maxFailures,
	}
}

// -----------------------------------------------------------------------------

// State returns the current state.
func (m *StateMachine) State() models.MConnectionState {
	return m.state
}

// Failures returns the number of consecutive failed attempts.
func (m *StateMachine) Failures() int {
	return m.failures
}

// -----------------------------------------------------------------------------

// Connecting starts a fresh attempt sequence (initial connect or manual reconnect).
func (m *StateMachine) Connecting() []models.MConnectionState {
	m.failures = 0
	return m.move(models.StateConnecting)
}

// -----------------------------------------------------------------------------

// Opened records a successful open and resets the failure counter.
func (m *StateMachine) Opened() []models.MConnectionState {
	m.failures = 0
	return m.move(models.StateConnected)
}

// -----------------------------------------------------------------------------

// Failed records a failed attempt or a lost connection. retry is false once the
// counter reached the limit; the machine is then in the error state.
func (m *StateMachine) Failed() (transitions []models.MConnectionState, retry bool) {
	m.failures++
	if m.failures >= m.maxFailures {
		return m.move(models.StateError), false
	}

	transitions = append(transitions, m.move(models.StateDisconnected)...)
	transitions = append(transitions, m.move(models.StateReconnecting)...)
	return transitions, true
}

// -----------------------------------------------------------------------------

// Closed records an orderly shutdown.
func (m *StateMachine) Closed() []models.MConnectionState {
	return m.move(models.StateDisconnected)
}

// -----------------------------------------------------------------------------

func (m *StateMachine) move(to models.MConnectionState) []models.MConnectionState {
	if m.state == to {
		return nil
	}
	m.state = to
	return []models.MConnectionState{to}
}
