package connection

import (
	"reflect"
	"testing"

	"ticker-monitor/src/models"
)

func TestStateMachine_RecoversBeforeLimit(t *testing.T) {
	m := NewStateMachine(5)

	var seq []models.MConnectionState
	seq = append(seq, m.Connecting()...)
	for i := 0; i < 4; i++ {
		transitions, retry := m.Failed()
		if !retry {
			t.Fatalf("failure %d should retry", i+1)
		}
		seq = append(seq, transitions...)
	}
	seq = append(seq, m.Opened()...)

	want := []models.MConnectionState{models.StateConnecting}
	for i := 0; i < 4; i++ {
		want = append(want, models.StateDisconnected, models.StateReconnecting)
	}
	want = append(want, models.StateConnected)

	if !reflect.DeepEqual(seq, want) {
		t.Errorf("sequence = %v\nwant %v", seq, want)
	}
	if m.Failures() != 0 {
		t.Errorf("failures not reset on open: %d", m.Failures())
	}
}

func TestStateMachine_ErrorAfterFiveFailures(t *testing.T) {
	m := NewStateMachine(5)
	m.Connecting()

	for i := 1; i <= 4; i++ {
		if _, retry := m.Failed(); !retry {
			t.Fatalf("failure %d stopped retrying early", i)
		}
	}

	transitions, retry := m.Failed()
	if retry {
		t.Fatal("fifth consecutive failure must not retry")
	}
	if !reflect.DeepEqual(transitions, []models.MConnectionState{models.StateError}) {
		t.Errorf("transitions = %v, want [error]", transitions)
	}
	if m.State() != models.StateError {
		t.Errorf("state = %s", m.State())
	}

	// Manual reconnect leaves the terminal state with a fresh counter
	if got := m.Connecting(); !reflect.DeepEqual(got, []models.MConnectionState{models.StateConnecting}) {
		t.Errorf("Connecting from error = %v", got)
	}
	if m.Failures() != 0 {
		t.Errorf("failures = %d after manual reconnect", m.Failures())
	}
}

func TestStateMachine_LostConnection(t *testing.T) {
	m := NewStateMachine(5)
	m.Connecting()
	m.Opened()

	transitions, retry := m.Failed()
	if !retry || !reflect.DeepEqual(transitions, []models.MConnectionState{models.StateDisconnected, models.StateReconnecting}) {
		t.Errorf("transport close from connected = %v retry=%v", transitions, retry)
	}
}

func TestStateMachine_SuccessResetsCounter(t *testing.T) {
	m := NewStateMachine(3)
	m.Connecting()
	m.Failed()
	m.Failed()
	m.Opened()

	// Two more failures are below the limit again
	m.Failed()
	if _, retry := m.Failed(); !retry {
		t.Fatal("counter was not reset by a successful open")
	}
}

func TestStateMachine_ClosedAndNoDuplicateTransitions(t *testing.T) {
	m := NewStateMachine(0)
	if got := m.Closed(); got != nil {
		t.Errorf("closing a disconnected machine should not transition, got %v", got)
	}

	m.Connecting()
	if got := m.Connecting(); got != nil {
		t.Errorf("repeated connecting = %v", got)
	}

	// maxFailures is clamped to 1
	if transitions, retry := m.Failed(); retry || transitions[0] != models.StateError {
		t.Errorf("clamped limit: %v %v", transitions, retry)
	}
}
