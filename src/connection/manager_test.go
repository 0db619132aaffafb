package connection

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"ticker-monitor/src/eventloop"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
)

// fakeSource fails its first `failures` starts and succeeds afterwards.
type fakeSource struct {
	mu       sync.Mutex
	failures int
	starts   int
	stops    int
	alive    bool
	gate     chan struct{} // when set, Start blocks until it is closed
	holdAt   int           // the holdAt-th start blocks until its context is cancelled
}

func (s *fakeSource) GetName() string { return "fake" }

func (s *fakeSource) Start(ctx context.Context) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.starts++
	if s.starts == s.holdAt {
		s.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("dial refused")
	}
	s.alive = true
	return nil
}

func (s *fakeSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	s.alive = false
	return nil
}

func (s *fakeSource) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

func (s *fakeSource) GetStatus() *models.MDataSourceStatus {
	return &models.MDataSourceStatus{SourceName: "fake"}
}

func (s *fakeSource) kill() {
	s.mu.Lock()
	s.alive = false
	s.mu.Unlock()
}

func (s *fakeSource) startCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// -----------------------------------------------------------------------------

type stateRecorder struct {
	mu     sync.Mutex
	states []models.MConnectionState
}

func (r *stateRecorder) record(s models.MConnectionState) error {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
	return nil
}

func (r *stateRecorder) snapshot() []models.MConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.MConnectionState(nil), r.states...)
}

func (r *stateRecorder) waitFor(t *testing.T, want models.MConnectionState, occurrences int) []models.MConnectionState {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := r.snapshot()
		n := 0
		for _, s := range got {
			if s == want {
				n++
			}
		}
		if n >= occurrences {
			return got
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d x %s, got %v", occurrences, want, r.snapshot())
	return nil
}

// -----------------------------------------------------------------------------

func newTestManager(t *testing.T, source *fakeSource, heartbeat time.Duration) (*Manager, *stateRecorder, *eventloop.Loop) {
	t.Helper()
	log := logger.NewNop()
	loop := eventloop.New("test", log)
	loop.Start()
	t.Cleanup(loop.Stop)

	m := NewManager(models.MConnectionConfig{
		RetryDelay:        5 * time.Millisecond,
		MaxRetries:        5,
		HeartbeatInterval: heartbeat,
	}, loop, log)
	m.Attach(source)

	rec := &stateRecorder{}
	m.OnStatus(rec.record)
	return m, rec, loop
}

func expectedRecovery(failures int) []models.MConnectionState {
	want := []models.MConnectionState{models.StateConnecting}
	for i := 0; i < failures; i++ {
		want = append(want, models.StateDisconnected, models.StateReconnecting)
	}
	return append(want, models.StateConnected)
}

// -----------------------------------------------------------------------------

func TestManager_ConnectsFirstTry(t *testing.T) {
	source := &fakeSource{}
	m, rec, _ := newTestManager(t, source, 0)

	m.Connect()
	got := rec.waitFor(t, models.StateConnected, 1)

	if !reflect.DeepEqual(got, expectedRecovery(0)) {
		t.Errorf("states = %v", got)
	}
}

func TestManager_RecoversAfterFourFailures(t *testing.T) {
	source := &fakeSource{failures: 4}
	m, rec, _ := newTestManager(t, source, 0)

	m.Connect()
	got := rec.waitFor(t, models.StateConnected, 1)

	if !reflect.DeepEqual(got, expectedRecovery(4)) {
		t.Errorf("states = %v\nwant %v", got, expectedRecovery(4))
	}
	if n := source.startCount(); n != 5 {
		t.Errorf("starts = %d, want 5", n)
	}
}

func TestManager_GivesUpAfterFiveFailures(t *testing.T) {
	source := &fakeSource{failures: 100}
	m, rec, loop := newTestManager(t, source, 0)

	m.Connect()
	got := rec.waitFor(t, models.StateError, 1)

	want := []models.MConnectionState{models.StateConnecting}
	for i := 0; i < 4; i++ {
		want = append(want, models.StateDisconnected, models.StateReconnecting)
	}
	want = append(want, models.StateError)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("states = %v\nwant %v", got, want)
	}

	// No automatic attempt after the error state
	time.Sleep(50 * time.Millisecond)
	if n := source.startCount(); n != 5 {
		t.Errorf("starts = %d, want 5", n)
	}

	var state models.MConnectionState
	loop.Do(func() { state = m.State() })
	if state != models.StateError {
		t.Errorf("state = %s", state)
	}
}

func TestManager_ManualReconnectLeavesError(t *testing.T) {
	source := &fakeSource{failures: 5}
	m, rec, _ := newTestManager(t, source, 0)

	m.Connect()
	rec.waitFor(t, models.StateError, 1)

	m.Reconnect()
	got := rec.waitFor(t, models.StateConnected, 1)

	tail := got[len(got)-2:]
	if !reflect.DeepEqual(tail, []models.MConnectionState{models.StateConnecting, models.StateConnected}) {
		t.Errorf("after manual reconnect: %v", got)
	}
}

func TestManager_ReconnectWhileDialingKeepsOneAttempt(t *testing.T) {
	source := &fakeSource{gate: make(chan struct{})}
	m, rec, loop := newTestManager(t, source, 0)

	m.Connect()
	m.Reconnect()
	m.Reconnect()
	loop.Do(func() {})
	close(source.gate)
	rec.waitFor(t, models.StateConnected, 1)
	time.Sleep(20 * time.Millisecond)

	if n := source.startCount(); n != 1 {
		t.Errorf("starts = %d, want a single attempt", n)
	}
	if got := rec.snapshot(); !reflect.DeepEqual(got, expectedRecovery(0)) {
		t.Errorf("states = %v", got)
	}
}

func TestManager_ReconnectDuringRetryStartsFreshSequence(t *testing.T) {
	// Four failures, then the last allowed attempt hangs
	source := &fakeSource{failures: 4, holdAt: 5}
	m, rec, loop := newTestManager(t, source, 0)

	m.Connect()
	deadline := time.Now().Add(2 * time.Second)
	for source.startCount() < 5 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if n := source.startCount(); n != 5 {
		t.Fatalf("starts = %d, want the fifth attempt in flight", n)
	}

	m.Reconnect()
	got := rec.waitFor(t, models.StateConnected, 1)

	want := []models.MConnectionState{models.StateConnecting}
	for i := 0; i < 4; i++ {
		want = append(want, models.StateDisconnected, models.StateReconnecting)
	}
	want = append(want, models.StateConnecting, models.StateConnected)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("states = %v\nwant %v", got, want)
	}

	// The abandoned attempt must not count as a failure of the new sequence
	time.Sleep(20 * time.Millisecond)
	var (
		state    models.MConnectionState
		failures int
	)
	loop.Do(func() { state, failures = m.State(), m.Failures() })
	if state != models.StateConnected || failures != 0 {
		t.Errorf("state = %s failures = %d, want connected with no failures", state, failures)
	}
	if n := source.startCount(); n != 6 {
		t.Errorf("starts = %d, want 6", n)
	}
}

func TestManager_TransportCloseTriggersRetry(t *testing.T) {
	source := &fakeSource{}
	m, rec, _ := newTestManager(t, source, 0)

	m.Connect()
	rec.waitFor(t, models.StateConnected, 1)

	source.kill()
	m.Callbacks().OnClose(errors.New("connection reset"))
	got := rec.waitFor(t, models.StateConnected, 2)

	want := append(expectedRecovery(0), models.StateDisconnected, models.StateReconnecting, models.StateConnected)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("states = %v\nwant %v", got, want)
	}
}

func TestManager_HeartbeatDetectsDeadTransport(t *testing.T) {
	source := &fakeSource{}
	m, rec, _ := newTestManager(t, source, 10*time.Millisecond)

	m.Connect()
	rec.waitFor(t, models.StateConnected, 1)

	// Dies silently: no close callback
	source.kill()
	got := rec.waitFor(t, models.StateConnected, 2)

	want := append(expectedRecovery(0), models.StateConnecting, models.StateConnected)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("states = %v\nwant %v", got, want)
	}
}

func TestManager_MessagesAreRepublished(t *testing.T) {
	source := &fakeSource{}
	m, _, _ := newTestManager(t, source, 0)

	received := make(chan string, 1)
	m.OnMessage(func(msg []byte) error {
		received <- string(msg)
		return nil
	})

	m.Callbacks().OnMessage([]byte(`[]`))

	select {
	case msg := <-received:
		if msg != `[]` {
			t.Errorf("message = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("message not republished")
	}
}

func TestManager_CloseStopsEverything(t *testing.T) {
	source := &fakeSource{}
	m, rec, loop := newTestManager(t, source, 5*time.Millisecond)

	m.Connect()
	rec.waitFor(t, models.StateConnected, 1)

	m.Close()
	rec.waitFor(t, models.StateDisconnected, 1)

	m.Reconnect()
	m.Callbacks().OnClose(errors.New("late close"))
	time.Sleep(30 * time.Millisecond)

	if n := source.startCount(); n != 1 {
		t.Errorf("starts after close = %d, want 1", n)
	}
	want := append(expectedRecovery(0), models.StateDisconnected)
	if got := rec.snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("states = %v\nwant %v", got, want)
	}

	var closed bool
	loop.Do(func() { closed = m.IsClosed() })
	if !closed {
		t.Error("manager not closed")
	}
}
