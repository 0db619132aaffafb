package connection

import (
	"context"
	"errors"
	"fmt"

	"ticker-monitor/src/bus"
	"ticker-monitor/src/eventloop"
	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"

	"github.com/cenkalti/backoff/v4"
)

var errClosedDuringHandshake = errors.New("transport closed before the connection was established")

// -----------------------------------------------------------------------------

// Manager owns the single upstream connection. It drives the data source through
// the state machine, schedules retries, runs the heartbeat and republishes raw
// messages. All of its state is touched only from loop tasks.
type Manager struct {
	Name   string
	logger *logger.Logger
	loop   *eventloop.Loop
	config models.MConnectionConfig
	source interfaces.IDataSource

	fsm     *StateMachine
	backoff backoff.BackOff

	status   *bus.Broadcaster[models.MConnectionState]
	messages *bus.Broadcaster[[]byte]

	gen              uint64
	dialing          bool
	dialCancel       context.CancelFunc
	closedDuringDial bool
	retryTimer       *eventloop.Timer
	heartbeat        *eventloop.Timer
	closed           bool
}

// -----------------------------------------------------------------------------

// NewManager creates a manager running on loop. Attach a source before Connect.
func NewManager(config models.MConnectionConfig, loop *eventloop.Loop, logger *logger.Logger) *Manager {
	return &Manager{
		Name:     "ConnectionManager",
		logger:   logger,
		loop:     loop,
		config:   config,
		fsm:      NewStateMachine(config.MaxRetries),
		backoff:  backoff.NewConstantBackOff(config.RetryDelay),
		status:   bus.NewBroadcaster[models.MConnectionState]("ConnectionStatus", logger),
		messages: bus.NewBroadcaster[[]byte]("RawMessages", logger),
	}
}

// -----------------------------------------------------------------------------

// Attach sets the data source the manager drives.
func (m *Manager) Attach(source interfaces.IDataSource) {
	m.source = source
}

// -----------------------------------------------------------------------------

// Callbacks returns the hooks a transport uses to report messages and unexpected
// closes. They only post onto the loop, so they are safe from any goroutine.
func (m *Manager) Callbacks() interfaces.DataSourceCallbacks {
	return interfaces.DataSourceCallbacks{
		OnMessage: func(message []byte) {
			m.loop.Post(func() { m.handleMessage(message) })
		},
		OnClose: func(err error) {
			m.loop.Post(func() { m.handleTransportClose(err) })
		},
	}
}

// -----------------------------------------------------------------------------
// Subscriptions
// -----------------------------------------------------------------------------

// OnStatus subscribes to state transitions. Late subscribers only see future transitions.
func (m *Manager) OnStatus(h bus.Handler[models.MConnectionState]) func() {
	return m.status.Subscribe(h)
}

// OnMessage subscribes to raw upstream messages.
func (m *Manager) OnMessage(h bus.Handler[[]byte]) func() {
	return m.messages.Subscribe(h)
}

// -----------------------------------------------------------------------------
// Control surface (safe from any goroutine)
// -----------------------------------------------------------------------------

// Connect establishes the upstream connection and starts the heartbeat.
func (m *Manager) Connect() {
	m.loop.Post(func() { m.restart("connect") })
}

// Reconnect tears down the current connection and starts a fresh attempt sequence,
// abandoning any attempt already in flight.
func (m *Manager) Reconnect() {
	m.loop.Post(func() { m.restart("reconnect") })
}

// Close stops the connection, the heartbeat and pending retries, and unsubscribes
// every consumer. Nothing reconnects afterwards.
func (m *Manager) Close() {
	m.loop.Post(m.close)
}

// -----------------------------------------------------------------------------
// Loop-confined accessors
// -----------------------------------------------------------------------------

// State returns the current connection state. Call from a loop task.
func (m *Manager) State() models.MConnectionState {
	return m.fsm.State()
}

// Failures returns the consecutive failure count. Call from a loop task.
func (m *Manager) Failures() int {
	return m.fsm.Failures()
}

// IsClosed reports whether Close has run. Call from a loop task.
func (m *Manager) IsClosed() bool {
	return m.closed
}

// -----------------------------------------------------------------------------
// Loop tasks
// -----------------------------------------------------------------------------

func (m *Manager) restart(reason string) {
	if m.closed {
		m.logger.Warning("%s : %s ignored, manager is closed", m.Name, reason)
		return
	}
	m.logger.Info("%s : %s requested (state %s)", m.Name, reason, m.fsm.State())

	if m.dialing {
		// The in-flight attempt is abandoned; its result carries a stale generation
		m.cancelDial()
	}

	m.retryTimer.Stop()
	m.retryTimer = nil
	if err := m.source.Stop(); err != nil {
		m.logger.Warning("%s : failed to stop previous connection: %v", m.Name, err)
	}

	m.startHeartbeat()
	m.publish(m.fsm.Connecting())
	m.backoff.Reset()
	m.dial()
}

// -----------------------------------------------------------------------------

// dial starts one connection attempt off-loop; its result comes back as a loop task.
func (m *Manager) dial() {
	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())

	m.dialing = true
	m.dialCancel = cancel
	m.closedDuringDial = false

	source := m.source
	go func() {
		err := source.Start(ctx)
		if !m.loop.Post(func() { m.handleDialResult(gen, err) }) && err == nil {
			// Loop already gone: nobody owns this connection anymore
			source.Stop()
		}
	}()
}

// -----------------------------------------------------------------------------

func (m *Manager) cancelDial() {
	m.dialing = false
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
}

// -----------------------------------------------------------------------------

func (m *Manager) handleDialResult(gen uint64, err error) {
	if gen != m.gen {
		m.logger.Debug("%s : discarding stale connection attempt %d", m.Name, gen)
		return
	}

	m.cancelDial()

	if m.closed {
		if err == nil {
			m.source.Stop()
		}
		return
	}

	if err == nil && m.closedDuringDial {
		m.source.Stop()
		err = errClosedDuringHandshake
	}

	if err != nil {
		m.logger.Warning("%s : connection attempt failed: %v", m.Name, err)
		m.handleFailure()
		return
	}

	m.logger.Info("%s : connected to %s", m.Name, m.source.GetName())
	m.publish(m.fsm.Opened())
}

// -----------------------------------------------------------------------------

func (m *Manager) handleTransportClose(err error) {
	if m.closed {
		return
	}
	if m.dialing {
		m.closedDuringDial = true
		return
	}
	if m.fsm.State() != models.StateConnected {
		return
	}

	m.logger.Warning("%s : transport closed: %v", m.Name, err)
	m.handleFailure()
}

// -----------------------------------------------------------------------------

// handleFailure advances the state machine and schedules the next attempt, if any.
func (m *Manager) handleFailure() {
	transitions, retry := m.fsm.Failed()
	m.publish(transitions)

	if !retry {
		m.logger.Error("%s : giving up after %d consecutive failures, manual reconnect required",
			m.Name, m.fsm.Failures())
		return
	}

	delay := m.backoff.NextBackOff()
	if delay == backoff.Stop {
		delay = m.config.RetryDelay
	}
	m.logger.Info("%s : retry %d/%d in %s", m.Name, m.fsm.Failures(), m.config.MaxRetries-1, delay)
	m.retryTimer = m.loop.After(delay, m.retry)
}

// -----------------------------------------------------------------------------

func (m *Manager) retry() {
	m.retryTimer = nil
	if m.closed || m.dialing {
		return
	}
	m.dial()
}

// -----------------------------------------------------------------------------

func (m *Manager) startHeartbeat() {
	if m.heartbeat != nil || m.config.HeartbeatInterval <= 0 {
		return
	}
	m.heartbeat = m.loop.Every(m.config.HeartbeatInterval, m.checkHeartbeat)
}

// -----------------------------------------------------------------------------

// checkHeartbeat catches connections that died without a close notification.
func (m *Manager) checkHeartbeat() {
	if m.closed || m.dialing || m.fsm.State() != models.StateConnected {
		return
	}
	if m.source.IsAlive() {
		return
	}

	m.logger.Warning("%s : heartbeat found the transport closed, reconnecting", m.Name)
	m.restart("heartbeat reconnect")
}

// -----------------------------------------------------------------------------

func (m *Manager) handleMessage(message []byte) {
	if m.closed {
		return
	}
	m.messages.Publish(message)
}

// -----------------------------------------------------------------------------

func (m *Manager) close() {
	if m.closed {
		return
	}
	m.closed = true

	m.heartbeat.Stop()
	m.heartbeat = nil
	m.retryTimer.Stop()
	m.retryTimer = nil
	m.cancelDial()

	if err := m.source.Stop(); err != nil {
		m.logger.Warning("%s : error while stopping source: %v", m.Name, err)
	}

	m.publish(m.fsm.Closed())
	m.messages.Close()
	m.status.Close()
	m.logger.Info("%s : closed", m.Name)
}

// -----------------------------------------------------------------------------

func (m *Manager) publish(transitions []models.MConnectionState) {
	for _, state := range transitions {
		m.logger.Debug("%s : state -> %s", m.Name, state)
		m.status.Publish(state)
	}
}

// -----------------------------------------------------------------------------

// String implements fmt.Stringer for logging.
func (m *Manager) String() string {
	return fmt.Sprintf("%s(%s)", m.Name, m.fsm.State())
}
