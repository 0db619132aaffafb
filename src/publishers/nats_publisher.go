package publishers

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"

	"github.com/nats-io/nats.go"
)

// ErrNotConnected is returned when publishing before Connect or after Disconnect.
var ErrNotConnected = errors.New("nats client not connected")

// ErrAckBacklogFull is returned when too many JetStream publishes await their ack.
var ErrAckBacklogFull = errors.New("jetstream ack backlog full")

// maxPendingAcks bounds the unacknowledged JetStream publishes; beyond it messages are dropped.
const maxPendingAcks = 256

// Subject suffixes, appended to the configured prefix.
const (
	SubjectSnapshot = "snapshot"
	SubjectStatus   = "status"
	SubjectAlerts   = "alerts"
)

var _ interfaces.IPublisher = (*NATSPublisher)(nil)

// -----------------------------------------------------------------------------

// statusEvent is the payload of a connection state transition.
type statusEvent struct {
	State     models.MConnectionState `json:"state"`
	Timestamp time.Time               `json:"timestamp"`
}

// alertFeedEvent is the payload of an alert feed update.
type alertFeedEvent struct {
	Entries   []models.MAlertFeedEntry `json:"entries"`
	Timestamp time.Time                `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// NATSPublisher forwards the display, status and alert channels to NATS subjects,
// over core NATS or JetStream.
type NATSPublisher struct {
	name   string
	config *models.MNATSConfig
	logger *logger.Logger

	// Now stamps status and alert payloads, replaceable in tests.
	Now func() time.Time

	useJetStream bool

	mu sync.RWMutex

	nc         *nats.Conn
	js         nats.JetStreamContext
	serializer interfaces.ISerializer

	connected atomic.Bool
}

// -----------------------------------------------------------------------------

// NewNATSPublisher creates a new, unconnected NATS publisher
func NewNATSPublisher(config *models.MNATSConfig, logger *logger.Logger, serializer interfaces.ISerializer) *NATSPublisher {
	return &NATSPublisher{
		name:       config.ClientID,
		config:     config,
		logger:     logger,
		Now:        time.Now,
		serializer: serializer,
	}
}

// -----------------------------------------------------------------------------
// IPublisher channel handlers
// -----------------------------------------------------------------------------

// OnSnapshot publishes a display snapshot on <prefix>.snapshot
func (np *NATSPublisher) OnSnapshot(snapshot models.MSnapshot) error {
	return np.publishObject(SubjectSnapshot, snapshot)
}

// -----------------------------------------------------------------------------

// OnConnectionState publishes a state transition on <prefix>.status
func (np *NATSPublisher) OnConnectionState(state models.MConnectionState) error {
	return np.publishObject(SubjectStatus, statusEvent{State: state, Timestamp: np.Now()})
}

// -----------------------------------------------------------------------------

// OnAlerts publishes the full alert feed on <prefix>.alerts
func (np *NATSPublisher) OnAlerts(entries []models.MAlertFeedEntry) error {
	return np.publishObject(SubjectAlerts, alertFeedEvent{Entries: entries, Timestamp: np.Now()})
}

// -----------------------------------------------------------------------------

// publishObject serializes obj and sends it fire-and-forget. Failures are logged and
// returned; they never reach the data path beyond the bus boundary.
func (np *NATSPublisher) publishObject(subject string, obj any) error {
	data, err := np.serializer.Marshal(obj)
	if err != nil {
		np.logger.Error("%s : failed to serialize payload for %s: %v", np.name, subject, err)
		return err
	}

	if np.useJetStream {
		err = np.PublishJetStream(subject, data)
	} else {
		err = np.Publish(subject, data)
	}
	if err != nil {
		np.logger.Debug("%s : publish to %s failed: %v", np.name, np.getSubject(subject), err)
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Publish sends raw data to a NATS core subject.
func (np *NATSPublisher) Publish(subject string, data []byte) error {
	if !np.IsConnected() {
		return ErrNotConnected
	}

	np.mu.RLock()
	nc := np.nc
	np.mu.RUnlock()

	return nc.PublishMsg(np.newMsg(subject, data))
}

// -----------------------------------------------------------------------------

// PublishJetStream sends raw data using JetStream without waiting for the ack.
// Failed acks are reported by the async error handler.
func (np *NATSPublisher) PublishJetStream(subject string, data []byte) error {
	if !np.IsConnected() {
		return ErrNotConnected
	}

	np.mu.RLock()
	js := np.js
	np.mu.RUnlock()

	if js == nil {
		return fmt.Errorf("jetstream is not initialized or enabled")
	}

	msg := np.newMsg(subject, data)
	if js.PublishAsyncPending() >= maxPendingAcks {
		np.logger.Warning("%s : dropping %s, %d acks pending", np.name, msg.Subject, maxPendingAcks)
		return ErrAckBacklogFull
	}
	if _, err := js.PublishMsgAsync(msg); err != nil {
		np.logger.Error("%s : jetstream publish failed for %s: %v", np.name, msg.Subject, err)
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) onAsyncError(_ nats.JetStream, msg *nats.Msg, err error) {
	np.logger.Error("%s : jetstream ack failed for %s: %v", np.name, msg.Subject, err)
}

// -----------------------------------------------------------------------------

// Connect establishes connection to NATS server and sets up JetStream context if configured.
func (np *NATSPublisher) Connect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc != nil && np.nc.IsConnected() {
		return nil
	}
	if len(np.config.Servers) == 0 {
		return fmt.Errorf("no nats servers configured")
	}

	opts := []nats.Option{
		nats.Name(np.config.ClientID),
		nats.Timeout(np.config.ConnectTimeout),
		nats.ReconnectWait(np.config.ReconnectWait),
		nats.MaxReconnects(np.config.MaxReconnects),
		nats.FlusherTimeout(np.config.FlushTimeout),

		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS connected to %s", np.name, nc.ConnectedUrl())
			np.connected.Store(true)
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			np.logger.Warning("%s : NATS connection closed", np.name)
			np.connected.Store(false)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			np.logger.Warning("%s : NATS disconnected, attempting reconnect: %v", np.name, err)
			np.connected.Store(false)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			np.logger.Info("%s : NATS reconnected to %s", np.name, nc.ConnectedUrl())
			np.connected.Store(true)
		}),
	}

	nc, err := nats.Connect(strings.Join(np.config.Servers, ","), opts...)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}
	np.nc = nc
	if nc.IsConnected() {
		np.connected.Store(true)
		np.logger.Info("%s : connected to NATS at %s", np.name, nc.ConnectedUrl())
	} else {
		np.logger.Warning("%s : NATS not reachable yet, retrying in the background", np.name)
	}

	if np.config.JetStream != nil && np.config.JetStream.Enabled {
		np.useJetStream = true

		np.js, err = nc.JetStream(
			nats.PublishAsyncMaxPending(maxPendingAcks),
			nats.PublishAsyncErrHandler(np.onAsyncError),
		)
		if err != nil {
			return fmt.Errorf("jetstream context creation failed: %w", err)
		}
		np.logger.Info("%s : publishing through JetStream", np.name)

		if err := np.ensureStreamExists(); err != nil {
			np.logger.Warning("%s : failed to ensure stream exists: %v (continuing anyway)", np.name, err)
		}
	} else {
		np.useJetStream = false
		np.logger.Info("%s : publishing through NATS core (fire-and-forget)", np.name)
	}

	return nil
}

// -----------------------------------------------------------------------------

// ensureStreamExists creates the JetStream stream when it is missing.
func (np *NATSPublisher) ensureStreamExists() error {
	if np.js == nil || np.config.JetStream == nil {
		return fmt.Errorf("jetstream not initialized")
	}

	streamConfig, err := np.streamConfig()
	if err != nil {
		return err
	}

	if stream, err := np.js.StreamInfo(streamConfig.Name); err == nil {
		np.logger.Info("%s : JetStream stream '%s' already exists with %d subjects",
			np.name, streamConfig.Name, len(stream.Config.Subjects))
		return nil
	}

	if _, err := np.js.AddStream(streamConfig); err != nil {
		return fmt.Errorf("failed to create stream '%s': %w", streamConfig.Name, err)
	}

	np.logger.Info("%s : created JetStream stream '%s' with subjects: %v", np.name, streamConfig.Name, streamConfig.Subjects)
	return nil
}

// -----------------------------------------------------------------------------

// streamConfig builds the stream definition; subjects default to <prefix>.>
func (np *NATSPublisher) streamConfig() (*nats.StreamConfig, error) {
	js := np.config.JetStream
	if js.StreamName == "" {
		return nil, fmt.Errorf("stream name not configured")
	}

	subjects := js.Subjects
	if len(subjects) == 0 {
		subjects = []string{np.getSubject(">")}
	}

	maxAge := js.MaxAge
	if maxAge == 0 {
		maxAge = 24 * time.Hour
	}

	replicas := js.Replicas
	if replicas < 1 {
		replicas = 1
	}

	return &nats.StreamConfig{
		Name:       js.StreamName,
		Subjects:   subjects,
		Retention:  nats.LimitsPolicy,
		Storage:    nats.FileStorage,
		Replicas:   replicas,
		MaxAge:     maxAge,
		MaxMsgs:    js.MaxMsgs,
		MaxBytes:   js.MaxBytes,
		MaxMsgSize: int32(js.MaxMsgSize),
		Discard:    nats.DiscardOld,
	}, nil
}

// -----------------------------------------------------------------------------

// Disconnect drains pending messages and closes the NATS connection
func (np *NATSPublisher) Disconnect() error {
	np.mu.Lock()
	defer np.mu.Unlock()

	if np.nc == nil || np.nc.IsClosed() {
		return nil
	}

	if np.js != nil {
		select {
		case <-np.js.PublishAsyncComplete():
		case <-time.After(np.flushTimeout()):
			np.logger.Warning("%s : %d jetstream acks still pending at close", np.name, np.js.PublishAsyncPending())
		}
	}

	if err := np.nc.FlushTimeout(np.flushTimeout()); err != nil {
		np.logger.Warning("%s : flush before close failed: %v", np.name, err)
	}
	np.nc.Close()
	np.connected.Store(false)
	np.logger.Info("%s : NATS connection closed", np.name)
	return nil
}

// -----------------------------------------------------------------------------

// IsConnected returns connection status
func (np *NATSPublisher) IsConnected() bool {
	return np.connected.Load()
}

// -----------------------------------------------------------------------------

// GetName returns client identifier
func (np *NATSPublisher) GetName() string {
	return np.name
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) flushTimeout() time.Duration {
	if np.config.FlushTimeout > 0 {
		return np.config.FlushTimeout
	}
	return time.Second
}

// -----------------------------------------------------------------------------

func (np *NATSPublisher) newMsg(subject string, data []byte) *nats.Msg {
	msg := nats.NewMsg(np.getSubject(subject))
	msg.Header.Set("Content-Type", np.serializer.ContentType())
	msg.Data = data
	return msg
}

// -----------------------------------------------------------------------------

// getSubject prepends the configured subject prefix if it exists.
func (np *NATSPublisher) getSubject(subject string) string {
	if np.config.SubjectPrefix != "" {
		return fmt.Sprintf("%s.%s", np.config.SubjectPrefix, subject)
	}
	return subject
}
