package bus

import (
	"sync"

	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
)

// -----------------------------------------------------------------------------

// MessageSource is the raw upstream message stream the data bus attaches to.
type MessageSource interface {
	OnMessage(h Handler[[]byte]) (unsubscribe func())
}

// -----------------------------------------------------------------------------

// DataBus turns the raw message stream into a shared snapshot stream. It holds a single
// subscription on the source no matter how many consumers subscribe, and normalizes
// each message exactly once.
type DataBus struct {
	Name   string
	logger *logger.Logger
	source MessageSource
	broker interfaces.IBroker
	out    *Broadcaster[models.MSnapshot]

	mu     sync.Mutex
	detach func()
	closed bool
}

// -----------------------------------------------------------------------------

// NewDataBus creates a data bus normalizing source messages with broker.
func NewDataBus(source MessageSource, broker interfaces.IBroker, logger *logger.Logger) *DataBus {
	out := NewBroadcaster[models.MSnapshot]("SnapshotBus", logger)
	// A failing consumer gets a timestamp-only snapshot instead of the one it choked on.
	out.Fallback = func(s models.MSnapshot) models.MSnapshot {
		return models.NewEmptySnapshot(s.Timestamp)
	}

	return &DataBus{
		Name:   "DataBus",
		logger: logger,
		source: source,
		broker: broker,
		out:    out,
	}
}

// -----------------------------------------------------------------------------

// Subscribe registers a snapshot consumer, attaching to the source on first use.
func (b *DataBus) Subscribe(h Handler[models.MSnapshot]) func() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	if b.detach == nil {
		b.detach = b.source.OnMessage(b.handleMessage)
		b.logger.Debug("%s : attached to upstream message source", b.Name)
	}
	b.mu.Unlock()

	return b.out.Subscribe(h)
}

// -----------------------------------------------------------------------------

// Close detaches from the source and unsubscribes every consumer.
func (b *DataBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	if b.detach != nil {
		b.detach()
		b.detach = nil
	}
	b.out.Close()
	b.logger.Info("%s : closed, all snapshot consumers unsubscribed", b.Name)
}

// -----------------------------------------------------------------------------

// SubscriberCount returns the number of snapshot consumers.
func (b *DataBus) SubscriberCount() int {
	return b.out.SubscriberCount()
}

// -----------------------------------------------------------------------------

// handleMessage normalizes one raw message and fans the snapshot out.
// Frames that cannot be decoded are dropped; they never close the bus.
func (b *DataBus) handleMessage(message []byte) error {
	snapshot, err := b.broker.ParseMessage(message)
	if err != nil {
		b.logger.Debug("%s : dropping undecodable frame: %v", b.Name, err)
		return nil
	}
	if snapshot == nil {
		return nil
	}

	b.out.Publish(*snapshot)
	return nil
}
