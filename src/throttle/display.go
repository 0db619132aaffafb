package throttle

import (
	"ticker-monitor/src/bus"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
)

// -----------------------------------------------------------------------------

// DisplayThrottler decouples the feed rate from the render rate: it keeps the latest
// snapshot and, on each sample tick, emits it only if it changed since the last tick.
type DisplayThrottler struct {
	Name   string
	logger *logger.Logger

	latest  models.MSnapshot
	hasData bool
	dirty   bool
	out     *bus.Broadcaster[models.MSnapshot]
}

// -----------------------------------------------------------------------------

// NewDisplayThrottler creates an idle throttler. The caller drives Tick.
func NewDisplayThrottler(logger *logger.Logger) *DisplayThrottler {
	return &DisplayThrottler{
		Name:   "DisplayThrottler",
		logger: logger,
		out:    bus.NewBroadcaster[models.MSnapshot]("DisplayFeed", logger),
	}
}

// -----------------------------------------------------------------------------

// OnSnapshot records snapshot as the value of the next sample.
func (t *DisplayThrottler) OnSnapshot(snapshot models.MSnapshot) error {
	t.latest = snapshot
	t.hasData = true
	t.dirty = true
	return nil
}

// -----------------------------------------------------------------------------

// Tick emits the latest snapshot if one arrived since the previous tick.
func (t *DisplayThrottler) Tick() {
	if !t.dirty {
		return
	}
	t.dirty = false
	t.out.Publish(t.latest)
}

// -----------------------------------------------------------------------------

// Subscribe registers a display consumer.
func (t *DisplayThrottler) Subscribe(h bus.Handler[models.MSnapshot]) func() {
	return t.out.Subscribe(h)
}

// -----------------------------------------------------------------------------

// Latest returns the last snapshot handed to the throttler, if any.
func (t *DisplayThrottler) Latest() (models.MSnapshot, bool) {
	return t.latest, t.hasData
}

// -----------------------------------------------------------------------------

// Close drops every display consumer and any pending sample.
func (t *DisplayThrottler) Close() {
	t.dirty = false
	t.out.Close()
}
