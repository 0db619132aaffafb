package alerts

import (
	"fmt"
	"time"

	"ticker-monitor/src/bus"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
)

// -----------------------------------------------------------------------------

// Aggregator merges price and volume alerts into one bounded feed, newest first.
type Aggregator struct {
	Name   string
	logger *logger.Logger
	size   int
	window time.Duration // price window, only used in entry text

	entries []models.MAlertFeedEntry
	out     *bus.Broadcaster[[]models.MAlertFeedEntry]
}

// -----------------------------------------------------------------------------

// NewAggregator creates an aggregator retaining at most size entries.
func NewAggregator(size int, window time.Duration, logger *logger.Logger) *Aggregator {
	if size < 1 {
		size = 1
	}
	return &Aggregator{
		Name:   "AlertAggregator",
		logger: logger,
		size:   size,
		window: window,
		out:    bus.NewBroadcaster[[]models.MAlertFeedEntry]("AlertFeed", logger),
	}
}

// -----------------------------------------------------------------------------

// AddPriceAlerts appends a batch of price alerts to the feed.
func (a *Aggregator) AddPriceAlerts(alerts []models.MPriceAlert) {
	entries := make([]models.MAlertFeedEntry, 0, len(alerts))
	for _, alert := range alerts {
		entries = append(entries, a.priceEntry(alert))
	}
	a.push(entries)
}

// -----------------------------------------------------------------------------

// AddVolumeAlerts appends a batch of volume alerts to the feed.
func (a *Aggregator) AddVolumeAlerts(alerts []models.MVolumeAlert) {
	entries := make([]models.MAlertFeedEntry, 0, len(alerts))
	for _, alert := range alerts {
		entries = append(entries, models.MAlertFeedEntry{
			Text:      fmt.Sprintf("%s volume +%s%%", alert.Symbol, alert.VolumeIncrease),
			Timestamp: alert.Timestamp,
			Type:      models.AlertTypeVolume,
		})
	}
	a.push(entries)
}

// -----------------------------------------------------------------------------

// Entries returns a copy of the current feed.
func (a *Aggregator) Entries() []models.MAlertFeedEntry {
	return append([]models.MAlertFeedEntry{}, a.entries...)
}

// -----------------------------------------------------------------------------

// Subscribe registers a consumer of the full feed, published after every change.
func (a *Aggregator) Subscribe(h bus.Handler[[]models.MAlertFeedEntry]) func() {
	return a.out.Subscribe(h)
}

// -----------------------------------------------------------------------------

// Close drops every consumer and clears the feed.
func (a *Aggregator) Close() {
	a.entries = nil
	a.out.Close()
}

// -----------------------------------------------------------------------------

// push prepends each entry in turn, so the last of the batch ends up first.
func (a *Aggregator) push(entries []models.MAlertFeedEntry) {
	if len(entries) == 0 {
		return
	}

	for _, entry := range entries {
		a.entries = append([]models.MAlertFeedEntry{entry}, a.entries...)
	}
	if len(a.entries) > a.size {
		a.entries = a.entries[:a.size]
	}

	a.logger.Debug("%s : %d new entries, feed holds %d", a.Name, len(entries), len(a.entries))
	a.out.Publish(a.Entries())
}

// -----------------------------------------------------------------------------

func (a *Aggregator) priceEntry(alert models.MPriceAlert) models.MAlertFeedEntry {
	direction := "down"
	if alert.IsUp {
		direction = "up"
	}
	return models.MAlertFeedEntry{
		Text: fmt.Sprintf("%s %s %s%% in %s",
			alert.Symbol, direction, alert.PercentChange.Abs().StringFixed(2), windowLabel(a.window)),
		Timestamp: alert.Timestamp,
		Type:      models.AlertTypePrice,
	}
}

// -----------------------------------------------------------------------------

// windowLabel renders whole minutes as "5m" and anything else as a Go duration.
func windowLabel(d time.Duration) string {
	if d > 0 && d%time.Minute == 0 {
		return fmt.Sprintf("%dm", int(d/time.Minute))
	}
	return d.String()
}
