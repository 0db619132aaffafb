package detectors

import (
	"time"

	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// VolumeSpikeDetector compares, on each check, the volumes of the latest snapshot with
// the volumes recorded at the previous check. It owns the per-symbol rolling state.
type VolumeSpikeDetector struct {
	Name      string
	logger    *logger.Logger
	threshold decimal.Decimal

	previous map[string]decimal.Decimal
	pending  *models.MSnapshot
}

// -----------------------------------------------------------------------------

// NewVolumeSpikeDetector creates a detector alerting when volume grew by more than
// threshold (a ratio, 0.20 for +20%) between two checks.
func NewVolumeSpikeDetector(threshold float64, logger *logger.Logger) *VolumeSpikeDetector {
	return &VolumeSpikeDetector{
		Name:      "VolumeSpikeDetector",
		logger:    logger,
		threshold: decimal.NewFromFloat(threshold),
		previous:  make(map[string]decimal.Decimal),
	}
}

// -----------------------------------------------------------------------------

// OnSnapshot remembers snapshot as the latest one; only the most recent survives until Check.
func (d *VolumeSpikeDetector) OnSnapshot(snapshot models.MSnapshot) error {
	d.pending = &snapshot
	return nil
}

// -----------------------------------------------------------------------------

// Check evaluates the latest snapshot received since the previous check, if any, and
// records its volumes as the new baseline for every symbol it contains.
func (d *VolumeSpikeDetector) Check(now time.Time) []models.MVolumeAlert {
	if d.pending == nil {
		return nil
	}
	snapshot := d.pending
	d.pending = nil

	var alerts []models.MVolumeAlert
	for _, record := range snapshot.Tickers {
		current := decimal.NewFromFloat(record.Volume)

		if previous, ok := d.previous[record.Symbol]; ok && previous.IsPositive() {
			ratio := current.Sub(previous).Div(previous)
			if ratio.GreaterThan(d.threshold) {
				alerts = append(alerts, models.MVolumeAlert{
					Symbol:         record.Symbol,
					VolumeIncrease: ratio.Mul(hundred).Round(0),
					Timestamp:      now,
				})
			}
		}

		d.previous[record.Symbol] = current
	}

	if len(alerts) > 0 {
		d.logger.Debug("%s : %d volume spikes", d.Name, len(alerts))
	}
	return alerts
}

// -----------------------------------------------------------------------------

// Reset forgets every recorded volume and any pending snapshot.
func (d *VolumeSpikeDetector) Reset() {
	d.previous = make(map[string]decimal.Decimal)
	d.pending = nil
}
