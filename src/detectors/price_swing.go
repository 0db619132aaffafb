package detectors

import (
	"time"

	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// -----------------------------------------------------------------------------

// priceWindow keeps the first and last price of one symbol inside the current window.
type priceWindow struct {
	first decimal.Decimal
	last  decimal.Decimal
	count int
}

// -----------------------------------------------------------------------------

// PriceSwingDetector accumulates every ticker record of a tumbling window and, when the
// window closes, reports the symbols whose last price moved at least the threshold away
// from their first price. The caller owns the window boundary and calls Flush on it.
type PriceSwingDetector struct {
	Name      string
	logger    *logger.Logger
	threshold decimal.Decimal

	windows map[string]*priceWindow
	order   []string // symbols in first-seen order
}

// -----------------------------------------------------------------------------

// NewPriceSwingDetector creates a detector alerting on an absolute change of at least thresholdPct percent.
func NewPriceSwingDetector(thresholdPct float64, logger *logger.Logger) *PriceSwingDetector {
	return &PriceSwingDetector{
		Name:      "PriceSwingDetector",
		logger:    logger,
		threshold: decimal.NewFromFloat(thresholdPct),
		windows:   make(map[string]*priceWindow),
	}
}

// -----------------------------------------------------------------------------

// OnSnapshot adds the records of one snapshot to the current window, in arrival order.
func (d *PriceSwingDetector) OnSnapshot(snapshot models.MSnapshot) error {
	for _, record := range snapshot.Tickers {
		price := decimal.NewFromFloat(record.Price)

		w, ok := d.windows[record.Symbol]
		if !ok {
			w = &priceWindow{first: price}
			d.windows[record.Symbol] = w
			d.order = append(d.order, record.Symbol)
		}
		w.last = price
		w.count++
	}
	return nil
}

// -----------------------------------------------------------------------------

// Flush closes the current window and returns its alerts, stamped with now.
// The accumulator is reset whether or not anything qualified.
func (d *PriceSwingDetector) Flush(now time.Time) []models.MPriceAlert {
	var alerts []models.MPriceAlert

	for _, symbol := range d.order {
		w := d.windows[symbol]
		if w.count < 2 || w.first.IsZero() {
			continue
		}

		pct := w.last.Sub(w.first).Div(w.first).Mul(hundred)
		if pct.Abs().LessThan(d.threshold) {
			continue
		}

		alerts = append(alerts, models.MPriceAlert{
			Symbol:        symbol,
			PercentChange: pct.Round(2),
			IsUp:          pct.IsPositive(),
			Timestamp:     now,
		})
	}

	d.logger.Debug("%s : window closed, %d symbols observed, %d alerts", d.Name, len(d.order), len(alerts))
	d.Reset()
	return alerts
}

// -----------------------------------------------------------------------------

// Reset discards the current window.
func (d *PriceSwingDetector) Reset() {
	d.windows = make(map[string]*priceWindow)
	d.order = nil
}
