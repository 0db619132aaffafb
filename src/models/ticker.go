package models

import (
	"time"
)

// -----------------------------------------------------------------------------

// MTickerRecord is one normalized ticker update for a single allow-listed symbol.
// Records are created by the broker when a message is parsed and never modified afterwards.
type MTickerRecord struct {
	Symbol         string  `json:"symbol"`           // Base asset, quote suffix stripped (e.g. "BTC")
	Price          float64 `json:"price"`            // Last/close price
	PriceChangePct float64 `json:"price_change_pct"` // 24h change reported by the exchange, signed
	Volume         float64 `json:"volume"`           // 24h base asset volume
	VolumeScore    int     `json:"volume_score"`     // 1..10, derived from Volume
}

// -----------------------------------------------------------------------------

// MSnapshot is the result of normalizing one upstream message.
// Tickers keeps the upstream order, one record per symbol present in the update.
type MSnapshot struct {
	Timestamp time.Time       `json:"timestamp"`
	Tickers   []MTickerRecord `json:"tickers"`
}

// -----------------------------------------------------------------------------

// NewEmptySnapshot returns a timestamp-only snapshot.
func NewEmptySnapshot(ts time.Time) MSnapshot {
	return MSnapshot{Timestamp: ts, Tickers: []MTickerRecord{}}
}

// -----------------------------------------------------------------------------

// IsEmpty reports whether the snapshot carries no ticker records.
func (s MSnapshot) IsEmpty() bool {
	return len(s.Tickers) == 0
}
