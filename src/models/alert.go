package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------

// MPriceAlert is emitted when a symbol moved at least the configured percentage
// between the first and last observation of a price window.
type MPriceAlert struct {
	Symbol        string          `json:"symbol"`
	PercentChange decimal.Decimal `json:"percent_change"` // rounded to 2 decimals
	IsUp          bool            `json:"is_up"`
	Timestamp     time.Time       `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MVolumeAlert is emitted when volume grew faster than the configured ratio between two checks.
type MVolumeAlert struct {
	Symbol         string          `json:"symbol"`
	VolumeIncrease decimal.Decimal `json:"volume_increase"` // whole percent, e.g. "25"
	Timestamp      time.Time       `json:"timestamp"`
}

// -----------------------------------------------------------------------------

// MAlertType tells the renderer which feed produced an entry.
type MAlertType string

const (
	AlertTypePrice  MAlertType = "price"
	AlertTypeVolume MAlertType = "volume"
)

// -----------------------------------------------------------------------------

// MAlertFeedEntry is the common rendering shape of price and volume alerts.
type MAlertFeedEntry struct {
	Text      string     `json:"text"`
	Timestamp time.Time  `json:"timestamp"`
	Type      MAlertType `json:"type"`
}
