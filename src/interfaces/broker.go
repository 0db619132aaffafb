package interfaces

import (
	"ticker-monitor/src/config"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
)

// -----------------------------------------------------------------------------

// IBrokerConstructor defines the function signature for creating a new IBroker instance.
type IBrokerConstructor func(config *config.Config, logger *logger.Logger) (IBroker, error)

// -----------------------------------------------------------------------------

// IBroker defines the exchange-specific side of the feed: subscription frames and
// normalization of raw messages into snapshots.
type IBroker interface {
	// GetName return the broker name
	GetName() string

	// GetType return the asset type (crypto, equity...)
	GetType() string

	// GetEndPoint return the API endpoint of the broker (for display/logging)
	GetEndPoint() string

	// GetSymbols return the allow-listed symbols
	GetSymbols() []string

	// AddSubscription creates the subscription message sent after connecting
	AddSubscription() ([]byte, error)

	// RemoveSubscription creates the unsubscription message sent before an orderly close
	RemoveSubscription() ([]byte, error)

	// ParseMessage normalizes one raw message. Frames that are valid but carry no ticker
	// array yield an empty snapshot; undecodable frames yield an error.
	// The data bus drops errored frames, so undecodable frames never reach consumers.
	ParseMessage(message []byte) (*models.MSnapshot, error)
}
