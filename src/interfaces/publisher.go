package interfaces

import "ticker-monitor/src/models"

// -----------------------------------------------------------------------------

// IPublisher defines the interface for publishing the derived views to a message broker
type IPublisher interface {
	// OnSnapshot publishes a display snapshot
	OnSnapshot(snapshot models.MSnapshot) error

	// OnConnectionState publishes a connection state transition
	OnConnectionState(state models.MConnectionState) error

	// OnAlerts publishes the current alert feed
	OnAlerts(entries []models.MAlertFeedEntry) error

	// Connect establishes connection to the message broker
	Connect() error

	// Disconnect closes the connection to the message broker
	Disconnect() error

	// IsConnected returns the current connection status
	IsConnected() bool
}
