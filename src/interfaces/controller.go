package interfaces

import "ticker-monitor/src/models"

// -----------------------------------------------------------------------------

// IFeedController is the control and read surface of the running feed, shared by
// the REST and gRPC front ends.
type IFeedController interface {
	// Reconnect restarts the upstream connection with a fresh retry budget
	Reconnect()

	// Close stops the feed; nothing reconnects afterwards
	Close()

	// Refresh is the manual refresh hook
	Refresh()

	// State returns the current connection state
	State() models.MConnectionState

	// GetStatus describes the data source and its connection
	GetStatus() *models.MDataSourceStatus

	// Alerts returns the alert feed, newest first
	Alerts() []models.MAlertFeedEntry

	// LatestDisplay returns the most recent snapshot, if any
	LatestDisplay() (models.MSnapshot, bool)
}
