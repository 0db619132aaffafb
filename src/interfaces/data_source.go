package interfaces

import (
	"context"

	"ticker-monitor/src/models"
)

// -----------------------------------------------------------------------------

// IDataSource is one connectable feed: a broker paired with its transport.
// The connection manager drives it and never touches the transport directly.
type IDataSource interface {
	GetName() string

	// Start connects and subscribes. It blocks until the feed is live or failed.
	Start(ctx context.Context) error

	// Stop unsubscribes (best effort) and closes the connection.
	Stop() error

	// IsAlive is the liveness probe used by the heartbeat.
	IsAlive() bool

	GetStatus() *models.MDataSourceStatus
}

// -----------------------------------------------------------------------------

// DataSourceCallbacks connects a data source to its owner. Both callbacks may be
// invoked from transport goroutines.
type DataSourceCallbacks struct {
	OnMessage func(message []byte)
	OnClose   func(err error)
}
