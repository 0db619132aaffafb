package interfaces

import (
	"context"
)

// -----------------------------------------------------------------------------

// IConnectionClient defines the transport of the feed.
type IConnectionClient interface {
	// Connect dials the endpoint and starts delivering messages to the callbacks
	// passed during client initialization.
	Connect(ctx context.Context) error

	// Disconnect closes the connection
	Disconnect() error

	// IsRunning reports whether the transport believes the connection is open
	IsRunning() bool

	// GetName returns the client name
	GetName() string

	// GetType returns the transport type
	GetType() string

	// SendMessage writes one frame
	SendMessage([]byte) error

	// Ping writes a ping control frame; an error means the connection is dead
	Ping() error
}
