package models

// -----------------------------------------------------------------------------

// MDataSourceStatus represents the runtime status and technical metadata of the feed.
// It aggregates information from the broker, the connection client and the connection manager.
type MDataSourceStatus struct {
	SourceName    string           `json:"source_name"`    // The name of the data source
	Running       bool             `json:"running"`        // From IConnectionClient.IsRunning()
	Type          string           `json:"type"`           // e.g. "crypto" (from IBroker.GetType())
	TransportType string           `json:"transport_type"` // e.g. "websocket" (from IConnectionClient.GetType())
	Endpoint      string           `json:"endpoint"`       // e.g. "wss://stream.binance.com:9443/ws"
	Symbols       []string         `json:"symbols"`        // Allow-listed symbols
	State         MConnectionState `json:"state"`          // From the connection manager
	Failures      int              `json:"failures"`       // Consecutive failed attempts
}
