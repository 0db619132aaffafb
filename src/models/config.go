package models

import (
	"time"
)

// -----------------------------------------------------------------------------

// MConfig is the root of the YAML configuration file.
type MConfig struct {
	Name      string          `yaml:"name"`
	Port      int             `yaml:"port"` // REST control surface
	GRPC_Host string          `yaml:"grpc_host"`
	GRPC_Port int             `yaml:"grpc_port"`
	Log       MLogConfig      `yaml:"log"`
	REST      MRESTConfig     `yaml:"rest"`
	Feed      MFeedConfig     `yaml:"feed"`
	Pipeline  MPipelineConfig `yaml:"pipeline"`
	NATS      MNATSConfig     `yaml:"nats"`
}

// -----------------------------------------------------------------------------

// MLogConfig controls the logger backend.
type MLogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warning, error
	Format string `yaml:"format"` // console or json
}

// -----------------------------------------------------------------------------

// MRESTConfig limits the REST control endpoints.
type MRESTConfig struct {
	RateLimit float64 `yaml:"rate_limit"` // control requests per second
	Burst     int     `yaml:"burst"`
}

// -----------------------------------------------------------------------------

// MFeedConfig describes the single upstream data source.
type MFeedConfig struct {
	Name             string            `yaml:"name"`     // broker registry key, e.g. "binance"
	Type             string            `yaml:"type"`     // transport, e.g. "websocket"
	Endpoint         string            `yaml:"endpoint"` // e.g. wss://stream.binance.com:9443/ws
	AssetType        string            `yaml:"asset_type"`
	Streams          []string          `yaml:"streams"`     // e.g. ["!ticker@arr"]
	Symbols          []string          `yaml:"symbols"`     // allow-list, exchange notation (BTCUSDT)
	QuoteAsset       string            `yaml:"quote_asset"` // suffix stripped from symbols
	ConnectionConfig MConnectionConfig `yaml:"connection"`
}

// -----------------------------------------------------------------------------

// MConnectionConfig holds the reconnection and liveness policy.
type MConnectionConfig struct {
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	MaxRetries        int           `yaml:"max_retries"` // consecutive failures before the error state
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// -----------------------------------------------------------------------------

// MPipelineConfig holds cadences and thresholds of the derived views.
type MPipelineConfig struct {
	DisplayInterval   time.Duration `yaml:"display_interval"`
	PriceWindow       time.Duration `yaml:"price_window"`
	PriceThresholdPct float64       `yaml:"price_threshold_pct"` // absolute percent, inclusive
	VolumeInterval    time.Duration `yaml:"volume_interval"`
	VolumeThreshold   float64       `yaml:"volume_threshold"` // ratio, exclusive (0.20 = +20%)
	AlertFeedSize     int           `yaml:"alert_feed_size"`
}

// -----------------------------------------------------------------------------

// MNATSConfig configures the outbound NATS publisher.
type MNATSConfig struct {
	Enabled        bool              `yaml:"enabled"`
	Servers        []string          `yaml:"servers"`
	ClientID       string            `yaml:"client_id"`
	SubjectPrefix  string            `yaml:"subject_prefix"`
	Serializer     string            `yaml:"serializer"` // json or proto
	ConnectTimeout time.Duration     `yaml:"connect_timeout"`
	ReconnectWait  time.Duration     `yaml:"reconnect_wait"`
	MaxReconnects  int               `yaml:"max_reconnects"`
	FlushTimeout   time.Duration     `yaml:"flush_timeout"`
	JetStream      *MJetStreamConfig `yaml:"jetstream"`
}

// -----------------------------------------------------------------------------

// MJetStreamConfig enables persistent publishing through a JetStream stream.
type MJetStreamConfig struct {
	Enabled    bool          `yaml:"enabled"`
	StreamName string        `yaml:"stream_name"`
	Subjects   []string      `yaml:"subjects"`
	Replicas   int           `yaml:"replicas"`
	MaxAge     time.Duration `yaml:"max_age"`
	MaxMsgs    int64         `yaml:"max_msgs"`
	MaxBytes   int64         `yaml:"max_bytes"`
	MaxMsgSize int           `yaml:"max_msg_size"`
}
