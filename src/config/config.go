package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"ticker-monitor/src/models"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override (TICKER_FEED_ENDPOINT, ...).
const EnvPrefix = "TICKER"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// envOverrides lists the settings that may be replaced from the environment.
type envOverrides struct {
	LogLevel      string   `envconfig:"LOG_LEVEL"`
	LogFormat     string   `envconfig:"LOG_FORMAT"`
	Port          int      `envconfig:"PORT"`
	GRPCPort      int      `envconfig:"GRPC_PORT"`
	FeedEndpoint  string   `envconfig:"FEED_ENDPOINT"`
	FeedSymbols   []string `envconfig:"FEED_SYMBOLS"`
	NATSEnabled   *bool    `envconfig:"NATS_ENABLED"`
	NATSServers   []string `envconfig:"NATS_SERVERS"`
	NATSPrefix    string   `envconfig:"NATS_SUBJECT_PREFIX"`
	NATSSerialize string   `envconfig:"NATS_SERIALIZER"`
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	// 3. Environment wins over the file; a missing .env is not an error
	_ = godotenv.Load()
	if err := config.applyEnv(); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Default returns a validated configuration built only from defaults.
func Default() *Config {
	config := &Config{MConfig: &models.MConfig{}}
	config.ApplyDefaults()
	return config
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills every zero-valued setting with its default.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "ticker-monitor"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.GRPC_Host == "" {
		c.GRPC_Host = "0.0.0.0"
	}
	if c.GRPC_Port == 0 {
		c.GRPC_Port = 50051
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.REST.RateLimit == 0 {
		c.REST.RateLimit = 1
	}
	if c.REST.Burst == 0 {
		c.REST.Burst = 3
	}

	feed := &c.Feed
	if feed.Name == "" {
		feed.Name = "binance"
	}
	if feed.Type == "" {
		feed.Type = "websocket"
	}
	if feed.Endpoint == "" {
		feed.Endpoint = "wss://stream.binance.com:9443/ws"
	}
	if feed.AssetType == "" {
		feed.AssetType = "crypto"
	}
	if len(feed.Streams) == 0 {
		feed.Streams = []string{"!ticker@arr"}
	}
	if len(feed.Symbols) == 0 {
		feed.Symbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "XRPUSDT", "ADAUSDT", "DOGEUSDT"}
	}
	if feed.QuoteAsset == "" {
		feed.QuoteAsset = "USDT"
	}

	conn := &feed.ConnectionConfig
	if conn.HandshakeTimeout == 0 {
		conn.HandshakeTimeout = 10 * time.Second
	}
	if conn.RetryDelay == 0 {
		conn.RetryDelay = time.Second
	}
	if conn.MaxRetries == 0 {
		conn.MaxRetries = 5
	}
	if conn.HeartbeatInterval == 0 {
		conn.HeartbeatInterval = 30 * time.Second
	}

	p := &c.Pipeline
	if p.DisplayInterval == 0 {
		p.DisplayInterval = time.Second
	}
	if p.PriceWindow == 0 {
		p.PriceWindow = 5 * time.Minute
	}
	if p.PriceThresholdPct == 0 {
		p.PriceThresholdPct = 1.0
	}
	if p.VolumeInterval == 0 {
		p.VolumeInterval = 10 * time.Second
	}
	if p.VolumeThreshold == 0 {
		p.VolumeThreshold = 0.20
	}
	if p.AlertFeedSize == 0 {
		p.AlertFeedSize = 5
	}

	n := &c.NATS
	if len(n.Servers) == 0 {
		n.Servers = []string{"nats://127.0.0.1:4222"}
	}
	if n.ClientID == "" {
		n.ClientID = c.Name
	}
	if n.SubjectPrefix == "" {
		n.SubjectPrefix = "tickers"
	}
	if n.Serializer == "" {
		n.Serializer = "json"
	}
	if n.ConnectTimeout == 0 {
		n.ConnectTimeout = 5 * time.Second
	}
	if n.ReconnectWait == 0 {
		n.ReconnectWait = 2 * time.Second
	}
	if n.MaxReconnects == 0 {
		n.MaxReconnects = 60
	}
	if n.FlushTimeout == 0 {
		n.FlushTimeout = 5 * time.Second
	}
}

// -----------------------------------------------------------------------------

// applyEnv overrides file settings with TICKER_* environment variables.
func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return err
	}

	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.LogFormat != "" {
		c.Log.Format = env.LogFormat
	}
	if env.Port != 0 {
		c.Port = env.Port
	}
	if env.GRPCPort != 0 {
		c.GRPC_Port = env.GRPCPort
	}
	if env.FeedEndpoint != "" {
		c.Feed.Endpoint = env.FeedEndpoint
	}
	if len(env.FeedSymbols) > 0 {
		c.Feed.Symbols = env.FeedSymbols
	}
	if env.NATSEnabled != nil {
		c.NATS.Enabled = *env.NATSEnabled
	}
	if len(env.NATSServers) > 0 {
		c.NATS.Servers = env.NATSServers
	}
	if env.NATSPrefix != "" {
		c.NATS.SubjectPrefix = env.NATSPrefix
	}
	if env.NATSSerialize != "" {
		c.NATS.Serializer = env.NATSSerialize
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation and checks the feed/pipeline/NATS sub-configs.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config name cannot be empty")
	}

	// Validate Application Ports (using c.Port directly due to embedding)
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid application port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GRPC_Port <= 1024 || c.GRPC_Port > 65535 {
		return fmt.Errorf("invalid gRPC port number: %d (must be between 1025 and 65535)", c.GRPC_Port)
	}
	if c.GRPC_Port == c.Port {
		return fmt.Errorf("gRPC port and application port must differ (both %d)", c.Port)
	}

	if c.REST.RateLimit < 0 || c.REST.Burst < 1 {
		return fmt.Errorf("rest rate_limit must be positive and burst at least 1")
	}

	// Validate Feed
	if c.Feed.Endpoint == "" {
		return fmt.Errorf("feed '%s': endpoint cannot be empty", c.Feed.Name)
	}
	if !strings.HasPrefix(c.Feed.Endpoint, "ws://") && !strings.HasPrefix(c.Feed.Endpoint, "wss://") {
		return fmt.Errorf("feed '%s': endpoint must use ws:// or wss:// (got %s)", c.Feed.Name, c.Feed.Endpoint)
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("feed '%s': symbols list cannot be empty", c.Feed.Name)
	}
	if c.Feed.ConnectionConfig.MaxRetries < 1 {
		return fmt.Errorf("feed '%s': max_retries must be at least 1", c.Feed.Name)
	}
	if c.Feed.ConnectionConfig.RetryDelay < 0 || c.Feed.ConnectionConfig.HeartbeatInterval <= 0 {
		return fmt.Errorf("feed '%s': retry_delay and heartbeat_interval must be positive", c.Feed.Name)
	}

	// Validate Pipeline
	p := c.Pipeline
	if p.DisplayInterval <= 0 || p.PriceWindow <= 0 || p.VolumeInterval <= 0 {
		return fmt.Errorf("pipeline intervals must be positive")
	}
	if p.PriceThresholdPct <= 0 || p.VolumeThreshold <= 0 {
		return fmt.Errorf("pipeline thresholds must be positive")
	}
	if p.AlertFeedSize < 1 {
		return fmt.Errorf("alert_feed_size must be at least 1")
	}

	// Validation of NATS config (minimal check)
	if c.NATS.Enabled {
		if len(c.NATS.Servers) == 0 {
			return fmt.Errorf("NATS servers list cannot be empty")
		}
		if c.NATS.Serializer != "json" && c.NATS.Serializer != "proto" {
			return fmt.Errorf("unknown NATS serializer '%s' (json or proto)", c.NATS.Serializer)
		}
	}

	return nil
}
