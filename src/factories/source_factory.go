package factories

import (
	"fmt"
	"strings"

	"ticker-monitor/src/brokers"
	"ticker-monitor/src/config"
	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/transports"
)

// -----------------------------------------------------------------------------

// SourceFactory builds the broker and the connection client of the configured feed
type SourceFactory struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

// NewSourceFactory creates a new SourceFactory instance
func NewSourceFactory(config *config.Config, logger *logger.Logger) *SourceFactory {
	return &SourceFactory{
		Name:   "SourceFactory",
		Config: config,
		Logger: logger,
	}
}

// -----------------------------------------------------------------------------

// CreateBroker creates the feed broker using the dynamic registry.
func (f *SourceFactory) CreateBroker() (interfaces.IBroker, error) {
	brokerName := f.Config.Feed.Name

	constructor, err := brokers.GetConstructor(brokerName)
	if err != nil {
		return nil, fmt.Errorf("%w (registered: %s)", err, strings.Join(brokers.Names(), ", "))
	}

	broker, err := constructor(f.Config, f.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create broker %s: %w", brokerName, err)
	}

	f.Logger.Info("%s : created broker %s of type %s", f.Name, broker.GetName(), broker.GetType())
	return broker, nil
}

// -----------------------------------------------------------------------------

// CreateConnectionClient creates the transport of the feed. Raw messages and unexpected
// closes go to callbacks; parsing is the data bus's job.
func (f *SourceFactory) CreateConnectionClient(callbacks interfaces.DataSourceCallbacks) (interfaces.IConnectionClient, error) {
	feed := &f.Config.Feed

	switch feed.Type {
	case "websocket":
		return transports.NewWebSocketClient(feed, f.Logger, feed.Name, callbacks), nil
	default:
		return nil, fmt.Errorf("unsupported connection type '%s' for data source %s", feed.Type, feed.Name)
	}
}

// -----------------------------------------------------------------------------

// CreateBrokerWithConnection creates both broker and connection client
func (f *SourceFactory) CreateBrokerWithConnection(callbacks interfaces.DataSourceCallbacks) (interfaces.IBroker, interfaces.IConnectionClient, error) {
	broker, err := f.CreateBroker()
	if err != nil {
		return nil, nil, err
	}

	client, err := f.CreateConnectionClient(callbacks)
	if err != nil {
		return nil, nil, err
	}

	return broker, client, nil
}
