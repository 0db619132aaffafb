package ingestor

import (
	"fmt"
	"sync"
	"time"

	"ticker-monitor/src/alerts"
	"ticker-monitor/src/bus"
	"ticker-monitor/src/config"
	"ticker-monitor/src/connection"
	"ticker-monitor/src/detectors"
	"ticker-monitor/src/eventloop"
	"ticker-monitor/src/factories"
	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
	"ticker-monitor/src/throttle"
)

var _ interfaces.IFeedController = (*Ingestor)(nil)

// -----------------------------------------------------------------------------
// Core Application Struct
// -----------------------------------------------------------------------------

// Ingestor owns the single upstream feed and every view derived from it. All of the
// components below run on one event loop; the exported methods are safe from any goroutine.
type Ingestor struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger

	// Publisher, when set, receives the display, status and alert channels
	Publisher interfaces.IPublisher

	// Now stamps alerts, replaceable in tests
	Now func() time.Time

	Factory *factories.SourceFactory
	Source  *TickerSource

	loop       *eventloop.Loop
	manager    *connection.Manager
	bus        *bus.DataBus
	throttler  *throttle.DisplayThrottler
	priceSwing *detectors.PriceSwingDetector
	volume     *detectors.VolumeSpikeDetector
	aggregator *alerts.Aggregator

	// loop-owned
	timers []*eventloop.Timer
	closed bool

	mu      sync.Mutex
	started bool
	stopped bool
}

// -----------------------------------------------------------------------------

// NewIngestor builds the whole pipeline without connecting anything.
func NewIngestor(config *config.Config, logger *logger.Logger) (*Ingestor, error) {
	pipeline := config.Pipeline

	loop := eventloop.New("EventLoop", logger)
	manager := connection.NewManager(config.Feed.ConnectionConfig, loop, logger)
	factory := factories.NewSourceFactory(config, logger)

	broker, client, err := factory.CreateBrokerWithConnection(manager.Callbacks())
	if err != nil {
		return nil, fmt.Errorf("failed to create data source: %w", err)
	}

	source := &TickerSource{
		Name:   config.Feed.Name,
		Logger: logger,
		Broker: broker,
		Client: client,
	}
	manager.Attach(source)

	return &Ingestor{
		Name:       "TickerIngestor",
		Config:     config,
		Logger:     logger,
		Now:        time.Now,
		Factory:    factory,
		Source:     source,
		loop:       loop,
		manager:    manager,
		bus:        bus.NewDataBus(manager, broker, logger),
		throttler:  throttle.NewDisplayThrottler(logger),
		priceSwing: detectors.NewPriceSwingDetector(pipeline.PriceThresholdPct, logger),
		volume:     detectors.NewVolumeSpikeDetector(pipeline.VolumeThreshold, logger),
		aggregator: alerts.NewAggregator(pipeline.AlertFeedSize, pipeline.PriceWindow, logger),
	}, nil
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start connects the publisher, wires the derived views to the data bus, starts
// their timers and opens the upstream connection.
func (i *Ingestor) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.started {
		return fmt.Errorf("%s already started", i.Name)
	}

	if i.Publisher != nil {
		i.Logger.Info("%s : connecting to publisher", i.Name)
		if err := i.Publisher.Connect(); err != nil {
			return fmt.Errorf("failed to connect to publisher: %w", err)
		}
		i.OnDisplay(i.Publisher.OnSnapshot)
		i.OnStatus(i.Publisher.OnConnectionState)
		i.OnAlerts(i.Publisher.OnAlerts)
	}

	i.bus.Subscribe(i.throttler.OnSnapshot)
	i.bus.Subscribe(i.priceSwing.OnSnapshot)
	i.bus.Subscribe(i.volume.OnSnapshot)

	i.loop.Start()
	i.loop.Post(i.startTimers)
	i.manager.Connect()
	i.started = true

	i.Logger.Info("%s : started, feed %s at %s", i.Name, i.Source.GetName(), i.Source.Broker.GetEndPoint())
	return nil
}

// -----------------------------------------------------------------------------

// Close stops the feed: the connection is closed without auto-reconnect, every derived
// computation is unsubscribed and every timer stopped. Status reads keep working.
func (i *Ingestor) Close() {
	i.mu.Lock()
	running := i.started && !i.stopped
	i.mu.Unlock()

	if running {
		i.close()
	}
}

// -----------------------------------------------------------------------------

// Stop closes the feed, stops the event loop and disconnects the publisher.
func (i *Ingestor) Stop() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.stopped {
		return nil
	}
	i.stopped = true

	i.Logger.Info("%s : stopping", i.Name)
	if i.started {
		i.close()
	}
	i.loop.Stop()

	if i.Publisher != nil {
		if err := i.Publisher.Disconnect(); err != nil {
			i.Logger.Error("%s : failed to disconnect publisher: %v", i.Name, err)
		}
	}

	i.Logger.Info("%s : stopped", i.Name)
	return nil
}

// -----------------------------------------------------------------------------
// Control surface
// -----------------------------------------------------------------------------

// Reconnect restarts the upstream connection with a fresh retry budget.
func (i *Ingestor) Reconnect() {
	i.manager.Reconnect()
}

// -----------------------------------------------------------------------------

// Refresh is the manual refresh hook. It is accepted and logged; nothing else happens.
func (i *Ingestor) Refresh() {
	i.loop.Post(func() {
		i.Logger.Info("%s : manual refresh requested", i.Name)
	})
}

// -----------------------------------------------------------------------------
// Outbound channels
// -----------------------------------------------------------------------------

// OnSnapshot subscribes to every normalized snapshot.
func (i *Ingestor) OnSnapshot(h bus.Handler[models.MSnapshot]) func() {
	return i.bus.Subscribe(h)
}

// OnDisplay subscribes to the throttled display feed.
func (i *Ingestor) OnDisplay(h bus.Handler[models.MSnapshot]) func() {
	return i.throttler.Subscribe(h)
}

// OnStatus subscribes to connection state transitions.
func (i *Ingestor) OnStatus(h bus.Handler[models.MConnectionState]) func() {
	return i.manager.OnStatus(h)
}

// OnAlerts subscribes to the bounded alert feed.
func (i *Ingestor) OnAlerts(h bus.Handler[[]models.MAlertFeedEntry]) func() {
	return i.aggregator.Subscribe(h)
}

// -----------------------------------------------------------------------------
// Status reads (run on the loop)
// -----------------------------------------------------------------------------

// State returns the current connection state.
func (i *Ingestor) State() models.MConnectionState {
	state := models.StateDisconnected
	i.loop.Do(func() { state = i.manager.State() })
	return state
}

// -----------------------------------------------------------------------------

// Alerts returns the current alert feed, newest first.
func (i *Ingestor) Alerts() []models.MAlertFeedEntry {
	entries := []models.MAlertFeedEntry{}
	i.loop.Do(func() { entries = i.aggregator.Entries() })
	return entries
}

// -----------------------------------------------------------------------------

// LatestDisplay returns the most recent snapshot, if any arrived.
func (i *Ingestor) LatestDisplay() (models.MSnapshot, bool) {
	var (
		snapshot models.MSnapshot
		ok       bool
	)
	i.loop.Do(func() { snapshot, ok = i.throttler.Latest() })
	return snapshot, ok
}

// -----------------------------------------------------------------------------

// GetStatus describes the data source and its connection state.
func (i *Ingestor) GetStatus() *models.MDataSourceStatus {
	status := i.Source.GetStatus()
	status.State = models.StateDisconnected
	i.loop.Do(func() {
		status.State = i.manager.State()
		status.Failures = i.manager.Failures()
	})
	return status
}

// -----------------------------------------------------------------------------
// Loop tasks
// -----------------------------------------------------------------------------

func (i *Ingestor) startTimers() {
	if i.closed {
		return
	}
	pipeline := i.Config.Pipeline

	i.timers = append(i.timers,
		i.loop.Every(pipeline.DisplayInterval, i.throttler.Tick),
		i.loop.Every(pipeline.PriceWindow, i.closePriceWindow),
		i.loop.Every(pipeline.VolumeInterval, i.checkVolume),
	)
}

// -----------------------------------------------------------------------------

func (i *Ingestor) closePriceWindow() {
	i.aggregator.AddPriceAlerts(i.priceSwing.Flush(i.Now()))
}

// -----------------------------------------------------------------------------

func (i *Ingestor) checkVolume() {
	i.aggregator.AddVolumeAlerts(i.volume.Check(i.Now()))
}

// -----------------------------------------------------------------------------

func (i *Ingestor) close() {
	i.manager.Close()
	i.loop.Do(i.closePipeline)
}

// -----------------------------------------------------------------------------

func (i *Ingestor) closePipeline() {
	if i.closed {
		return
	}
	i.closed = true

	for _, timer := range i.timers {
		timer.Stop()
	}
	i.timers = nil

	i.bus.Close()
	i.throttler.Close()
	i.aggregator.Close()
	i.priceSwing.Reset()
	i.volume.Reset()

	i.Logger.Info("%s : feed closed", i.Name)
}
