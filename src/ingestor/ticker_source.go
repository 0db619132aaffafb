package ingestor

import (
	"context"
	"fmt"

	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
)

// -----------------------------------------------------------------------------

// TickerSource pairs the broker with its connection client. It is the single
// IDataSource driven by the connection manager.
type TickerSource struct {
	Name   string
	Logger *logger.Logger
	Broker interfaces.IBroker
	Client interfaces.IConnectionClient
}

// -----------------------------------------------------------------------------

// GetName returns the source name
func (s *TickerSource) GetName() string {
	return s.Name
}

// -----------------------------------------------------------------------------

// Start connects the client and sends the stream subscription.
func (s *TickerSource) Start(ctx context.Context) error {
	s.Logger.Info("%s : starting connection client", s.Name)
	if err := s.Client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to start client %s: %w", s.Name, err)
	}

	if err := s.subscribe(); err != nil {
		s.Client.Disconnect()
		return err
	}

	s.Logger.Info("%s : connection client started", s.Name)
	return nil
}

// -----------------------------------------------------------------------------

// Stop sends the unsubscription when possible and closes the connection client.
func (s *TickerSource) Stop() error {
	if s.Client.IsRunning() {
		if err := s.unsubscribe(); err != nil {
			s.Logger.Debug("%s : %v", s.Name, err)
		}
	}
	return s.Client.Disconnect()
}

// -----------------------------------------------------------------------------

// IsAlive reports whether the client still considers itself open and accepts a ping.
func (s *TickerSource) IsAlive() bool {
	if !s.Client.IsRunning() {
		return false
	}
	return s.Client.Ping() == nil
}

// -----------------------------------------------------------------------------

// GetStatus describes the source. State and Failures are filled in by the ingestor.
func (s *TickerSource) GetStatus() *models.MDataSourceStatus {
	return &models.MDataSourceStatus{
		SourceName:    s.Broker.GetName(),
		Running:       s.Client.IsRunning(),
		Type:          s.Broker.GetType(),
		TransportType: s.Client.GetType(),
		Endpoint:      s.Broker.GetEndPoint(),
		Symbols:       s.Broker.GetSymbols(),
	}
}

// -----------------------------------------------------------------------------
// Subscription Methods
// -----------------------------------------------------------------------------

func (s *TickerSource) subscribe() error {
	msg, err := s.Broker.AddSubscription()
	if err != nil {
		return fmt.Errorf("failed to marshal subscription message for %s: %w", s.Name, err)
	}
	if err := s.Client.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send subscription message for %s: %w", s.Name, err)
	}

	s.Logger.Info("%s : subscription sent for %d symbols", s.Name, len(s.Broker.GetSymbols()))
	return nil
}

// -----------------------------------------------------------------------------

func (s *TickerSource) unsubscribe() error {
	msg, err := s.Broker.RemoveSubscription()
	if err != nil {
		return fmt.Errorf("failed to marshal unsubscription message for %s: %w", s.Name, err)
	}
	if err := s.Client.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send unsubscription message for %s: %w", s.Name, err)
	}
	return nil
}
