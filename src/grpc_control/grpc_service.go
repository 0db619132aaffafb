package grpc_control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"

	"ticker-monitor/src/config"
	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// FeedHealthService is the health service name that follows the connection state.
const FeedHealthService = "ticker.Feed"

// -----------------------------------------------------------------------------
// GRPCService handles gRPC server lifecycle
// -----------------------------------------------------------------------------

type GRPCService struct {
	server   *grpc.Server
	listener net.Listener
	health   *health.Server
	logger   *logger.Logger
	running  atomic.Bool
}

// -----------------------------------------------------------------------------

// NewGRPCService listens on the configured gRPC address and registers the control
// and health services.
func NewGRPCService(config *config.Config, logger *logger.Logger, controller interfaces.IFeedController) (*GRPCService, error) {
	address := fmt.Sprintf("%s:%d", config.GRPC_Host, config.GRPC_Port)

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	return NewGRPCServiceWithListener(listener, logger, controller), nil
}

// -----------------------------------------------------------------------------

// NewGRPCServiceWithListener builds the service on an existing listener.
func NewGRPCServiceWithListener(listener net.Listener, logger *logger.Logger, controller interfaces.IFeedController) *GRPCService {
	server := grpc.NewServer(
		grpc.MaxRecvMsgSize(4*1024*1024),
		grpc.MaxSendMsgSize(4*1024*1024),
	)

	RegisterControlServiceServer(server, NewControlService(controller, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(FeedHealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &GRPCService{
		server:   server,
		listener: listener,
		health:   healthServer,
		logger:   logger,
	}
}

// -----------------------------------------------------------------------------

// Start serves in the background and returns immediately.
func (g *GRPCService) Start() {
	g.logger.Info("starting gRPC service on %s", g.listener.Addr().String())

	g.running.Store(true)
	go func() {
		defer g.running.Store(false)
		if err := g.server.Serve(g.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			g.logger.Error("gRPC server failed: %v", err)
		}
	}()
}

// -----------------------------------------------------------------------------

// OnConnectionState maps the feed state onto the health of ticker.Feed.
// Its signature lets it subscribe directly to the status channel.
func (g *GRPCService) OnConnectionState(state models.MConnectionState) error {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if state == models.StateConnected {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus(FeedHealthService, status)
	return nil
}

// -----------------------------------------------------------------------------

// Stop gracefully stops the gRPC server, forcing it when ctx expires first.
func (g *GRPCService) Stop(ctx context.Context) error {
	g.logger.Info("stopping gRPC service...")
	g.health.Shutdown()

	done := make(chan struct{})
	go func() {
		g.server.GracefulStop()
		close(done)
	}()

	select {
	case <-ctx.Done():
		g.logger.Warning("gRPC graceful shutdown timeout, forcing stop...")
		g.server.Stop()
	case <-done:
		g.logger.Info("gRPC service stopped gracefully")
	}

	g.running.Store(false)
	return nil
}

// -----------------------------------------------------------------------------

// IsRunning returns whether the gRPC server is running
func (g *GRPCService) IsRunning() bool {
	return g.running.Load()
}

// -----------------------------------------------------------------------------

// Addr returns the listening address.
func (g *GRPCService) Addr() net.Addr {
	return g.listener.Addr()
}
