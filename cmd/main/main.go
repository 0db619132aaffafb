package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticker-monitor/src/config"
	"ticker-monitor/src/grpc_control"
	"ticker-monitor/src/ingestor"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
	"ticker-monitor/src/publishers"
	"ticker-monitor/src/rest"
	"ticker-monitor/src/serializers"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config, config.Name)

	// Create ingestor from config
	ingestorService, err := ingestor.NewIngestor(config, appLogger)
	if err != nil {
		appLogger.Critical("failed to create ingestor: %v", err)
		os.Exit(1)
	}
	defer ingestorService.Stop()

	// Optional NATS sink for the display, status and alert channels
	if config.NATS.Enabled {
		serializer, err := serializers.NewSerializer(config.NATS.Serializer)
		if err != nil {
			appLogger.Critical("invalid NATS serializer: %v", err)
			os.Exit(1)
		}
		ingestorService.Publisher = publishers.NewNATSPublisher(&config.NATS, appLogger.With("component", "nats"), serializer)
	}

	// Create control service; its health follows the connection state
	controlService, err := grpc_control.NewGRPCService(config, appLogger, ingestorService)
	if err != nil {
		appLogger.Critical("failed to create control service: %v", err)
		os.Exit(1)
	}
	ingestorService.OnStatus(controlService.OnConnectionState)
	controlService.Start()

	// Start REST API server
	apiServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: rest.NewAPIHandler(ingestorService, appLogger, config.REST.RateLimit, config.REST.Burst).Router(),
	}
	go func() {
		appLogger.Info("starting REST API server on :%d", config.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Critical("REST API server error: %v", err)
			os.Exit(1)
		}
	}()

	// Log every connection state transition
	ingestorService.OnStatus(func(state models.MConnectionState) error {
		appLogger.Info("feed state: %s", state)
		return nil
	})

	// Start ingestor
	if err := ingestorService.Start(); err != nil {
		appLogger.Critical("failed to start ingestor: %v", err)
		os.Exit(1)
	}

	appLogger.Info("ticker monitor running. REST API: :%d, gRPC: %s:%d", config.Port, config.GRPC_Host, config.GRPC_Port)
	appLogger.Info("Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	appLogger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		appLogger.Warning("REST API shutdown: %v", err)
	}
	controlService.Stop(ctx)
}
