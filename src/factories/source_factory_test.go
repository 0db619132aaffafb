package factories

import (
	"strings"
	"testing"

	"ticker-monitor/src/config"
	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
)

func TestSourceFactory_CreatesBinanceOverWebSocket(t *testing.T) {
	f := NewSourceFactory(config.Default(), logger.NewNop())

	broker, client, err := f.CreateBrokerWithConnection(interfaces.DataSourceCallbacks{})
	if err != nil {
		t.Fatalf("CreateBrokerWithConnection: %v", err)
	}
	if broker.GetName() != "binance" {
		t.Errorf("broker = %s", broker.GetName())
	}
	if client.GetType() != "websocket" || client.IsRunning() {
		t.Errorf("client type=%s running=%v", client.GetType(), client.IsRunning())
	}
}

func TestSourceFactory_UnknownBroker(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Name = "nowhere"

	_, err := NewSourceFactory(cfg, logger.NewNop()).CreateBroker()
	if err == nil || !strings.Contains(err.Error(), "unknown broker type") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "registered: binance") {
		t.Errorf("err = %v, want the registered brokers listed", err)
	}
}

func TestSourceFactory_UnsupportedTransport(t *testing.T) {
	cfg := config.Default()
	cfg.Feed.Type = "carrier-pigeon"

	if _, err := NewSourceFactory(cfg, logger.NewNop()).CreateConnectionClient(interfaces.DataSourceCallbacks{}); err == nil {
		t.Error("expected an error for an unsupported transport")
	}
}
