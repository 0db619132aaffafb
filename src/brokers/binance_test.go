package brokers

import (
	"encoding/json"
	"testing"
	"time"

	"ticker-monitor/src/config"
	"ticker-monitor/src/logger"
)

var fixedNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newTestBinance(t *testing.T) *Binance {
	t.Helper()
	cfg := config.Default()
	cfg.Feed.Symbols = []string{"BTCUSDT", "ETHUSDT"}

	broker, err := NewBinance(cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("NewBinance: %v", err)
	}
	b := broker.(*Binance)
	b.Now = func() time.Time { return fixedNow }
	return b
}

func TestBinance_ParseMessage_FiltersAndNormalizes(t *testing.T) {
	b := newTestBinance(t)

	msg := []byte(`[
		{"e":"24hrTicker","s":"BTCUSDT","c":"65000.50","P":"-1.25","v":"12345.6"},
		{"e":"24hrTicker","s":"DOGEUSDT","c":"0.12","P":"3.00","v":"999"},
		{"e":"24hrTicker","s":"ETHUSDT","c":"3200","P":"0.40","v":"0"}
	]`)

	snap, err := b.ParseMessage(msg)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if !snap.Timestamp.Equal(fixedNow) {
		t.Errorf("timestamp = %v", snap.Timestamp)
	}
	if len(snap.Tickers) != 2 {
		t.Fatalf("expected 2 allow-listed tickers, got %d", len(snap.Tickers))
	}

	btc := snap.Tickers[0]
	if btc.Symbol != "BTC" || btc.Price != 65000.50 || btc.PriceChangePct != -1.25 || btc.Volume != 12345.6 {
		t.Errorf("unexpected BTC record: %+v", btc)
	}
	if btc.VolumeScore != 1 {
		t.Errorf("BTC volume score = %d, want 1", btc.VolumeScore)
	}

	eth := snap.Tickers[1]
	if eth.Symbol != "ETH" || eth.VolumeScore != 1 {
		t.Errorf("unexpected ETH record: %+v", eth)
	}
}

func TestBinance_ParseMessage_NonArrayYieldsEmptySnapshot(t *testing.T) {
	b := newTestBinance(t)

	for _, msg := range []string{`{"result":null,"id":1}`, `"pong"`, `42`, `[]`} {
		snap, err := b.ParseMessage([]byte(msg))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", msg, err)
		}
		if !snap.IsEmpty() || !snap.Timestamp.Equal(fixedNow) {
			t.Errorf("%s: expected empty timestamped snapshot, got %+v", msg, snap)
		}
	}
}

func TestBinance_ParseMessage_InvalidJSON(t *testing.T) {
	b := newTestBinance(t)
	if _, err := b.ParseMessage([]byte(`[{"s":`)); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}

func TestBinance_ParseMessage_SkipsBadElements(t *testing.T) {
	b := newTestBinance(t)

	snap, err := b.ParseMessage([]byte(`["junk", {"s":"BTCUSDT","c":"abc","v":"1"}, {"s":"ETHUSDT","c":"10","v":"-5"}]`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if len(snap.Tickers) != 1 || snap.Tickers[0].Symbol != "ETH" || snap.Tickers[0].Volume != 0 {
		t.Errorf("unexpected tickers: %+v", snap.Tickers)
	}
}

func TestVolumeScore(t *testing.T) {
	tests := []struct {
		volume float64
		want   int
	}{
		{0, 1},
		{-10, 1},
		{0.5, 1},
		{1, 1},
		{1e4, 1},   // ln = 9.2
		{1e5, 2},   // ln = 11.5
		{1e9, 3},   // ln = 20.7
		{1e44, 10}, // ln = 101.3
		{1e300, 10},
	}
	for _, tt := range tests {
		if got := VolumeScore(tt.volume); got != tt.want {
			t.Errorf("VolumeScore(%g) = %d, want %d", tt.volume, got, tt.want)
		}
	}
}

func TestBinance_SubscriptionFrames(t *testing.T) {
	b := newTestBinance(t)

	sub, err := b.AddSubscription()
	if err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}
	unsub, err := b.RemoveSubscription()
	if err != nil {
		t.Fatalf("RemoveSubscription: %v", err)
	}

	var frame struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
		ID     int      `json:"id"`
	}
	if err := json.Unmarshal(sub, &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Method != "SUBSCRIBE" || len(frame.Params) != 1 || frame.Params[0] != "!ticker@arr" || frame.ID != 1 {
		t.Errorf("unexpected subscribe frame: %s", sub)
	}
	if err := json.Unmarshal(unsub, &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Method != "UNSUBSCRIBE" || frame.ID != 2 {
		t.Errorf("unexpected unsubscribe frame: %s", unsub)
	}
}

func TestRegistry(t *testing.T) {
	if _, err := GetConstructor("binance"); err != nil {
		t.Fatalf("binance not registered: %v", err)
	}
	if _, err := GetConstructor("nope"); err == nil {
		t.Error("expected error for unknown broker")
	}
	if err := Register("binance", NewBinance); err == nil {
		t.Error("duplicate registration should fail")
	}
}
