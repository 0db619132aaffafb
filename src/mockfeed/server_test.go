package mockfeed

import (
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"ticker-monitor/src/logger"

	"github.com/gorilla/websocket"
)

func TestServer_NextFrameFollowsDrift(t *testing.T) {
	s := NewServer(Config{
		Symbols:      []string{"BTCUSDT", "ETHUSDT"},
		BasePrices:   map[string]float64{"BTCUSDT": 60000},
		Drift:        1,
		VolumeGrowth: 0.5,
	}, logger.NewNop())

	var frames []tickerFrame
	for i := 0; i < 2; i++ {
		data, err := s.NextFrame()
		if err != nil {
			t.Fatalf("NextFrame: %v", err)
		}
		if err := json.Unmarshal(data, &frames); err != nil {
			t.Fatalf("frame is not a ticker array: %v", err)
		}
	}

	if len(frames) != 2 || frames[0].Symbol != "BTCUSDT" || frames[1].Symbol != "ETHUSDT" {
		t.Fatalf("frames = %+v", frames)
	}

	price, _ := strconv.ParseFloat(frames[0].ClosePrice, 64)
	if want := 60000 * 1.01 * 1.01; price < want-0.01 || price > want+0.01 {
		t.Errorf("BTC price = %v, want %v", price, want)
	}
	volume, _ := strconv.ParseFloat(frames[1].Volume, 64)
	if volume != 2250 {
		t.Errorf("ETH volume = %v, want 2250", volume)
	}
}

func TestServer_StreamsAndDrops(t *testing.T) {
	s := NewServer(Config{
		Symbols:   []string{"BTCUSDT"},
		Interval:  5 * time.Millisecond,
		DropAfter: 50 * time.Millisecond,
	}, logger.NewNop())
	server := httptest.NewServer(s)
	defer server.Close()

	url := strings.Replace(server.URL, "http://", "ws://", 1)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"method":"SUBSCRIBE","params":["!ticker@arr"],"id":1}`)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	sawAck, sawTickers := false, false
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break // dropped by the server
		}
		switch {
		case strings.HasPrefix(string(msg), "["):
			sawTickers = true
		case strings.Contains(string(msg), `"id":1`):
			sawAck = true
		}
	}

	if !sawAck || !sawTickers {
		t.Errorf("ack=%v tickers=%v", sawAck, sawTickers)
	}
	if s.Connections() != 1 {
		t.Errorf("connections = %d", s.Connections())
	}
}
