package mockfeed

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ticker-monitor/src/logger"

	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------

// Config drives the generated market. Prices move by Drift percent per tick plus a
// normal shock of Volatility percent; volumes grow by VolumeGrowth (a ratio) per tick.
type Config struct {
	Symbols      []string           // exchange notation, e.g. BTCUSDT
	BasePrices   map[string]float64 // missing symbols start at 100
	Interval     time.Duration      // delay between two frames
	DropAfter    time.Duration      // sever every connection after this long, 0 = never
	Drift        float64
	Volatility   float64
	VolumeGrowth float64
	Seed         uint64
}

// -----------------------------------------------------------------------------

// tickerFrame mirrors one element of the Binance !ticker@arr stream.
type tickerFrame struct {
	EventType      string `json:"e"`
	EventTime      int64  `json:"E"`
	Symbol         string `json:"s"`
	ClosePrice     string `json:"c"`
	PriceChangePct string `json:"P"`
	Volume         string `json:"v"`
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// -----------------------------------------------------------------------------

// session serializes writes from the frame loop and the request reader.
type session struct {
	id      int64
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (s *session) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// -----------------------------------------------------------------------------

// Server is a websocket endpoint speaking just enough of the Binance protocol to
// exercise the ingestor: it acks subscriptions and pushes ticker arrays.
type Server struct {
	Name   string
	logger *logger.Logger
	config Config

	upgrader websocket.Upgrader

	mu      sync.Mutex
	rand    *rand.Rand
	open    map[string]float64
	prices  map[string]float64
	volumes map[string]float64

	connections atomic.Int64
}

// -----------------------------------------------------------------------------

// NewServer creates a mock feed; mount it with http.Handle.
func NewServer(config Config, logger *logger.Logger) *Server {
	if config.Interval <= 0 {
		config.Interval = 250 * time.Millisecond
	}

	s := &Server{
		Name:   "MockFeed",
		logger: logger,
		config: config,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rand:    rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
		open:    make(map[string]float64),
		prices:  make(map[string]float64),
		volumes: make(map[string]float64),
	}

	for _, symbol := range config.Symbols {
		base, ok := config.BasePrices[symbol]
		if !ok || base <= 0 {
			base = 100
		}
		s.open[symbol] = base
		s.prices[symbol] = base
		s.volumes[symbol] = 1000
	}
	return s
}

// -----------------------------------------------------------------------------

// Connections returns how many websocket sessions were accepted so far.
func (s *Server) Connections() int {
	return int(s.connections.Load())
}

// -----------------------------------------------------------------------------

// ServeHTTP upgrades the request and streams frames until the client leaves or the
// drop timer severs the session.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warning("%s : upgrade error: %v", s.Name, err)
		return
	}
	defer conn.Close()

	sess := &session{id: s.connections.Add(1), conn: conn}
	s.logger.Info("%s : session %d opened from %s", s.Name, sess.id, r.RemoteAddr)

	done := make(chan struct{})
	go s.readRequests(sess, done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	var drop <-chan time.Time
	if s.config.DropAfter > 0 {
		timer := time.NewTimer(s.config.DropAfter)
		defer timer.Stop()
		drop = timer.C
	}

	for {
		select {
		case <-done:
			s.logger.Info("%s : session %d closed by client", s.Name, sess.id)
			return
		case <-drop:
			s.logger.Info("%s : dropping session %d", s.Name, sess.id)
			return
		case <-ticker.C:
			frame, err := s.NextFrame()
			if err != nil {
				s.logger.Error("%s : failed to build frame: %v", s.Name, err)
				return
			}
			if err := sess.write(frame); err != nil {
				s.logger.Debug("%s : session %d write failed: %v", s.Name, sess.id, err)
				return
			}
		}
	}
}

// -----------------------------------------------------------------------------

// readRequests answers SUBSCRIBE/UNSUBSCRIBE frames with a result ack.
func (s *Server) readRequests(sess *session, done chan<- struct{}) {
	defer close(done)

	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			return
		}

		var req subscribeRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Method == "" {
			continue
		}
		s.logger.Debug("%s : %s %v", s.Name, req.Method, req.Params)

		ack, err := json.Marshal(map[string]any{"result": nil, "id": req.ID})
		if err != nil {
			continue
		}
		if err := sess.write(ack); err != nil {
			return
		}
	}
}

// -----------------------------------------------------------------------------

// NextFrame advances the market by one tick and renders it as a ticker array.
func (s *Server) NextFrame() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	frames := make([]tickerFrame, 0, len(s.config.Symbols))

	for _, symbol := range s.config.Symbols {
		step := s.config.Drift + s.config.Volatility*s.rand.NormFloat64()
		price := s.prices[symbol] * (1 + step/100)
		if price <= 0 {
			price = s.prices[symbol]
		}
		s.prices[symbol] = price
		s.volumes[symbol] *= 1 + s.config.VolumeGrowth

		change := (price - s.open[symbol]) / s.open[symbol] * 100
		frames = append(frames, tickerFrame{
			EventType:      "24hrTicker",
			EventTime:      now,
			Symbol:         symbol,
			ClosePrice:     fmt.Sprintf("%.8f", price),
			PriceChangePct: fmt.Sprintf("%.3f", change),
			Volume:         fmt.Sprintf("%.8f", s.volumes[symbol]),
		})
	}

	return json.Marshal(frames)
}
