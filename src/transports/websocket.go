package transports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
	"ticker-monitor/src/utils"

	"github.com/gorilla/websocket"
)

// ErrNotConnected is returned when writing on a client without a live connection.
var ErrNotConnected = errors.New("websocket not connected")

const pingWriteTimeout = time.Second

// -----------------------------------------------------------------------------

// WebSocketClient implements IConnectionClient using Gorilla WebSocket
type WebSocketClient struct {
	conn      *websocket.Conn
	name      string
	config    *models.MFeedConfig
	logger    *logger.Logger
	isRunning bool
	mu        sync.RWMutex
	writeMu   sync.Mutex
	callbacks interfaces.DataSourceCallbacks
}

// -----------------------------------------------------------------------------

// NewWebSocketClient creates a new WebSocket client. Messages and unexpected closes
// are reported through callbacks from the read goroutine.
func NewWebSocketClient(config *models.MFeedConfig, logger *logger.Logger, name string, callbacks interfaces.DataSourceCallbacks) *WebSocketClient {
	return &WebSocketClient{
		name:      name,
		config:    config,
		logger:    logger,
		isRunning: false,
		callbacks: callbacks,
	}
}

// -----------------------------------------------------------------------------

// Connect establishes WebSocket connection and starts the read loop
func (w *WebSocketClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: w.config.ConnectionConfig.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, w.config.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", utils.MaskAPIKey(w.config.Endpoint), err)
	}

	w.mu.Lock()
	if w.conn != nil {
		// Only one live connection per client
		w.conn.Close()
	}
	w.conn = conn
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("%s : WebSocket connected to %s", w.name, utils.MaskAPIKey(w.config.Endpoint))

	go w.ReceiveMessage(conn)
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect closes the connection without reporting it as an unexpected close
func (w *WebSocketClient) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.isRunning = false
	if w.conn == nil {
		return nil
	}

	conn := w.conn
	w.conn = nil

	w.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(pingWriteTimeout))
	w.writeMu.Unlock()

	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %s: %w", w.config.Endpoint, err)
	}

	w.logger.Info("%s : WebSocket disconnected from %s", w.name, utils.MaskAPIKey(w.config.Endpoint))
	return nil
}

// -----------------------------------------------------------------------------

// GetName returns the client name
func (w *WebSocketClient) GetName() string {
	return w.name
}

// -----------------------------------------------------------------------------

// GetType returns the transport type
func (w *WebSocketClient) GetType() string {
	return "websocket"
}

// -----------------------------------------------------------------------------

// IsRunning returns the connection status
func (w *WebSocketClient) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.isRunning
}

// -----------------------------------------------------------------------------

// SendMessage sends a text frame to the WebSocket
func (w *WebSocketClient) SendMessage(data []byte) error {
	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send text message: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Ping writes a ping control frame. A write failure marks the client as not running.
func (w *WebSocketClient) Ping() error {
	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteTimeout)); err != nil {
		w.markClosed(conn)
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// ReceiveMessage reads frames from conn until it fails or is replaced
func (w *WebSocketClient) ReceiveMessage(conn *websocket.Conn) {
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if w.markClosed(conn) {
				w.logger.Warning("%s : websocket read error: %v", w.name, err)
				if w.callbacks.OnClose != nil {
					w.callbacks.OnClose(err)
				}
			}
			return
		}

		if messageType == websocket.TextMessage && w.callbacks.OnMessage != nil {
			w.callbacks.OnMessage(message)
		}
	}
}

// -----------------------------------------------------------------------------

// markClosed clears conn if it is still the current connection.
// It returns false when the connection was already replaced or closed on purpose.
func (w *WebSocketClient) markClosed(conn *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != conn {
		return false
	}
	w.conn = nil
	w.isRunning = false
	conn.Close()
	return true
}
