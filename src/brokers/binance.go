package brokers

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"ticker-monitor/src/config"
	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
	"ticker-monitor/src/serializers"
	"ticker-monitor/src/utils"
)

// -----------------------------------------------------------------------------
// STRUCT DEFINITION
// -----------------------------------------------------------------------------

// Binance implements interfaces.IBroker for the Binance 24hr ticker array stream
type Binance struct {
	Name       string
	Logger     *logger.Logger
	Config     *models.MFeedConfig
	Symbols    map[string]bool
	Serializer interfaces.ISerializer

	// Now is the snapshot clock, replaceable in tests.
	Now func() time.Time

	requestID atomic.Int64
}

// -----------------------------------------------------------------------------

// binanceTicker is one element of a !ticker@arr frame. Only the fields we use are decoded.
type binanceTicker struct {
	Symbol         string `json:"s"`
	ClosePrice     string `json:"c"`
	PriceChangePct string `json:"P"`
	Volume         string `json:"v"`
}

// -----------------------------------------------------------------------------
// CONSTRUCTOR AND REGISTRATION
// -----------------------------------------------------------------------------

func init() {
	// Register the broker with the name "binance" for dynamic creation
	if err := Register("binance", NewBinance); err != nil {
		fmt.Printf("Error registering Binance broker: %v\n", err)
	}
}

// -----------------------------------------------------------------------------

// NewBinance creates a new Binance broker instance.
// Matches the interfaces.IBrokerConstructor signature: (config, logger) -> (IBroker, error)
func NewBinance(config *config.Config, logger *logger.Logger) (interfaces.IBroker, error) {
	feed := &config.Feed
	if len(feed.Symbols) == 0 {
		return nil, fmt.Errorf("%s : no symbols configured", feed.Name)
	}

	symbols := make(map[string]bool, len(feed.Symbols))
	for _, symbol := range feed.Symbols {
		symbols[strings.ToUpper(symbol)] = true
	}

	return &Binance{
		Name:       feed.Name,
		Logger:     logger,
		Config:     feed,
		Symbols:    symbols,
		Serializer: serializers.NewJSONSerializer(),
		Now:        time.Now,
	}, nil
}

// -----------------------------------------------------------------------------
// IBroker IMPLEMENTATION
// -----------------------------------------------------------------------------

// GetName returns the broker name
func (b *Binance) GetName() string {
	return b.Name
}

// -----------------------------------------------------------------------------

// GetType returns the asset type (e.g., "crypto")
func (b *Binance) GetType() string {
	return b.Config.AssetType
}

// -----------------------------------------------------------------------------

// GetEndPoint returns the WebSocket endpoint URL
func (b *Binance) GetEndPoint() string {
	return b.Config.Endpoint
}

// -----------------------------------------------------------------------------

// GetSymbols returns the list of allow-listed trading symbols
func (b *Binance) GetSymbols() []string {
	return b.Config.Symbols
}

// -----------------------------------------------------------------------------

// AddSubscription creates the SUBSCRIBE frame for the configured streams.
// The all-market ticker stream carries every symbol; filtering happens in ParseMessage.
func (b *Binance) AddSubscription() ([]byte, error) {
	return b.subscriptionFrame("SUBSCRIBE")
}

// -----------------------------------------------------------------------------

// RemoveSubscription creates the UNSUBSCRIBE frame for the configured streams
func (b *Binance) RemoveSubscription() ([]byte, error) {
	return b.subscriptionFrame("UNSUBSCRIBE")
}

// -----------------------------------------------------------------------------

// ParseMessage converts a !ticker@arr frame into a snapshot.
// Anything that is valid JSON but not an array (subscription results, control frames)
// produces an empty snapshot, not an error.
func (b *Binance) ParseMessage(message []byte) (*models.MSnapshot, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(message, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	snapshot := models.NewEmptySnapshot(b.Now())

	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "[") {
		return &snapshot, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticker array: %w", err)
	}

	for _, item := range items {
		var ticker binanceTicker
		if err := json.Unmarshal(item, &ticker); err != nil {
			// Non-object elements are not tickers
			continue
		}

		record, ok := b.parseTicker(ticker)
		if !ok {
			continue
		}
		snapshot.Tickers = append(snapshot.Tickers, record)
	}

	return &snapshot, nil
}

// -----------------------------------------------------------------------------
// PRIVATE METHODS
// -----------------------------------------------------------------------------

// parseTicker filters one element against the allow-list and normalizes its fields.
func (b *Binance) parseTicker(ticker binanceTicker) (models.MTickerRecord, bool) {
	symbol := strings.ToUpper(ticker.Symbol)
	if !b.Symbols[symbol] {
		return models.MTickerRecord{}, false
	}

	price := utils.ParseFloat(ticker.ClosePrice)
	if price <= 0 {
		b.Logger.Debug("%s : skipping %s with invalid price %q", b.Name, symbol, ticker.ClosePrice)
		return models.MTickerRecord{}, false
	}

	volume := utils.ParseFloat(ticker.Volume)
	if volume < 0 {
		volume = 0
	}

	return models.MTickerRecord{
		Symbol:         strings.TrimSuffix(symbol, strings.ToUpper(b.Config.QuoteAsset)),
		Price:          price,
		PriceChangePct: utils.ParseFloat(ticker.PriceChangePct),
		Volume:         volume,
		VolumeScore:    VolumeScore(volume),
	}, true
}

// -----------------------------------------------------------------------------

// subscriptionFrame serializes a SUBSCRIBE/UNSUBSCRIBE request
func (b *Binance) subscriptionFrame(method string) ([]byte, error) {
	msg, err := b.Serializer.Marshal(map[string]any{
		"method": method,
		"params": b.Config.Streams,
		"id":     b.requestID.Add(1),
	})
	if err != nil {
		b.Logger.Error("%s : failed to serialize %s message for streams %v: %v", b.Name, method, b.Config.Streams, err)
		return nil, fmt.Errorf("failed to serialize %s message: %w", method, err)
	}
	return msg, nil
}

// -----------------------------------------------------------------------------

// VolumeScore maps a volume onto 1..10 as min(10, ceil(ln(volume)/10)).
// Volumes whose logarithm is undefined or too small score 1.
func VolumeScore(volume float64) int {
	if volume <= 0 || math.IsNaN(volume) || math.IsInf(volume, 0) {
		return 1
	}

	score := math.Ceil(math.Log(volume) / 10)
	if math.IsNaN(score) || score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return int(score)
}
