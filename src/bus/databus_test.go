package bus

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"
)

// rawSource exposes a broadcaster as a MessageSource and counts attachments.
type rawSource struct {
	b        *Broadcaster[[]byte]
	attaches int
}

func newRawSource() *rawSource {
	return &rawSource{b: NewBroadcaster[[]byte]("raw", logger.NewNop())}
}

func (s *rawSource) OnMessage(h Handler[[]byte]) func() {
	s.attaches++
	return s.b.Subscribe(h)
}

// countingBroker decodes a JSON array of symbols and counts parses.
type countingBroker struct {
	parses int
}

func (b *countingBroker) GetName() string                     { return "counting" }
func (b *countingBroker) GetType() string                     { return "crypto" }
func (b *countingBroker) GetEndPoint() string                 { return "" }
func (b *countingBroker) GetSymbols() []string                { return nil }
func (b *countingBroker) AddSubscription() ([]byte, error)    { return nil, nil }
func (b *countingBroker) RemoveSubscription() ([]byte, error) { return nil, nil }

func (b *countingBroker) ParseMessage(message []byte) (*models.MSnapshot, error) {
	b.parses++
	var symbols []string
	if err := json.Unmarshal(message, &symbols); err != nil {
		return nil, errors.New("undecodable")
	}
	snap := models.NewEmptySnapshot(time.Unix(int64(len(symbols)), 0))
	for _, s := range symbols {
		snap.Tickers = append(snap.Tickers, models.MTickerRecord{Symbol: s, Price: 1, VolumeScore: 1})
	}
	return &snap, nil
}

// -----------------------------------------------------------------------------

func TestDataBus_SingleAttachmentAndParse(t *testing.T) {
	source := newRawSource()
	broker := &countingBroker{}
	d := NewDataBus(source, broker, logger.NewNop())

	var first, second []models.MSnapshot
	d.Subscribe(func(s models.MSnapshot) error { first = append(first, s); return nil })
	d.Subscribe(func(s models.MSnapshot) error { second = append(second, s); return nil })

	source.b.Publish([]byte(`["BTC","ETH"]`))

	if source.attaches != 1 {
		t.Errorf("attachments = %d, want 1", source.attaches)
	}
	if broker.parses != 1 {
		t.Errorf("parses = %d, want 1 per message", broker.parses)
	}
	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("deliveries = %d/%d", len(first), len(second))
	}
	if len(first[0].Tickers) != 2 || first[0].Tickers[1].Symbol != "ETH" {
		t.Errorf("snapshot = %+v", first[0])
	}
}

func TestDataBus_UndecodableFrameIsDropped(t *testing.T) {
	source := newRawSource()
	d := NewDataBus(source, &countingBroker{}, logger.NewNop())

	count := 0
	d.Subscribe(func(s models.MSnapshot) error { count++; return nil })

	source.b.Publish([]byte(`{not json`))
	source.b.Publish([]byte(`["BTC"]`))

	if count != 1 {
		t.Errorf("deliveries = %d, want only the valid frame", count)
	}
}

func TestDataBus_FailingConsumerGetsEmptySnapshot(t *testing.T) {
	source := newRawSource()
	d := NewDataBus(source, &countingBroker{}, logger.NewNop())

	var got []models.MSnapshot
	d.Subscribe(func(s models.MSnapshot) error {
		got = append(got, s)
		if !s.IsEmpty() {
			return errors.New("cannot handle tickers")
		}
		return nil
	})
	var healthy int
	d.Subscribe(func(s models.MSnapshot) error { healthy++; return nil })

	source.b.Publish([]byte(`["BTC","ETH"]`))

	if len(got) != 2 {
		t.Fatalf("failing consumer deliveries = %d, want 2", len(got))
	}
	if !got[1].IsEmpty() || !got[1].Timestamp.Equal(got[0].Timestamp) {
		t.Errorf("fallback = %+v, want empty snapshot with the original timestamp", got[1])
	}
	if healthy != 1 {
		t.Errorf("healthy consumer deliveries = %d", healthy)
	}
}

func TestDataBus_CloseUnsubscribesEveryone(t *testing.T) {
	source := newRawSource()
	d := NewDataBus(source, &countingBroker{}, logger.NewNop())

	count := 0
	d.Subscribe(func(s models.MSnapshot) error { count++; return nil })
	d.Close()

	source.b.Publish([]byte(`["BTC"]`))
	d.Subscribe(func(s models.MSnapshot) error { count++; return nil })
	source.b.Publish([]byte(`["BTC"]`))

	if count != 0 {
		t.Errorf("deliveries after close = %d", count)
	}
	if source.b.SubscriberCount() != 0 {
		t.Errorf("bus still attached to source")
	}
	if d.SubscriberCount() != 0 {
		t.Errorf("subscribers = %d", d.SubscriberCount())
	}
}
