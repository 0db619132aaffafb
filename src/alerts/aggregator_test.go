package alerts

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"

	"github.com/shopspring/decimal"
)

var t0 = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func volumeAlert(i int) models.MVolumeAlert {
	return models.MVolumeAlert{
		Symbol:         fmt.Sprintf("S%d", i),
		VolumeIncrease: decimal.NewFromInt(25),
		Timestamp:      t0.Add(time.Duration(i) * time.Second),
	}
}

func TestAggregator_KeepsLastFiveNewestFirst(t *testing.T) {
	a := NewAggregator(5, 5*time.Minute, logger.NewNop())

	for i := 1; i <= 6; i++ {
		a.AddVolumeAlerts([]models.MVolumeAlert{volumeAlert(i)})
	}

	var symbols []string
	for _, e := range a.Entries() {
		symbols = append(symbols, e.Text[:2])
	}
	if !reflect.DeepEqual(symbols, []string{"S6", "S5", "S4", "S3", "S2"}) {
		t.Errorf("feed = %v", symbols)
	}
}

func TestAggregator_BatchPrependsInArrivalOrder(t *testing.T) {
	a := NewAggregator(5, 5*time.Minute, logger.NewNop())

	a.AddVolumeAlerts([]models.MVolumeAlert{volumeAlert(1), volumeAlert(2), volumeAlert(3)})

	entries := a.Entries()
	if len(entries) != 3 || entries[0].Text[:2] != "S3" || entries[2].Text[:2] != "S1" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestAggregator_EntryText(t *testing.T) {
	a := NewAggregator(5, 5*time.Minute, logger.NewNop())

	a.AddPriceAlerts([]models.MPriceAlert{
		{Symbol: "BTC", PercentChange: decimal.RequireFromString("1.2"), IsUp: true, Timestamp: t0},
		{Symbol: "ETH", PercentChange: decimal.RequireFromString("-1.35"), IsUp: false, Timestamp: t0},
	})
	a.AddVolumeAlerts([]models.MVolumeAlert{volumeAlert(0)})

	want := []models.MAlertFeedEntry{
		{Text: "S0 volume +25%", Timestamp: t0, Type: models.AlertTypeVolume},
		{Text: "ETH down 1.35% in 5m", Timestamp: t0, Type: models.AlertTypePrice},
		{Text: "BTC up 1.20% in 5m", Timestamp: t0, Type: models.AlertTypePrice},
	}
	if got := a.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("entries = %+v\nwant %+v", got, want)
	}
}

func TestAggregator_PublishesOnlyOnChange(t *testing.T) {
	a := NewAggregator(5, 5*time.Minute, logger.NewNop())

	var published [][]models.MAlertFeedEntry
	a.Subscribe(func(e []models.MAlertFeedEntry) error { published = append(published, e); return nil })

	a.AddPriceAlerts(nil)
	a.AddVolumeAlerts([]models.MVolumeAlert{volumeAlert(1)})

	if len(published) != 1 || len(published[0]) != 1 {
		t.Errorf("published = %+v", published)
	}
}

func TestWindowLabel(t *testing.T) {
	tests := map[time.Duration]string{
		5 * time.Minute:  "5m",
		90 * time.Second: "1m30s",
		30 * time.Second: "30s",
	}
	for d, want := range tests {
		if got := windowLabel(d); got != want {
			t.Errorf("windowLabel(%s) = %q, want %q", d, got, want)
		}
	}
}
