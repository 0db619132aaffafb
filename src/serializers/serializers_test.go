package serializers

import (
	"testing"
	"time"

	"ticker-monitor/src/models"
)

func TestProtoSerializer_AlertFeed(t *testing.T) {
	s, err := NewSerializer("proto")
	if err != nil {
		t.Fatal(err)
	}

	ts := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	in := []models.MAlertFeedEntry{
		{Text: "BTC up 1.20% in 5m", Timestamp: ts, Type: models.AlertTypePrice},
		{Text: "ETH volume +25%", Timestamp: ts, Type: models.AlertTypeVolume},
	}

	data, err := s.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out []models.MAlertFeedEntry
	if err := s.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(out) != 2 || out[0].Text != in[0].Text || out[1].Type != models.AlertTypeVolume || !out[0].Timestamp.Equal(ts) {
		t.Errorf("unexpected result: %+v", out)
	}
	if s.ContentType() != "application/x-protobuf" {
		t.Errorf("content type = %s", s.ContentType())
	}
}

func TestNewSerializer_Unknown(t *testing.T) {
	if _, err := NewSerializer("xml"); err == nil {
		t.Fatal("expected error")
	}
	s, err := NewSerializer("")
	if err != nil || s.ContentType() != "application/json" {
		t.Fatalf("empty name should select json, got %v %v", s, err)
	}
}
