package analyzer

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"market-mirror/pkg/types"
)

var alertTime = time.Date(2024, 5, 1, 9, 30, 15, 0, time.UTC)

func TestDetectAlertsSeverity(t *testing.T) {
	tests := []struct {
		name         string
		change       float64
		wantSeverity types.Severity
	}{
		{"positive move", 8.5, types.SeveritySuccess},
		{"negative move", -8.5, types.SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := []types.MarketRecord{{Symbol: "BTC", Price: 65000, ChangePercent: tt.change}}
			feed, fired := DetectAlerts(nil, batch, 8, &IDSequence{}, alertTime)

			if len(fired) != 1 || len(feed) != 1 {
				t.Fatalf("fired %d alerts, feed %d, want 1 and 1", len(fired), len(feed))
			}
			if fired[0].Severity != tt.wantSeverity {
				t.Errorf("Severity = %v, want %v", fired[0].Severity, tt.wantSeverity)
			}
			if fired[0].DisplayTime != "09:30:15" {
				t.Errorf("DisplayTime = %q", fired[0].DisplayTime)
			}
		})
	}
}

func TestDetectAlertsMessage(t *testing.T) {
	batch := []types.MarketRecord{
		{Symbol: "ETH", Price: 3456.789, ChangePercent: 12.346},
		{Symbol: "ADA", Price: 0.4512345, ChangePercent: -9.5},
	}
	_, fired := DetectAlerts(nil, batch, 5, &IDSequence{}, alertTime)

	want := []string{
		"ETH surged 12.35% to $3456.79 (threshold 5.0%)",
		"ADA dropped 9.50% to $0.451235 (threshold 5.0%)",
	}
	for i, w := range want {
		if fired[i].Message != w {
			t.Errorf("Message[%d] = %q, want %q", i, fired[i].Message, w)
		}
	}
}

func TestDetectAlertsThresholdIsExclusive(t *testing.T) {
	batch := []types.MarketRecord{
		{Symbol: "A", ChangePercent: 5},
		{Symbol: "B", ChangePercent: -5},
		{Symbol: "C", ChangePercent: 4.99},
	}
	_, fired := DetectAlerts(nil, batch, 5, &IDSequence{}, alertTime)
	if len(fired) != 0 {
		t.Fatalf("fired %d alerts at |change| == threshold, want 0", len(fired))
	}
}

func TestDetectAlertsPreservesBatchOrder(t *testing.T) {
	batch := []types.MarketRecord{
		{Symbol: "SOL", ChangePercent: -6},
		{Symbol: "BTC", ChangePercent: 1},
		{Symbol: "DOT", ChangePercent: 7},
		{Symbol: "ETH", ChangePercent: -9},
	}
	_, fired := DetectAlerts(nil, batch, 5, &IDSequence{}, alertTime)

	want := []string{"SOL", "DOT", "ETH"}
	if len(fired) != len(want) {
		t.Fatalf("fired %d alerts, want %d", len(fired), len(want))
	}
	for i, s := range want {
		if fired[i].Symbol != s {
			t.Errorf("fired[%d].Symbol = %q, want %q", i, fired[i].Symbol, s)
		}
	}
}

func TestDetectAlertsFeedCap(t *testing.T) {
	ids := &IDSequence{}
	var feed []types.AlertEvent

	for round, size := range []int{0, 3, 9, 14, 1, 25} {
		batch := make([]types.MarketRecord, size)
		for i := range batch {
			batch[i] = types.MarketRecord{Symbol: fmt.Sprintf("S%d_%d", round, i), ChangePercent: 20}
		}
		prev := len(feed)
		feed, _ = DetectAlerts(feed, batch, 1, ids, alertTime)

		if len(feed) > FeedLimit {
			t.Fatalf("round %d: feed length %d exceeds %d", round, len(feed), FeedLimit)
		}
		if want := int(math.Min(float64(prev+size), FeedLimit)); len(feed) != want {
			t.Fatalf("round %d: feed length %d, want %d", round, len(feed), want)
		}
	}

	// 最后一轮触发25条，只保留该批次的最后10条
	if feed[0].Symbol != "S5_15" || feed[FeedLimit-1].Symbol != "S5_24" {
		t.Errorf("feed kept %s..%s, want S5_15..S5_24", feed[0].Symbol, feed[FeedLimit-1].Symbol)
	}
}

func TestDetectAlertsDropsOldestFirst(t *testing.T) {
	ids := &IDSequence{}
	var old []types.AlertEvent
	for i := 0; i < 8; i++ {
		old = append(old, types.AlertEvent{ID: fmt.Sprintf("old-%d", i), Symbol: fmt.Sprintf("O%d", i)})
	}
	batch := []types.MarketRecord{
		{Symbol: "N1", ChangePercent: 10},
		{Symbol: "N2", ChangePercent: -10},
		{Symbol: "N3", ChangePercent: 10},
	}

	feed, fired := DetectAlerts(old, batch, 5, ids, alertTime)
	if len(fired) != 3 || len(feed) != FeedLimit {
		t.Fatalf("fired=%d feed=%d", len(fired), len(feed))
	}
	if feed[0].Symbol != "O1" || feed[FeedLimit-1].Symbol != "N3" {
		t.Errorf("feed = %s..%s, want O1..N3", feed[0].Symbol, feed[FeedLimit-1].Symbol)
	}
	if len(old) != 8 || old[0].Symbol != "O0" {
		t.Error("input feed was modified")
	}
}

func TestIDSequenceUnique(t *testing.T) {
	ids := &IDSequence{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := ids.Next("btc", alertTime)
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
	if got := (&IDSequence{}).Next("btc", alertTime); got != fmt.Sprintf("BTC-%d-1", alertTime.UnixMilli()) {
		t.Errorf("Next() = %q", got)
	}
}

func TestDetectAlertsNilSequence(t *testing.T) {
	batch := []types.MarketRecord{{Symbol: "SOL", Price: 150, ChangePercent: 9}, {Symbol: "SOL", Price: 150, ChangePercent: 9}}

	_, fired := DetectAlerts(nil, batch, 5, nil, alertTime)
	if len(fired) != 2 {
		t.Fatalf("len(fired) = %d, want 2", len(fired))
	}
	if fired[0].ID == fired[1].ID {
		t.Errorf("ids collide without an explicit sequence: %q", fired[0].ID)
	}
}

func TestValidateThreshold(t *testing.T) {
	for _, v := range []float64{0, 0.5, 8, 100} {
		if err := ValidateThreshold(v); err != nil {
			t.Errorf("ValidateThreshold(%v) = %v, want nil", v, err)
		}
	}
	for _, v := range []float64{-0.1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := ValidateThreshold(v); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("ValidateThreshold(%v) = %v, want ErrInvalidThreshold", v, err)
		}
	}
}

func TestFormatPrice(t *testing.T) {
	tests := map[float64]string{
		65000:     "65000.00",
		190.5:     "190.50",
		0.45:      "0.450000",
		0.1234567: "0.123457",
	}
	for in, want := range tests {
		if got := FormatPrice(in); got != want {
			t.Errorf("FormatPrice(%v) = %q, want %q", in, got, want)
		}
	}
}
