package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"market-mirror/internal/analyzer"
	"market-mirror/internal/clock"
	"market-mirror/internal/notifier"
	"market-mirror/internal/storage"
	"market-mirror/pkg/types"
)

var start = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

// fakeSource 按交易对返回固定涨跌幅，可选择阻塞直到release被关闭
type fakeSource struct {
	calls   atomic.Int32
	changes map[string]float64
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSource) Fetch(ctx context.Context, market types.MarketType, symbols []string, timeRange types.TimeRange) ([]types.MarketRecord, types.DataSource) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	records := make([]types.MarketRecord, 0, len(symbols))
	for _, s := range symbols {
		records = append(records, types.MarketRecord{Symbol: s, Price: 100, ChangePercent: f.changes[s]})
	}
	return records, types.SourceLive
}

type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]*types.AlertEvent
}

func (r *recordingNotifier) SendAlert(alert *types.AlertEvent) error {
	return r.SendBatchAlerts([]*types.AlertEvent{alert})
}

func (r *recordingNotifier) SendBatchAlerts(alerts []*types.AlertEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, alerts)
	return nil
}

func defaultSelection() types.Selection {
	return types.Selection{Market: types.MarketCrypto, Symbols: []string{"BTC", "ETH"}, TimeRange: types.Range1M, Threshold: 5}
}

func newTestSession(t *testing.T, src *fakeSource, n notifier.Interface) (*Session, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(start)
	s, err := New(defaultSelection(), storage.NewBatchCache(storage.DefaultTTL, clk), src, n, clk)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, clk
}

func TestRefreshUsesCacheWithinTTL(t *testing.T) {
	src := &fakeSource{changes: map[string]float64{"BTC": 1, "ETH": -1}}
	s, clk := newTestSession(t, src, nil)
	ctx := context.Background()

	first, err := s.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if first.Source != types.SourceLive || len(first.Records) != 2 || first.Insight == nil {
		t.Fatalf("first snapshot = %+v", first)
	}

	clk.Advance(59 * time.Second)
	second, err := s.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if second.Source != types.SourceCache || src.calls.Load() != 1 {
		t.Errorf("source = %v, calls = %d, want cache hit", second.Source, src.calls.Load())
	}
	if second.CycleID == first.CycleID {
		t.Error("cycle ids should differ between refreshes")
	}

	clk.Advance(time.Second)
	third, _ := s.Refresh(ctx)
	if third.Source != types.SourceLive || src.calls.Load() != 2 {
		t.Errorf("source = %v, calls = %d, want refetch after TTL", third.Source, src.calls.Load())
	}

	s.ClearCache(ctx)
	if _, err := s.Refresh(ctx); err != nil || src.calls.Load() != 3 {
		t.Errorf("calls = %d after ClearCache, want 3", src.calls.Load())
	}
}

func TestCacheHitFollowsSelectionOrder(t *testing.T) {
	src := &fakeSource{changes: map[string]float64{"BTC": 9, "ETH": -9}}
	s, _ := newTestSession(t, src, nil)
	ctx := context.Background()

	if _, err := s.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	sel := defaultSelection()
	sel.Symbols = []string{"eth", "BTC"}
	if _, err := s.SetSelection(sel); err != nil {
		t.Fatalf("SetSelection() error = %v", err)
	}

	snap, err := s.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if snap.Source != types.SourceCache || src.calls.Load() != 1 {
		t.Fatalf("source = %v, calls = %d, want cache hit", snap.Source, src.calls.Load())
	}
	if len(snap.Records) != 2 || snap.Records[0].Symbol != "ETH" || snap.Records[1].Symbol != "BTC" {
		t.Errorf("records = %+v, want ETH then BTC", snap.Records)
	}

	// 本次触发的预警同样按新顺序排列
	alerts := snap.Alerts
	if len(alerts) != 4 || alerts[2].Symbol != "ETH" || alerts[3].Symbol != "BTC" {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestAlignToSymbols(t *testing.T) {
	records := []types.MarketRecord{{Symbol: "BTC"}, {Symbol: "iPhone15"}}

	got, ok := alignToSymbols(records, []string{"IPHONE15", "btc"})
	if !ok || got[0].Symbol != "iPhone15" || got[1].Symbol != "BTC" {
		t.Errorf("alignToSymbols() = %+v, %v", got, ok)
	}
	if _, ok := alignToSymbols(records, []string{"BTC", "ETH"}); ok {
		t.Error("alignToSymbols() should report a missing symbol")
	}
}

func TestRefreshFiresAlertsAndNotifies(t *testing.T) {
	src := &fakeSource{changes: map[string]float64{"BTC": 7.5, "ETH": -2}}
	n := &recordingNotifier{}
	s, _ := newTestSession(t, src, n)

	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(snap.Alerts) != 1 || snap.Alerts[0].Symbol != "BTC" || snap.Alerts[0].Severity != types.SeveritySuccess {
		t.Fatalf("alerts = %+v", snap.Alerts)
	}
	if len(n.batches) != 1 || len(n.batches[0]) != 1 {
		t.Errorf("notifier batches = %d", len(n.batches))
	}
	if got := s.Alerts(); len(got) != 1 || got[0].ID != snap.Alerts[0].ID {
		t.Errorf("Alerts() = %+v", got)
	}
	if s.Snapshot() != snap {
		t.Error("Snapshot() should return the latest snapshot")
	}
}

func TestRefreshFeedIsBounded(t *testing.T) {
	src := &fakeSource{changes: map[string]float64{"BTC": 9, "ETH": -9}}
	s, clk := newTestSession(t, src, nil)

	for i := 0; i < 8; i++ {
		if _, err := s.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		clk.Advance(storage.DefaultTTL)
	}
	if got := len(s.Alerts()); got != analyzer.FeedLimit {
		t.Errorf("len(Alerts()) = %d, want %d", got, analyzer.FeedLimit)
	}
}

func TestRefreshSingleFlight(t *testing.T) {
	src := &fakeSource{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s, _ := newTestSession(t, src, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		done <- err
	}()
	<-src.entered

	if _, err := s.Refresh(context.Background()); !errors.Is(err, ErrRefreshInFlight) {
		t.Errorf("concurrent Refresh() error = %v, want ErrRefreshInFlight", err)
	}

	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}
}

func TestRefreshDiscardsStaleResult(t *testing.T) {
	src := &fakeSource{entered: make(chan struct{}, 1), release: make(chan struct{})}
	s, _ := newTestSession(t, src, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		done <- err
	}()
	<-src.entered

	sel := defaultSelection()
	sel.Market = types.MarketStocks
	sel.Symbols = []string{"AAPL"}
	if _, err := s.SetSelection(sel); err != nil {
		t.Fatalf("SetSelection() error = %v", err)
	}

	close(src.release)
	if err := <-done; !errors.Is(err, ErrStaleRefresh) {
		t.Fatalf("Refresh() error = %v, want ErrStaleRefresh", err)
	}
	if s.Snapshot() != nil {
		t.Error("stale refresh must not publish a snapshot")
	}

	// release已关闭，之后的刷新不再阻塞
	src.entered = nil
	snap, err := s.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if snap.Selection.Market != types.MarketStocks || snap.Records[0].Symbol != "AAPL" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSetSelectionValidation(t *testing.T) {
	s, _ := newTestSession(t, &fakeSource{}, nil)

	tests := []struct {
		name    string
		mutate  func(*types.Selection)
		wantErr error
	}{
		{name: "unknown market", mutate: func(sel *types.Selection) { sel.Market = "forex" }},
		{name: "blank symbols", mutate: func(sel *types.Selection) { sel.Symbols = []string{" ", ""} }, wantErr: ErrNoSymbols},
		{name: "NaN threshold", mutate: func(sel *types.Selection) { sel.Threshold = math.NaN() }, wantErr: analyzer.ErrInvalidThreshold},
		{name: "negative threshold", mutate: func(sel *types.Selection) { sel.Threshold = -1 }, wantErr: analyzer.ErrInvalidThreshold},
		{name: "bad time range", mutate: func(sel *types.Selection) { sel.TimeRange = "5y" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := defaultSelection()
			tt.mutate(&sel)
			_, err := s.SetSelection(sel)
			if err == nil {
				t.Fatal("SetSelection() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("SetSelection() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := s.Selection(); got.Market != types.MarketCrypto || len(got.Symbols) != 2 {
		t.Errorf("rejected selection changed state: %+v", got)
	}
}

func TestSetSelectionNormalizes(t *testing.T) {
	s, _ := newTestSession(t, &fakeSource{}, nil)

	got, err := s.SetSelection(types.Selection{Market: "Stocks", Symbols: []string{" aapl ", "AAPL", "msft"}, Threshold: 0})
	if err != nil {
		t.Fatalf("SetSelection() error = %v", err)
	}
	if got.Market != types.MarketStocks || got.TimeRange != types.Range1M {
		t.Errorf("selection = %+v", got)
	}
	if len(got.Symbols) != 2 || got.Symbols[0] != "aapl" || got.Symbols[1] != "msft" {
		t.Errorf("symbols = %v", got.Symbols)
	}
}
