package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantfold/gexengine/internal/chain"
	"github.com/quantfold/gexengine/internal/signal"
)

func testChain(symbol string, price float64) *chain.Chain {
	return &chain.Chain{
		Symbol:          symbol,
		UnderlyingPrice: price,
		Contracts: []chain.Contract{
			{Strike: 100, Type: chain.Call, Bid: 1.0, Ask: 1.2, Delta: 0.5, Gamma: 0.02, OpenInterest: 1500, ExpirationDate: "2025-06-13"},
			{Strike: 100, Type: chain.Put, Bid: 0.9, Ask: 1.1, Delta: -0.5, Gamma: 0.02, OpenInterest: 2000, ExpirationDate: "2025-06-13"},
		},
	}
}

func TestMemorySnapshotStoreOrdering(t *testing.T) {
	ctx := context.Background()
	mem := NewMemorySnapshotStore()

	t2 := time.Date(2025, time.June, 10, 19, 0, 0, 0, time.UTC)
	t1 := time.Date(2025, time.June, 10, 18, 0, 0, 0, time.UTC)
	t3 := time.Date(2025, time.June, 11, 18, 0, 0, 0, time.UTC)

	// Insertion order deliberately scrambled.
	for _, at := range []time.Time{t2, t3, t1} {
		if err := mem.SaveSnapshot(ctx, at, testChain("SPY", 100)); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}

	times, err := mem.SnapshotTimes(ctx, "SPY")
	if err != nil {
		t.Fatalf("SnapshotTimes: %v", err)
	}
	if len(times) != 3 {
		t.Fatalf("got %d times, want 3", len(times))
	}
	for i, want := range []time.Time{t1, t2, t3} {
		if !times[i].Equal(want) {
			t.Errorf("times[%d] = %v, want %v", i, times[i], want)
		}
	}

	if _, err := mem.ChainAt(ctx, "SPY", time.Unix(0, 0)); !errors.Is(err, ErrNoSnapshots) {
		t.Errorf("missing snapshot err = %v, want ErrNoSnapshots", err)
	}
	if times, _ := mem.SnapshotTimes(ctx, "QQQ"); len(times) != 0 {
		t.Errorf("unknown symbol should have no snapshots, got %d", len(times))
	}
}

func TestMemoryAlertStoreInsertSettleGet(t *testing.T) {
	ctx := context.Background()
	alerts := NewMemoryAlertStore()

	a := signal.Alert{ID: "bull_put_spread_2025-06-13_95", Symbol: "SPY", Status: signal.StatusActive, NetCredit: 0.4}

	inserted, err := alerts.InsertIfAbsent(ctx, a)
	if err != nil || !inserted {
		t.Fatalf("first insert = (%v, %v), want (true, nil)", inserted, err)
	}
	inserted, err = alerts.InsertIfAbsent(ctx, a)
	if err != nil || inserted {
		t.Fatalf("second insert = (%v, %v), want (false, nil)", inserted, err)
	}
	if alerts.Len() != 1 {
		t.Fatalf("Len = %d, want 1", alerts.Len())
	}

	updated, err := alerts.Settle(ctx, a.ID, "WIN", 40, 101)
	if err != nil || !updated {
		t.Fatalf("Settle = (%v, %v), want (true, nil)", updated, err)
	}
	if updated, _ := alerts.Settle(ctx, "missing", "WIN", 0, 0); updated {
		t.Error("settling a missing alert must report false")
	}

	got, err := alerts.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Result != "WIN" || got.RealizedPnl != 40 || got.ClosedAtPrice != 101 {
		t.Errorf("settled alert = %+v", got)
	}
	if got.Status != signal.StatusExpired {
		t.Errorf("settled status = %s, want EXPIRED", got.Status)
	}

	if _, err := alerts.Get(ctx, "missing"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("Get missing err = %v, want ErrAlertNotFound", err)
	}
}
