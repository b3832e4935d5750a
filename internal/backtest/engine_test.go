package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/chain"
	"github.com/quantfold/gexengine/internal/signal"
	"github.com/quantfold/gexengine/internal/store"
)

// Snapshot times land mid-session on NYSE business day Tuesday 2025-06-10
// (18:00 UTC is 14:00 exchange time). Contracts expire the same week, so
// vendor greeks are used without the same-day re-estimation.
const testExp = "2025-06-13"

func snapAt(hour, min int) time.Time {
	return time.Date(2025, time.June, 10, hour, min, 0, 0, time.UTC)
}

// bullishChain produces exactly one bull put spread: short 95 (delta -0.20,
// mid 0.65), long 90 (mid 0.25), credit 0.40, max loss 4.60.
func bullishChain(price float64) *chain.Chain {
	return &chain.Chain{
		Symbol:          "SPY",
		UnderlyingPrice: price,
		Contracts: []chain.Contract{
			{Strike: 95, Type: chain.Put, Delta: -0.20, Bid: 0.6, Ask: 0.7, Gamma: 0.01, OpenInterest: 5000, ExpirationDate: testExp},
			{Strike: 90, Type: chain.Put, Delta: -0.08, Bid: 0.2, Ask: 0.3, Gamma: 0.01, OpenInterest: 1000, ExpirationDate: testExp},
			{Strike: 110, Type: chain.Call, Delta: 0.05, Bid: 0.1, Ask: 0.2, Gamma: 0.05, OpenInterest: 10000, ExpirationDate: testExp},
		},
	}
}

// rangeBoundChain yields a stable regime with zero drift: an iron condor
// (90/85 put side, 110/115 call side) plus both default spreads.
func rangeBoundChain(price float64) *chain.Chain {
	return &chain.Chain{
		Symbol:          "SPY",
		UnderlyingPrice: price,
		Contracts: []chain.Contract{
			{Strike: 90, Type: chain.Put, Delta: -0.20, Bid: 0.6, Ask: 0.7, OpenInterest: 3000, ExpirationDate: testExp},
			{Strike: 85, Type: chain.Put, Delta: -0.08, Bid: 0.2, Ask: 0.3, OpenInterest: 500, ExpirationDate: testExp},
			{Strike: 110, Type: chain.Call, Delta: 0.20, Bid: 0.5, Ask: 0.7, Gamma: 0.05, OpenInterest: 3000, ExpirationDate: testExp},
			{Strike: 115, Type: chain.Call, Delta: 0.08, Bid: 0.1, Ask: 0.3, Gamma: 0.02, OpenInterest: 500, ExpirationDate: testExp},
		},
	}
}

func newTestEngine(t *testing.T, snapshots store.SnapshotStore) *Engine {
	t.Helper()
	return NewEngine(snapshots, signal.NewWindow("America/New_York"), zap.NewNop())
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestRunShortPutBreachIsLoss(t *testing.T) {
	ctx := context.Background()
	snapshots := store.NewMemorySnapshotStore()
	snapshots.SaveSnapshot(ctx, snapAt(18, 0), bullishChain(100))
	snapshots.SaveSnapshot(ctx, snapAt(18, 30), bullishChain(94))
	snapshots.SaveSnapshot(ctx, snapAt(19, 0), bullishChain(90))

	summary, signals, err := newTestEngine(t, snapshots).Run(ctx, "SPY")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.TotalTrades != 1 || summary.Losses != 1 || summary.Wins != 0 {
		t.Fatalf("summary = %+v, want 1 loss", summary)
	}
	approx(t, "WinRate", summary.WinRate, 0)
	approx(t, "TotalPnl", summary.TotalPnl, -460)

	sig := signals[0]
	if sig.Result != ResultLoss {
		t.Errorf("result = %s, want LOSS", sig.Result)
	}
	// The breach fires at the first snapshot at or below the short strike,
	// not at the day's worst price.
	approx(t, "ExitPrice", sig.ExitPrice, 94)
	if !sig.ExitTime.Equal(snapAt(18, 30)) {
		t.Errorf("exit time = %v, want %v", sig.ExitTime, snapAt(18, 30))
	}
	if sig.Alert.ID != "bull_put_spread_2025-06-13_95" {
		t.Errorf("alert id = %q", sig.Alert.ID)
	}
}

func TestRunUnbreachedDayIsWin(t *testing.T) {
	ctx := context.Background()
	snapshots := store.NewMemorySnapshotStore()
	snapshots.SaveSnapshot(ctx, snapAt(18, 0), rangeBoundChain(100))
	snapshots.SaveSnapshot(ctx, snapAt(18, 30), rangeBoundChain(99))
	snapshots.SaveSnapshot(ctx, snapAt(19, 0), rangeBoundChain(101))

	summary, signals, err := newTestEngine(t, snapshots).Run(ctx, "SPY")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Each of the first two frames emits the condor plus both spreads and
	// all survive to the close; the last frame's trades have nowhere to go.
	if summary.Wins != 6 || summary.Losses != 0 || summary.Open != 3 {
		t.Fatalf("summary = %+v, want 6 wins / 0 losses / 3 open", summary)
	}
	approx(t, "WinRate", summary.WinRate, 100)

	sig := signals[0]
	if sig.Result != ResultWin {
		t.Errorf("result = %s, want WIN", sig.Result)
	}
	approx(t, "ExitPrice", sig.ExitPrice, 101)
	if !sig.ExitTime.Equal(snapAt(19, 0)) {
		t.Errorf("exit time = %v, want %v", sig.ExitTime, snapAt(19, 0))
	}
	approx(t, "Pnl", sig.Pnl, sig.Alert.NetCredit*100)
}

func TestRunStopsAtDayBoundary(t *testing.T) {
	ctx := context.Background()
	snapshots := store.NewMemorySnapshotStore()
	snapshots.SaveSnapshot(ctx, snapAt(18, 0), rangeBoundChain(100))
	snapshots.SaveSnapshot(ctx, snapAt(19, 0), rangeBoundChain(101))
	// A crash the next morning must never settle the prior day's trades.
	crash := &chain.Chain{
		Symbol:          "SPY",
		UnderlyingPrice: 50,
		Contracts: []chain.Contract{
			{Strike: 95, Type: chain.Put, Delta: -0.05, Gamma: 0.01, OpenInterest: 100, ExpirationDate: testExp},
		},
	}
	snapshots.SaveSnapshot(ctx, snapAt(18, 0).AddDate(0, 0, 1), crash)

	summary, signals, err := newTestEngine(t, snapshots).Run(ctx, "SPY")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Losses != 0 {
		t.Fatalf("summary = %+v: next-day price must not breach", summary)
	}
	for _, sig := range signals {
		if !sig.GeneratedAt.Equal(snapAt(19, 0)) {
			continue
		}
		if sig.Result != ResultOpen {
			t.Errorf("last-frame trade result = %s, want OPEN", sig.Result)
		}
		if sig.Pnl != 0 {
			t.Errorf("open trade pnl = %v, want 0", sig.Pnl)
		}
	}
}

func TestRunNoSnapshots(t *testing.T) {
	ctx := context.Background()
	engine := newTestEngine(t, store.NewMemorySnapshotStore())

	if _, _, err := engine.Run(ctx, "SPY"); !errors.Is(err, store.ErrNoSnapshots) {
		t.Errorf("err = %v, want ErrNoSnapshots", err)
	}
}

func TestRunSkipsPricelessSnapshots(t *testing.T) {
	ctx := context.Background()
	snapshots := store.NewMemorySnapshotStore()
	snapshots.SaveSnapshot(ctx, snapAt(18, 0), &chain.Chain{Symbol: "SPY"})

	engine := newTestEngine(t, snapshots)
	if _, _, err := engine.Run(ctx, "SPY"); !errors.Is(err, store.ErrNoSnapshots) {
		t.Errorf("err = %v, want ErrNoSnapshots when every snapshot is unusable", err)
	}
}
