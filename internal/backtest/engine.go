// Package backtest replays historical chain snapshots through the live
// metrics and signal pipeline and evaluates realized outcomes.
package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/chain"
	"github.com/quantfold/gexengine/internal/gex"
	"github.com/quantfold/gexengine/internal/signal"
	"github.com/quantfold/gexengine/internal/store"
)

// Result classifications for a replayed trade.
const (
	ResultWin  = "WIN"
	ResultLoss = "LOSS"
	ResultOpen = "OPEN"
)

const contractMultiplier = 100.0

// Signal is one alert produced during replay together with its evaluated
// outcome.
type Signal struct {
	GeneratedAt time.Time    `json:"generatedAt"`
	Alert       signal.Alert `json:"alert"`
	Result      string       `json:"result"`
	ExitPrice   float64      `json:"exitPrice,omitempty"`
	ExitTime    time.Time    `json:"exitTime,omitempty"`
	Pnl         float64      `json:"pnl"`
}

// Summary aggregates a replay run.
type Summary struct {
	RunID       string    `json:"runId"`
	Symbol      string    `json:"symbol"`
	TotalTrades int       `json:"totalTrades"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Open        int       `json:"open"`
	WinRate     float64   `json:"winRate"` // 0-100, of resolved trades
	TotalPnl    float64   `json:"totalPnl"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
}

// Engine drives the replay. It owns its own generator so nothing is
// persisted during a run.
type Engine struct {
	snapshots store.SnapshotStore
	calc      *gex.Calculator
	generator *signal.Generator
	logger    *zap.Logger
}

func NewEngine(snapshots store.SnapshotStore, window *signal.Window, logger *zap.Logger) *Engine {
	return &Engine{
		snapshots: snapshots,
		calc:      gex.NewCalculator(logger),
		generator: signal.NewGenerator(window, nil, nil, logger),
		logger:    logger,
	}
}

type frame struct {
	at    time.Time
	chain *chain.Chain
	price float64
}

// Run replays every stored snapshot for the symbol in ascending timestamp
// order. The only fatal condition is an empty snapshot set; snapshots that
// fail to load or carry no usable price are skipped.
func (e *Engine) Run(ctx context.Context, symbol string) (*Summary, []Signal, error) {
	times, err := e.snapshots.SnapshotTimes(ctx, symbol)
	if err != nil {
		return nil, nil, err
	}
	if len(times) == 0 {
		return nil, nil, store.ErrNoSnapshots
	}

	frames := make([]frame, 0, len(times))
	for _, at := range times {
		ch, err := e.snapshots.ChainAt(ctx, symbol, at)
		if err != nil {
			e.logger.Warn("skipping unreadable snapshot",
				zap.Time("at", at), zap.Error(err))
			continue
		}
		if !ch.HasPrice() {
			e.logger.Warn("skipping snapshot without price", zap.Time("at", at))
			continue
		}
		frames = append(frames, frame{at: at, chain: ch, price: ch.UnderlyingPrice})
	}
	if len(frames) == 0 {
		return nil, nil, store.ErrNoSnapshots
	}

	summary := &Summary{
		RunID:  uuid.New().String(),
		Symbol: symbol,
		From:   frames[0].at,
		To:     frames[len(frames)-1].at,
	}

	// Session opens, keyed by calendar day: first usable snapshot wins.
	opens := make(map[string]float64)
	for _, f := range frames {
		day := f.at.Format("2006-01-02")
		if _, ok := opens[day]; !ok {
			opens[day] = f.price
		}
	}

	var signals []Signal
	for i, f := range frames {
		metrics, reason := e.calc.Compute(f.chain, f.at)
		if reason != gex.ReasonNone {
			continue
		}

		alerts := e.generator.Generate(ctx, f.chain, metrics, opens[f.at.Format("2006-01-02")], f.at)
		for _, alert := range alerts {
			if alert.IsWarning() {
				continue
			}
			sig := e.evaluate(alert, frames, i)
			signals = append(signals, sig)

			summary.TotalTrades++
			summary.TotalPnl += sig.Pnl
			switch sig.Result {
			case ResultWin:
				summary.Wins++
			case ResultLoss:
				summary.Losses++
			default:
				summary.Open++
			}
		}
	}

	if resolved := summary.Wins + summary.Losses; resolved > 0 {
		summary.WinRate = float64(summary.Wins) / float64(resolved) * 100
	}
	return summary, signals, nil
}

// evaluate scans forward from the entry frame, strictly within the same
// calendar day. A breach of either short strike at any later snapshot is a
// loss at that point; surviving to the day's last snapshot is a win; with no
// later same-day snapshot the trade stays open.
func (e *Engine) evaluate(alert signal.Alert, frames []frame, entry int) Signal {
	sig := Signal{
		GeneratedAt: frames[entry].at,
		Alert:       alert,
		Result:      ResultOpen,
	}

	shortPut := alert.ShortStrikeFor("PUT")
	shortCall := alert.ShortStrikeFor("CALL")
	day := frames[entry].at.Format("2006-01-02")

	last := -1
	for j := entry + 1; j < len(frames); j++ {
		if frames[j].at.Format("2006-01-02") != day {
			break
		}
		last = j

		price := frames[j].price
		if (shortPut > 0 && price <= shortPut) || (shortCall > 0 && price >= shortCall) {
			sig.Result = ResultLoss
			sig.ExitPrice = price
			sig.ExitTime = frames[j].at
			sig.Pnl = -alert.MaxLoss * contractMultiplier
			return sig
		}
	}

	if last >= 0 {
		sig.Result = ResultWin
		sig.ExitPrice = frames[last].price
		sig.ExitTime = frames[last].at
		sig.Pnl = alert.NetCredit * contractMultiplier
	}
	return sig
}
