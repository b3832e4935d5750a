package signal

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/chain"
	"github.com/quantfold/gexengine/internal/gex"
)

const (
	spreadWidth     = 5.0
	minNetCredit    = 0.20
	shortDeltaMin   = 0.15
	shortDeltaMax   = 0.25
	wallRadius      = 20.0
	strikeTolerance = 1.0

	vannaCrushBull = 15e6
	vannaCrushBear = -10e6
	driftThreshold = 0.5

	alertValidity = time.Hour
)

// AlertStore persists generated alerts. Insert-if-absent semantics keyed by
// the deterministic alert id keep repeated cycles idempotent.
type AlertStore interface {
	InsertIfAbsent(ctx context.Context, alert Alert) (bool, error)
}

// Notifier pushes alerts to an out-of-band channel.
type Notifier interface {
	NotifyAlert(ctx context.Context, alert Alert) error
}

// Generator produces scored strategy candidates from one chain evaluation.
// Stateless between cycles; all inputs arrive as parameters.
type Generator struct {
	window   *Window
	store    AlertStore // nil disables persistence
	notifier Notifier   // nil disables notifications
	logger   *zap.Logger
}

func NewGenerator(window *Window, store AlertStore, notifier Notifier, logger *zap.Logger) *Generator {
	return &Generator{window: window, store: store, notifier: notifier, logger: logger}
}

// Generate runs one signal cycle against the chain and its metrics as of
// the given time. openPrice is the session open (0 when unknown). Outside
// the trading window, or without usable inputs, the result is empty.
func (g *Generator) Generate(ctx context.Context, ch *chain.Chain, m gex.Metrics, openPrice float64, asOf time.Time) []Alert {
	if !g.window.AllowsNewEntries(asOf) {
		return nil
	}
	if m.CurrentPrice == 0 {
		g.logger.Debug("skipping cycle: metrics unavailable")
		return nil
	}
	if ch == nil || len(ch.Contracts) == 0 {
		g.logger.Debug("skipping cycle: no chain")
		return nil
	}

	expiration := ch.ResolveExpiration(asOf)
	if expiration == "" {
		g.logger.Debug("skipping cycle: no resolvable expiration")
		return nil
	}
	contracts := ch.ContractsFor(expiration)

	cycle := cycleContext{
		metrics:    m,
		contracts:  contracts,
		expiration: expiration,
		openPrice:  openPrice,
		hoursLeft:  g.window.HoursToClose(asOf),
		asOf:       asOf,
	}

	var alerts []Alert
	seen := make(map[string]struct{})
	add := func(a *Alert) {
		if a == nil {
			return
		}
		if _, dup := seen[a.ID]; dup {
			return
		}
		seen[a.ID] = struct{}{}
		alerts = append(alerts, *a)
	}

	if m.Regime == gex.RegimeStable {
		add(g.safely("iron_condor", func() *Alert { return g.ironCondor(cycle) }))
	}
	if m.NetDrift > driftThreshold {
		add(g.safely("bull_put", func() *Alert { return g.spread(cycle, BullPutSpread, "") }))
	}
	if m.NetDrift < -driftThreshold {
		add(g.safely("bear_call", func() *Alert { return g.spread(cycle, BearCallSpread, "") }))
	}
	if m.NetVanna > vannaCrushBull && m.Regime != gex.RegimeVolatile {
		add(g.safely("vanna_bull_put", func() *Alert { return g.spread(cycle, BullPutSpread, TagVannaCrush) }))
	}
	if m.NetVanna < vannaCrushBear && m.Regime != gex.RegimeVolatile {
		add(g.safely("vanna_bear_call", func() *Alert { return g.spread(cycle, BearCallSpread, TagVannaCrush) }))
	}
	if math.Abs(m.NetDrift) <= driftThreshold && m.Regime == gex.RegimeStable {
		add(g.safely("bull_put", func() *Alert { return g.spread(cycle, BullPutSpread, "") }))
		add(g.safely("bear_call", func() *Alert { return g.spread(cycle, BearCallSpread, "") }))
	}
	if m.Regime == gex.RegimeVolatile {
		add(g.warning(cycle))
	}

	g.persist(ctx, alerts)
	return alerts
}

// safely isolates one strategy builder: a panic inside it produces no alert
// instead of killing the whole cycle.
func (g *Generator) safely(name string, fn func() *Alert) (a *Alert) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("strategy builder panicked",
				zap.String("strategy", name),
				zap.Any("panic", r),
			)
			a = nil
		}
	}()
	return fn()
}

type cycleContext struct {
	metrics    gex.Metrics
	contracts  []chain.Contract
	expiration string
	openPrice  float64
	hoursLeft  float64
	asOf       time.Time
}

// spread builds a single vertical credit spread of the given type, or nil
// when no acceptable candidate exists.
func (g *Generator) spread(c cycleContext, strategy Strategy, tag string) *Alert {
	side := chain.Put
	wall := c.metrics.PutWall
	bias := 1
	if strategy == BearCallSpread {
		side = chain.Call
		wall = c.metrics.CallWall
		bias = -1
	}

	short := findShortLeg(c.contracts, side, c.metrics.CurrentPrice, wall)
	if short == nil {
		return nil
	}
	long := findLongLeg(c.contracts, side, short.Strike)
	if long == nil {
		return nil
	}

	credit := short.Mid() - long.Mid()
	if credit <= minNetCredit {
		return nil
	}
	width := math.Abs(short.Strike - long.Strike)

	legs := []Leg{
		{Action: Sell, Type: string(side), Strike: short.Strike, Price: short.Mid(), Delta: short.Delta},
		{Action: Buy, Type: string(side), Strike: long.Strike, Price: long.Mid(), Delta: long.Delta},
	}

	score := Score(ScoreInput{
		Metrics:        c.metrics,
		ShortStrike:    short.Strike,
		Wall:           wall,
		OpenPrice:      c.openPrice,
		HoursRemaining: c.hoursLeft,
		Bias:           bias,
	})

	a := &Alert{
		ID:           AlertID(strategy, c.expiration, short.Strike),
		Symbol:       c.metrics.Symbol,
		Strategy:     strategy,
		Expiration:   c.expiration,
		Legs:         legs,
		NetCredit:    credit,
		MaxLoss:      width - credit,
		MaxProfit:    credit,
		Probability:  (1 - math.Abs(short.Delta)) * 100,
		Status:       entryStatus(c.metrics, short.Strike),
		Tag:          tag,
		QualityScore: score.Score,
		QualityLevel: score.Level,
		RiskLevel:    score.Risk,
		GEXContext:   c.metrics,
		GeneratedAt:  c.asOf,
		ValidUntil:   c.asOf.Add(alertValidity),
	}
	return a
}

// ironCondor combines the put and call side spreads into one four-leg
// structure. Both sides must qualify independently.
func (g *Generator) ironCondor(c cycleContext) *Alert {
	putShort := findShortLeg(c.contracts, chain.Put, c.metrics.CurrentPrice, c.metrics.PutWall)
	callShort := findShortLeg(c.contracts, chain.Call, c.metrics.CurrentPrice, c.metrics.CallWall)
	if putShort == nil || callShort == nil {
		return nil
	}
	putLong := findLongLeg(c.contracts, chain.Put, putShort.Strike)
	callLong := findLongLeg(c.contracts, chain.Call, callShort.Strike)
	if putLong == nil || callLong == nil {
		return nil
	}

	credit := putShort.Mid() - putLong.Mid() + callShort.Mid() - callLong.Mid()
	if credit <= minNetCredit {
		return nil
	}
	width := math.Max(putShort.Strike-putLong.Strike, callLong.Strike-callShort.Strike)

	legs := []Leg{
		{Action: Sell, Type: string(chain.Put), Strike: putShort.Strike, Price: putShort.Mid(), Delta: putShort.Delta},
		{Action: Buy, Type: string(chain.Put), Strike: putLong.Strike, Price: putLong.Mid(), Delta: putLong.Delta},
		{Action: Sell, Type: string(chain.Call), Strike: callShort.Strike, Price: callShort.Mid(), Delta: callShort.Delta},
		{Action: Buy, Type: string(chain.Call), Strike: callLong.Strike, Price: callLong.Mid(), Delta: callLong.Delta},
	}

	score := Score(ScoreInput{
		Metrics:        c.metrics,
		ShortStrike:    putShort.Strike,
		Wall:           c.metrics.PutWall,
		OpenPrice:      c.openPrice,
		HoursRemaining: c.hoursLeft,
		Bias:           0,
	})

	status := StatusActive
	if insideExpectedMove(c.metrics, putShort.Strike) || insideExpectedMove(c.metrics, callShort.Strike) {
		status = StatusWatch
	}

	return &Alert{
		ID:           AlertID(IronCondor, c.expiration, putShort.Strike),
		Symbol:       c.metrics.Symbol,
		Strategy:     IronCondor,
		Expiration:   c.expiration,
		Legs:         legs,
		NetCredit:    credit,
		MaxLoss:      width - credit,
		MaxProfit:    credit,
		Probability:  (1 - math.Abs(putShort.Delta) - math.Abs(callShort.Delta)) * 100,
		Status:       status,
		QualityScore: score.Score,
		QualityLevel: score.Level,
		RiskLevel:    score.Risk,
		GEXContext:   c.metrics,
		GeneratedAt:  c.asOf,
		ValidUntil:   c.asOf.Add(alertValidity),
	}
}

// warning emits the non-persisted volatile-regime notice shown on the
// dashboard instead of a tradeable structure.
func (g *Generator) warning(c cycleContext) *Alert {
	return &Alert{
		ID:          fmt.Sprintf("%s%s_%s", WarningIDPrefix, c.metrics.Symbol, c.asOf.Format("2006-01-02")),
		Symbol:      c.metrics.Symbol,
		Status:      StatusWatch,
		Message:     "volatile regime: dealer hedging amplifies moves, no new credit spreads",
		GEXContext:  c.metrics,
		GeneratedAt: c.asOf,
		ValidUntil:  c.asOf.Add(alertValidity),
	}
}

func (g *Generator) persist(ctx context.Context, alerts []Alert) {
	if g.store == nil {
		return
	}
	for _, a := range alerts {
		if a.IsWarning() {
			continue
		}
		inserted, err := g.store.InsertIfAbsent(ctx, a)
		if err != nil {
			// One failed insert must not block the rest of the batch.
			g.logger.Warn("alert insert failed", zap.String("id", a.ID), zap.Error(err))
			continue
		}
		if inserted && a.QualityLevel == QualityPremium && g.notifier != nil {
			if err := g.notifier.NotifyAlert(ctx, a); err != nil {
				g.logger.Warn("alert notification failed", zap.String("id", a.ID), zap.Error(err))
			}
		}
	}
}

// findShortLeg picks the short strike: strictly out of the money, within
// the wall search radius, |delta| inside the band, preferring the contract
// closest to the low end of the band.
func findShortLeg(contracts []chain.Contract, side chain.OptionType, price, wall float64) *chain.Contract {
	var candidates []chain.Contract
	for _, ct := range contracts {
		if ct.Type != side || ct.Strike <= 0 {
			continue
		}
		otm := (side == chain.Put && ct.Strike < price) || (side == chain.Call && ct.Strike > price)
		if !otm {
			continue
		}
		if math.Abs(ct.Strike-wall) > wallRadius {
			continue
		}
		if d := math.Abs(ct.Delta); d < shortDeltaMin || d > shortDeltaMax {
			continue
		}
		candidates = append(candidates, ct)
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return math.Abs(candidates[i].Delta) < math.Abs(candidates[j].Delta)
	})
	return &candidates[0]
}

// findLongLeg locates the protective leg one spread width further out of
// the money, tolerating strike grids up to one unit off the exact target.
func findLongLeg(contracts []chain.Contract, side chain.OptionType, shortStrike float64) *chain.Contract {
	target := shortStrike - spreadWidth
	if side == chain.Call {
		target = shortStrike + spreadWidth
	}

	var best *chain.Contract
	bestDist := math.Inf(1)
	for i := range contracts {
		ct := &contracts[i]
		if ct.Type != side || ct.Strike <= 0 {
			continue
		}
		if d := math.Abs(ct.Strike - target); d < bestDist {
			bestDist = d
			best = ct
		}
	}
	if best == nil || bestDist > strikeTolerance {
		return nil
	}
	return best
}

func insideExpectedMove(m gex.Metrics, strike float64) bool {
	return m.ExpectedMove > 0 && math.Abs(strike-m.CurrentPrice) < m.ExpectedMove
}

func entryStatus(m gex.Metrics, shortStrike float64) Status {
	if insideExpectedMove(m, shortStrike) {
		return StatusWatch
	}
	return StatusActive
}
