// Package gex aggregates option chain snapshots into dealer positioning
// metrics: gamma exposure, the gamma flip level, open interest walls and
// vanna exposure.
package gex

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/chain"
	"github.com/quantfold/gexengine/internal/greeks"
)

const (
	contractMultiplier = 100.0

	// Within this fraction of the flip, hedging flow dominates and the
	// regime is forced volatile regardless of total GEX sign.
	flipProximity = 0.005

	// Strike window around the ATM strike accepted for the expected move.
	atmTolerance = 1.0
)

// Calculator derives Metrics from chain snapshots. Safe for concurrent use:
// every evaluation builds its own aggregates.
type Calculator struct {
	logger *zap.Logger
}

func NewCalculator(logger *zap.Logger) *Calculator {
	return &Calculator{logger: logger}
}

// Compute evaluates one chain snapshot as of the given time. It never
// returns an error: degraded or missing inputs yield the zeroed safe
// default, with the Reason telling callers (and tests) why.
func (c *Calculator) Compute(ch *chain.Chain, asOf time.Time) (m Metrics, reason Reason) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("gex evaluation panicked", zap.Any("panic", r))
			symbol, price := "", 0.0
			if ch != nil {
				symbol, price = ch.Symbol, ch.UnderlyingPrice
			}
			m, reason = zeroed(symbol, price), ReasonPanic
		}
	}()

	if ch == nil || len(ch.Contracts) == 0 {
		symbol := ""
		if ch != nil {
			symbol = ch.Symbol
		}
		return zeroed(symbol, 0), ReasonNoChain
	}
	if !ch.HasPrice() {
		return zeroed(ch.Symbol, 0), ReasonNoPrice
	}

	price := ch.UnderlyingPrice
	aggregates := c.aggregate(ch, price, asOf)

	m = Metrics{
		Symbol:       ch.Symbol,
		CurrentPrice: price,
		GammaFlip:    price, // empty-aggregate fallback
	}

	var maxCallOI, maxPutOI int64
	for _, agg := range aggregates {
		m.TotalGEX += agg.NetGEX()
		m.NetVanna += agg.CallVanna + agg.PutVanna
		if agg.CallOpenInterest > maxCallOI {
			maxCallOI = agg.CallOpenInterest
			m.CallWall = agg.Strike
		}
		if agg.PutOpenInterest > maxPutOI {
			maxPutOI = agg.PutOpenInterest
			m.PutWall = agg.Strike
		}
	}

	if len(aggregates) > 0 {
		m.GammaFlip = findGammaFlip(aggregates, price)
	}

	for _, ct := range ch.Contracts {
		m.NetInstitutionalDelta -= ct.Delta * float64(ct.OpenInterest) * contractMultiplier
	}
	m.NetDrift = m.NetInstitutionalDelta / price * 100

	switch {
	case m.TotalGEX > 0:
		m.Regime = RegimeStable
	case m.TotalGEX < 0:
		m.Regime = RegimeVolatile
	default:
		m.Regime = RegimeNeutral
	}
	if math.Abs(price-m.GammaFlip)/price < flipProximity {
		m.Regime = RegimeVolatile
	}

	m.ExpectedMove = expectedMove(ch.Contracts, price)

	return m, ReasonNone
}

// aggregate folds the contract list into per-strike aggregates, sorted
// ascending by strike. Same-day expirations have their vendor gamma replaced
// by the Black-Scholes estimate; vendor 0DTE gammas are not trustworthy.
func (c *Calculator) aggregate(ch *chain.Chain, price float64, asOf time.Time) []StrikeAggregate {
	byStrike := make(map[float64]*StrikeAggregate)

	for _, ct := range ch.Contracts {
		if ct.Strike <= 0 {
			continue
		}

		gamma := ct.Gamma
		if ct.IsZeroDTE(asOf) {
			gamma = greeks.Gamma(price, ct.Strike, ct.ImpliedVolatility/100, ct.YearsToExpiry(asOf))
		}

		agg, ok := byStrike[ct.Strike]
		if !ok {
			agg = &StrikeAggregate{Strike: ct.Strike}
			byStrike[ct.Strike] = agg
		}

		oi := float64(ct.OpenInterest)
		gexContribution := gamma * oi * contractMultiplier * price
		vannaContribution := ct.Vega * oi * contractMultiplier

		if ct.Type == chain.Call {
			agg.CallGEX += gexContribution
			agg.CallVanna += vannaContribution
			agg.CallOpenInterest += ct.OpenInterest
		} else {
			agg.PutGEX -= gexContribution
			agg.PutVanna -= vannaContribution
			agg.PutOpenInterest += ct.OpenInterest
		}
	}

	out := make([]StrikeAggregate, 0, len(byStrike))
	for _, agg := range byStrike {
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strike < out[j].Strike })
	return out
}

// findGammaFlip scans adjacent strike pairs for the first net-GEX sign
// change and returns their midpoint. When no crossing exists, it falls back
// to the strike whose net GEX sits closest to zero. The fallback candidate
// is only updated during iterations that did not break on a crossing; a late
// crossing therefore still wins over any earlier closer-to-zero strike.
func findGammaFlip(aggregates []StrikeAggregate, currentPrice float64) float64 {
	closest := currentPrice
	closestAbs := math.Inf(1)

	for i := range aggregates {
		if i+1 < len(aggregates) {
			a, b := aggregates[i].NetGEX(), aggregates[i+1].NetGEX()
			if a*b < 0 {
				return (aggregates[i].Strike + aggregates[i+1].Strike) / 2
			}
		}
		if abs := math.Abs(aggregates[i].NetGEX()); abs < closestAbs {
			closestAbs = abs
			closest = aggregates[i].Strike
		}
	}
	return closest
}

// expectedMove approximates the straddle-implied move from the ATM call and
// put midpoints. Returns 0 when either side is missing near the ATM strike.
func expectedMove(contracts []chain.Contract, price float64) float64 {
	atm := 0.0
	best := math.Inf(1)
	for _, ct := range contracts {
		if ct.Strike <= 0 {
			continue
		}
		if d := math.Abs(ct.Strike - price); d < best {
			best = d
			atm = ct.Strike
		}
	}
	if atm == 0 {
		return 0
	}

	var call, put *chain.Contract
	for i := range contracts {
		ct := &contracts[i]
		if math.Abs(ct.Strike-atm) > atmTolerance {
			continue
		}
		if ct.Type == chain.Call && call == nil {
			call = ct
		}
		if ct.Type == chain.Put && put == nil {
			put = ct
		}
	}
	if call == nil || put == nil {
		return 0
	}
	return call.Mid() + put.Mid()
}
