package greeks

import (
	"math"

	"github.com/quantfold/gexengine/internal/chain"
)

const (
	profileRange = 0.08 // +/- 8% of spot
	profileSteps = 60   // 61 grid points

	// Crossings farther than this fraction of spot from the current price
	// are treated as far-field noise and skipped.
	flipRejectRadius = 0.20
)

// ProfilePoint is one (price, net GEX) sample of the synthetic gamma curve.
type ProfilePoint struct {
	Price  float64 `json:"price"`
	NetGEX float64 `json:"netGex"`
}

// BuildProfile simulates net gamma exposure across a price grid spanning
// +/-8% of currentPrice in 60 equal steps. Every contract's gamma is
// recomputed at each hypothetical spot; calls add, puts subtract, mirroring
// the live aggregation.
func BuildProfile(contracts []chain.Contract, currentPrice, timeToExpiry float64) []ProfilePoint {
	if currentPrice <= 0 || len(contracts) == 0 {
		return nil
	}

	lo := currentPrice * (1 - profileRange)
	step := currentPrice * 2 * profileRange / profileSteps

	points := make([]ProfilePoint, 0, profileSteps+1)
	for i := 0; i <= profileSteps; i++ {
		price := lo + float64(i)*step

		var net float64
		for _, ct := range contracts {
			if ct.Strike <= 0 || ct.OpenInterest <= 0 {
				continue
			}
			g := Gamma(price, ct.Strike, ct.ImpliedVolatility/100, timeToExpiry)
			contribution := g * float64(ct.OpenInterest) * 100 * price
			if ct.Type == chain.Call {
				net += contribution
			} else {
				net -= contribution
			}
		}

		points = append(points, ProfilePoint{Price: price, NetGEX: net})
	}
	return points
}

// FlipFromProfile locates the zero crossing of the profile curve by linear
// interpolation weighted by the relative magnitudes of the bracketing
// points. Crossings beyond 20% of currentPrice are rejected and the search
// continues. Returns (0, false) when no acceptable crossing exists.
func FlipFromProfile(points []ProfilePoint, currentPrice float64) (float64, bool) {
	for i := 0; i+1 < len(points); i++ {
		a, b := points[i], points[i+1]
		if a.NetGEX*b.NetGEX >= 0 {
			continue
		}

		span := math.Abs(a.NetGEX) + math.Abs(b.NetGEX)
		if span == 0 {
			continue
		}
		flip := a.Price + (b.Price-a.Price)*math.Abs(a.NetGEX)/span

		if math.Abs(flip-currentPrice) > flipRejectRadius*currentPrice {
			continue
		}
		return flip, true
	}
	return 0, false
}
