// Package greeks implements the Black-Scholes re-estimation used where
// vendor-supplied greeks are unreliable, plus the synthetic gamma profile
// built from it.
package greeks

import "math"

// RiskFreeRate is the constant annualized rate used across all pricing.
const RiskFreeRate = 0.04

// Gamma computes theoretical Black-Scholes gamma N'(d1) / (S*sigma*sqrt(T)).
// sigma is a decimal volatility (0.20 = 20%), timeToExpiry is in years.
// Degenerate inputs return 0 rather than an error: callers treat zero as
// "no contribution".
func Gamma(spot, strike, sigma, timeToExpiry float64) float64 {
	if spot <= 0 || strike <= 0 || sigma <= 0 || timeToExpiry <= 0 {
		return 0
	}

	sqrtT := math.Sqrt(timeToExpiry)
	d1 := (math.Log(spot/strike) + (RiskFreeRate+0.5*sigma*sigma)*timeToExpiry) / (sigma * sqrtT)

	g := normPDF(d1) / (spot * sigma * sqrtT)
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return 0
	}
	return g
}

// normPDF is the standard normal density N'(x).
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2.0*math.Pi)
}
