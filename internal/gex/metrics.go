package gex

// Regime classifies expected dealer hedging behavior.
type Regime string

const (
	RegimeStable   Regime = "stable"
	RegimeVolatile Regime = "volatile"
	RegimeNeutral  Regime = "neutral"
)

// Reason explains why Compute fell back to the zeroed safe default. The
// dashboard always needs a renderable metrics object, so degraded inputs
// surface here instead of as errors.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonNoChain Reason = "no_chain"
	ReasonNoPrice Reason = "no_price"
	ReasonPanic   Reason = "internal_error"
)

// StrikeAggregate accumulates per-strike exposure during one evaluation.
// Built fresh per chain, discarded after metrics extraction.
type StrikeAggregate struct {
	Strike           float64
	CallGEX          float64
	PutGEX           float64 // always <= 0
	CallOpenInterest int64
	PutOpenInterest  int64
	CallVanna        float64
	PutVanna         float64
}

// NetGEX is the strike's call+put exposure.
func (s StrikeAggregate) NetGEX() float64 {
	return s.CallGEX + s.PutGEX
}

// Metrics is the positioning summary derived from one chain snapshot.
type Metrics struct {
	Symbol                string  `json:"symbol"`
	CurrentPrice          float64 `json:"currentPrice"`
	TotalGEX              float64 `json:"totalGex"`
	GammaFlip             float64 `json:"gammaFlip"`
	CallWall              float64 `json:"callWall"`
	PutWall               float64 `json:"putWall"`
	NetInstitutionalDelta float64 `json:"netInstitutionalDelta"`
	NetDrift              float64 `json:"netDrift"`
	Regime                Regime  `json:"regime"`
	ExpectedMove          float64 `json:"expectedMove"`
	NetVanna              float64 `json:"netVanna"`
}

// zeroed returns the safe-default metrics object consumers can always render.
func zeroed(symbol string, price float64) Metrics {
	return Metrics{
		Symbol:       symbol,
		CurrentPrice: price,
		Regime:       RegimeNeutral,
	}
}
