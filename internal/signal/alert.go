// Package signal turns GEX metrics and an option chain into scored credit
// spread trade alerts.
package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantfold/gexengine/internal/gex"
)

type Strategy string

const (
	BullPutSpread  Strategy = "BULL_PUT_SPREAD"
	BearCallSpread Strategy = "BEAR_CALL_SPREAD"
	IronCondor     Strategy = "IRON_CONDOR"
)

type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusWatch     Status = "WATCH"
	StatusCancelled Status = "CANCELLED"
	StatusExpired   Status = "EXPIRED"
)

type QualityLevel string

const (
	QualityPremium    QualityLevel = "PREMIUM"
	QualityStandard   QualityLevel = "STANDARD"
	QualityAggressive QualityLevel = "AGGRESSIVE"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// TagVannaCrush marks spreads generated off the vanna thresholds rather
// than the drift rules.
const TagVannaCrush = "vanna_crush"

// WarningIDPrefix identifies the volatile-regime warning pseudo-alert. Ids
// carrying it are excluded from persistence and from backtesting.
const WarningIDPrefix = "volatile-warning-"

// Leg is one side of a spread.
type Leg struct {
	Action Action  `json:"action"`
	Type   string  `json:"type"` // CALL or PUT
	Strike float64 `json:"strike"`
	Price  float64 `json:"price"`
	Delta  float64 `json:"delta"`
}

// Alert is one scored strategy candidate. Immutable after creation except
// for the settlement fields written out of band.
type Alert struct {
	ID          string       `json:"id"`
	Symbol      string       `json:"symbol"`
	Strategy    Strategy     `json:"strategy"`
	Expiration  string       `json:"expiration"`
	Legs        []Leg        `json:"legs"`
	NetCredit   float64      `json:"netCredit"`
	MaxLoss     float64      `json:"maxLoss"`
	MaxProfit   float64      `json:"maxProfit"`
	Probability float64      `json:"probability"` // 0-100
	Status      Status       `json:"status"`
	Tag         string       `json:"tag,omitempty"`
	Message     string       `json:"message,omitempty"`

	QualityScore int          `json:"qualityScore"` // 0-100
	QualityLevel QualityLevel `json:"qualityLevel"`
	RiskLevel    RiskLevel    `json:"riskLevel"`

	GEXContext gex.Metrics `json:"gexContext"`

	GeneratedAt time.Time `json:"generatedAt"`
	ValidUntil  time.Time `json:"validUntil"`

	// Settlement fields, written by the settle endpoint.
	Result        string  `json:"result,omitempty"` // WIN or LOSS
	RealizedPnl   float64 `json:"realizedPnl,omitempty"`
	ClosedAtPrice float64 `json:"closedAtPrice,omitempty"`
}

// IsWarning reports whether the alert is the non-tradeable volatile-regime
// warning.
func (a *Alert) IsWarning() bool {
	return strings.HasPrefix(a.ID, WarningIDPrefix)
}

// ShortStrike returns the strike of the first SELL leg (the short put for
// iron condors, whose legs lead with the put spread).
func (a *Alert) ShortStrike() float64 {
	for _, leg := range a.Legs {
		if leg.Action == Sell {
			return leg.Strike
		}
	}
	return 0
}

// ShortStrikeFor returns the strike of the SELL leg on the given side.
func (a *Alert) ShortStrikeFor(legType string) float64 {
	for _, leg := range a.Legs {
		if leg.Action == Sell && leg.Type == legType {
			return leg.Strike
		}
	}
	return 0
}

// AlertID builds the deterministic alert id. Two generation cycles against
// an unchanged chain produce the same id, which is what makes the
// insert-if-absent persistence contract idempotent. Vanna-crush variants
// intentionally share the id of their plain counterpart.
func AlertID(strategy Strategy, expiration string, shortStrike float64) string {
	return fmt.Sprintf("%s_%s_%g", strings.ToLower(string(strategy)), expiration, shortStrike)
}
