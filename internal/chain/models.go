package chain

import "time"

// OptionType distinguishes the two contract sides.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// Contract is a single option contract as seen in one chain snapshot.
// Fields are immutable once parsed.
type Contract struct {
	Strike            float64    `json:"strike"`
	Type              OptionType `json:"type"`
	Bid               float64    `json:"bid"`
	Ask               float64    `json:"ask"`
	Last              float64    `json:"last"`
	Volume            int64      `json:"volume"`
	OpenInterest      int64      `json:"openInterest"`
	Delta             float64    `json:"delta"`
	Gamma             float64    `json:"gamma"`
	Theta             float64    `json:"theta"`
	Vega              float64    `json:"vega"`
	ImpliedVolatility float64    `json:"impliedVolatility"` // percent points: 20 = 20%
	ExpirationDate    string     `json:"expirationDate"`
}

// Chain is one snapshot of the full option chain for one underlying.
type Chain struct {
	Symbol          string     `json:"symbol"`
	UnderlyingPrice float64    `json:"underlyingPrice"`
	Contracts       []Contract `json:"contracts"`
}

// HasPrice reports whether the snapshot carries a usable underlying price.
func (c *Chain) HasPrice() bool {
	return c != nil && c.UnderlyingPrice > 0
}

// Mid returns the bid/ask midpoint, falling back to the last traded price
// when both sides of the book are empty.
func (ct *Contract) Mid() float64 {
	if ct.Bid == 0 && ct.Ask == 0 {
		return ct.Last
	}
	return (ct.Bid + ct.Ask) / 2
}

// ExpirationDay parses the contract's expiration into a date, dropping any
// intraday suffix (e.g. "2026-03-20:AM"). Returns the zero time when the
// field is unparseable.
func (ct *Contract) ExpirationDay() time.Time {
	s := ct.ExpirationDate
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
