package chain

import (
	"sort"
	"time"
)

// TradingDaysPerYear is used for time-to-expiry year fractions.
const TradingDaysPerYear = 252.0

// Expirations returns the distinct expiration date strings present in the
// chain, ascending.
func (c *Chain) Expirations() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ct := range c.Contracts {
		day := ct.ExpirationDate
		if len(day) > 10 {
			day = day[:10]
		}
		if day == "" {
			continue
		}
		if _, ok := seen[day]; !ok {
			seen[day] = struct{}{}
			out = append(out, day)
		}
	}
	sort.Strings(out)
	return out
}

// ResolveExpiration picks the expiration a signal cycle should trade:
// the expiration matching today when present, otherwise the earliest
// expiration on or after today, otherwise the earliest available. Empty
// string means the chain carries no expirations at all.
func (c *Chain) ResolveExpiration(today time.Time) string {
	exps := c.Expirations()
	if len(exps) == 0 {
		return ""
	}

	day := today.Format("2006-01-02")
	for _, exp := range exps {
		if exp == day {
			return exp
		}
	}
	for _, exp := range exps {
		if exp >= day {
			return exp
		}
	}
	return exps[0]
}

// ContractsFor returns the contracts belonging to the given expiration day.
func (c *Chain) ContractsFor(expiration string) []Contract {
	var out []Contract
	for _, ct := range c.Contracts {
		day := ct.ExpirationDate
		if len(day) > 10 {
			day = day[:10]
		}
		if day == expiration {
			out = append(out, ct)
		}
	}
	return out
}

// YearsToExpiry returns the time between now and the contract's expiration
// close (16:00 local to asOf) as a fraction of a trading year. Expired or
// unparseable contracts yield 0.
func (ct *Contract) YearsToExpiry(asOf time.Time) float64 {
	day := ct.ExpirationDay()
	if day.IsZero() {
		return 0
	}
	expiry := time.Date(day.Year(), day.Month(), day.Day(), 16, 0, 0, 0, asOf.Location())
	remaining := expiry.Sub(asOf)
	if remaining <= 0 {
		return 0
	}
	return remaining.Hours() / 24.0 / TradingDaysPerYear
}

// IsZeroDTE reports whether the contract expires within one trading day.
func (ct *Contract) IsZeroDTE(asOf time.Time) bool {
	y := ct.YearsToExpiry(asOf)
	return y > 0 && y < 1.0/TradingDaysPerYear
}
