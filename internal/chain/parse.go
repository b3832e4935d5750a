package chain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// wireChain accepts both payload shapes the upstream vendors produce. Which
// shape arrived is decided once here; the rest of the engine only ever sees
// the canonical Chain.
//
// Shape A (nested): {"callMap": {exp: {strike: [contract]}}, "putMap": {...}}
// Shape B (flat):   {"calls": [contract], "puts": [contract]}
type wireChain struct {
	Symbol          string          `json:"symbol"`
	UnderlyingPrice float64         `json:"underlyingPrice"`
	CallMap         json.RawMessage `json:"callMap"`
	PutMap          json.RawMessage `json:"putMap"`
	Calls           json.RawMessage `json:"calls"`
	Puts            json.RawMessage `json:"puts"`
}

type expirationMap map[string]map[string][]Contract

// Parse decodes a raw chain payload into the canonical Chain. Contracts keep
// the order calls-then-puts; within the nested shape, expirations and strikes
// are ordered ascending so parsing is deterministic.
func Parse(raw []byte) (*Chain, error) {
	var w wireChain
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decoding chain payload: %w", err)
	}

	out := &Chain{
		Symbol:          w.Symbol,
		UnderlyingPrice: w.UnderlyingPrice,
	}

	switch {
	case w.CallMap != nil || w.PutMap != nil:
		calls, err := parseNested(w.CallMap, Call)
		if err != nil {
			return nil, err
		}
		puts, err := parseNested(w.PutMap, Put)
		if err != nil {
			return nil, err
		}
		out.Contracts = append(calls, puts...)
	case w.Calls != nil || w.Puts != nil:
		calls, err := parseFlat(w.Calls, Call)
		if err != nil {
			return nil, err
		}
		puts, err := parseFlat(w.Puts, Put)
		if err != nil {
			return nil, err
		}
		out.Contracts = append(calls, puts...)
	default:
		return nil, fmt.Errorf("chain payload for %q has neither nested maps nor flat arrays", w.Symbol)
	}

	return out, nil
}

// WirePayload renders the chain back into the flat wire shape, so stored
// snapshots stay round-trippable through Parse.
func (c *Chain) WirePayload() ([]byte, error) {
	var calls, puts []Contract
	for _, ct := range c.Contracts {
		if ct.Type == Call {
			calls = append(calls, ct)
		} else {
			puts = append(puts, ct)
		}
	}
	return json.Marshal(struct {
		Symbol          string     `json:"symbol"`
		UnderlyingPrice float64    `json:"underlyingPrice"`
		Calls           []Contract `json:"calls"`
		Puts            []Contract `json:"puts"`
	}{c.Symbol, c.UnderlyingPrice, calls, puts})
}

func parseNested(raw json.RawMessage, side OptionType) ([]Contract, error) {
	if raw == nil {
		return nil, nil
	}

	var m expirationMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decoding nested %s map: %w", side, err)
	}

	expirations := make([]string, 0, len(m))
	for exp := range m {
		expirations = append(expirations, exp)
	}
	sort.Strings(expirations)

	var out []Contract
	for _, exp := range expirations {
		strikes := m[exp]

		keys := make([]string, 0, len(strikes))
		for k := range strikes {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.ParseFloat(keys[i], 64)
			b, _ := strconv.ParseFloat(keys[j], 64)
			return a < b
		})

		for _, k := range keys {
			for _, ct := range strikes[k] {
				ct.Type = side
				if ct.Strike == 0 {
					if s, err := strconv.ParseFloat(k, 64); err == nil {
						ct.Strike = s
					}
				}
				if ct.ExpirationDate == "" {
					ct.ExpirationDate = exp
				}
				out = append(out, ct)
			}
		}
	}
	return out, nil
}

func parseFlat(raw json.RawMessage, side OptionType) ([]Contract, error) {
	if raw == nil {
		return nil, nil
	}

	var list []Contract
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decoding flat %s list: %w", side, err)
	}
	for i := range list {
		list[i].Type = side
	}
	return list, nil
}
