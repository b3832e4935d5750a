package chain

import (
	"testing"
	"time"
)

func TestParseFlatShape(t *testing.T) {
	raw := []byte(`{
		"symbol": "SPY",
		"underlyingPrice": 450.5,
		"calls": [{"strike": 455, "bid": 1.0, "ask": 1.2, "delta": 0.2, "expirationDate": "2025-06-10"}],
		"puts": [{"strike": 445, "bid": 0.9, "ask": 1.1, "delta": -0.2, "expirationDate": "2025-06-10"}]
	}`)

	ch, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if ch.Symbol != "SPY" {
		t.Errorf("expected symbol SPY, got %s", ch.Symbol)
	}
	if len(ch.Contracts) != 2 {
		t.Fatalf("expected 2 contracts, got %d", len(ch.Contracts))
	}
	if ch.Contracts[0].Type != Call || ch.Contracts[0].Strike != 455 {
		t.Errorf("unexpected first contract: %+v", ch.Contracts[0])
	}
	if ch.Contracts[1].Type != Put || ch.Contracts[1].Strike != 445 {
		t.Errorf("unexpected second contract: %+v", ch.Contracts[1])
	}
}

func TestParseNestedShape(t *testing.T) {
	raw := []byte(`{
		"symbol": "SPX",
		"underlyingPrice": 5000,
		"callMap": {
			"2025-06-10": {
				"5050": [{"bid": 2.0, "ask": 2.2, "delta": 0.18}],
				"5010": [{"bid": 10.0, "ask": 10.4, "delta": 0.45}]
			}
		},
		"putMap": {
			"2025-06-10": {
				"4950": [{"bid": 1.8, "ask": 2.0, "delta": -0.18}]
			}
		}
	}`)

	ch, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(ch.Contracts) != 3 {
		t.Fatalf("expected 3 contracts, got %d", len(ch.Contracts))
	}

	// Strikes inside an expiration come out ascending; strike and
	// expiration are backfilled from the map keys.
	if ch.Contracts[0].Strike != 5010 || ch.Contracts[1].Strike != 5050 {
		t.Errorf("expected calls ordered by strike, got %g then %g",
			ch.Contracts[0].Strike, ch.Contracts[1].Strike)
	}
	if ch.Contracts[0].ExpirationDate != "2025-06-10" {
		t.Errorf("expected expiration backfilled, got %q", ch.Contracts[0].ExpirationDate)
	}
	if ch.Contracts[2].Type != Put {
		t.Errorf("expected put last, got %s", ch.Contracts[2].Type)
	}
}

func TestParseRejectsUnknownShape(t *testing.T) {
	if _, err := Parse([]byte(`{"symbol": "SPY"}`)); err == nil {
		t.Fatal("expected error for payload with neither shape")
	}
}

func TestWirePayloadRoundTrip(t *testing.T) {
	ch := &Chain{
		Symbol:          "QQQ",
		UnderlyingPrice: 400,
		Contracts: []Contract{
			{Strike: 405, Type: Call, Bid: 1, Ask: 1.2, ExpirationDate: "2025-06-10"},
			{Strike: 395, Type: Put, Bid: 0.8, Ask: 1.0, ExpirationDate: "2025-06-10"},
		},
	}

	payload, err := ch.WirePayload()
	if err != nil {
		t.Fatalf("WirePayload failed: %v", err)
	}

	back, err := Parse(payload)
	if err != nil {
		t.Fatalf("Parse of wire payload failed: %v", err)
	}
	if back.UnderlyingPrice != 400 || len(back.Contracts) != 2 {
		t.Errorf("round trip mismatch: %+v", back)
	}
}

func TestResolveExpiration(t *testing.T) {
	today := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		expirations []string
		want        string
	}{
		{"prefers today", []string{"2025-06-09", "2025-06-10", "2025-06-13"}, "2025-06-10"},
		{"next future when today missing", []string{"2025-06-09", "2025-06-13", "2025-06-20"}, "2025-06-13"},
		{"earliest when all past", []string{"2025-06-02", "2025-06-06"}, "2025-06-02"},
		{"empty chain", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &Chain{}
			for _, exp := range tt.expirations {
				ch.Contracts = append(ch.Contracts, Contract{Strike: 100, Type: Call, ExpirationDate: exp})
			}
			if got := ch.ResolveExpiration(today); got != tt.want {
				t.Errorf("ResolveExpiration = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpirationDayDropsIntradaySuffix(t *testing.T) {
	ct := Contract{ExpirationDate: "2025-06-10:PM"}
	got := ct.ExpirationDay()
	want := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ExpirationDay = %v, want %v", got, want)
	}
}

func TestMidFallsBackToLast(t *testing.T) {
	ct := Contract{Bid: 0, Ask: 0, Last: 1.35}
	if got := ct.Mid(); got != 1.35 {
		t.Errorf("Mid = %g, want last price 1.35", got)
	}

	ct = Contract{Bid: 1.0, Ask: 1.2}
	if got := ct.Mid(); got != 1.1 {
		t.Errorf("Mid = %g, want 1.1", got)
	}
}

func TestIsZeroDTE(t *testing.T) {
	asOf := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	sameDay := Contract{ExpirationDate: "2025-06-10"}
	if !sameDay.IsZeroDTE(asOf) {
		t.Error("same-day expiration should be 0DTE")
	}

	nextWeek := Contract{ExpirationDate: "2025-06-17"}
	if nextWeek.IsZeroDTE(asOf) {
		t.Error("next-week expiration should not be 0DTE")
	}

	expired := Contract{ExpirationDate: "2025-06-09"}
	if expired.IsZeroDTE(asOf) {
		t.Error("expired contract should not be 0DTE")
	}
}
