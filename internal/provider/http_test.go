package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

const flatChainPayload = `{
	"underlyingPrice": 100.5,
	"calls": [{"strike": 105, "bid": 0.4, "ask": 0.6, "delta": 0.2, "openInterest": 1200, "expirationDate": "2025-06-13"}],
	"puts":  [{"strike": 95,  "bid": 0.5, "ask": 0.7, "delta": -0.2, "openInterest": 2400, "expirationDate": "2025-06-13"}]
}`

func newTestProvider(baseURL string) *HTTPProvider {
	return NewHTTPProvider(baseURL, "test-key", 100, 5*time.Second, time.Millisecond, 2, zap.NewNop())
}

func TestGetOptionsChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chains/SPY" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		w.Write([]byte(flatChainPayload))
	}))
	defer srv.Close()

	ch, err := newTestProvider(srv.URL).GetOptionsChain(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("GetOptionsChain: %v", err)
	}
	// Symbol backfilled from the request when absent in the payload.
	if ch.Symbol != "SPY" {
		t.Errorf("symbol = %q", ch.Symbol)
	}
	if ch.UnderlyingPrice != 100.5 || len(ch.Contracts) != 2 {
		t.Errorf("chain = %+v", ch)
	}
}

func TestGetOptionsChainRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(flatChainPayload))
	}))
	defer srv.Close()

	ch, err := newTestProvider(srv.URL).GetOptionsChain(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("GetOptionsChain after retries: %v", err)
	}
	if ch == nil || calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestGetOptionsChainSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrAuthFailed},
		{"forbidden", http.StatusForbidden, ErrAuthFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := newTestProvider(srv.URL).GetOptionsChain(context.Background(), "SPY")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetOptionsChainRateLimitedExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestProvider(srv.URL).GetOptionsChain(context.Background(), "SPY")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, want wrapped ErrRateLimited", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want initial attempt plus 2 retries", calls.Load())
	}
}

func TestGetOptionsChainBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol": "SPY"}`))
	}))
	defer srv.Close()

	if _, err := newTestProvider(srv.URL).GetOptionsChain(context.Background(), "SPY"); err == nil {
		t.Error("expected parse error for payload without contracts")
	}
}
