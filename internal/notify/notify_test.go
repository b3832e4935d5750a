package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/signal"
)

func premiumAlert() signal.Alert {
	return signal.Alert{
		ID:       "bull_put_spread_2025-06-13_95",
		Symbol:   "SPY",
		Strategy: signal.BullPutSpread,
		Expiration: "2025-06-13",
		Legs: []signal.Leg{
			{Action: signal.Sell, Type: "PUT", Strike: 95, Price: 0.65, Delta: -0.20},
			{Action: signal.Buy, Type: "PUT", Strike: 90, Price: 0.25, Delta: -0.08},
		},
		NetCredit:    0.40,
		MaxLoss:      4.60,
		Probability:  80,
		QualityScore: 85,
		QualityLevel: signal.QualityPremium,
		RiskLevel:    signal.RiskLow,
	}
}

func TestNotifyAlert(t *testing.T) {
	var gotTitle, gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gex-alerts" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotTitle = r.Header.Get("Title")
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer srv.Close()

	client := NewClient(&Config{
		Enabled:  true,
		Server:   srv.URL,
		Topic:    "gex-alerts",
		Priority: "high",
		Tags:     "moneybag",
		Token:    "tk_secret",
	}, zap.NewNop())

	if err := client.NotifyAlert(context.Background(), premiumAlert()); err != nil {
		t.Fatalf("NotifyAlert: %v", err)
	}
	if gotTitle != "SPY BULL_PUT_SPREAD (PREMIUM)" {
		t.Errorf("title = %q", gotTitle)
	}
	if gotAuth != "Bearer tk_secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if !strings.Contains(gotBody, "SELL PUT 95 @ 0.65") {
		t.Errorf("body missing short leg:\n%s", gotBody)
	}
	if !strings.Contains(gotBody, "Credit: 0.40") {
		t.Errorf("body missing credit:\n%s", gotBody)
	}
}

func TestNotifyAlertDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("disabled client must not send")
	}))
	defer srv.Close()

	client := NewClient(&Config{Enabled: false, Server: srv.URL, Topic: "t"}, zap.NewNop())
	if err := client.NotifyAlert(context.Background(), premiumAlert()); err != nil {
		t.Fatalf("NotifyAlert: %v", err)
	}
}

func TestNotifyAlertServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(&Config{Enabled: true, Server: srv.URL, Topic: "t"}, zap.NewNop())
	if err := client.NotifyAlert(context.Background(), premiumAlert()); err == nil {
		t.Error("expected error on non-2xx response")
	}
}

func TestFormatAlertMessage(t *testing.T) {
	msg := FormatAlertMessage(premiumAlert())
	for _, want := range []string{
		"Expiration: 2025-06-13",
		"SELL PUT 95 @ 0.65",
		"BUY PUT 90 @ 0.25",
		"Max Loss: 4.60",
		"Probability: 80%",
		"Quality: 85 (PREMIUM)",
		"Risk: LOW",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
}
