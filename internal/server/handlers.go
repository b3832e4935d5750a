package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/quantfold/gexengine/internal/backtest"
	"github.com/quantfold/gexengine/internal/gex"
	"github.com/quantfold/gexengine/internal/greeks"
	"github.com/quantfold/gexengine/internal/provider"
	"github.com/quantfold/gexengine/internal/signal"
	"github.com/quantfold/gexengine/internal/store"
)

// Server holds the engine dependencies behind the HTTP surface.
type Server struct {
	chains    provider.ChainProvider
	calc      *gex.Calculator
	generator *signal.Generator
	backtests *backtest.Engine
	alerts    store.AlertStore // nil when persistence is disabled
	window    *signal.Window
	logger    *zap.Logger
}

func NewServer(chains provider.ChainProvider, calc *gex.Calculator, generator *signal.Generator, backtests *backtest.Engine, alerts store.AlertStore, window *signal.Window, logger *zap.Logger) *Server {
	return &Server{
		chains:    chains,
		calc:      calc,
		generator: generator,
		backtests: backtests,
		alerts:    alerts,
		window:    window,
		logger:    logger,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type gexResponse struct {
	Metrics     gex.Metrics           `json:"metrics"`
	Reason      gex.Reason            `json:"degradedReason,omitempty"`
	Profile     []greeks.ProfilePoint `json:"profile,omitempty"`
	ProfileFlip float64               `json:"profileFlip,omitempty"`
}

// handleGEX fetches the live chain and returns the metrics plus the
// synthetic gamma curve. Missing upstream data still renders: the response
// carries the zeroed safe default and the reason for it.
func (s *Server) handleGEX(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	now := time.Now()

	ch, err := s.chains.GetOptionsChain(r.Context(), symbol)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		s.logger.Warn("chain fetch failed", zap.String("symbol", symbol), zap.Error(err))
	}

	metrics, reason := s.calc.Compute(ch, now)
	resp := gexResponse{Metrics: metrics, Reason: reason}

	if ch != nil && ch.HasPrice() {
		exp := ch.ResolveExpiration(now)
		if exp != "" {
			contracts := ch.ContractsFor(exp)
			years := 0.0
			if len(contracts) > 0 {
				years = contracts[0].YearsToExpiry(now)
			}
			resp.Profile = greeks.BuildProfile(contracts, ch.UnderlyingPrice, years)
			if flip, ok := greeks.FlipFromProfile(resp.Profile, ch.UnderlyingPrice); ok {
				resp.ProfileFlip = flip
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type signalsResponse struct {
	Symbol string         `json:"symbol"`
	Alerts []signal.Alert `json:"alerts"`
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	now := time.Now()

	ch, err := s.chains.GetOptionsChain(r.Context(), symbol)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		s.logger.Warn("chain fetch failed", zap.String("symbol", symbol), zap.Error(err))
	}

	metrics, _ := s.calc.Compute(ch, now)
	alerts := s.generator.Generate(r.Context(), ch, metrics, 0, now)
	if alerts == nil {
		alerts = []signal.Alert{}
	}

	writeJSON(w, http.StatusOK, signalsResponse{Symbol: symbol, Alerts: alerts})
}

type backtestResponse struct {
	Summary *backtest.Summary `json:"summary"`
	Signals []backtest.Signal `json:"signals"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	summary, signals, err := s.backtests.Run(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, store.ErrNoSnapshots) {
			writeError(w, http.StatusNotFound, "no snapshots stored for "+symbol)
			return
		}
		s.logger.Error("backtest failed", zap.String("symbol", symbol), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "backtest failed")
		return
	}
	if signals == nil {
		signals = []backtest.Signal{}
	}

	writeJSON(w, http.StatusOK, backtestResponse{Summary: summary, Signals: signals})
}

type settleRequest struct {
	Result        string  `json:"result"`
	RealizedPnl   float64 `json:"realizedPnl"`
	ClosedAtPrice float64 `json:"closedAtPrice"`
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	if s.alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "alert persistence is disabled")
		return
	}

	id := chi.URLParam(r, "id")

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settle payload")
		return
	}
	if req.Result != backtest.ResultWin && req.Result != backtest.ResultLoss {
		writeError(w, http.StatusBadRequest, "result must be WIN or LOSS")
		return
	}

	updated, err := s.alerts.Settle(r.Context(), id, req.Result, req.RealizedPnl, req.ClosedAtPrice)
	if err != nil {
		s.logger.Error("settle failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "settle failed")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "alert not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
