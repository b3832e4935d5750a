// Package store holds the persistence contracts the engine consumes:
// historical chain snapshots to replay, and generated alerts to keep.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/quantfold/gexengine/internal/chain"
	"github.com/quantfold/gexengine/internal/signal"
)

var (
	// ErrNoSnapshots is the only condition a backtest surfaces as an error:
	// with zero snapshots there is nothing meaningful to return.
	ErrNoSnapshots = errors.New("no snapshots stored for symbol")

	ErrAlertNotFound = errors.New("alert not found")
)

// SnapshotStore provides historical chain snapshots, queryable by symbol
// and distinct snapshot time ascending.
type SnapshotStore interface {
	// SnapshotTimes returns the distinct snapshot timestamps for the
	// symbol, ascending.
	SnapshotTimes(ctx context.Context, symbol string) ([]time.Time, error)

	// ChainAt reconstructs the chain stored at the given snapshot time.
	ChainAt(ctx context.Context, symbol string, at time.Time) (*chain.Chain, error)

	// SaveSnapshot stores one chain snapshot.
	SaveSnapshot(ctx context.Context, at time.Time, ch *chain.Chain) error
}

// AlertStore persists trade alerts with insert-if-absent semantics and
// supports the out-of-band settlement update.
type AlertStore interface {
	signal.AlertStore

	// Settle writes result / realized PnL / close price onto an existing
	// row. Returns false (not an error) when the row does not exist.
	Settle(ctx context.Context, id, result string, realizedPnl, closedAtPrice float64) (bool, error)

	// Get returns the stored alert by id, or ErrAlertNotFound.
	Get(ctx context.Context, id string) (*signal.Alert, error)
}
