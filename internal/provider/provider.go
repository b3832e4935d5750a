// Package provider supplies option chain snapshots from the market data
// vendor. The engine receives a ChainProvider by injection; there is no
// ambient client singleton.
package provider

import (
	"context"
	"errors"

	"github.com/quantfold/gexengine/internal/chain"
)

var (
	ErrNotFound    = errors.New("no chain available for symbol")
	ErrRateLimited = errors.New("rate limited by vendor")
	ErrAuthFailed  = errors.New("vendor authentication failed")
)

// ChainProvider fetches the current chain snapshot for a symbol. A missing
// chain is reported as ErrNotFound, never as a panic or a nil dereference.
type ChainProvider interface {
	GetOptionsChain(ctx context.Context, symbol string) (*chain.Chain, error)
}
