// Package broker defines the pull interface the fetch activity uses to
// obtain market data, plus the bundled implementations: an HTTP client
// against an upstream data vendor and a deterministic stub for
// development. The broker is always passed in as a dependency; no
// global broker state exists.
package broker

import (
	"context"

	"optionsdesk/market"
)

// DefaultStrikesAroundATM is how many strikes each side of ATM a chain
// request asks for when the caller does not say.
const DefaultStrikesAroundATM = 5

// Broker is the capability interface for market data. Every getter
// returns either the typed value or an error (apperrors.DataUnavailable
// when the vendor simply had nothing); none panics.
type Broker interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	GetSpot(ctx context.Context) (market.Spot, error)
	GetFutures(ctx context.Context) (market.Futures, error)
	GetOptionsChain(ctx context.Context, strikesAroundATM int) (market.OptionsChain, error)
	GetVIX(ctx context.Context) (market.VIX, error)
	GetMarketSnapshot(ctx context.Context) (market.Snapshot, error)
}
