package exchange

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"arbiter/internal/model"
)

var (
	// ErrNoQuote is returned when a simulated fill hits a side without a price.
	ErrNoQuote = errors.New("no quote on requested side")
	// ErrInsufficientDepth is returned when a simulated fill exceeds resting depth.
	ErrInsufficientDepth = errors.New("insufficient depth")
	// ErrReconnectsExhausted is returned by Start once a watcher gives up reconnecting.
	ErrReconnectsExhausted = errors.New("reconnect attempts exhausted")
)

// Observer receives top-of-book snapshots from a venue watcher.
type Observer interface {
	OnVenueUpdate(ctx context.Context, venue string, snapshot model.VenueState)
}

// Venue defines the standard interface for all exchange watchers.
type Venue interface {
	Name() string
	BaseTicker() string
	QuoteTicker() string
	BestBid() model.Quote
	BestAsk() model.Quote
	Snapshot() model.VenueState

	// Start streams updates to observer until ctx is cancelled or the feed fails.
	Start(ctx context.Context, observer Observer) error

	Purchase(ctx context.Context, quantity decimal.Decimal) error
	Sale(ctx context.Context, quantity decimal.Decimal) error

	UpdateBestAskQuantity(delta decimal.Decimal)
	UpdateBestBidQuantity(delta decimal.Decimal)
}
