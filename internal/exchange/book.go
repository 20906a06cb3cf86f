package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arbiter/internal/model"
)

// Book holds the current top of book for one venue and simulates fills
// against it. It is safe for concurrent use.
type Book struct {
	logger  *slog.Logger
	latency time.Duration

	mu    sync.RWMutex
	state model.VenueState
}

// NewBook creates an empty Book. latency delays every simulated fill.
func NewBook(logger *slog.Logger, name, base, quote string, latency time.Duration) *Book {
	return &Book{
		logger:  logger.With("venue", name),
		latency: latency,
		state: model.VenueState{
			Name:        name,
			BaseTicker:  base,
			QuoteTicker: quote,
		},
	}
}

func (b *Book) Name() string        { return b.state.Name }
func (b *Book) BaseTicker() string  { return b.state.BaseTicker }
func (b *Book) QuoteTicker() string { return b.state.QuoteTicker }

// BestBid returns the current best bid.
func (b *Book) BestBid() model.Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.BestBid
}

// BestAsk returns the current best ask.
func (b *Book) BestAsk() model.Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.BestAsk
}

// Snapshot returns a copy of the venue state.
func (b *Book) Snapshot() model.VenueState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// SetQuotes replaces both sides of the book and returns the new snapshot.
func (b *Book) SetQuotes(bid, ask model.Quote) model.VenueState {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.BestBid = bid
	b.state.BestAsk = ask
	b.state.UpdatedAt = time.Now()
	return b.state
}

// Publish stores new quotes and hands the resulting snapshot to observer.
// The observer is invoked without holding the book lock.
func (b *Book) Publish(ctx context.Context, observer Observer, bid, ask model.Quote) {
	snapshot := b.SetQuotes(bid, ask)
	if observer != nil {
		observer.OnVenueUpdate(ctx, snapshot.Name, snapshot)
	}
}

// Purchase simulates buying quantity at the best ask.
func (b *Book) Purchase(ctx context.Context, quantity decimal.Decimal) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	ask := b.BestAsk()
	if err := fillable(ask, quantity); err != nil {
		return fmt.Errorf("%s purchase %s: %w", b.Name(), quantity, err)
	}
	b.logger.Debug("simulated purchase", "quantity", quantity.String(), "price", ask.Price.String())
	return nil
}

// Sale simulates selling quantity at the best bid.
func (b *Book) Sale(ctx context.Context, quantity decimal.Decimal) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	bid := b.BestBid()
	if err := fillable(bid, quantity); err != nil {
		return fmt.Errorf("%s sale %s: %w", b.Name(), quantity, err)
	}
	b.logger.Debug("simulated sale", "quantity", quantity.String(), "price", bid.Price.String())
	return nil
}

// UpdateBestAskQuantity consumes delta from the resting ask depth.
func (b *Book) UpdateBestAskQuantity(delta decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.BestAsk = b.state.BestAsk.Consume(delta)
}

// UpdateBestBidQuantity consumes delta from the resting bid depth.
func (b *Book) UpdateBestBidQuantity(delta decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.BestBid = b.state.BestBid.Consume(delta)
}

func (b *Book) wait(ctx context.Context) error {
	if b.latency <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.latency):
		return nil
	}
}

func fillable(q model.Quote, quantity decimal.Decimal) error {
	if !q.HasPrice() {
		return ErrNoQuote
	}
	if quantity.GreaterThan(q.Quantity) {
		return ErrInsufficientDepth
	}
	return nil
}
