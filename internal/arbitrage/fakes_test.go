package arbitrage

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"arbiter/internal/exchange"
	"arbiter/internal/model"
	"arbiter/internal/notify"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func q(price, qty string) model.Quote {
	return model.Quote{Price: d(price), Quantity: d(qty)}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeVenue is a Book with injectable leg failures and a scripted feed.
type fakeVenue struct {
	*exchange.Book

	purchaseErr error
	saleErr     error
	purchases   atomic.Int32
	sales       atomic.Int32

	script   [][2]model.Quote // bid, ask
	startErr error
}

func newFakeVenue(name string) *fakeVenue {
	return newSlowFakeVenue(name, 0)
}

// newSlowFakeVenue delays every simulated fill by latency.
func newSlowFakeVenue(name string, latency time.Duration) *fakeVenue {
	return &fakeVenue{Book: exchange.NewBook(discardLogger(), name, "BTC", "EUR", latency)}
}

func (f *fakeVenue) Purchase(ctx context.Context, quantity decimal.Decimal) error {
	f.purchases.Add(1)
	if f.purchaseErr != nil {
		return f.purchaseErr
	}
	return f.Book.Purchase(ctx, quantity)
}

func (f *fakeVenue) Sale(ctx context.Context, quantity decimal.Decimal) error {
	f.sales.Add(1)
	if f.saleErr != nil {
		return f.saleErr
	}
	return f.Book.Sale(ctx, quantity)
}

func (f *fakeVenue) Start(ctx context.Context, observer exchange.Observer) error {
	for _, quotes := range f.script {
		f.Publish(ctx, observer, quotes[0], quotes[1])
	}
	if f.startErr != nil {
		return f.startErr
	}
	<-ctx.Done()
	return nil
}

// recordingSink keeps every reported event.
type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingSink) Report(_ context.Context, ev notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) kinds() []notify.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recordingSink) last() notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}
