// Package notify turns arbitration decisions into human-readable reports,
// metrics and journal rows. Sinks never fail the caller: delivery errors are
// logged and dropped.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind classifies an Event.
type Kind string

const (
	KindOpportunity   Kind = "opportunity"
	KindDealCompleted Kind = "deal_completed"
	KindDealFailed    Kind = "deal_failed"
)

// Event describes one actionable opportunity or the outcome of a simulated deal.
// An opportunity and its deal outcome share the same DealID.
// Running totals are only set on KindDealCompleted.
type Event struct {
	Kind        Kind
	DealID      uuid.UUID
	Time        time.Time
	Pair        string
	BaseTicker  string
	QuoteTicker string

	BuyVenue  string
	SellVenue string
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
	Quantity  decimal.Decimal

	PurchaseCost decimal.Decimal
	SaleProceeds decimal.Decimal
	Profit       decimal.Decimal

	TotalDeals  int64
	TotalProfit decimal.Decimal

	Err error
}

// Sink receives events. Implementations must not block for long and must
// not panic; the caller does not look at delivery failures.
type Sink interface {
	Report(ctx context.Context, ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev Event)

// Report calls f(ctx, ev).
func (f SinkFunc) Report(ctx context.Context, ev Event) { f(ctx, ev) }

// Multi fans an event out to every sink in order.
type Multi []Sink

// Report delivers ev to all sinks. A panicking sink is logged and skipped.
func (m Multi) Report(ctx context.Context, ev Event) {
	for _, s := range m {
		reportSafely(ctx, s, ev)
	}
}

func reportSafely(ctx context.Context, s Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().ErrorContext(ctx, "sink panic recovered", "panic", r, "kind", string(ev.Kind))
		}
	}()
	s.Report(ctx, ev)
}

// Describe renders ev as a title and a multi-line message.
func Describe(ev Event) (title, message string) {
	switch ev.Kind {
	case KindOpportunity:
		title = "Arbitrage opportunity"
		message = fmt.Sprintf(
			"%s offers %s cheaper than the best bid on %s.\n%-30s | %-30s\nPotential profit %s %s excluding fees.",
			ev.BuyVenue, ev.BaseTicker, ev.SellVenue,
			fmt.Sprintf("Purchase: %s %s", ev.BuyPrice, ev.QuoteTicker),
			fmt.Sprintf("Sale: %s %s", ev.SellPrice, ev.QuoteTicker),
			ev.Profit.StringFixed(2), ev.QuoteTicker,
		)
	case KindDealCompleted:
		title = "Deal completed"
		message = fmt.Sprintf(
			"Bought %s %s for %s (%s) %s on %s.\nSold %s %s for %s (%s) %s on %s.\n"+
				"Deal profit %s %s excluding fees.\nTotal deals %d.\nTotal profit %s %s excluding fees.",
			ev.Quantity, ev.BaseTicker, ev.PurchaseCost.StringFixed(2), ev.BuyPrice, ev.QuoteTicker, ev.BuyVenue,
			ev.Quantity, ev.BaseTicker, ev.SaleProceeds.StringFixed(2), ev.SellPrice, ev.QuoteTicker, ev.SellVenue,
			ev.Profit.StringFixed(2), ev.QuoteTicker,
			ev.TotalDeals,
			ev.TotalProfit.StringFixed(2), ev.QuoteTicker,
		)
	case KindDealFailed:
		title = "Deal failed"
		message = fmt.Sprintf(
			"Buying %s %s on %s and selling on %s failed: %v.\nExpected profit %s %s was not booked.",
			ev.Quantity, ev.BaseTicker, ev.BuyVenue, ev.SellVenue, ev.Err,
			ev.Profit.StringFixed(2), ev.QuoteTicker,
		)
	default:
		title = string(ev.Kind)
		message = fmt.Sprintf("%+v", ev)
	}
	return title, message
}
