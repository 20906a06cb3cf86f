package notify

import (
	"context"
	"log/slog"
)

// LogSink writes every event to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With("component", "notifier")}
}

// Report logs ev with its rendered description.
func (s *LogSink) Report(ctx context.Context, ev Event) {
	_, message := Describe(ev)
	attrs := []any{
		"kind", string(ev.Kind),
		"dealId", ev.DealID.String(),
		"buyExchange", ev.BuyVenue,
		"sellExchange", ev.SellVenue,
		"buyPrice", ev.BuyPrice.String(),
		"sellPrice", ev.SellPrice.String(),
		"quantity", ev.Quantity.String(),
		"profit", ev.Profit.StringFixed(2),
	}

	switch ev.Kind {
	case KindDealFailed:
		s.logger.ErrorContext(ctx, message, append(attrs, "error", ev.Err)...)
	case KindDealCompleted:
		s.logger.InfoContext(ctx, message, append(attrs,
			"totalDeals", ev.TotalDeals,
			"totalProfit", ev.TotalProfit.StringFixed(2),
		)...)
	default:
		s.logger.InfoContext(ctx, message, attrs...)
	}
}
