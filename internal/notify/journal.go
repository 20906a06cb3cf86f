package notify

import (
	"context"
	"log/slog"

	"arbiter/internal/database"
	"arbiter/internal/model"
)

// JournalSink persists completed deals. Other event kinds are ignored.
type JournalSink struct {
	repo   database.Repository
	logger *slog.Logger
}

// NewJournalSink creates a JournalSink writing to repo.
func NewJournalSink(repo database.Repository, logger *slog.Logger) *JournalSink {
	return &JournalSink{repo: repo, logger: logger.With("component", "journal")}
}

// Report stores ev when it is a completed deal.
func (s *JournalSink) Report(ctx context.Context, ev Event) {
	if ev.Kind != KindDealCompleted {
		return
	}
	trade := model.SimulatedTrade{
		DealID:       ev.DealID,
		Timestamp:    ev.Time,
		TradingPair:  ev.Pair,
		BuyExchange:  ev.BuyVenue,
		SellExchange: ev.SellVenue,
		BuyPrice:     ev.BuyPrice,
		SellPrice:    ev.SellPrice,
		Quantity:     ev.Quantity,
		PurchaseCost: ev.PurchaseCost,
		SaleProceeds: ev.SaleProceeds,
		Profit:       ev.Profit,
		TotalDeals:   ev.TotalDeals,
		TotalProfit:  ev.TotalProfit,
	}
	if err := s.repo.LogTrade(ctx, trade); err != nil {
		s.logger.ErrorContext(ctx, "Failed to log trade", "error", err)
	}
}
