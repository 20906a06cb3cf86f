package arbitrage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"arbiter/internal/config"
	"arbiter/internal/exchange"
	"arbiter/internal/model"
	"arbiter/internal/notify"
)

// ArbitrageEngine holds the logic for identifying and executing arbitrage opportunities.
// All evaluation happens inside one critical section, so updates from the two
// watchers are applied strictly one after another.
type ArbitrageEngine struct {
	logger *slog.Logger
	cfg    config.ArbitrageConfig
	sink   notify.Sink
	venues map[string]exchange.Venue
	ledger *Ledger

	mu           sync.Mutex
	latestStates map[string]model.VenueState
}

// NewArbitrageEngine creates a new instance of the ArbitrageEngine for two venues.
func NewArbitrageEngine(logger *slog.Logger, cfg config.ArbitrageConfig, sink notify.Sink, a, b exchange.Venue) (*ArbitrageEngine, error) {
	if a.Name() == b.Name() {
		return nil, fmt.Errorf("venues must differ, both are %q", a.Name())
	}
	if sink == nil {
		sink = notify.Multi{}
	}
	return &ArbitrageEngine{
		logger: logger.With("component", "arbitrage"),
		cfg:    cfg,
		sink:   sink,
		venues: map[string]exchange.Venue{
			a.Name(): a,
			b.Name(): b,
		},
		ledger:       NewLedger(),
		latestStates: make(map[string]model.VenueState, 2),
	}, nil
}

// Venues returns both venues the engine arbitrates between.
func (e *ArbitrageEngine) Venues() []exchange.Venue {
	out := make([]exchange.Venue, 0, len(e.venues))
	for _, v := range e.venues {
		out = append(out, v)
	}
	return out
}

// Ledger returns the current running totals.
func (e *ArbitrageEngine) Ledger() LedgerSnapshot {
	return e.ledger.Snapshot()
}

// OnVenueUpdate stores the venue's latest snapshot and checks for an
// opportunity against the other venue. Safe for concurrent use.
func (e *ArbitrageEngine) OnVenueUpdate(ctx context.Context, venue string, snapshot model.VenueState) {
	if _, ok := e.venues[venue]; !ok {
		e.logger.Warn("update from unknown venue ignored", "venue", venue)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if held, ok := e.latestStates[venue]; ok {
		if isStale(held, snapshot) {
			e.logger.Debug("stale snapshot ignored", "venue", venue, "updatedAt", snapshot.UpdatedAt)
			return
		}
		if snapshot.UpdatedAt.IsZero() {
			snapshot = carryDepth(held, snapshot)
		}
	}
	e.latestStates[venue] = snapshot
	e.checkArbitrage(ctx, venue)
}

// isStale reports whether snapshot carries no quotes newer than held. Held
// state already reflects locally consumed depth, so an equally old snapshot
// must not overwrite it. Unstamped snapshots go through carryDepth instead.
func isStale(held, snapshot model.VenueState) bool {
	return !snapshot.UpdatedAt.IsZero() && !snapshot.UpdatedAt.After(held.UpdatedAt)
}

// carryDepth caps an unstamped snapshot's depth at the held depth on any side
// whose price did not move, so a replayed quote cannot restore filled depth.
func carryDepth(held, snapshot model.VenueState) model.VenueState {
	if snapshot.BestBid.Price.Equal(held.BestBid.Price) {
		snapshot.BestBid.Quantity = decimal.Min(snapshot.BestBid.Quantity, held.BestBid.Quantity)
	}
	if snapshot.BestAsk.Price.Equal(held.BestAsk.Price) {
		snapshot.BestAsk.Quantity = decimal.Min(snapshot.BestAsk.Quantity, held.BestAsk.Quantity)
	}
	return snapshot
}

// checkArbitrage must be called with e.mu held.
func (e *ArbitrageEngine) checkArbitrage(ctx context.Context, updated string) {
	other, ok := e.latestStates[e.otherVenue(updated)]
	if !ok {
		return
	}

	buy, sell, ok := crossing(e.latestStates[updated], other)
	if !ok {
		return
	}
	opp, ok := price(buy, sell)
	if !ok {
		return
	}
	if opp.Profit.LessThan(e.cfg.ProfitThreshold) {
		return
	}

	dealID := uuid.New()
	e.sink.Report(ctx, e.event(notify.KindOpportunity, dealID, opp))
	if e.cfg.Demo {
		e.executeDeal(ctx, dealID, opp)
	}
}

// executeDeal runs both legs concurrently and books the deal only if both
// succeed. The legs ignore cancellation of ctx so a stop lets them finish.
func (e *ArbitrageEngine) executeDeal(ctx context.Context, dealID uuid.UUID, opp Opportunity) {
	buyVenue := e.venues[opp.Buy.Name]
	sellVenue := e.venues[opp.Sell.Name]
	legCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.Go(func() error { return buyVenue.Purchase(legCtx, opp.Quantity) })
	g.Go(func() error { return sellVenue.Sale(legCtx, opp.Quantity) })
	if err := g.Wait(); err != nil {
		ev := e.event(notify.KindDealFailed, dealID, opp)
		ev.Err = err
		e.sink.Report(ctx, ev)
		return
	}

	totals := e.ledger.Record(opp.Profit)

	// Consume the filled depth so the same stale quotes cannot fire twice.
	buyVenue.UpdateBestAskQuantity(opp.Quantity)
	sellVenue.UpdateBestBidQuantity(opp.Quantity)
	buyState := e.latestStates[opp.Buy.Name]
	buyState.BestAsk = buyState.BestAsk.Consume(opp.Quantity)
	e.latestStates[opp.Buy.Name] = buyState
	sellState := e.latestStates[opp.Sell.Name]
	sellState.BestBid = sellState.BestBid.Consume(opp.Quantity)
	e.latestStates[opp.Sell.Name] = sellState

	ev := e.event(notify.KindDealCompleted, dealID, opp)
	ev.TotalDeals = totals.TotalDeals
	ev.TotalProfit = totals.TotalProfit
	e.sink.Report(ctx, ev)
}

func (e *ArbitrageEngine) otherVenue(name string) string {
	for n := range e.venues {
		if n != name {
			return n
		}
	}
	return ""
}

func (e *ArbitrageEngine) event(kind notify.Kind, dealID uuid.UUID, opp Opportunity) notify.Event {
	return notify.Event{
		Kind:         kind,
		DealID:       dealID,
		Time:         time.Now(),
		Pair:         e.cfg.TradingPair,
		BaseTicker:   opp.Buy.BaseTicker,
		QuoteTicker:  opp.Buy.QuoteTicker,
		BuyVenue:     opp.Buy.Name,
		SellVenue:    opp.Sell.Name,
		BuyPrice:     opp.Buy.BestAsk.Price,
		SellPrice:    opp.Sell.BestBid.Price,
		Quantity:     opp.Quantity,
		PurchaseCost: opp.PurchaseCost,
		SaleProceeds: opp.SaleProceeds,
		Profit:       opp.Profit,
	}
}
