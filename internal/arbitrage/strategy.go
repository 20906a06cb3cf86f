package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Strategy owns the lifecycle of both venue watchers feeding one engine.
type Strategy struct {
	logger *slog.Logger
	engine *ArbitrageEngine

	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewStrategy creates a Strategy around engine.
func NewStrategy(logger *slog.Logger, engine *ArbitrageEngine) *Strategy {
	return &Strategy{logger: logger.With("component", "strategy"), engine: engine}
}

// Start launches one watcher per venue. A failing watcher cancels the other
// and its error is returned from Wait or Stop.
func (s *Strategy) Start(ctx context.Context) error {
	if s.group != nil {
		return errors.New("strategy already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	s.group = g

	for _, v := range s.engine.Venues() {
		g.Go(func() error {
			if err := v.Start(gctx, s.engine); err != nil {
				return fmt.Errorf("%s watcher: %w", v.Name(), err)
			}
			return nil
		})
	}

	s.logger.Info("Started watching pair", "pair", s.engine.cfg.TradingPair, "demo", s.engine.cfg.Demo)
	return nil
}

// Wait blocks until both watchers have returned.
func (s *Strategy) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// Stop signals both watchers and waits for them, including any evaluation
// they are inside of, so the ledger is final once Stop returns.
func (s *Strategy) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	err := s.Wait()

	totals := s.engine.Ledger()
	s.logger.Info("Stopped watching pair",
		"pair", s.engine.cfg.TradingPair,
		"totalDeals", totals.TotalDeals,
		"totalProfit", totals.TotalProfit.StringFixed(2),
	)
	return err
}
