package exchange

import (
	"fmt"
	"log/slog"
	"time"

	"arbiter/internal/config"
)

// NewClient creates a new exchange client based on the given name and configuration.
func NewClient(name string, logger *slog.Logger, arb config.ArbitrageConfig, cfg config.ExchangeConfig) (Venue, error) {
	base, quote, err := config.SplitPair(arb.TradingPair)
	if err != nil {
		return nil, err
	}
	latency := time.Duration(arb.SimulatedLatencyMS) * time.Millisecond

	switch name {
	case "kraken":
		return NewKrakenClient(logger, base, quote, cfg.Symbol, cfg.WSURL, cfg.MaxReconnects, latency), nil
	case "binance":
		return NewBinanceClient(logger, base, quote, cfg.Symbol, cfg.WSURL, cfg.MaxReconnects, latency), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}
