package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"arbiter/internal/arbitrage"
	"arbiter/internal/config"
	"arbiter/internal/database"
	"arbiter/internal/exchange"
	"arbiter/internal/notify"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	logger := config.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("arbiter stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	names := cfg.ExchangeNames()
	venues := make([]exchange.Venue, 0, len(names))
	for _, name := range names {
		v, err := exchange.NewClient(name, logger, cfg.Arbitrage, cfg.Exchanges[name])
		if err != nil {
			return err
		}
		venues = append(venues, v)
	}

	// Cleanups run in reverse so async sinks drain before their storage closes.
	var cleanups []func()
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	sinks := notify.Multi{notify.NewLogSink(logger)}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := notify.NewMetricsSink(reg)
	if err != nil {
		return err
	}
	sinks = append(sinks, metrics)
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr, reg, logger)
		cleanups = append(cleanups, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.Database.Enabled() {
		repo, err := database.NewPostgresRepository(ctx, cfg.Database.DSN())
		if err != nil {
			return err
		}
		cleanups = append(cleanups, repo.Close)
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		journal := notify.NewAsync(notify.NewJournalSink(repo, logger), cfg.Notify.Buffer, logger)
		cleanups = append(cleanups, journal.Close)
		sinks = append(sinks, journal)
		logger.Info("Deal journal enabled", "host", cfg.Database.Host)
	}

	if cfg.Notify.TelegramToken != "" {
		sender := notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
		limiter := rate.NewLimiter(rate.Limit(cfg.Notify.TelegramRate), 1)
		chat := notify.NewAsync(notify.NewChatSink(sender, limiter, logger), cfg.Notify.Buffer, logger)
		cleanups = append(cleanups, chat.Close)
		sinks = append(sinks, chat)
	}

	engine, err := arbitrage.NewArbitrageEngine(logger, cfg.Arbitrage, sinks, venues[0], venues[1])
	if err != nil {
		return err
	}
	strategy := arbitrage.NewStrategy(logger, engine)
	if err := strategy.Start(ctx); err != nil {
		return err
	}

	failed := make(chan error, 1)
	go func() { failed <- strategy.Wait() }()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case err := <-failed:
		if err != nil {
			logger.Error("watcher failed", "error", err)
		}
	}
	return strategy.Stop()
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("Serving metrics", "addr", addr)
	return srv
}
