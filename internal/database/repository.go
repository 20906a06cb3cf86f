package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"arbiter/internal/model"
)

// Repository defines the standard interface for database operations.
type Repository interface {
	LogTrade(ctx context.Context, trade model.SimulatedTrade) error
	Migrate(ctx context.Context) error
}

const createTradesTable = `
CREATE TABLE IF NOT EXISTS simulated_trades (
	id SERIAL PRIMARY KEY,
	deal_id UUID NOT NULL UNIQUE,
	timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	trading_pair VARCHAR(20) NOT NULL,
	buy_exchange VARCHAR(50) NOT NULL,
	sell_exchange VARCHAR(50) NOT NULL,
	buy_price NUMERIC(20, 8) NOT NULL,
	sell_price NUMERIC(20, 8) NOT NULL,
	quantity NUMERIC(28, 12) NOT NULL,
	purchase_cost NUMERIC(20, 2) NOT NULL,
	sale_proceeds NUMERIC(20, 2) NOT NULL,
	profit NUMERIC(20, 2) NOT NULL,
	total_deals BIGINT NOT NULL,
	total_profit NUMERIC(20, 2) NOT NULL
);`

// PostgresRepository journals simulated trades in PostgreSQL.
type PostgresRepository struct {
	Pool *pgxpool.Pool
}

// NewPostgresRepository connects to dsn and verifies the connection.
func NewPostgresRepository(ctx context.Context, dsn string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PostgresRepository{Pool: pool}, nil
}

// Migrate creates the trade journal table if it does not exist.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.Pool.Exec(ctx, createTradesTable); err != nil {
		return fmt.Errorf("create simulated_trades: %w", err)
	}
	return nil
}

// LogTrade inserts one completed simulated trade.
func (r *PostgresRepository) LogTrade(ctx context.Context, trade model.SimulatedTrade) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO simulated_trades (deal_id, timestamp, trading_pair, buy_exchange, sell_exchange, buy_price,
			sell_price, quantity, purchase_cost, sale_proceeds, profit, total_deals, total_profit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		trade.DealID.String(), trade.Timestamp, trade.TradingPair, trade.BuyExchange, trade.SellExchange,
		trade.BuyPrice.String(), trade.SellPrice.String(), trade.Quantity.String(),
		trade.PurchaseCost.String(), trade.SaleProceeds.String(), trade.Profit.String(),
		trade.TotalDeals, trade.TotalProfit.String(),
	)
	if err != nil {
		return fmt.Errorf("insert simulated_trade: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	r.Pool.Close()
}
