package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quote is the best bid or best ask resting on one venue.
// It is a value: replaced wholesale on every update.
type Quote struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// HasPrice reports whether the quote carries a usable, strictly positive price.
func (q Quote) HasPrice() bool {
	return q.Price.IsPositive()
}

// Consume returns a copy of q with delta removed from its quantity,
// floored at zero.
func (q Quote) Consume(delta decimal.Decimal) Quote {
	left := q.Quantity.Sub(delta)
	if left.IsNegative() {
		left = decimal.Zero
	}
	return Quote{Price: q.Price, Quantity: left}
}

// VenueState is a read-only snapshot of one exchange's top of book.
type VenueState struct {
	Name        string
	BaseTicker  string
	QuoteTicker string
	BestBid     Quote
	BestAsk     Quote
	UpdatedAt   time.Time
}

// SimulatedTrade represents a completed arbitrage deal to be journaled.
type SimulatedTrade struct {
	ID           int64           `db:"id"`
	DealID       uuid.UUID       `db:"deal_id"`
	Timestamp    time.Time       `db:"timestamp"`
	TradingPair  string          `db:"trading_pair"`
	BuyExchange  string          `db:"buy_exchange"`
	SellExchange string          `db:"sell_exchange"`
	BuyPrice     decimal.Decimal `db:"buy_price"`
	SellPrice    decimal.Decimal `db:"sell_price"`
	Quantity     decimal.Decimal `db:"quantity"`
	PurchaseCost decimal.Decimal `db:"purchase_cost"`
	SaleProceeds decimal.Decimal `db:"sale_proceeds"`
	Profit       decimal.Decimal `db:"profit"`
	TotalDeals   int64           `db:"total_deals"`
	TotalProfit  decimal.Decimal `db:"total_profit"`
}
