package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"arbiter/internal/model"
)

const binanceWSURL = "wss://stream.binance.com:9443/ws"

// binanceBookTicker is the payload of the <symbol>@bookTicker stream.
type binanceBookTicker struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// BinanceClient implements the Venue interface for Binance.
type BinanceClient struct {
	*Book
	logger        *slog.Logger
	url           string
	maxReconnects int
}

// NewBinanceClient creates a new BinanceClient for base/quote. An empty
// symbol is derived from the pair, an empty url uses the public endpoint.
func NewBinanceClient(logger *slog.Logger, base, quote, symbol, url string, maxReconnects int, latency time.Duration) *BinanceClient {
	if symbol == "" {
		symbol = base + quote
	}
	if url == "" {
		url = binanceWSURL
	}
	url = strings.TrimRight(url, "/") + "/" + strings.ToLower(symbol) + "@bookTicker"
	return &BinanceClient{
		Book:          NewBook(logger, "binance", base, quote, latency),
		logger:        logger.With("client", "binance"),
		url:           url,
		maxReconnects: maxReconnects,
	}
}

// Start connects to the Binance WebSocket API and streams best bid/ask updates.
func (b *BinanceClient) Start(ctx context.Context, observer Observer) error {
	return runStream(ctx, b.logger, b.url, b.maxReconnects, func(ctx context.Context, c *websocket.Conn) error {
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				return fmt.Errorf("read message: %w", err)
			}

			bid, ask, err := parseBinanceBookTicker(message)
			if err != nil {
				b.logger.Warn("failed to parse message", "error", err)
				continue
			}

			b.Publish(ctx, observer, bid, ask)
			b.logger.Debug("published book ticker", "bid", bid.Price.String(), "ask", ask.Price.String())
		}
	})
}

func parseBinanceBookTicker(message []byte) (bid, ask model.Quote, err error) {
	var t binanceBookTicker
	if err = json.Unmarshal(message, &t); err != nil {
		return
	}
	if t.BidPrice == "" || t.AskPrice == "" {
		err = fmt.Errorf("not a book ticker: %s", message)
		return
	}
	if bid, err = parseQuote(t.BidPrice, t.BidQty); err != nil {
		return
	}
	ask, err = parseQuote(t.AskPrice, t.AskQty)
	return
}

func parseQuote(price, quantity string) (model.Quote, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return model.Quote{}, fmt.Errorf("parse price %q: %w", price, err)
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return model.Quote{}, fmt.Errorf("parse quantity %q: %w", quantity, err)
	}
	return model.Quote{Price: p, Quantity: q}, nil
}
