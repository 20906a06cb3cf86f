package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"arbiter/internal/model"
)

const krakenWSURL = "wss://ws.kraken.com"

// errKrakenEvent marks a control message (heartbeat, status) carrying no quotes.
var errKrakenEvent = errors.New("kraken event message")

// krakenTicker holds the a/b arrays of a ticker payload:
// [price, wholeLotVolume, lotVolume].
type krakenTicker struct {
	Ask []json.RawMessage `json:"a"`
	Bid []json.RawMessage `json:"b"`
}

type krakenEvent struct {
	Event        string `json:"event"`
	Status       string `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

// KrakenClient implements the Venue interface for Kraken.
type KrakenClient struct {
	*Book
	logger        *slog.Logger
	url           string
	pair          string
	maxReconnects int
}

// NewKrakenClient creates a new KrakenClient. Kraken names bitcoin XBT.
func NewKrakenClient(logger *slog.Logger, base, quote, symbol, url string, maxReconnects int, latency time.Duration) *KrakenClient {
	if symbol == "" {
		symbol = krakenAsset(base) + "/" + krakenAsset(quote)
	}
	if url == "" {
		url = krakenWSURL
	}
	return &KrakenClient{
		Book:          NewBook(logger, "kraken", base, quote, latency),
		logger:        logger.With("client", "kraken"),
		url:           url,
		pair:          symbol,
		maxReconnects: maxReconnects,
	}
}

func krakenAsset(ticker string) string {
	if ticker == "BTC" {
		return "XBT"
	}
	return ticker
}

// Start connects to the Kraken WebSocket API and streams ticker updates.
func (k *KrakenClient) Start(ctx context.Context, observer Observer) error {
	return runStream(ctx, k.logger, k.url, k.maxReconnects, func(ctx context.Context, c *websocket.Conn) error {
		subscription := map[string]interface{}{
			"event": "subscribe",
			"pair":  []string{k.pair},
			"subscription": map[string]string{
				"name": "ticker",
			},
		}
		if err := c.WriteJSON(subscription); err != nil {
			return fmt.Errorf("send subscription: %w", err)
		}
		k.logger.Info("subscription sent successfully", "pair", k.pair)

		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				return fmt.Errorf("read message: %w", err)
			}

			bid, ask, err := parseKrakenTicker(message)
			if errors.Is(err, errKrakenEvent) {
				continue
			}
			if err != nil {
				k.logger.Warn("failed to parse message", "error", err)
				continue
			}

			k.Publish(ctx, observer, bid, ask)
			k.logger.Debug("published ticker", "bid", bid.Price.String(), "ask", ask.Price.String())
		}
	})
}

// parseKrakenTicker decodes [channelID, {"a":[...],"b":[...]}, "ticker", pair].
func parseKrakenTicker(message []byte) (bid, ask model.Quote, err error) {
	message = bytes.TrimSpace(message)
	if len(message) > 0 && message[0] == '{' {
		var ev krakenEvent
		if err = json.Unmarshal(message, &ev); err != nil {
			return
		}
		if ev.Status == "error" {
			err = fmt.Errorf("kraken %s: %s", ev.Event, ev.ErrorMessage)
			return
		}
		err = errKrakenEvent
		return
	}

	var frame []json.RawMessage
	if err = json.Unmarshal(message, &frame); err != nil {
		return
	}
	if len(frame) < 4 {
		err = fmt.Errorf("unexpected frame length %d", len(frame))
		return
	}
	var ticker krakenTicker
	if err = json.Unmarshal(frame[1], &ticker); err != nil {
		return
	}
	if bid, err = krakenLevel(ticker.Bid); err != nil {
		return
	}
	ask, err = krakenLevel(ticker.Ask)
	return
}

func krakenLevel(level []json.RawMessage) (model.Quote, error) {
	if len(level) < 3 {
		return model.Quote{}, fmt.Errorf("unexpected level length %d", len(level))
	}
	var price, volume string
	if err := json.Unmarshal(level[0], &price); err != nil {
		return model.Quote{}, err
	}
	if err := json.Unmarshal(level[2], &volume); err != nil {
		return model.Quote{}, err
	}
	return parseQuote(price, volume)
}
