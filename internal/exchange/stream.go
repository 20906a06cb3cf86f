package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

var (
	reconnectBackoff    = time.Second
	maxReconnectBackoff = 16 * time.Second
)

// session consumes one live connection until it fails or ctx is cancelled.
type session func(ctx context.Context, conn *websocket.Conn) error

// runStream keeps a websocket session alive with exponential backoff.
// It returns nil on cancellation and ErrReconnectsExhausted once
// maxReconnects consecutive attempts have failed (0 retries forever).
func runStream(ctx context.Context, logger *slog.Logger, url string, maxReconnects int, handle session) error {
	backoff := reconnectBackoff
	failures := 0
	for {
		if ctx.Err() != nil {
			logger.Info("context cancelled, shutting down")
			return nil
		}

		logger.Info("connecting to WebSocket", "url", url, "backoff", backoff)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err == nil {
			// Reset backoff on successful connection
			backoff = reconnectBackoff
			failures = 0
			logger.Info("connected successfully")

			stop := context.AfterFunc(ctx, func() { conn.Close() })
			err = handle(ctx, conn)
			stop()
			conn.Close()
			if ctx.Err() != nil {
				logger.Info("context cancelled, connection closed")
				return nil
			}
		}

		failures++
		logger.Error("WebSocket session failed", "error", err, "attempt", failures)
		if maxReconnects > 0 && failures > maxReconnects {
			return fmt.Errorf("%w after %d attempts: %v", ErrReconnectsExhausted, failures, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxReconnectBackoff {
				backoff = maxReconnectBackoff
			}
		}
	}
}
