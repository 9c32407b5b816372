package elasticsearch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Connect builds a client and waits until the cluster answers a ping,
// backing off exponentially between attempts.
func Connect(ctx context.Context, addr, eventsIndex, sourcesIndex string, log *slog.Logger, maxRetries int) (*Client, error) {
	client, err := New(addr, eventsIndex, sourcesIndex, log)
	if err != nil {
		return nil, err
	}

	retryDelay := 2 * time.Second
	for i := 0; ; i++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		pingErr := client.Ping(pingCtx)
		cancel()
		if pingErr == nil {
			return client, nil
		}
		if i+1 >= maxRetries {
			return nil, fmt.Errorf("elasticsearch unreachable after %d attempts: %w", maxRetries, pingErr)
		}

		client.log.Warn("elasticsearch ping failed, retrying",
			slog.Any("err", pingErr),
			slog.Int("attempt", i+1),
			slog.Int("max_retries", maxRetries),
			slog.Duration("retry_in", retryDelay),
		)
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		retryDelay *= 2
		if retryDelay > 30*time.Second {
			retryDelay = 30 * time.Second
		}
	}
}
