package discord

import (
	"context"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/discord-rules-bot/app/shared/observability/attr"
	"github.com/cenkalti/backoff/v4"
)

const (
	maxDiscordAPIRetryAttempts = 5
	discordAPIBaseRetryDelay   = 200 * time.Millisecond
	discordAPIMaxRetryDelay    = 3 * time.Second
)

// RetryDiscordAPI retries transient Discord API failures with exponential backoff and jitter.
// Permanent failures are returned after the first attempt.
func RetryDiscordAPI(ctx context.Context, logger *slog.Logger, operation string, fn func() error) error {
	return retryDiscordAPI(ctx, logger, operation, newDiscordBackOff(), fn)
}

func newDiscordBackOff() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(discordAPIBaseRetryDelay),
		backoff.WithMaxInterval(discordAPIMaxRetryDelay),
		backoff.WithMaxElapsedTime(0),
	)
}

func retryDiscordAPI(ctx context.Context, logger *slog.Logger, operation string, b backoff.BackOff, fn func() error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := fn()
		if err == nil {
			return nil
		}
		if !isRetryableDiscordError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		if logger == nil {
			return
		}
		logger.Warn("Retrying transient Discord API failure",
			attr.String("operation", operation),
			attr.Int("attempt", attempt),
			attr.Duration("retry_in", wait),
			attr.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxDiscordAPIRetryAttempts-1), ctx)
	return backoff.RetryNotify(op, policy, notify)
}
