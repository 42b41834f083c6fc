package ai

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Retry runs fn until it succeeds, returns a non-recoverable error, the retry
// budget is spent, or ctx is done. Errors that are neither recoverable nor
// fatal are returned immediately.
func Retry(ctx context.Context, cfg RetryConfig, logger *slog.Logger, op string, fn func(context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := BackoffDelay(cfg, attempt)
			logger.Info("Retrying provider call",
				slog.String("op", op),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("last_error", lastErr.Error()))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return lastErr
			}
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				logger.Info("Provider call succeeded after retry",
					slog.String("op", op),
					slog.Int("attempts", attempt+1))
			}
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRecoverable(err) {
			return err
		}

		logger.Warn("Recoverable provider error",
			slog.String("op", op),
			slog.String("error", err.Error()),
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", cfg.MaxRetries))
	}

	return fmt.Errorf("exhausted all retry attempts (%d): %w", cfg.MaxRetries, lastErr)
}

// BackoffDelay computes the delay before the given retry attempt (1-based).
func BackoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1))

	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.JitterPercent > 0 {
		jitterRange := delay * float64(cfg.JitterPercent)
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
	}

	if delay < 0 {
		delay = float64(cfg.InitialDelay)
	}

	return time.Duration(delay)
}
