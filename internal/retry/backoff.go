package retry

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// BackoffConfig contains configuration for exponential backoff.
type BackoffConfig struct {
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
	MaxAttempts  int           `json:"max_attempts"`
	Jitter       bool          `json:"jitter"`
}

// DefaultBackoffConfig returns a sensible default configuration.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  5,
		Jitter:       true,
	}
}

// Backoff implements exponential backoff with optional jitter. It is used
// for store bring-up at process start; individual store operations are
// never retried.
type Backoff struct {
	config BackoffConfig
}

func NewBackoff(config BackoffConfig) *Backoff {
	return &Backoff{config: config}
}

// Retry executes the operation until it succeeds, the attempts are
// exhausted, or the context is cancelled. The last error is returned.
func (b *Backoff) Retry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= b.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == b.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.delayFor(attempt)):
		}
	}

	return lastErr
}

func (b *Backoff) delayFor(attempt int) time.Duration {
	delay := float64(b.config.InitialDelay) * math.Pow(b.config.Multiplier, float64(attempt-1))
	if delay > float64(b.config.MaxDelay) {
		delay = float64(b.config.MaxDelay)
	}

	d := time.Duration(delay)
	if b.config.Jitter {
		// Up to 25% random jitter to avoid thundering-herd reconnects.
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(delay/4)+1)); err == nil {
			d += time.Duration(n.Int64())
		}
	}

	if d > b.config.MaxDelay {
		d = b.config.MaxDelay
	}
	return d
}
