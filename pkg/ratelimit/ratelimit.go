// Package ratelimit wraps remote calls in the fixed retry policy used against
// Strava's windowed rate limits.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrLimitExhausted means a call was still rate limited after its last
// attempt, so the daily window is assumed spent.
var ErrLimitExhausted = errors.New("rate limit exhausted")

// Policy is the retry budget for one call.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultPolicy retries once after sleeping out the short window.
var DefaultPolicy = Policy{
	MaxAttempts: 2,
	Backoff:     15 * time.Minute,
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Guard applies a Policy to remote calls.
type Guard struct {
	Policy        Policy
	IsRateLimited func(error) bool
	Sleep         Sleeper
	Logger        *slog.Logger

	// Usage, when set, describes the latest window usage for log lines.
	Usage func() string
}

// NewGuard returns a Guard with the default policy and a real sleeper.
func NewGuard(isRateLimited func(error) bool, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		Policy:        DefaultPolicy,
		IsRateLimited: isRateLimited,
		Sleep:         SleepContext,
		Logger:        logger.With("component", "ratelimit"),
	}
}

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn under the guard's policy. Only rate limit signals are retried;
// every other error is returned as is on the attempt that produced it.
func Do[T any](ctx context.Context, g *Guard, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := g.Policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if g.IsRateLimited == nil || !g.IsRateLimited(err) {
			return zero, err
		}

		if attempt >= attempts {
			g.log().Error("Rate limit still exceeded after backoff, giving up",
				"op", op, "attempts", attempt, "usage", g.usage())
			return zero, fmt.Errorf("%s: %w: %w", op, ErrLimitExhausted, err)
		}

		g.log().Warn("Rate limit exceeded, backing off",
			"op", op, "attempt", attempt, "backoff", g.Policy.Backoff.String(), "usage", g.usage())

		sleep := g.Sleep
		if sleep == nil {
			sleep = SleepContext
		}
		if err := sleep(ctx, g.Policy.Backoff); err != nil {
			return zero, fmt.Errorf("%s: backoff interrupted: %w", op, err)
		}
	}
}

// Run is Do for calls without a result.
func Run(ctx context.Context, g *Guard, op string, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, g, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (g *Guard) usage() string {
	if g.Usage == nil {
		return ""
	}
	return g.Usage()
}

func (g *Guard) log() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}
