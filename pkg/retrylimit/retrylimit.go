// Package retrylimit provides adaptive rate limiting and retry with
// exponential backoff for the provider HTTP clients. The limiter speeds up
// while requests succeed and backs off when the remote pushes back.
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// StatusError carries an HTTP status code so the retry loop can tell rate
// limiting (429) and server errors (5xx) from permanent failures.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Code, e.Msg)
}

// Limiter adjusts its rate based on request outcomes. Safe for concurrent use.
type Limiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	min, max  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewLimiter creates a Limiter starting at initial requests per second,
// bounded by [min, max].
func NewLimiter(initial, min, max rate.Limit) *Limiter {
	if initial < min {
		initial = min
	}
	burst := int(initial)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter:  rate.NewLimiter(initial, burst),
		min:      min,
		max:      max,
		stepUp:   1,
		stepDown: 0.5,
	}
}

// Wait blocks until a token is available or ctx ends.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

func (l *Limiter) success() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastError) > 10*time.Second {
		l.adjust(l.limiter.Limit() + l.stepUp)
	}
}

func (l *Limiter) backOff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastError = time.Now()
	l.adjust(rate.Limit(float64(l.limiter.Limit()) * l.stepDown))
}

func (l *Limiter) adjust(newLimit rate.Limit) {
	if newLimit > l.max {
		newLimit = l.max
	}
	if newLimit < l.min {
		newLimit = l.min
	}
	if newLimit != l.limiter.Limit() {
		l.limiter.SetLimit(newLimit)
		burst := int(newLimit)
		if burst < 1 {
			burst = 1
		}
		l.limiter.SetBurst(burst)
	}
}

// Config tunes the retry loop.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2,
	}
}

// Do executes fn with backoff, consulting lim (which may be nil) before
// every attempt. Retries stop on success, context cancellation, exhausted
// attempts, or a non-retryable error.
func Do(ctx context.Context, fn func() error, lim *Limiter, cfg Config) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			if lim != nil {
				lim.success()
			}
			return nil
		}
		lastErr = err

		if !retryable(err) {
			return err
		}
		if lim != nil {
			lim.backOff()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitter(delay)):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
}

// retryable treats 429 and 5xx as transient; other status codes are final.
// Plain transport errors retry.
func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || (se.Code >= 500 && se.Code < 600)
	}
	return true
}

// jitter adds 0-25% to a delay to avoid thundering herds.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(int64(d/4)+1))
}
