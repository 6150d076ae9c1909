package retrylimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		return nil
	}, nil, fastConfig())
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &StatusError{Code: http.StatusServiceUnavailable, Msg: "flaky"}
		}
		return nil
	}, nil, fastConfig())
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoStopsOnPermanentStatus(t *testing.T) {
	calls := 0
	permanent := &StatusError{Code: http.StatusUnauthorized, Msg: "bad token"}
	err := Do(context.Background(), func() error {
		calls++
		return permanent
	}, nil, fastConfig())
	if !errors.Is(err, permanent) {
		t.Fatalf("got %v, want the permanent error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on 401)", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	transient := &StatusError{Code: http.StatusTooManyRequests, Msg: "slow down"}
	err := Do(context.Background(), func() error {
		calls++
		return transient
	}, nil, fastConfig())
	if err == nil {
		t.Fatal("want error after exhausted attempts")
	}
	if !errors.Is(err, transient) {
		t.Errorf("final error %v does not wrap the last attempt's error", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("transient")
	}, nil, fastConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestLimiterBacksOffAndRecovers(t *testing.T) {
	l := NewLimiter(10, 1, 20)

	start := l.limiter.Limit()
	l.backOff()
	if got := l.limiter.Limit(); got >= start {
		t.Errorf("limit after backoff = %v, want below %v", got, start)
	}
	l.backOff()
	l.backOff()
	l.backOff()
	l.backOff()
	if got := l.limiter.Limit(); got < 1 {
		t.Errorf("limit dropped below the floor: %v", got)
	}

	// Recent errors suppress speedup.
	before := l.limiter.Limit()
	l.success()
	if got := l.limiter.Limit(); got != before {
		t.Errorf("limit rose to %v right after an error, want unchanged", got)
	}

	// After a quiet period, successes raise the limit again.
	l.lastError = time.Now().Add(-time.Minute)
	l.success()
	if got := l.limiter.Limit(); got <= before {
		t.Errorf("limit = %v after quiet success, want above %v", got, before)
	}
}

func TestLimiterClampsToMax(t *testing.T) {
	l := NewLimiter(20, 1, 20)
	l.lastError = time.Now().Add(-time.Minute)
	l.success()
	if got := l.limiter.Limit(); got > 20 {
		t.Errorf("limit = %v, want capped at 20", got)
	}
}

func TestJitterStaysBounded(t *testing.T) {
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := jitter(base)
		if d < base || d > base+base/4 {
			t.Fatalf("jitter(%v) = %v, out of [base, base+25%%]", base, d)
		}
	}
}
