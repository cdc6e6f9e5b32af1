package services_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"reelsmith/internal/services"
)

func TestRetryerRetriesServerErrors(t *testing.T) {
	var slept []time.Duration
	retryer := services.Retryer{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Sleeper:     func(d time.Duration) { slept = append(slept, d) },
	}

	calls := 0
	err := retryer.Do(context.Background(), "speech synthesize", func() error {
		calls++
		if calls < 3 {
			return &services.HTTPStatusError{StatusCode: http.StatusInternalServerError, Body: "oops"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(slept) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(slept))
	}
	if slept[1] != 200*time.Millisecond {
		t.Fatalf("expected doubled backoff, got %v", slept[1])
	}
}

func TestRetryerHonorsRetryAfter(t *testing.T) {
	var slept []time.Duration
	retryer := services.Retryer{
		MaxAttempts: 2,
		Sleeper:     func(d time.Duration) { slept = append(slept, d) },
	}

	calls := 0
	_ = retryer.Do(context.Background(), "op", func() error {
		calls++
		return &services.HTTPStatusError{StatusCode: http.StatusTooManyRequests, RetryAfter: 4 * time.Second}
	})
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(slept) != 1 || slept[0] != 4*time.Second {
		t.Fatalf("expected Retry-After delay, got %v", slept)
	}
}

func TestRetryerStopsOnRestricted(t *testing.T) {
	retryer := services.Retryer{MaxAttempts: 5, Sleeper: func(time.Duration) {}}
	calls := 0
	err := retryer.Do(context.Background(), "op", func() error {
		calls++
		return services.Wrap(services.ErrRestricted, "images", "generate", "refused", nil)
	})
	if calls != 1 {
		t.Fatalf("restricted errors must not retry, got %d calls", calls)
	}
	if !errors.Is(err, services.ErrRestricted) {
		t.Fatalf("expected ErrRestricted, got %v", err)
	}
}

func TestRetryerStopsOnClientError(t *testing.T) {
	retryer := services.Retryer{MaxAttempts: 5, Sleeper: func(time.Duration) {}}
	calls := 0
	_ = retryer.Do(context.Background(), "op", func() error {
		calls++
		return &services.HTTPStatusError{StatusCode: http.StatusBadRequest, Body: "bad"}
	})
	if calls != 1 {
		t.Fatalf("4xx errors must not retry, got %d calls", calls)
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	delay, ok := services.ParseRetryAfter("7")
	if !ok || delay != 7*time.Second {
		t.Fatalf("unexpected parse result: %v %v", delay, ok)
	}
	if _, ok := services.ParseRetryAfter(""); ok {
		t.Fatal("empty header should not parse")
	}
}
