package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	originalSleep := sleep
	var slept time.Duration
	sleep = func(d time.Duration) { slept = d }
	defer func() { sleep = originalSleep }()

	if err := WaitFor(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slept != 3*time.Second {
		t.Fatalf("expected to sleep 3s, slept %v", slept)
	}
}

func TestWaitForCancelled(t *testing.T) {
	originalSleep := sleep
	release := make(chan struct{})
	sleep = func(time.Duration) { <-release }
	defer func() {
		close(release)
		sleep = originalSleep
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWaitForNonPositive(t *testing.T) {
	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attempt int
		base    time.Duration
		nominal time.Duration
	}{
		{attempt: 1, base: time.Second, nominal: time.Second},
		{attempt: 2, base: time.Second, nominal: 2 * time.Second},
		{attempt: 4, base: 500 * time.Millisecond, nominal: 4 * time.Second},
	}

	for _, tt := range tests {
		got := Backoff(tt.attempt, tt.base)
		low := time.Duration(float64(tt.nominal) * 0.7)
		high := time.Duration(float64(tt.nominal) * 1.3)
		if got < low || got > high {
			t.Fatalf("attempt %d: delay %v outside [%v, %v]", tt.attempt, got, low, high)
		}
	}

	if Backoff(3, 0) != 0 {
		t.Fatal("expected zero delay for zero base")
	}
}
