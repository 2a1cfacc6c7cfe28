package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewInvalidSchedule(t *testing.T) {
	_, err := New(context.Background(), "every sometimes", func(context.Context) {}, nil)
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestStartRunsImmediately(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "run")

	ran := make(chan string, 1)
	s, err := New(ctx, "@every 1h", func(ctx context.Context) {
		v, _ := ctx.Value(key{}).(string)
		ran <- v
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	s.Start()

	select {
	case got := <-ran:
		if got != "run" {
			t.Fatalf("job got context value %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}

	select {
	case <-s.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestStopWaitsForRunningJob(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var finished atomic.Bool

	s, err := New(context.Background(), "@every 1h", func(context.Context) {
		close(started)
		<-release
		finished.Store(true)
	}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	s.Start()
	<-started

	done := s.Stop()
	select {
	case <-done.Done():
		t.Fatal("stop finished before the job returned")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	if !finished.Load() {
		t.Fatal("job did not finish")
	}
}

func TestSkipIfStillRunning(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32

	s, err := New(context.Background(), "@every 1h", func(context.Context) {
		runs.Add(1)
		<-release
	}, nil)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	s.Start()
	// A tick while the first run is still blocked is skipped.
	for runs.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	s.job.Run()

	close(release)
	<-s.Stop().Done()

	if got := runs.Load(); got != 1 {
		t.Fatalf("expected 1 run, got %d", got)
	}
}

func TestCronLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := cronLogger{logger: zap.New(core).Sugar()}

	l.Info("wake", "now", "later")
	l.Error(errors.New("boom"), "panic", "job", "run")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel || entries[0].Message != "wake" {
		t.Fatalf("unexpected info entry: %+v", entries[0])
	}
	if entries[1].Level != zapcore.ErrorLevel {
		t.Fatalf("unexpected error level: %v", entries[1].Level)
	}
	if got := entries[1].ContextMap()["error"]; got != "boom" {
		t.Fatalf("expected error field, got %v", got)
	}
}
