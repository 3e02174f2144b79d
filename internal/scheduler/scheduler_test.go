package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/recognition"
)

type countingReloader struct {
	calls atomic.Int64
	err   error
}

func (c *countingReloader) Reload(ctx context.Context) (recognition.ReloadStats, error) {
	c.calls.Add(1)
	return recognition.ReloadStats{}, c.err
}

func TestNew_Disabled(t *testing.T) {
	s, err := New(&countingReloader{}, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != nil {
		t.Error("expected nil scheduler for zero interval")
	}
}

func TestScheduler_RunsPeriodically(t *testing.T) {
	r := &countingReloader{}
	s, err := New(r, 50*time.Millisecond, time.UTC)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for r.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := r.calls.Load(); n < 2 {
		t.Errorf("expected at least 2 reloads, got %d", n)
	}
}

func TestScheduler_CountsFailures(t *testing.T) {
	r := &countingReloader{err: errors.New("db down")}
	s, err := New(r, time.Hour, time.UTC)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.run()
	s.run()
	total, failed := s.Runs()
	if total != 2 || failed != 2 {
		t.Errorf("expected 2/2, got %d/%d", total, failed)
	}
}
