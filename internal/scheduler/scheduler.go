// Package scheduler runs periodic recognition index reloads so that writes
// made by other processes sharing the database become visible.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/recognition"
	"github.com/go-co-op/gocron"
)

// Reloader rebuilds the recognition index.
type Reloader interface {
	Reload(ctx context.Context) (recognition.ReloadStats, error)
}

// Scheduler triggers a reload every interval.
type Scheduler struct {
	cron     *gocron.Scheduler
	reloader Reloader
	interval time.Duration
	runs     atomic.Int64
	failures atomic.Int64
}

// New creates a reload scheduler. An interval <= 0 returns nil: periodic
// reload is disabled and callers may skip Start and Stop.
func New(reloader Reloader, interval time.Duration, loc *time.Location) (*Scheduler, error) {
	if interval <= 0 {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{
		cron:     gocron.NewScheduler(loc),
		reloader: reloader,
		interval: interval,
	}
	// The server performs its own reload on startup, so the first run waits a full interval.
	if _, err := s.cron.Every(interval).WaitForSchedule().SingletonMode().Do(s.run); err != nil {
		return nil, fmt.Errorf("schedule reload: %w", err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	s.runs.Add(1)
	if _, err := s.reloader.Reload(ctx); err != nil {
		s.failures.Add(1)
		log.Printf("Scheduled reload failed: %v", err)
	}
}

// Start begins running reloads in the background.
func (s *Scheduler) Start() {
	log.Printf("Periodic index reload every %s", s.interval)
	s.cron.StartAsync()
}

// Stop halts the scheduler. A reload already running completes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Runs returns how many reloads were attempted and how many failed.
func (s *Scheduler) Runs() (total, failed int64) {
	return s.runs.Load(), s.failures.Load()
}
