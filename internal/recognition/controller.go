package recognition

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/database"
)

// EnrollmentLoader reads the full enrollment from persistence.
type EnrollmentLoader interface {
	LoadEnrollment(ctx context.Context) ([]database.EnrolledStudent, error)
}

// ReloadStats describes a published snapshot.
type ReloadStats struct {
	Generation uint64
	Students   int
	Embeddings int
	Skipped    int
	Duration   time.Duration
}

// Controller rebuilds the index from persistence. Enrollment and deletion do
// not touch the index; callers invoke Reload after a successful write.
type Controller struct {
	mu      sync.Mutex
	loader  EnrollmentLoader
	store   *Store
	timeout time.Duration
}

// NewController creates a reload controller. timeout bounds each store read; 0 disables it.
func NewController(loader EnrollmentLoader, store *Store, timeout time.Duration) *Controller {
	return &Controller{loader: loader, store: store, timeout: timeout}
}

// Reload reads all enrolled embeddings and swaps them in. Reloads are
// serialised so generations publish in order; readers are never blocked.
// On error the previous snapshot stays published.
func (c *Controller) Reload(ctx context.Context) (ReloadStats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	students, err := c.loader.LoadEnrollment(ctx)
	if err != nil {
		return ReloadStats{}, fmt.Errorf("load enrollment: %w", err)
	}

	snap := c.store.Load(students)
	stats := ReloadStats{
		Generation: snap.Generation,
		Students:   snap.Students,
		Embeddings: len(snap.Embeddings),
		Skipped:    snap.Skipped,
		Duration:   time.Since(start),
	}

	log.Printf("Recognition index generation %d: %d students, %d embeddings (%d skipped) in %s",
		stats.Generation, stats.Students, stats.Embeddings, stats.Skipped, stats.Duration.Round(time.Millisecond))
	return stats, nil
}

// Store returns the store the controller publishes to.
func (c *Controller) Store() *Store {
	return c.store
}
