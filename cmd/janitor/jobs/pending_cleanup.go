package jobs

import (
	"context"
	"log/slog"
	"time"
)

type stalePendingDeleter interface {
	DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error)
}

// PendingCleanupJob reclaims paid registrations whose checkout was never
// completed. A pending row holds its seat and the per-event uniqueness
// slot, so deleting it frees both for other attendees.
type PendingCleanupJob struct {
	regRepo stalePendingDeleter
	ttl     time.Duration
	ticker  *time.Ticker
	done    chan bool
}

func NewPendingCleanupJob(regRepo stalePendingDeleter, ttl time.Duration) *PendingCleanupJob {
	return &PendingCleanupJob{
		regRepo: regRepo,
		ttl:     ttl,
		done:    make(chan bool),
	}
}

// Start begins the background job that sweeps stale pending rows every minute
func (j *PendingCleanupJob) Start(ctx context.Context) {
	slog.Info("Starting pending cleanup job", "check_interval", "1m", "ttl", j.ttl)

	j.ticker = time.NewTicker(time.Minute)

	// Run initial sweep immediately
	go j.sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.sweep(ctx)
			case <-j.done:
				slog.Info("Pending cleanup job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *PendingCleanupJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *PendingCleanupJob) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-j.ttl)

	deleted, err := j.regRepo.DeleteStalePending(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to delete stale pending registrations", "error", err)
		return
	}

	if deleted == 0 {
		slog.Debug("No stale pending registrations found")
		return
	}

	slog.Info("Deleted stale pending registrations",
		"count", deleted,
		"older_than", cutoff)
}
