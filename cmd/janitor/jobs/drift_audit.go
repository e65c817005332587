package jobs

import (
	"context"
	"log/slog"
	"time"

	"attendly/internal/service"
)

// DriftAuditJob periodically recomputes every event's attendee counter
// from the registration rows and repairs any drift.
type DriftAuditJob struct {
	audit    *service.AuditService
	interval time.Duration
	ticker   *time.Ticker
	done     chan bool
}

func NewDriftAuditJob(audit *service.AuditService, interval time.Duration) *DriftAuditJob {
	return &DriftAuditJob{
		audit:    audit,
		interval: interval,
		done:     make(chan bool),
	}
}

// Start begins the background audit sweep
func (j *DriftAuditJob) Start(ctx context.Context) {
	slog.Info("Starting drift audit job", "interval", j.interval)

	j.ticker = time.NewTicker(j.interval)

	// Run initial audit immediately
	go j.run(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.run(ctx)
			case <-j.done:
				slog.Info("Drift audit job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *DriftAuditJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *DriftAuditJob) run(ctx context.Context) {
	results, err := j.audit.AuditAll(ctx)
	if err != nil {
		slog.Error("Failed to run drift audit", "error", err)
		return
	}

	corrected := 0
	for _, r := range results {
		if r.Corrected {
			corrected++
		}
	}

	slog.Info("Drift audit sweep completed",
		"events", len(results),
		"corrected", corrected)
}
