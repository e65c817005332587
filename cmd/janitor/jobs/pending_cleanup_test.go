package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDeleter struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
}

func (d *recordingDeleter) DeleteStalePending(ctx context.Context, olderThan time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cutoffs = append(d.cutoffs, olderThan)
	return d.deleted, nil
}

func (d *recordingDeleter) calls() []time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Time(nil), d.cutoffs...)
}

func TestPendingCleanup_SweepUsesTTLCutoff(t *testing.T) {
	deleter := &recordingDeleter{deleted: 3}
	job := NewPendingCleanupJob(deleter, time.Hour)

	before := time.Now().Add(-time.Hour)
	job.sweep(context.Background())
	after := time.Now().Add(-time.Hour)

	calls := deleter.calls()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].Before(before))
	assert.False(t, calls[0].After(after))
}

func TestPendingCleanup_StartRunsImmediatelyAndStops(t *testing.T) {
	deleter := &recordingDeleter{}
	job := NewPendingCleanupJob(deleter, time.Hour)

	job.Start(context.Background())
	defer job.Stop()

	require.Eventually(t, func() bool {
		return len(deleter.calls()) >= 1
	}, time.Second, 10*time.Millisecond)
}
