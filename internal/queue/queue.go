package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/core"
)

// Queue is a job queue together with its worker pool lifecycle
type Queue interface {
	core.JobQueue

	// Start launches the worker pool dispatching jobs to handler
	Start(handler core.JobHandler)

	// Stop drains the workers and releases resources
	Stop()
}

// execute runs the handler for one job, converting panics into errors so the
// retry policy sees every failure mode
func execute(ctx context.Context, handler core.JobHandler, job core.DetectionJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

// retryTimers tracks scheduled requeue timers so shutdown can cancel them.
// The callback runs under the tracker's lock, so stop never races a firing
// retry into a stopped queue.
type retryTimers struct {
	mu      sync.Mutex
	pending map[*time.Timer]struct{}
	stopped bool
}

func newRetryTimers() *retryTimers {
	return &retryTimers{pending: make(map[*time.Timer]struct{})}
}

// schedule runs fn after delay unless stop intervenes first. Returns false
// when the tracker is already stopped.
func (r *retryTimers) schedule(delay time.Duration, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.stopped {
			return
		}
		delete(r.pending, t)
		fn()
	})
	r.pending[t] = struct{}{}
	return true
}

// stop cancels every pending timer and rejects future schedules
func (r *retryTimers) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for t := range r.pending {
		t.Stop()
	}
	r.pending = nil
}

func logExhausted(logger *zap.Logger, job core.DetectionJob, err error) {
	// Fail-open: retries are spent, the job resolves to a neutral result
	logger.Error("Detection job retries exhausted, yielding neutral result",
		zap.String("record_id", job.RecordID),
		zap.Int("attempts", job.Attempt+1),
		zap.Error(err))
}
