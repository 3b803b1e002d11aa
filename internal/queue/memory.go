package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/metrics"
)

// ErrQueueFull is returned when an enqueue would block
var ErrQueueFull = errors.New("job queue is full")

// MemoryQueue is an in-process job queue backed by a buffered channel and a
// fixed worker pool. Enqueue never blocks the gateway; failed jobs are
// requeued after a fixed delay up to the attempt limit.
type MemoryQueue struct {
	jobs        chan core.DetectionJob
	workers     int
	maxAttempts int
	retryDelay  time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics

	handler core.JobHandler
	stopCh  chan struct{}
	retries *retryTimers
	wg      sync.WaitGroup
}

// NewMemoryQueue creates a new in-process queue
func NewMemoryQueue(cfg config.QueueConfig, logger *zap.Logger, m *metrics.Metrics) *MemoryQueue {
	return &MemoryQueue{
		jobs:        make(chan core.DetectionJob, cfg.BufferSize),
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      logger,
		metrics:     m,
		stopCh:      make(chan struct{}),
		retries:     newRetryTimers(),
	}
}

// Enqueue submits a job without blocking
func (q *MemoryQueue) Enqueue(_ context.Context, job core.DetectionJob) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker pool
func (q *MemoryQueue) Start(handler core.JobHandler) {
	q.handler = handler
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("Memory job queue started", zap.Int("workers", q.workers))
}

// Stop shuts the worker pool down and cancels pending retries
func (q *MemoryQueue) Stop() {
	close(q.stopCh)
	q.retries.stop()
	q.wg.Wait()
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stopCh:
			return
		case job := <-q.jobs:
			q.process(job)
		}
	}
}

func (q *MemoryQueue) process(job core.DetectionJob) {
	err := execute(context.Background(), q.handler, job)
	if err == nil {
		return
	}

	if job.Attempt+1 >= q.maxAttempts {
		logExhausted(q.logger, job, err)
		return
	}

	q.metrics.JobRetried()
	q.logger.Warn("Detection job failed, requeueing",
		zap.String("record_id", job.RecordID),
		zap.Int("attempt", job.Attempt+1),
		zap.Error(err))

	retry := job
	retry.Attempt++
	scheduled := q.retries.schedule(q.retryDelay, func() {
		select {
		case q.jobs <- retry:
		default:
			logExhausted(q.logger, retry, ErrQueueFull)
		}
	})
	if !scheduled {
		q.logger.Warn("Queue stopped before retry, dropping job",
			zap.String("record_id", retry.RecordID))
	}
}
