package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/metrics"
)

// RedisQueue is a durable job queue on a Redis list. Jobs survive worker
// restarts; the attempt counter travels inside the JSON payload so retry
// accounting holds across processes.
type RedisQueue struct {
	client      *redis.Client
	key         string
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

// NewRedisQueue creates a Redis-backed queue and verifies connectivity
func NewRedisQueue(cfg config.QueueConfig, logger *zap.Logger, m *metrics.Metrics) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisQueue{
		client:      client,
		key:         cfg.RedisKey,
		workers:     cfg.Workers,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		logger:      logger,
		metrics:     m,
		stopCh:      make(chan struct{}),
		retries:     newRetryTimers(),
	}, nil
}

// Enqueue pushes a job onto the list
func (q *RedisQueue) Enqueue(ctx context.Context, job core.DetectionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Start launches the worker pool
func (q *RedisQueue) Start(handler core.JobHandler) {
	q.handler = handler
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.logger.Info("Redis job queue started",
		zap.Int("workers", q.workers),
		zap.String("key", q.key))
}

// Stop drains the workers, cancels pending retries and closes the
// connection. Retry cancellation precedes the client close so no requeue
// fires on a closed client.
func (q *RedisQueue) Stop() {
	close(q.stopCh)
	q.retries.stop()
	q.wg.Wait()
	if err := q.client.Close(); err != nil {
		q.logger.Error("Failed to close redis client", zap.Error(err))
	}
}

func (q *RedisQueue) worker() {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		res, err := q.client.BRPop(ctx, 2*time.Second, q.key).Result()
		if err != nil {
			if err != redis.Nil {
				q.logger.Error("Failed to pop job", zap.Error(err))
				time.Sleep(time.Second)
			}
			continue
		}
		if len(res) != 2 {
			continue
		}

		var job core.DetectionJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.logger.Error("Failed to decode job payload", zap.Error(err))
			continue
		}
		q.process(ctx, job)
	}
}

func (q *RedisQueue) process(ctx context.Context, job core.DetectionJob) {
	err := execute(ctx, q.handler, job)
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
		if err := q.Enqueue(context.Background(), retry); err != nil {
			logExhausted(q.logger, retry, err)
		}
	})
	if !scheduled {
		q.logger.Warn("Queue stopped before retry, dropping job",
			zap.String("record_id", retry.RecordID))
	}
}
