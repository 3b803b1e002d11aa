package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
)

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{
		Type:        "memory",
		Workers:     2,
		BufferSize:  16,
		MaxAttempts: 3,
		RetryDelay:  10 * time.Millisecond,
	}
}

func TestMemoryQueueDelivery(t *testing.T) {
	q := NewMemoryQueue(testQueueConfig(), zap.NewNop(), nil)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	q.Start(func(ctx context.Context, job core.DetectionJob) error {
		mu.Lock()
		got = append(got, job.RecordID)
		mu.Unlock()
		if len(got) == 3 {
			close(done)
		}
		return nil
	})
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), core.DetectionJob{RecordID: id}))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, got, 3)
}

func TestMemoryQueueRetryThenSucceed(t *testing.T) {
	q := NewMemoryQueue(testQueueConfig(), zap.NewNop(), nil)

	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{})

	q.Start(func(ctx context.Context, job core.DetectionJob) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts < 2 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	})
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), core.DetectionJob{RecordID: "retry-me"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}

func TestMemoryQueueExhaustsAttempts(t *testing.T) {
	q := NewMemoryQueue(testQueueConfig(), zap.NewNop(), nil)

	var mu sync.Mutex
	attempts := 0

	q.Start(func(ctx context.Context, job core.DetectionJob) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		return errors.New("permanent failure")
	})
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), core.DetectionJob{RecordID: "doomed"}))

	// Wait past the retry horizon and confirm the attempt cap held.
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts)
}

func TestMemoryQueuePanicRecovered(t *testing.T) {
	q := NewMemoryQueue(testQueueConfig(), zap.NewNop(), nil)

	var mu sync.Mutex
	attempts := 0

	q.Start(func(ctx context.Context, job core.DetectionJob) error {
		mu.Lock()
		attempts++
		mu.Unlock()
		panic("handler blew up")
	})
	defer q.Stop()

	require.NoError(t, q.Enqueue(context.Background(), core.DetectionJob{RecordID: "panicky"}))

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, attempts, "panics should count as failures and retry")
}

func TestMemoryQueueStopCancelsPendingRetry(t *testing.T) {
	cfg := testQueueConfig()
	cfg.RetryDelay = 50 * time.Millisecond
	q := NewMemoryQueue(cfg, zap.NewNop(), nil)

	var mu sync.Mutex
	attempts := 0
	first := make(chan struct{})

	q.Start(func(ctx context.Context, job core.DetectionJob) error {
		mu.Lock()
		attempts++
		if attempts == 1 {
			close(first)
		}
		mu.Unlock()
		return errors.New("transient failure")
	})

	require.NoError(t, q.Enqueue(context.Background(), core.DetectionJob{RecordID: "orphan"}))

	select {
	case <-first:
	case <-time.After(2 * time.Second):
		t.Fatal("job was never attempted")
	}

	// Stop while the retry timer is still pending: the retry must be
	// cancelled, not fired into a stopped queue.
	q.Stop()
	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, attempts)
}

func TestMemoryQueueFullRejects(t *testing.T) {
	cfg := testQueueConfig()
	cfg.BufferSize = 1
	q := NewMemoryQueue(cfg, zap.NewNop(), nil)
	// Never started: nothing drains the buffer.

	require.NoError(t, q.Enqueue(context.Background(), core.DetectionJob{RecordID: "fits"}))
	err := q.Enqueue(context.Background(), core.DetectionJob{RecordID: "overflow"})
	assert.ErrorIs(t, err, ErrQueueFull)
}
