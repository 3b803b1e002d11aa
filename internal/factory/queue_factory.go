package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/metrics"
	"github.com/hyinfo/phishgate/internal/queue"
)

// QueueFactory creates detection job queues based on configuration
type QueueFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewQueueFactory creates a new queue factory
func NewQueueFactory(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *QueueFactory {
	return &QueueFactory{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// CreateQueue creates a job queue based on the configuration
func (f *QueueFactory) CreateQueue() (queue.Queue, error) {
	queueConfig := f.cfg.GetQueue()

	switch queueConfig.Type {
	case "memory":
		return queue.NewMemoryQueue(queueConfig, f.logger, f.metrics), nil
	case "redis":
		return queue.NewRedisQueue(queueConfig, f.logger, f.metrics)
	default:
		return nil, fmt.Errorf("unsupported queue type: %s", queueConfig.Type)
	}
}
