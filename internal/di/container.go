package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/adapters/relay"
	"github.com/hyinfo/phishgate/internal/adapters/reputation"
	"github.com/hyinfo/phishgate/internal/adapters/sandbox"
	"github.com/hyinfo/phishgate/internal/allowlist"
	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/factory"
	"github.com/hyinfo/phishgate/internal/gateway"
	"github.com/hyinfo/phishgate/internal/logging"
	"github.com/hyinfo/phishgate/internal/metrics"
	"github.com/hyinfo/phishgate/internal/pipeline"
	"github.com/hyinfo/phishgate/internal/policy"
	"github.com/hyinfo/phishgate/internal/queue"
	"github.com/hyinfo/phishgate/internal/ratelimit"
	"github.com/hyinfo/phishgate/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register metrics (nil disables collection)
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *metrics.Metrics {
		if !cfg.GetBool("metrics.enabled") {
			return nil
		}
		return metrics.New(logger)
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewQueueFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewVectorFactory); err != nil {
		return nil, err
	}

	// Register record store
	if err := container.Provide(func(f *factory.StoreFactory) (core.RecordStore, error) {
		return f.CreateRecordStore()
	}); err != nil {
		return nil, err
	}

	// Register job queue
	if err := container.Provide(func(f *factory.QueueFactory) (queue.Queue, error) {
		return f.CreateQueue()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(q queue.Queue) core.JobQueue {
		return q
	}); err != nil {
		return nil, err
	}

	// Register AI classifier
	if err := container.Provide(func(f *factory.LLMFactory) (core.AIClassifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register similarity index
	if err := container.Provide(func(f *factory.VectorFactory) (core.SimilarityIndex, error) {
		return f.CreateSimilarityIndex()
	}); err != nil {
		return nil, err
	}

	// Register threat intelligence clients
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.ReputationClient {
		return reputation.NewVirusTotalClient(cfg.GetReputation(), logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.SandboxClient {
		return sandbox.NewThreatBookClient(cfg.GetSandbox(), logger)
	}); err != nil {
		return nil, err
	}

	// Register outbound relay and alert notifier
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.Relay {
		return relay.NewSMTPRelay(cfg.GetRelay(), logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(r core.Relay, cfg *config.Config, logger *zap.Logger) core.Notifier {
		return relay.NewAlertNotifier(r, cfg.GetRelay(), logger)
	}); err != nil {
		return nil, err
	}

	// Register policy provider
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.PolicyProvider {
		return policy.NewFileProvider(cfg.GetString("policy.path"), logger)
	}); err != nil {
		return nil, err
	}

	// Register rate limiter and recipient allow-list
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *ratelimit.Limiter {
		gw := cfg.GetGateway()
		return ratelimit.NewLimiter(gw.RateLimitPerMinute, gw.BlockDuration, logger)
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *allowlist.Checker {
		return allowlist.NewChecker(cfg.GetGateway().AllowedDomains, logger)
	}); err != nil {
		return nil, err
	}

	// Register detection engine
	if err := container.Provide(func(
		store core.RecordStore,
		rep core.ReputationClient,
		sb core.SandboxClient,
		classifier core.AIClassifier,
		index core.SimilarityIndex,
		r core.Relay,
		notifier core.Notifier,
		policies core.PolicyProvider,
		m *metrics.Metrics,
		logger *zap.Logger,
		cfg *config.Config,
	) *pipeline.Engine {
		return pipeline.NewEngine(store, rep, sb, classifier, index, r, notifier, policies, m, logger,
			pipeline.EngineConfig{
				ReputationTimeout: cfg.GetReputation().Timeout,
				SandboxTimeout:    cfg.GetSandbox().Timeout,
				AITimeout:         cfg.GetLLM().Timeout,
				TrustedASOwners:   cfg.GetReputation().TrustedASOwners,
				TopK:              cfg.GetVector().TopK,
				FallbackSender:    cfg.GetRelay().FallbackSender,
				SuspiciousTag:     cfg.GetString("policy.suspicious_tag"),
				MaliciousTag:      cfg.GetString("policy.malicious_tag"),
			})
	}); err != nil {
		return nil, err
	}

	// Register ingestion gateway
	if err := container.Provide(func(
		store core.RecordStore,
		q core.JobQueue,
		limiter *ratelimit.Limiter,
		allow *allowlist.Checker,
		m *metrics.Metrics,
		logger *zap.Logger,
		cfg *config.Config,
	) *gateway.Gateway {
		return gateway.New(store, q, limiter, allow, m, logger, cfg.GetGateway())
	}); err != nil {
		return nil, err
	}

	return container, nil
}
