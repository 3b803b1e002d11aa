package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/di"
	"github.com/hyinfo/phishgate/internal/gateway"
	"github.com/hyinfo/phishgate/internal/metrics"
	"github.com/hyinfo/phishgate/internal/pipeline"
	"github.com/hyinfo/phishgate/internal/queue"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	gw *gateway.Gateway,
	jobs queue.Queue,
	engine *pipeline.Engine,
	store core.RecordStore,
	classifier core.AIClassifier,
	m *metrics.Metrics,
) error {
	defer logger.Sync()

	// Expose metrics before traffic starts flowing
	if m != nil {
		m.Serve(cfg.GetString("metrics.listen_address"))
	}

	// Start the detection workers, then open the SMTP listener
	jobs.Start(engine.Run)
	if err := gw.Start(); err != nil {
		logger.Fatal("Failed to start gateway", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop accepting mail first so in-flight jobs can drain
	if err := gw.Stop(); err != nil {
		logger.Error("Failed to stop gateway", zap.Error(err))
	}
	jobs.Stop()

	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
	if stopper, ok := store.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	if m != nil {
		m.Stop()
	}

	logger.Info("Shutdown complete")
	return nil
}
