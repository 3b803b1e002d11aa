package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/adapters/store"
	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/di"
	"github.com/hyinfo/phishgate/internal/mailparse"
	"github.com/hyinfo/phishgate/internal/pipeline"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(scan); err != nil {
		fmt.Printf("Scan error: %v\n", err)
		os.Exit(1)
	}
}

// scan analyzes a single message offline: no relay, no persistence beyond
// the in-memory record, no policy enforcement
func scan(
	flags *di.CLIFlags,
	logger *zap.Logger,
	cfg *config.Config,
	classifier core.AIClassifier,
	reputation core.ReputationClient,
	sandbox core.SandboxClient,
) error {
	defer logger.Sync()

	raw, err := readInput(flags, logger)
	if err != nil {
		return err
	}

	parsed := mailparse.Decode(raw)

	sourceIP := flags.SourceIP
	if sourceIP == "" {
		sourceIP = "127.0.0.1"
	}

	recipient := ""
	if len(parsed.Recipients) > 0 {
		recipient = parsed.Recipients[0]
	}

	rec := &core.DeliveryRecord{
		ID:          uuid.New().String(),
		Sender:      parsed.Sender,
		Recipient:   recipient,
		Subject:     parsed.Subject,
		SendTime:    parsed.SendTime,
		SourceIP:    sourceIP,
		FromDomain:  mailparse.DomainOf(parsed.Sender),
		ContentText: core.PendingBody,
	}

	records := store.NewMemoryStore(logger)
	if _, err := records.CreateStub(context.Background(), rec); err != nil {
		return fmt.Errorf("failed to stage record: %w", err)
	}

	if flags.SkipIntel {
		reputation = silentReputation{}
		sandbox = silentSandbox{}
	}

	engine := pipeline.NewEngine(records, reputation, sandbox, classifier, nil,
		discardRelay{}, discardNotifier{}, openPolicy{}, nil, logger,
		pipeline.EngineConfig{
			ReputationTimeout: cfg.GetReputation().Timeout,
			SandboxTimeout:    cfg.GetSandbox().Timeout,
			AITimeout:         cfg.GetLLM().Timeout,
			TrustedASOwners:   cfg.GetReputation().TrustedASOwners,
			FallbackSender:    "scan@localhost",
		})

	fmt.Printf("\n=== Message Summary ===\n")
	fmt.Printf("From: %s\n", parsed.Sender)
	fmt.Printf("To: %s\n", recipient)
	fmt.Printf("Subject: %s\n", parsed.Subject)
	fmt.Printf("URLs found: %d\n", len(parsed.URLs))
	fmt.Printf("Attachments: %d\n", len(parsed.Attachments))

	fmt.Printf("\n=== Analysis ===\n")
	fmt.Printf("Provider: %s\n", cfg.GetString("llm.provider"))

	startTime := time.Now()
	if err := engine.Run(context.Background(), core.DetectionJob{
		RecordID:   rec.ID,
		RawMessage: raw,
		SourceIP:   sourceIP,
	}); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	duration := time.Since(startTime)

	result, err := records.GetByID(context.Background(), rec.ID)
	if err != nil {
		return fmt.Errorf("failed to read back record: %w", err)
	}

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Final verdict: %s\n", result.FinalDecision)
	printVerdict("URL reputation", result.URLVerdict)
	printVerdict("Source IP reputation", result.IPVerdict)
	printVerdict("Attachment reputation", result.FileVerdict)
	printVerdict("Sandbox", result.SandboxVerdict)
	fmt.Printf("Reason: %s\n", result.AIReason)
	if result.PhishingType != "" {
		fmt.Printf("Phishing type: %s\n", result.PhishingType)
	}
	fmt.Printf("Processing time: %v\n", duration)

	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
	return nil
}

func printVerdict(label string, v core.SourceVerdict) {
	if !v.Known {
		fmt.Printf("%s: not available\n", label)
		return
	}
	fmt.Printf("%s: %s\n", label, v.Level)
}

func readInput(flags *di.CLIFlags, logger *zap.Logger) ([]byte, error) {
	if flags.InputFile != "" {
		logger.Info("Reading message from file", zap.String("file", flags.InputFile))
		return os.ReadFile(flags.InputFile)
	}
	logger.Info("Reading message from stdin")
	return io.ReadAll(os.Stdin)
}

// discardRelay suppresses delivery in scan mode
type discardRelay struct{}

func (discardRelay) Send(ctx context.Context, sender string, recipients []string, raw []byte) error {
	return nil
}

// discardNotifier suppresses alerting in scan mode
type discardNotifier struct{}

func (discardNotifier) SendAlert(ctx context.Context, alert *core.Alert) error {
	return nil
}

// openPolicy never intercepts and never alerts
type openPolicy struct{}

func (openPolicy) Current() (*core.Policy, error) {
	return &core.Policy{Alert: map[core.Verdict]bool{
		core.VerdictSuspicious: false,
		core.VerdictMalicious:  false,
	}}, nil
}

// silentReputation skips external reputation lookups
type silentReputation struct{}

func (silentReputation) Lookup(ctx context.Context, q core.ReputationQuery) (*core.ReputationReport, error) {
	return &core.ReputationReport{
		Domains: map[string]core.DomainReport{},
		IPs:     map[string]core.IPReport{},
		Files:   map[string]core.FileReport{},
	}, nil
}

// silentSandbox skips sandbox submission
type silentSandbox struct{}

func (silentSandbox) Analyze(ctx context.Context, q core.SandboxQuery) (core.SourceVerdict, error) {
	return core.SourceVerdict{}, nil
}
