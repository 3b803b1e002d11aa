package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/mailparse"
	"github.com/hyinfo/phishgate/internal/metrics"
)

// EngineConfig carries the tunables for a detection run
type EngineConfig struct {
	ReputationTimeout time.Duration
	SandboxTimeout    time.Duration
	AITimeout         time.Duration
	TrustedASOwners   []string
	TopK              int
	FallbackSender    string
	SuspiciousTag     string
	MaliciousTag      string
}

// Engine runs the detection pipeline for one delivery record: enrich the
// stub with parsed content, gather threat intelligence, classify, then act
// on the policy. Every stage fails open; a job error is returned only when
// the record itself cannot be loaded, so queue retries are reserved for
// that and for worker panics.
type Engine struct {
	store      core.RecordStore
	reputation core.ReputationClient
	sandbox    core.SandboxClient
	classifier core.AIClassifier
	index      core.SimilarityIndex
	relay      core.Relay
	notifier   core.Notifier
	policies   core.PolicyProvider
	metrics    *metrics.Metrics
	logger     *zap.Logger
	cfg        EngineConfig
}

// NewEngine creates a new detection engine. The similarity index may be nil
// when the feature is disabled.
func NewEngine(
	store core.RecordStore,
	reputation core.ReputationClient,
	sandbox core.SandboxClient,
	classifier core.AIClassifier,
	index core.SimilarityIndex,
	relay core.Relay,
	notifier core.Notifier,
	policies core.PolicyProvider,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg EngineConfig,
) *Engine {
	return &Engine{
		store:      store,
		reputation: reputation,
		sandbox:    sandbox,
		classifier: classifier,
		index:      index,
		relay:      relay,
		notifier:   notifier,
		policies:   policies,
		metrics:    m,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run processes a single detection job end to end
func (e *Engine) Run(ctx context.Context, job core.DetectionJob) error {
	rec, err := e.store.GetByID(ctx, job.RecordID)
	if err != nil {
		return fmt.Errorf("failed to load record %s: %w", job.RecordID, err)
	}

	parsed := mailparse.Decode(job.RawMessage)
	e.persistContent(ctx, rec, parsed)

	e.enrichReputation(ctx, rec)
	e.enrichSandbox(ctx, rec)
	similar := e.findSimilar(ctx, rec)

	analysis := e.classify(ctx, rec, similar)

	rec.AIVerdict = core.SourceVerdict{Level: analysis.Result, Known: true}
	rec.AIReason = analysis.Reason
	rec.PhishingType = analysis.PhishingType
	rec.FinalDecision = analysis.Result
	e.updateFields(ctx, rec.ID, map[string]interface{}{
		"ai_result":      int(analysis.Result),
		"ai_reason":      analysis.Reason,
		"phishing_type":  analysis.PhishingType,
		"final_decision": int(analysis.Result),
	})
	e.metrics.FinalVerdict(analysis.Result.String())

	policy, err := e.policies.Current()
	if err != nil {
		e.logger.Warn("Failed to load policy, using defaults",
			zap.String("record_id", rec.ID), zap.Error(err))
	}
	if policy == nil {
		policy = &core.Policy{}
	}

	e.respond(ctx, rec, parsed, job.RawMessage, policy)
	e.remember(ctx, rec)
	return nil
}

// persistContent replaces the stub body with the parsed message content
func (e *Engine) persistContent(ctx context.Context, rec *core.DeliveryRecord, parsed *mailparse.ParsedMail) {
	rec.ContentText = parsed.Body
	rec.URLs = parsed.URLs
	rec.Attachments = parsed.Attachments

	urls, _ := json.Marshal(parsed.URLs)
	atts, _ := json.Marshal(parsed.Attachments)
	e.updateFields(ctx, rec.ID, map[string]interface{}{
		"content_text":    parsed.Body,
		"url_list":        string(urls),
		"attachment_list": string(atts),
	})
}

// enrichReputation scores the sender domain, URL domains, source IP and
// attachment hashes against the reputation source
func (e *Engine) enrichReputation(ctx context.Context, rec *core.DeliveryRecord) {
	query := core.ReputationQuery{
		Domains: reputationDomains(rec),
		IPs:     []string{rec.SourceIP},
		Hashes:  attachmentHashes(rec),
	}

	rctx, cancel := context.WithTimeout(ctx, e.cfg.ReputationTimeout)
	defer cancel()

	report, err := e.reputation.Lookup(rctx, query)
	if err != nil {
		e.logger.Warn("Reputation lookup failed, continuing without it",
			zap.String("record_id", rec.ID), zap.Error(err))
		return
	}

	now := time.Now()
	fields := make(map[string]interface{})

	domainVerdicts := make([]core.SourceVerdict, 0, len(report.Domains))
	for _, rep := range report.Domains {
		domainVerdicts = append(domainVerdicts, scoreDomain(rep, now))
	}
	if v := worstVerdict(domainVerdicts...); v.Known {
		rec.URLVerdict = v
		fields["vt_url_result"] = int(v.Level)
	}

	if rep, ok := report.IPs[rec.SourceIP]; ok {
		if v := scoreIP(rep, e.cfg.TrustedASOwners); v.Known {
			rec.IPVerdict = v
			fields["vt_ip_result"] = int(v.Level)
		}
	}

	fileVerdicts := make([]core.SourceVerdict, 0, len(report.Files))
	for _, rep := range report.Files {
		fileVerdicts = append(fileVerdicts, scoreFile(rep))
	}
	if v := worstVerdict(fileVerdicts...); v.Known {
		rec.FileVerdict = v
		fields["vt_file_result"] = int(v.Level)
	}

	if len(fields) > 0 {
		e.updateFields(ctx, rec.ID, fields)
	}
}

// enrichSandbox submits the message indicators for dynamic analysis
func (e *Engine) enrichSandbox(ctx context.Context, rec *core.DeliveryRecord) {
	query := core.SandboxQuery{
		FileHashes: attachmentHashes(rec),
		Domains:    reputationDomains(rec),
		IPs:        []string{rec.SourceIP},
	}

	sctx, cancel := context.WithTimeout(ctx, e.cfg.SandboxTimeout)
	defer cancel()

	verdict, err := e.sandbox.Analyze(sctx, query)
	if err != nil {
		e.logger.Warn("Sandbox analysis failed, continuing without it",
			zap.String("record_id", rec.ID), zap.Error(err))
		return
	}
	if !verdict.Known {
		return
	}

	rec.SandboxVerdict = verdict
	e.updateFields(ctx, rec.ID, map[string]interface{}{
		"sandbox_result": int(verdict.Level),
	})
}

func (e *Engine) findSimilar(ctx context.Context, rec *core.DeliveryRecord) []core.SimilarRecord {
	if e.index == nil {
		return nil
	}
	similar, err := e.index.Query(ctx, rec, e.cfg.TopK)
	if err != nil {
		e.logger.Warn("Similarity lookup failed, continuing without it",
			zap.String("record_id", rec.ID), zap.Error(err))
		return nil
	}
	return similar
}

// classify asks the model for the final verdict. The stage fails open like
// the enrichment stages: transport and parse failures resolve to benign in
// the same run, never behind a queue retry.
func (e *Engine) classify(ctx context.Context, rec *core.DeliveryRecord, similar []core.SimilarRecord) *core.AIAnalysis {
	actx, cancel := context.WithTimeout(ctx, e.cfg.AITimeout)
	defer cancel()

	analysis, err := e.classifier.Classify(actx, &core.ClassificationInput{
		Record:  rec,
		Similar: similar,
	})
	if err != nil {
		e.logger.Error("Classification failed, defaulting to benign",
			zap.String("record_id", rec.ID), zap.Error(err))
		return &core.AIAnalysis{
			Result: core.VerdictBenign,
			Reason: "analysis unavailable",
		}
	}
	return analysis
}

// respond enforces the policy: block, forward (tagging risky subjects) and
// alert as configured
func (e *Engine) respond(ctx context.Context, rec *core.DeliveryRecord, parsed *mailparse.ParsedMail, raw []byte, policy *core.Policy) {
	level := rec.FinalDecision

	if level > core.VerdictBenign && policy.InterceptEnabled(level) {
		rec.Blocked = true
		e.updateFields(ctx, rec.ID, map[string]interface{}{"is_block": true})
		e.metrics.MessageBlocked()
		e.logger.Info("Message blocked by policy",
			zap.String("record_id", rec.ID),
			zap.String("verdict", level.String()))
	} else {
		e.forward(ctx, rec, parsed, raw, level)
	}

	e.alert(ctx, rec, policy, level)
}

func (e *Engine) forward(ctx context.Context, rec *core.DeliveryRecord, parsed *mailparse.ParsedMail, raw []byte, level core.Verdict) {
	out := raw
	switch level {
	case core.VerdictSuspicious:
		out = e.tagSubject(raw, parsed.Subject, e.cfg.SuspiciousTag)
	case core.VerdictMalicious:
		out = e.tagSubject(raw, parsed.Subject, e.cfg.MaliciousTag)
	}

	sender := rec.Sender
	if sender == "" {
		sender = e.cfg.FallbackSender
	}

	// The relay envelope is recomputed from the full header set so Cc and
	// Bcc parties still receive the message
	recipients := parsed.RecipientHeaders()
	if len(recipients) == 0 {
		recipients = parsed.AlternateRecipients()
	}
	if len(recipients) == 0 {
		// Terminal: retrying cannot produce recipients
		e.logger.Error("No recipients resolvable, message not forwarded",
			zap.String("record_id", rec.ID))
		return
	}

	if err := e.relay.Send(ctx, sender, recipients, out); err != nil {
		// Terminal: a requeue could re-deliver to recipients the relay
		// already accepted
		e.logger.Error("Failed to forward message, delivery abandoned",
			zap.String("record_id", rec.ID),
			zap.Strings("recipients", recipients),
			zap.Error(err))
		return
	}

	e.metrics.MessageForwarded()
	e.logger.Info("Message forwarded",
		zap.String("record_id", rec.ID),
		zap.Strings("recipients", recipients),
		zap.String("verdict", level.String()))
}

// tagSubject prefixes the subject with the risk tag unless a previous hop
// already tagged it at either level
func (e *Engine) tagSubject(raw []byte, subject, tag string) []byte {
	if tag == "" {
		return raw
	}
	for _, existing := range []string{e.cfg.SuspiciousTag, e.cfg.MaliciousTag} {
		if existing != "" && strings.HasPrefix(subject, existing) {
			return raw
		}
	}
	return mailparse.RewriteSubject(raw, tag+subject)
}

func (e *Engine) alert(ctx context.Context, rec *core.DeliveryRecord, policy *core.Policy, level core.Verdict) {
	if level == core.VerdictBenign || !policy.AlertEnabled(level) || policy.NotificationEmail == "" {
		return
	}

	err := e.notifier.SendAlert(ctx, &core.Alert{
		RecordID:  rec.ID,
		RiskLevel: level,
		Sender:    rec.Sender,
		Subject:   rec.Subject,
		Reason:    rec.AIReason,
		Target:    policy.NotificationEmail,
	})
	if err != nil {
		e.logger.Warn("Failed to send alert",
			zap.String("record_id", rec.ID), zap.Error(err))
		return
	}

	rec.Alerted = true
	e.updateFields(ctx, rec.ID, map[string]interface{}{"is_alert": true})
	e.metrics.AlertSent()
}

// remember records the final labeled verdict for future similarity lookups
func (e *Engine) remember(ctx context.Context, rec *core.DeliveryRecord) {
	if e.index == nil {
		return
	}
	if err := e.index.Upsert(ctx, rec); err != nil {
		e.logger.Warn("Failed to index record",
			zap.String("record_id", rec.ID), zap.Error(err))
	}
}

// updateFields persists a partial update and logs rather than fails when
// the store is unavailable. Detection continues on the in-memory record.
func (e *Engine) updateFields(ctx context.Context, id string, fields map[string]interface{}) {
	if err := e.store.UpdateFields(ctx, id, fields); err != nil {
		e.logger.Warn("Failed to persist record fields",
			zap.String("record_id", id), zap.Error(err))
	}
}

// Lookup scope caps keep enrichment cost bounded on link- or
// attachment-heavy messages
const (
	maxLookupURLs   = 5
	maxLookupHashes = 5
)

// reputationDomains collects the sender domain and the hosts of the first
// few URLs seen in the message body
func reputationDomains(rec *core.DeliveryRecord) []string {
	seen := make(map[string]bool)
	domains := make([]string, 0, len(rec.URLs)+1)

	add := func(d string) {
		if d == "" || seen[d] {
			return
		}
		seen[d] = true
		domains = append(domains, d)
	}

	add(rec.FromDomain)
	urls := rec.URLs
	if len(urls) > maxLookupURLs {
		urls = urls[:maxLookupURLs]
	}
	for _, raw := range urls {
		if u, err := url.Parse(raw); err == nil {
			add(u.Hostname())
		}
	}
	return domains
}

func attachmentHashes(rec *core.DeliveryRecord) []string {
	hashes := make([]string, 0, len(rec.Attachments))
	for _, a := range rec.Attachments {
		if a.MD5 == "" {
			continue
		}
		hashes = append(hashes, a.MD5)
		if len(hashes) == maxLookupHashes {
			break
		}
	}
	return hashes
}
