package core

import (
	"context"
	"time"
)

// RecordStore persists delivery records. UpdateFields writes only the given
// columns so concurrent updates to disjoint fields never clobber each other.
type RecordStore interface {
	// CreateStub inserts a new record stub and returns its confirmed id
	CreateStub(ctx context.Context, rec *DeliveryRecord) (string, error)

	// UpdateFields applies a partial column update to an existing record
	UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error

	// GetByID retrieves a record by its id
	GetByID(ctx context.Context, id string) (*DeliveryRecord, error)
}

// JobQueue accepts detection jobs for asynchronous processing. Enqueue must
// not block the caller on pipeline throughput.
type JobQueue interface {
	Enqueue(ctx context.Context, job DetectionJob) error
}

// JobHandler processes one detection job. A returned error requeues the job
// up to the queue's attempt limit.
type JobHandler func(ctx context.Context, job DetectionJob) error

// ReputationQuery names the resources to look up in the reputation source
type ReputationQuery struct {
	Domains []string
	IPs     []string
	Hashes  []string
}

// DomainReport is the decoded reputation answer for one domain. Queried is
// true when the source answered authoritatively, including a not-found
// answer; Found is true only when the source holds a report. A resource the
// source has never seen scores as clean, while an unanswered lookup stays
// unknown.
type DomainReport struct {
	Queried         bool
	Found           bool
	Malicious       int
	Suspicious      int
	RiskTags        int
	Reputation      int
	FirstSubmission time.Time
}

// IPReport is the decoded reputation answer for one IP address
type IPReport struct {
	Queried             bool
	Found               bool
	Malicious           int
	Suspicious          int
	CrowdsourcedContext int
	Reputation          int
	ASOwner             string
}

// FileReport is the decoded reputation answer for one file hash
type FileReport struct {
	Queried     bool
	Found       bool
	Malicious   int
	Suspicious  int
	ThreatNames int
	Reputation  int
}

// ReputationReport aggregates per-resource reputation answers. Every queried
// resource is present; failed lookups carry Queried=false.
type ReputationReport struct {
	Domains map[string]DomainReport
	IPs     map[string]IPReport
	Files   map[string]FileReport
}

// ReputationClient queries the external reputation source
type ReputationClient interface {
	Lookup(ctx context.Context, q ReputationQuery) (*ReputationReport, error)
}

// SandboxQuery names the resources to submit for dynamic analysis
type SandboxQuery struct {
	FileHashes []string
	Domains    []string
	IPs        []string
}

// SandboxClient submits resources for dynamic analysis and returns the
// aggregate verdict across all of them
type SandboxClient interface {
	Analyze(ctx context.Context, q SandboxQuery) (SourceVerdict, error)
}

// ClassificationInput is everything the AI classifier sees: the enriched
// record (including the two prior verdicts) plus similar historical records.
type ClassificationInput struct {
	Record  *DeliveryRecord
	Similar []SimilarRecord
}

// AIClassifier runs natural-language phishing classification
type AIClassifier interface {
	Classify(ctx context.Context, in *ClassificationInput) (*AIAnalysis, error)
}

// SimilarityIndex stores records for future correlation and retrieves
// nearest neighbors of a record. Vector generation is internal to the
// implementation; callers only supply record text.
type SimilarityIndex interface {
	Upsert(ctx context.Context, rec *DeliveryRecord) error
	Query(ctx context.Context, rec *DeliveryRecord, k int) ([]SimilarRecord, error)
}

// Relay delivers a fully formed message with an explicit envelope
type Relay interface {
	Send(ctx context.Context, sender string, recipients []string, raw []byte) error
}

// Notifier sends security alerts to the configured operator mailbox
type Notifier interface {
	SendAlert(ctx context.Context, alert *Alert) error
}

// Policy maps a risk level to intercept/alert behavior. Levels without an
// entry default to no intercept, alert enabled.
type Policy struct {
	Intercept         map[Verdict]bool
	Alert             map[Verdict]bool
	NotificationEmail string
}

// InterceptEnabled reports whether messages at the given level are blocked
func (p *Policy) InterceptEnabled(level Verdict) bool {
	return p.Intercept[level]
}

// AlertEnabled reports whether messages at the given level trigger an alert
func (p *Policy) AlertEnabled(level Verdict) bool {
	enabled, ok := p.Alert[level]
	if !ok {
		return true
	}
	return enabled
}

// PolicyProvider yields the current policy. Implementations must read fresh
// state on every call so operators can change policy without a restart.
type PolicyProvider interface {
	Current() (*Policy, error)
}
