package core

import (
	"time"
)

// Verdict is the bounded risk level a signal source assigns to a message.
type Verdict int

const (
	VerdictBenign     Verdict = 0
	VerdictSuspicious Verdict = 1
	VerdictMalicious  Verdict = 2
)

func (v Verdict) String() string {
	switch v {
	case VerdictSuspicious:
		return "suspicious"
	case VerdictMalicious:
		return "malicious"
	default:
		return "benign"
	}
}

// SourceVerdict carries a verdict together with whether the source could be
// queried at all. Unknown verdicts aggregate as benign but are audited apart.
type SourceVerdict struct {
	Level Verdict
	Known bool
}

// Attachment describes one decoded attachment part
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	MD5         string `json:"file_hash"`
}

// DeliveryRecord is one message addressed to one accepted recipient, the
// pipeline's unit of work. Immutable identity fields are set at accept time;
// the remaining fields are filled in by successive pipeline stages.
type DeliveryRecord struct {
	ID        string
	Sender    string
	Recipient string
	Subject   string
	SendTime  time.Time
	SourceIP  string

	FromDomain  string
	ContentText string
	URLs        []string
	Attachments []Attachment

	URLVerdict     SourceVerdict
	IPVerdict      SourceVerdict
	FileVerdict    SourceVerdict
	SandboxVerdict SourceVerdict
	AIVerdict      SourceVerdict
	AIReason       string
	PhishingType   string

	FinalDecision Verdict
	Alerted       bool
	Blocked       bool
}

// PendingBody is the placeholder stored on a record stub before the pipeline
// has extracted the real message content.
const PendingBody = "(Processing...)"

// DetectionJob is the payload enqueued per delivery record. It carries the
// raw message so a worker can re-derive everything without the gateway.
type DetectionJob struct {
	RecordID   string `json:"record_id"`
	RawMessage []byte `json:"raw_message"`
	SourceIP   string `json:"source_ip"`
	Attempt    int    `json:"attempt"`
}

// AIAnalysis is the structured result of the AI classification stage
type AIAnalysis struct {
	Result       Verdict `json:"result"`
	Reason       string  `json:"reason"`
	PhishingType string  `json:"phishing_type"`
	Confidence   float64 `json:"confidence"`
}

// SimilarRecord is one nearest-neighbor hit from the similarity index
type SimilarRecord struct {
	ID         string
	Similarity float64
	Subject    string
	Sender     string
	Content    string
	Label      string
}

// Alert describes one security notification to an operator mailbox
type Alert struct {
	RecordID  string
	RiskLevel Verdict
	Sender    string
	Subject   string
	Reason    string
	Target    string
}
