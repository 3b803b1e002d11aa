package store

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/core"
)

// MemoryStore is an in-memory implementation of the RecordStore interface.
// Useful for development and tests; records vanish on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*core.DeliveryRecord
	logger  *zap.Logger
}

// NewMemoryStore creates a new in-memory record store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*core.DeliveryRecord),
		logger:  logger,
	}
}

// CreateStub stores the envelope portion of a record before detection runs
func (s *MemoryStore) CreateStub(ctx context.Context, rec *core.DeliveryRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return "", fmt.Errorf("record %s already exists", rec.ID)
	}

	clone := *rec
	s.records[rec.ID] = &clone
	return rec.ID, nil
}

// UpdateFields applies a partial update to an existing record
func (s *MemoryStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}

	for col, val := range fields {
		if !allowedColumns[col] {
			return fmt.Errorf("unknown column %q", col)
		}
		if err := applyField(rec, col, val); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a full record by its identifier
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*core.DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	clone := *rec
	return &clone, nil
}

// Stop is a no-op for the memory store
func (s *MemoryStore) Stop() {}

func applyField(rec *core.DeliveryRecord, col string, val interface{}) error {
	switch col {
	case "content_text":
		rec.ContentText = asString(val)
	case "url_list":
		rec.URLs = decodeURLs(asString(val))
	case "attachment_list":
		rec.Attachments = decodeAttachments(asString(val))
	case "vt_url_result":
		rec.URLVerdict = asVerdict(val)
	case "vt_ip_result":
		rec.IPVerdict = asVerdict(val)
	case "vt_file_result":
		rec.FileVerdict = asVerdict(val)
	case "sandbox_result":
		rec.SandboxVerdict = asVerdict(val)
	case "ai_result":
		rec.AIVerdict = asVerdict(val)
	case "ai_reason":
		rec.AIReason = asString(val)
	case "phishing_type":
		rec.PhishingType = asString(val)
	case "final_decision":
		rec.FinalDecision = asVerdict(val).Level
	case "is_alert":
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("is_alert expects bool, got %T", val)
		}
		rec.Alerted = b
	case "is_block":
		b, ok := val.(bool)
		if !ok {
			return fmt.Errorf("is_block expects bool, got %T", val)
		}
		rec.Blocked = b
	}
	return nil
}

func asString(val interface{}) string {
	s, _ := val.(string)
	return s
}

func asVerdict(val interface{}) core.SourceVerdict {
	switch v := val.(type) {
	case int:
		return core.SourceVerdict{Level: core.Verdict(v), Known: true}
	case int64:
		return core.SourceVerdict{Level: core.Verdict(v), Known: true}
	case core.Verdict:
		return core.SourceVerdict{Level: v, Known: true}
	default:
		return core.SourceVerdict{}
	}
}
