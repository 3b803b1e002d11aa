package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/core"
)

// SQLiteStore is a SQLite implementation of the RecordStore interface
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLite record store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS email_data (
			email_id TEXT PRIMARY KEY,
			sender TEXT,
			recipient TEXT,
			subject TEXT,
			send_time TIMESTAMP,
			client_ip TEXT,
			from_domain TEXT,
			content_text TEXT,
			url_list TEXT,
			attachment_list TEXT,
			vt_url_result INTEGER NULL,
			vt_ip_result INTEGER NULL,
			vt_file_result INTEGER NULL,
			sandbox_result INTEGER NULL,
			ai_result INTEGER NULL,
			ai_reason TEXT,
			phishing_type TEXT,
			final_decision INTEGER NULL,
			is_alert BOOLEAN DEFAULT 0,
			is_block BOOLEAN DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_send_time ON email_data(send_time)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// CreateStub inserts the envelope portion of a record before detection runs
func (s *SQLiteStore) CreateStub(ctx context.Context, rec *core.DeliveryRecord) (string, error) {
	urls, err := encodeURLs(rec.URLs)
	if err != nil {
		return "", err
	}
	atts, err := encodeAttachments(rec.Attachments)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO email_data (
			email_id, sender, recipient, subject, send_time,
			client_ip, from_domain, content_text, url_list, attachment_list
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Sender, rec.Recipient, rec.Subject,
		rec.SendTime.Format(time.RFC3339),
		rec.SourceIP, rec.FromDomain, rec.ContentText, urls, atts)

	if err != nil {
		return "", fmt.Errorf("failed to insert delivery record: %w", err)
	}

	return rec.ID, nil
}

// UpdateFields applies a partial update to an existing record
func (s *SQLiteStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	clause, args, err := buildUpdate(fields)
	if err != nil {
		return err
	}
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, "UPDATE email_data SET "+clause+" WHERE email_id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update delivery record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, "SELECT 1 FROM email_data WHERE email_id = ?", id).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		}
	}
	return nil
}

// GetByID retrieves a full record by its identifier
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (*core.DeliveryRecord, error) {
	var rec core.DeliveryRecord
	var sendTime, urls, atts string
	var urlRes, ipRes, fileRes, sandboxRes, aiRes, finalRes sql.NullInt64
	var aiReason, phishingType sql.NullString

	err := s.db.QueryRowContext(ctx, `
		SELECT email_id, sender, recipient, subject, send_time,
			client_ip, from_domain, content_text, url_list, attachment_list,
			vt_url_result, vt_ip_result, vt_file_result, sandbox_result,
			ai_result, ai_reason, phishing_type, final_decision, is_alert, is_block
		FROM email_data
		WHERE email_id = ?
	`, id).Scan(&rec.ID, &rec.Sender, &rec.Recipient, &rec.Subject, &sendTime,
		&rec.SourceIP, &rec.FromDomain, &rec.ContentText, &urls, &atts,
		&urlRes, &ipRes, &fileRes, &sandboxRes,
		&aiRes, &aiReason, &phishingType, &finalRes, &rec.Alerted, &rec.Blocked)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query delivery record: %w", err)
	}

	rec.SendTime, err = time.Parse(time.RFC3339, sendTime)
	if err != nil {
		return nil, fmt.Errorf("failed to parse send_time: %w", err)
	}

	rec.URLs = decodeURLs(urls)
	rec.Attachments = decodeAttachments(atts)
	rec.URLVerdict = verdictFromColumn(urlRes)
	rec.IPVerdict = verdictFromColumn(ipRes)
	rec.FileVerdict = verdictFromColumn(fileRes)
	rec.SandboxVerdict = verdictFromColumn(sandboxRes)
	rec.AIVerdict = verdictFromColumn(aiRes)
	rec.AIReason = aiReason.String
	rec.PhishingType = phishingType.String
	if finalRes.Valid {
		rec.FinalDecision = core.Verdict(finalRes.Int64)
	}

	return &rec, nil
}

// Stop closes the database connection
func (s *SQLiteStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
