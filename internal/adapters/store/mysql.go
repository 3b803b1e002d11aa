package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/core"
)

const mysqlTimeFormat = "2006-01-02 15:04:05"

// MySQLStore is a MySQL implementation of the RecordStore interface
type MySQLStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewMySQLStore creates a new MySQL record store
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS email_data (
			email_id VARCHAR(64) PRIMARY KEY,
			sender VARCHAR(255),
			recipient VARCHAR(255),
			subject TEXT,
			send_time DATETIME,
			client_ip VARCHAR(45),
			from_domain VARCHAR(255),
			content_text MEDIUMTEXT,
			url_list TEXT,
			attachment_list TEXT,
			vt_url_result TINYINT NULL,
			vt_ip_result TINYINT NULL,
			vt_file_result TINYINT NULL,
			sandbox_result TINYINT NULL,
			ai_result TINYINT NULL,
			ai_reason TEXT,
			phishing_type VARCHAR(64),
			final_decision TINYINT NULL,
			is_alert BOOLEAN DEFAULT FALSE,
			is_block BOOLEAN DEFAULT FALSE,
			INDEX idx_send_time (send_time),
			INDEX idx_recipient (recipient)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLStore{db: db, logger: logger}, nil
}

// CreateStub inserts the envelope portion of a record before detection runs
func (s *MySQLStore) CreateStub(ctx context.Context, rec *core.DeliveryRecord) (string, error) {
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
		rec.SendTime.Format(mysqlTimeFormat),
		rec.SourceIP, rec.FromDomain, rec.ContentText, urls, atts)

	if err != nil {
		return "", fmt.Errorf("failed to insert delivery record: %w", err)
	}

	return rec.ID, nil
}

// UpdateFields applies a partial update to an existing record
func (s *MySQLStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
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
		// MySQL reports zero rows for no-op updates too, so re-check existence.
		var exists int
		if err := s.db.QueryRowContext(ctx, "SELECT 1 FROM email_data WHERE email_id = ?", id).Scan(&exists); err == sql.ErrNoRows {
			return ErrNotFound
		}
	}
	return nil
}

// GetByID retrieves a full record by its identifier
func (s *MySQLStore) GetByID(ctx context.Context, id string) (*core.DeliveryRecord, error) {
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

	rec.SendTime, err = time.Parse(mysqlTimeFormat, sendTime)
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
func (s *MySQLStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}

func verdictFromColumn(v sql.NullInt64) core.SourceVerdict {
	if !v.Valid {
		return core.SourceVerdict{}
	}
	return core.SourceVerdict{Level: core.Verdict(v.Int64), Known: true}
}
