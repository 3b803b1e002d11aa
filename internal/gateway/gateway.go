package gateway

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/allowlist"
	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/mailparse"
	"github.com/hyinfo/phishgate/internal/metrics"
	"github.com/hyinfo/phishgate/internal/ratelimit"
)

// Gateway is the SMTP ingestion listener. It accepts inbound sessions,
// applies admission control, splits each message into one delivery record
// per allow-listed recipient, and enqueues one detection job per record.
// Sessions are acknowledged immediately; pipeline outcome never blocks the
// sending party.
type Gateway struct {
	store   core.RecordStore
	queue   core.JobQueue
	limiter *ratelimit.Limiter
	allow   *allowlist.Checker
	metrics *metrics.Metrics
	logger  *zap.Logger
	cfg     config.GatewayConfig

	server *smtp.Server
}

// New creates a new ingestion gateway
func New(
	store core.RecordStore,
	queue core.JobQueue,
	limiter *ratelimit.Limiter,
	allow *allowlist.Checker,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg config.GatewayConfig,
) *Gateway {
	return &Gateway{
		store:   store,
		queue:   queue,
		limiter: limiter,
		allow:   allow,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start begins listening for inbound SMTP sessions
func (g *Gateway) Start() error {
	g.server = smtp.NewServer(&smtpBackend{gateway: g})

	g.server.Addr = g.cfg.ListenAddress
	g.server.Domain = g.cfg.Hostname
	g.server.ReadTimeout = 30 * time.Second
	g.server.WriteTimeout = 30 * time.Second
	g.server.MaxMessageBytes = int64(g.cfg.MaxMessageBytes)
	g.server.MaxRecipients = g.cfg.MaxRecipients
	g.server.AllowInsecureAuth = true

	g.logger.Info("Ingestion gateway starting", zap.String("address", g.cfg.ListenAddress))

	go func() {
		if err := g.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				g.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the listener
func (g *Gateway) Stop() error {
	if g.server != nil {
		return g.server.Close()
	}
	return nil
}

// HandleMessage processes one complete inbound message. It always reports
// success to the session: admission rejections and empty recipient sets are
// dropped silently so scanners get no signal.
func (g *Gateway) HandleMessage(remote net.Addr, raw []byte) error {
	parsed := mailparse.Decode(raw)
	sourceIP := ResolveSourceIP(remote, parsed.Header)

	if !g.limiter.Admit(sourceIP) {
		g.metrics.SessionRejected()
		g.logger.Warn("Session dropped by admission control", zap.String("source_ip", sourceIP))
		return nil
	}
	g.metrics.SessionAccepted()

	recipients := g.allow.Filter(parsed.Recipients)
	if len(recipients) == 0 {
		g.logger.Warn("No allow-listed recipients, dropping message",
			zap.String("source_ip", sourceIP),
			zap.Strings("parsed_recipients", parsed.Recipients))
		return nil
	}

	g.logger.Info("Inbound message accepted",
		zap.String("sender", parsed.Sender),
		zap.Int("recipients", len(recipients)),
		zap.String("source_ip", sourceIP))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, recipient := range recipients {
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

		id, err := g.store.CreateStub(ctx, rec)
		if err != nil {
			// No job without a confirmed record id; this recipient's
			// delivery is dropped
			g.logger.Error("Failed to persist record stub, skipping recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}

		job := core.DetectionJob{
			RecordID:   id,
			RawMessage: raw,
			SourceIP:   sourceIP,
		}
		if err := g.queue.Enqueue(ctx, job); err != nil {
			g.logger.Error("Failed to enqueue detection job",
				zap.String("record_id", id),
				zap.Error(err))
			continue
		}

		g.metrics.RecordCreated()
		g.logger.Info("Detection job enqueued",
			zap.String("record_id", id),
			zap.String("recipient", recipient))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	gateway *Gateway
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	var remote net.Addr
	if conn := c.Conn(); conn != nil {
		remote = conn.RemoteAddr()
	}
	return &smtpSession{
		gateway: b.gateway,
		remote:  remote,
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	gateway *Gateway
	remote  net.Addr
	sender  string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
}

// AuthPlain handles PLAIN authentication (the gateway accepts unauthenticated
// submissions)
func (s *smtpSession) AuthPlain(_, _ string) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the envelope sender
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt accepts any envelope recipient; the allow-list filter operates on the
// decoded header recipients when the message is split
func (s *smtpSession) Rcpt(_ string, _ *smtp.RcptOptions) error {
	return nil
}

// Data handles the message payload
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.gateway.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}
	return s.gateway.HandleMessage(s.remote, raw)
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
