package relay

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
)

// AlertNotifier emails the security contact when a risky message is seen
type AlertNotifier struct {
	relay  core.Relay
	sender string
	logger *zap.Logger
}

// NewAlertNotifier creates a new alert notifier that delivers through the
// outbound relay
func NewAlertNotifier(relay core.Relay, cfg config.RelayConfig, logger *zap.Logger) *AlertNotifier {
	return &AlertNotifier{
		relay:  relay,
		sender: cfg.AlertSender,
		logger: logger,
	}
}

// SendAlert composes and delivers a notification for a flagged message
func (n *AlertNotifier) SendAlert(ctx context.Context, alert *core.Alert) error {
	if alert.Target == "" {
		return fmt.Errorf("no notification address configured")
	}

	raw, err := n.compose(alert)
	if err != nil {
		return fmt.Errorf("failed to compose alert: %w", err)
	}

	if err := n.relay.Send(ctx, n.sender, []string{alert.Target}, raw); err != nil {
		return fmt.Errorf("failed to deliver alert: %w", err)
	}

	n.logger.Info("Security alert sent",
		zap.String("record_id", alert.RecordID),
		zap.String("risk_level", alert.RiskLevel.String()),
		zap.String("target", alert.Target))
	return nil
}

func (n *AlertNotifier) compose(alert *core.Alert) ([]byte, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: "Mail Security", Address: n.sender}})
	h.SetAddressList("To", []*mail.Address{{Address: alert.Target}})
	h.SetSubject(fmt.Sprintf("[Phishing Alert] %s message detected: %s",
		alert.RiskLevel, alert.Subject))

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf(
		"A %s email was detected by the mail gateway.\n\n"+
			"Record ID: %s\n"+
			"Sender: %s\n"+
			"Subject: %s\n"+
			"Reason: %s\n",
		alert.RiskLevel, alert.RecordID, alert.Sender, alert.Subject, alert.Reason)

	htmlBody := fmt.Sprintf(
		"<html><body>"+
			"<h3>Phishing alert: %s message detected</h3>"+
			"<table>"+
			"<tr><td><b>Record ID</b></td><td>%s</td></tr>"+
			"<tr><td><b>Sender</b></td><td>%s</td></tr>"+
			"<tr><td><b>Subject</b></td><td>%s</td></tr>"+
			"<tr><td><b>Reason</b></td><td>%s</td></tr>"+
			"</table></body></html>",
		html.EscapeString(alert.RiskLevel.String()),
		html.EscapeString(alert.RecordID),
		html.EscapeString(alert.Sender),
		html.EscapeString(alert.Subject),
		html.EscapeString(alert.Reason))

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}

	var textHeader mail.InlineHeader
	textHeader.Set("Content-Type", "text/plain; charset=utf-8")
	pw, err := tw.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	io.WriteString(pw, text)
	pw.Close()

	var htmlHeader mail.InlineHeader
	htmlHeader.Set("Content-Type", "text/html; charset=utf-8")
	pw, err = tw.CreatePart(htmlHeader)
	if err != nil {
		return nil, err
	}
	io.WriteString(pw, htmlBody)
	pw.Close()

	tw.Close()
	mw.Close()

	return buf.Bytes(), nil
}
