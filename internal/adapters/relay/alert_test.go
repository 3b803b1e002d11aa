package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
)

type capturingRelay struct {
	sender     string
	recipients []string
	raw        []byte
}

func (c *capturingRelay) Send(ctx context.Context, sender string, recipients []string, raw []byte) error {
	c.sender = sender
	c.recipients = recipients
	c.raw = raw
	return nil
}

func TestSendAlertComposesMultipart(t *testing.T) {
	captured := &capturingRelay{}
	n := NewAlertNotifier(captured, config.RelayConfig{
		AlertSender: "security-alert@hyinfo.cc",
	}, zap.NewNop())

	err := n.SendAlert(context.Background(), &core.Alert{
		RecordID:  "rec-1",
		RiskLevel: core.VerdictMalicious,
		Sender:    "support@paypa1.example",
		Subject:   "Verify your account",
		Reason:    "spoofed brand domain",
		Target:    "soc@hyinfo.cc",
	})
	require.NoError(t, err)

	assert.Equal(t, "security-alert@hyinfo.cc", captured.sender)
	assert.Equal(t, []string{"soc@hyinfo.cc"}, captured.recipients)

	body := string(captured.raw)
	assert.Contains(t, body, "multipart/alternative")
	assert.Contains(t, body, "rec-1")
	assert.Contains(t, body, "spoofed brand domain")
}

func TestSendAlertRequiresTarget(t *testing.T) {
	n := NewAlertNotifier(&capturingRelay{}, config.RelayConfig{
		AlertSender: "security-alert@hyinfo.cc",
	}, zap.NewNop())

	err := n.SendAlert(context.Background(), &core.Alert{RecordID: "rec-1"})
	assert.Error(t, err)
}
