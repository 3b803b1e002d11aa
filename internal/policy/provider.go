package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/core"
)

// FileProvider reads the response policy from a JSON file. The file is
// re-read on every decision so operators can flip switches without a
// restart.
type FileProvider struct {
	path   string
	logger *zap.Logger
}

// NewFileProvider creates a new file-backed policy provider
func NewFileProvider(path string, logger *zap.Logger) *FileProvider {
	return &FileProvider{path: path, logger: logger}
}

// Current loads the policy file. A missing or unreadable file yields the
// zero policy: nothing intercepted, alerts on.
func (p *FileProvider) Current() (*core.Policy, error) {
	policy := &core.Policy{
		Intercept: make(map[core.Verdict]bool),
		Alert:     make(map[core.Verdict]bool),
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			p.logger.Debug("Policy file absent, using defaults", zap.String("path", p.path))
			return policy, nil
		}
		return policy, fmt.Errorf("failed to read policy file: %w", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return policy, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if v, ok := lookupBool(raw, "EMAIL_INTERCEPT_ENABLED_1"); ok {
		policy.Intercept[core.VerdictSuspicious] = v
	}
	if v, ok := lookupBool(raw, "EMAIL_INTERCEPT_ENABLED_2"); ok {
		policy.Intercept[core.VerdictMalicious] = v
	}
	if v, ok := lookupBool(raw, "EMAIL_ALERT_ENABLED_1"); ok {
		policy.Alert[core.VerdictSuspicious] = v
	}
	if v, ok := lookupBool(raw, "EMAIL_ALERT_ENABLED_2"); ok {
		policy.Alert[core.VerdictMalicious] = v
	}
	if v, ok := raw["NOTIFICATION_EMAIL"].(string); ok {
		policy.NotificationEmail = strings.TrimSpace(v)
	}

	return policy, nil
}

// lookupBool coerces policy values that may arrive as booleans or as the
// strings "true"/"false"
func lookupBool(raw map[string]interface{}, key string) (bool, bool) {
	v, ok := raw[key]
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true"), true
	default:
		return false, false
	}
}
