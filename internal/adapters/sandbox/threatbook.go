package sandbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
)

// ThreatBookClient submits file hashes, domains and IPs to the ThreatBook
// analysis API and maps its per-indicator judgments onto a single verdict.
type ThreatBookClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewThreatBookClient creates a new ThreatBook sandbox client
func NewThreatBookClient(cfg config.SandboxConfig, logger *zap.Logger) *ThreatBookClient {
	return &ThreatBookClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type threatBookResponse struct {
	ResponseCode int    `json:"response_code"`
	VerboseMsg   string `json:"verbose_msg"`
	Data         map[string]struct {
		Judgments []string `json:"judgments"`
		Severity  string   `json:"severity"`
		IsMalware bool     `json:"is_malware"`
		Verdict   string   `json:"verdict"`
	} `json:"data"`
}

// Analyze queries the sandbox for every indicator and returns the worst
// judgment observed. When no indicator yields a usable report the verdict
// comes back unknown so callers can tell silence apart from a clean result.
func (c *ThreatBookClient) Analyze(ctx context.Context, q core.SandboxQuery) (core.SourceVerdict, error) {
	result := core.SourceVerdict{}

	for _, hash := range q.FileHashes {
		c.merge(&result, c.report(ctx, "/file/report", "resource", hash))
	}
	for _, domain := range q.Domains {
		c.merge(&result, c.report(ctx, "/url/report", "url", domain))
	}
	for _, ip := range q.IPs {
		c.merge(&result, c.report(ctx, "/scene/ip_reputation", "resource", ip))
	}

	return result, nil
}

func (c *ThreatBookClient) merge(acc *core.SourceVerdict, v core.SourceVerdict) {
	if !v.Known {
		return
	}
	if !acc.Known || v.Level > acc.Level {
		acc.Level = v.Level
	}
	acc.Known = true
}

func (c *ThreatBookClient) report(ctx context.Context, path, param, value string) core.SourceVerdict {
	endpoint := c.baseURL + path + "?" + url.Values{
		"apikey": {c.apiKey},
		param:    {value},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn("Failed to create sandbox request", zap.String("indicator", value), zap.Error(err))
		return core.SourceVerdict{}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Sandbox request failed", zap.String("indicator", value), zap.Error(err))
		return core.SourceVerdict{}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		c.logger.Warn("Unexpected sandbox response",
			zap.String("indicator", value),
			zap.Int("status", resp.StatusCode))
		return core.SourceVerdict{}
	}

	var decoded threatBookResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.Warn("Failed to decode sandbox response", zap.String("indicator", value), zap.Error(err))
		return core.SourceVerdict{}
	}
	if decoded.ResponseCode != 0 {
		c.logger.Debug("Sandbox declined indicator",
			zap.String("indicator", value),
			zap.Int("response_code", decoded.ResponseCode),
			zap.String("message", decoded.VerboseMsg))
		return core.SourceVerdict{}
	}

	worst := core.SourceVerdict{}
	for _, entry := range decoded.Data {
		label := entry.Verdict
		if label == "" {
			label = entry.Severity
		}
		if label == "" && entry.IsMalware {
			label = "malicious"
		}
		if label == "" && len(entry.Judgments) > 0 {
			label = entry.Judgments[0]
		}
		c.merge(&worst, mapJudgment(label))
	}
	return worst
}

// mapJudgment translates a sandbox label into a verdict level
func mapJudgment(label string) core.SourceVerdict {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "clean", "safe", "white", "info", "low":
		return core.SourceVerdict{Level: core.VerdictBenign, Known: true}
	case "suspicious", "medium":
		return core.SourceVerdict{Level: core.VerdictSuspicious, Known: true}
	case "malicious", "malware", "high", "critical":
		return core.SourceVerdict{Level: core.VerdictMalicious, Known: true}
	default:
		return core.SourceVerdict{}
	}
}
