package reputation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
)

// VirusTotalClient queries the VirusTotal v3 API for domain, IP and
// file-hash reputation. Lookups are best effort: a not-found answer marks
// the resource as queried-but-absent, while a failed lookup stays unknown
// rather than failing the whole batch.
type VirusTotalClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewVirusTotalClient creates a new VirusTotal reputation client
func NewVirusTotalClient(cfg config.ReputationConfig, logger *zap.Logger) *VirusTotalClient {
	return &VirusTotalClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type vtAnalysisStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
}

type vtDomainAttributes struct {
	LastAnalysisStats   vtAnalysisStats   `json:"last_analysis_stats"`
	Categories          map[string]string `json:"categories"`
	Reputation          int               `json:"reputation"`
	FirstSubmissionDate int64             `json:"first_submission_date"`
}

type vtIPAttributes struct {
	LastAnalysisStats   vtAnalysisStats   `json:"last_analysis_stats"`
	CrowdsourcedContext []json.RawMessage `json:"crowdsourced_context"`
	Reputation          int               `json:"reputation"`
	ASOwner             string            `json:"as_owner"`
}

type vtFileAttributes struct {
	LastAnalysisStats          vtAnalysisStats `json:"last_analysis_stats"`
	Reputation                 int             `json:"reputation"`
	PopularThreatClassification struct {
		SuggestedThreatLabel string `json:"suggested_threat_label"`
		PopularThreatName    []struct {
			Value string `json:"value"`
			Count int    `json:"count"`
		} `json:"popular_threat_name"`
	} `json:"popular_threat_classification"`
}

type vtResponse struct {
	Data struct {
		Attributes json.RawMessage `json:"attributes"`
	} `json:"data"`
}

// Lookup fetches reputation reports for every indicator in the query
func (c *VirusTotalClient) Lookup(ctx context.Context, q core.ReputationQuery) (*core.ReputationReport, error) {
	report := &core.ReputationReport{
		Domains: make(map[string]core.DomainReport),
		IPs:     make(map[string]core.IPReport),
		Files:   make(map[string]core.FileReport),
	}

	for _, domain := range q.Domains {
		report.Domains[domain] = c.lookupDomain(ctx, domain)
	}
	for _, ip := range q.IPs {
		report.IPs[ip] = c.lookupIP(ctx, ip)
	}
	for _, hash := range q.Hashes {
		report.Files[hash] = c.lookupFile(ctx, hash)
	}

	return report, nil
}

func (c *VirusTotalClient) lookupDomain(ctx context.Context, domain string) core.DomainReport {
	raw, status, err := c.get(ctx, "/domains/"+domain)
	if err != nil {
		c.logger.Warn("Domain reputation lookup failed", zap.String("domain", domain), zap.Error(err))
		return core.DomainReport{}
	}
	if status == http.StatusNotFound {
		// Unseen domain: fall back to the URL object keyed by its scheme-less form.
		urlID := base64.RawURLEncoding.EncodeToString([]byte("http://" + domain + "/"))
		raw, status, err = c.get(ctx, "/urls/"+urlID)
		if err != nil {
			c.logger.Warn("URL reputation lookup failed", zap.String("domain", domain), zap.Error(err))
			return core.DomainReport{}
		}
		if status == http.StatusNotFound {
			// The source answered: it has never seen this resource
			return core.DomainReport{Queried: true}
		}
	}
	if status != http.StatusOK {
		return core.DomainReport{}
	}

	var attrs vtDomainAttributes
	if err := decodeAttributes(raw, &attrs); err != nil {
		c.logger.Warn("Failed to decode domain report", zap.String("domain", domain), zap.Error(err))
		return core.DomainReport{}
	}

	rep := core.DomainReport{
		Queried:    true,
		Found:      true,
		Malicious:  attrs.LastAnalysisStats.Malicious,
		Suspicious: attrs.LastAnalysisStats.Suspicious,
		RiskTags:   countRiskCategories(attrs.Categories),
		Reputation: attrs.Reputation,
	}
	if attrs.FirstSubmissionDate > 0 {
		rep.FirstSubmission = time.Unix(attrs.FirstSubmissionDate, 0)
	}
	return rep
}

func (c *VirusTotalClient) lookupIP(ctx context.Context, ip string) core.IPReport {
	raw, status, err := c.get(ctx, "/ip_addresses/"+ip)
	if err != nil {
		c.logger.Warn("IP reputation lookup failed", zap.String("ip", ip), zap.Error(err))
		return core.IPReport{}
	}
	if status == http.StatusNotFound {
		return core.IPReport{Queried: true}
	}
	if status != http.StatusOK {
		return core.IPReport{}
	}

	var attrs vtIPAttributes
	if err := decodeAttributes(raw, &attrs); err != nil {
		c.logger.Warn("Failed to decode IP report", zap.String("ip", ip), zap.Error(err))
		return core.IPReport{}
	}

	return core.IPReport{
		Queried:             true,
		Found:               true,
		Malicious:           attrs.LastAnalysisStats.Malicious,
		Suspicious:          attrs.LastAnalysisStats.Suspicious,
		CrowdsourcedContext: len(attrs.CrowdsourcedContext),
		Reputation:          attrs.Reputation,
		ASOwner:             attrs.ASOwner,
	}
}

func (c *VirusTotalClient) lookupFile(ctx context.Context, hash string) core.FileReport {
	raw, status, err := c.get(ctx, "/files/"+hash)
	if err != nil {
		c.logger.Warn("File reputation lookup failed", zap.String("hash", hash), zap.Error(err))
		return core.FileReport{}
	}
	if status == http.StatusNotFound {
		return core.FileReport{Queried: true}
	}
	if status != http.StatusOK {
		return core.FileReport{}
	}

	var attrs vtFileAttributes
	if err := decodeAttributes(raw, &attrs); err != nil {
		c.logger.Warn("Failed to decode file report", zap.String("hash", hash), zap.Error(err))
		return core.FileReport{}
	}

	return core.FileReport{
		Queried:     true,
		Found:       true,
		Malicious:   attrs.LastAnalysisStats.Malicious,
		Suspicious:  attrs.LastAnalysisStats.Suspicious,
		ThreatNames: len(attrs.PopularThreatClassification.PopularThreatName),
		Reputation:  attrs.Reputation,
	}
}

func (c *VirusTotalClient) get(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func decodeAttributes(raw []byte, out interface{}) error {
	var envelope vtResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	if len(envelope.Data.Attributes) == 0 {
		return fmt.Errorf("response has no attributes")
	}
	return json.Unmarshal(envelope.Data.Attributes, out)
}

// countRiskCategories counts vendor categories that flag the domain as risky
func countRiskCategories(categories map[string]string) int {
	n := 0
	for _, category := range categories {
		lower := strings.ToLower(category)
		if strings.Contains(lower, "phishing") ||
			strings.Contains(lower, "malicious") ||
			strings.Contains(lower, "malware") ||
			strings.Contains(lower, "spam") {
			n++
		}
	}
	return n
}
