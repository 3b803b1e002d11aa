package sandbox

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
)

func newTestClient(handler http.Handler) (*ThreatBookClient, func()) {
	srv := httptest.NewServer(handler)
	client := NewThreatBookClient(config.SandboxConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
	return client, srv.Close
}

func TestAnalyzeMaliciousFile(t *testing.T) {
	client, done := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/file/report", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		assert.Equal(t, "abc123", r.URL.Query().Get("resource"))
		w.Write([]byte(`{"response_code":0,"data":{"abc123":{"verdict":"malicious"}}}`))
	}))
	defer done()

	v, err := client.Analyze(context.Background(), core.SandboxQuery{FileHashes: []string{"abc123"}})
	require.NoError(t, err)
	assert.True(t, v.Known)
	assert.Equal(t, core.VerdictMalicious, v.Level)
}

func TestAnalyzeWorstJudgmentWins(t *testing.T) {
	client, done := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/url/report":
			w.Write([]byte(`{"response_code":0,"data":{"a.example":{"severity":"low"}}}`))
		case "/scene/ip_reputation":
			w.Write([]byte(`{"response_code":0,"data":{"203.0.113.7":{"judgments":["suspicious"]}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer done()

	v, err := client.Analyze(context.Background(), core.SandboxQuery{
		Domains: []string{"a.example"},
		IPs:     []string{"203.0.113.7"},
	})
	require.NoError(t, err)
	assert.True(t, v.Known)
	assert.Equal(t, core.VerdictSuspicious, v.Level)
}

func TestAnalyzeNoUsableReports(t *testing.T) {
	client, done := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response_code":4,"verbose_msg":"no result"}`))
	}))
	defer done()

	v, err := client.Analyze(context.Background(), core.SandboxQuery{Domains: []string{"unseen.example"}})
	require.NoError(t, err)
	assert.False(t, v.Known)
}

func TestMapJudgment(t *testing.T) {
	tests := []struct {
		label string
		want  core.SourceVerdict
	}{
		{"clean", core.SourceVerdict{Level: core.VerdictBenign, Known: true}},
		{"Suspicious", core.SourceVerdict{Level: core.VerdictSuspicious, Known: true}},
		{"MALICIOUS", core.SourceVerdict{Level: core.VerdictMalicious, Known: true}},
		{"high", core.SourceVerdict{Level: core.VerdictMalicious, Known: true}},
		{"whatever", core.SourceVerdict{}},
		{"", core.SourceVerdict{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapJudgment(tt.label), "label %q", tt.label)
	}
}
