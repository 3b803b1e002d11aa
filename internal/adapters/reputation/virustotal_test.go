package reputation

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

func newTestClient(t *testing.T, handler http.Handler) (*VirusTotalClient, func()) {
	srv := httptest.NewServer(handler)
	client := NewVirusTotalClient(config.ReputationConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
	return client, srv.Close
}

func TestLookupDomainReport(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-apikey"))
		assert.Equal(t, "/domains/evil.example", r.URL.Path)
		w.Write([]byte(`{"data":{"attributes":{
			"last_analysis_stats":{"malicious":4,"suspicious":1},
			"categories":{"vendor_a":"phishing","vendor_b":"news","vendor_c":"malware site"},
			"reputation":-12,
			"first_submission_date":1748700000
		}}}`))
	}))
	defer done()

	report, err := client.Lookup(context.Background(), core.ReputationQuery{Domains: []string{"evil.example"}})
	require.NoError(t, err)

	dom := report.Domains["evil.example"]
	assert.True(t, dom.Found)
	assert.Equal(t, 4, dom.Malicious)
	assert.Equal(t, 1, dom.Suspicious)
	assert.Equal(t, 2, dom.RiskTags)
	assert.Equal(t, -12, dom.Reputation)
	assert.Equal(t, time.Unix(1748700000, 0), dom.FirstSubmission)
}

func TestLookupDomainFallsBackToURLObject(t *testing.T) {
	var urlPath string
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/domains/fresh.example" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		urlPath = r.URL.Path
		w.Write([]byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":1,"suspicious":0}}}}`))
	}))
	defer done()

	report, err := client.Lookup(context.Background(), core.ReputationQuery{Domains: []string{"fresh.example"}})
	require.NoError(t, err)
	assert.Contains(t, urlPath, "/urls/")
	assert.True(t, report.Domains["fresh.example"].Found)
	assert.Equal(t, 1, report.Domains["fresh.example"].Malicious)
}

func TestLookupUnknownIndicatorIsAuthoritativelyAbsent(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer done()

	report, err := client.Lookup(context.Background(), core.ReputationQuery{
		Domains: []string{"unseen.example"},
		IPs:     []string{"198.51.100.9"},
		Hashes:  []string{"d41d8cd98f00b204e9800998ecf8427e"},
	})
	require.NoError(t, err)

	// A 404 means the source answered: the resource is absent, not unknown.
	dom := report.Domains["unseen.example"]
	assert.True(t, dom.Queried)
	assert.False(t, dom.Found)

	ip := report.IPs["198.51.100.9"]
	assert.True(t, ip.Queried)
	assert.False(t, ip.Found)

	file := report.Files["d41d8cd98f00b204e9800998ecf8427e"]
	assert.True(t, file.Queried)
	assert.False(t, file.Found)
}

func TestLookupServerErrorStaysUnknown(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer done()

	report, err := client.Lookup(context.Background(), core.ReputationQuery{
		Domains: []string{"flaky.example"},
		IPs:     []string{"198.51.100.9"},
		Hashes:  []string{"d41d8cd98f00b204e9800998ecf8427e"},
	})
	require.NoError(t, err)
	assert.False(t, report.Domains["flaky.example"].Queried)
	assert.False(t, report.IPs["198.51.100.9"].Queried)
	assert.False(t, report.Files["d41d8cd98f00b204e9800998ecf8427e"].Queried)
}

func TestLookupIPAndFileReports(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ip_addresses/203.0.113.7":
			w.Write([]byte(`{"data":{"attributes":{
				"last_analysis_stats":{"malicious":2,"suspicious":0},
				"crowdsourced_context":[{},{}],
				"reputation":120,
				"as_owner":"Shady Hosting Ltd"
			}}}`))
		case "/files/abc123":
			w.Write([]byte(`{"data":{"attributes":{
				"last_analysis_stats":{"malicious":10,"suspicious":2},
				"reputation":-40,
				"popular_threat_classification":{"popular_threat_name":[{"value":"agenttesla","count":12}]}
			}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer done()

	report, err := client.Lookup(context.Background(), core.ReputationQuery{
		IPs:    []string{"203.0.113.7"},
		Hashes: []string{"abc123"},
	})
	require.NoError(t, err)

	ip := report.IPs["203.0.113.7"]
	assert.True(t, ip.Found)
	assert.Equal(t, 2, ip.CrowdsourcedContext)
	assert.Equal(t, "Shady Hosting Ltd", ip.ASOwner)

	file := report.Files["abc123"]
	assert.True(t, file.Found)
	assert.Equal(t, 1, file.ThreatNames)
	assert.Equal(t, -40, file.Reputation)
}
