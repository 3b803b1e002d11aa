package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyinfo/phishgate/internal/core"
)

func TestBuildPromptIncludesSignalsAndSimilar(t *testing.T) {
	input := &core.ClassificationInput{
		Record: &core.DeliveryRecord{
			Sender:     "support@paypa1-secure.example",
			Recipient:  "bob@hyinfo.cc",
			Subject:    "Verify your account",
			FromDomain: "paypa1-secure.example",
			SourceIP:   "203.0.113.7",
			URLs:       []string{"http://paypa1-secure.example/login"},
			URLVerdict: core.SourceVerdict{Level: core.VerdictMalicious, Known: true},
		},
		Similar: []core.SimilarRecord{
			{Similarity: 0.91, Label: "malicious", Subject: "Confirm your account", Sender: "support@paypa1.example"},
		},
	}

	prompt := BuildPrompt(input, "Click here to verify your password.")
	assert.Contains(t, prompt, "From: support@paypa1-secure.example")
	assert.Contains(t, prompt, "URL reputation: malicious")
	assert.Contains(t, prompt, "similarity 0.91")
	assert.Contains(t, prompt, "Click here to verify your password.")
	// Unknown signals must not be listed at all.
	assert.NotContains(t, prompt, "Sandbox analysis")
}

func TestParseAnalysisPlainJSON(t *testing.T) {
	a, err := ParseAnalysis(`{"result":2,"reason":"spoofed brand domain","phishing_type":"credential_theft","confidence":0.95}`)
	require.NoError(t, err)
	assert.Equal(t, core.VerdictMalicious, a.Result)
	assert.Equal(t, "credential_theft", a.PhishingType)
	assert.Equal(t, 0.95, a.Confidence)
}

func TestParseAnalysisFencedJSON(t *testing.T) {
	a, err := ParseAnalysis("```json\n{\"result\":1,\"reason\":\"urgency cues\",\"phishing_type\":\"none\",\"confidence\":0.6}\n```")
	require.NoError(t, err)
	assert.Equal(t, core.VerdictSuspicious, a.Result)
}

func TestParseAnalysisEmbeddedJSON(t *testing.T) {
	a, err := ParseAnalysis(`Here is my assessment: {"result":0,"reason":"routine newsletter","phishing_type":"none","confidence":0.8} Hope that helps.`)
	require.NoError(t, err)
	assert.Equal(t, core.VerdictBenign, a.Result)
}

func TestParseAnalysisRejectsGarbage(t *testing.T) {
	_, err := ParseAnalysis("I cannot analyze this email.")
	assert.Error(t, err)

	_, err = ParseAnalysis(`{"result":7,"reason":"x"}`)
	assert.Error(t, err)
}
