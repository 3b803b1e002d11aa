package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/hyinfo/phishgate/internal/core"
)

var trustedOwners = []string{"google", "aliyun", "tencent", "huawei", "amazon", "microsoft"}

func TestScoreDomain(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rep  core.DomainReport
		want core.SourceVerdict
	}{
		{
			name: "failed lookup stays unknown",
			rep:  core.DomainReport{},
			want: core.SourceVerdict{},
		},
		{
			name: "unseen domain is clean",
			rep:  core.DomainReport{Queried: true},
			want: core.SourceVerdict{Level: core.VerdictBenign, Known: true},
		},
		{
			name: "clean domain",
			rep:  core.DomainReport{Queried: true, Found: true, Reputation: 40},
			want: core.SourceVerdict{Level: core.VerdictBenign, Known: true},
		},
		{
			name: "single suspicious vote plus risk tag crosses suspicious",
			rep:  core.DomainReport{Queried: true, Found: true, Suspicious: 1, RiskTags: 1},
			want: core.SourceVerdict{Level: core.VerdictSuspicious, Known: true},
		},
		{
			name: "two malicious votes cross malicious",
			rep:  core.DomainReport{Queried: true, Found: true, Malicious: 2},
			want: core.SourceVerdict{Level: core.VerdictMalicious, Known: true},
		},
		{
			name: "freshly registered domain gets a bump",
			rep: core.DomainReport{
				Queried:         true,
				Found:           true,
				Suspicious:      1,
				FirstSubmission: now.Add(-3 * 24 * time.Hour),
			},
			want: core.SourceVerdict{Level: core.VerdictSuspicious, Known: true},
		},
		{
			name: "negative reputation contributes",
			rep:  core.DomainReport{Queried: true, Found: true, Suspicious: 1, Reputation: -150},
			want: core.SourceVerdict{Level: core.VerdictSuspicious, Known: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreDomain(tt.rep, now))
		})
	}
}

func TestScoreIP(t *testing.T) {
	tests := []struct {
		name string
		rep  core.IPReport
		want core.SourceVerdict
	}{
		{
			name: "failed lookup stays unknown",
			rep:  core.IPReport{},
			want: core.SourceVerdict{},
		},
		{
			name: "unseen address is clean",
			rep:  core.IPReport{Queried: true},
			want: core.SourceVerdict{Level: core.VerdictBenign, Known: true},
		},
		{
			name: "clean cloud address",
			rep:  core.IPReport{Queried: true, Found: true, Reputation: 600, ASOwner: "Google LLC"},
			want: core.SourceVerdict{Level: core.VerdictBenign, Known: true},
		},
		{
			name: "unfamiliar network alone is suspicious once reputation dips",
			rep:  core.IPReport{Queried: true, Found: true, Reputation: -800, ASOwner: "Shady Hosting Ltd"},
			want: core.SourceVerdict{Level: core.VerdictSuspicious, Known: true},
		},
		{
			name: "detections on an unfamiliar network cross malicious",
			rep:  core.IPReport{Queried: true, Found: true, Malicious: 1, Reputation: 0, ASOwner: "Shady Hosting Ltd"},
			want: core.SourceVerdict{Level: core.VerdictMalicious, Known: true},
		},
		{
			name: "crowdsourced incident reports weigh in",
			rep:  core.IPReport{Queried: true, Found: true, CrowdsourcedContext: 2, Reputation: 600, ASOwner: "Amazon.com, Inc."},
			want: core.SourceVerdict{Level: core.VerdictMalicious, Known: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreIP(tt.rep, trustedOwners))
		})
	}
}

func TestScoreFile(t *testing.T) {
	tests := []struct {
		name string
		rep  core.FileReport
		want core.SourceVerdict
	}{
		{
			name: "failed lookup stays unknown",
			rep:  core.FileReport{},
			want: core.SourceVerdict{},
		},
		{
			name: "unseen hash is clean",
			rep:  core.FileReport{Queried: true},
			want: core.SourceVerdict{Level: core.VerdictBenign, Known: true},
		},
		{
			name: "clean file",
			rep:  core.FileReport{Queried: true, Found: true, Reputation: 10},
			want: core.SourceVerdict{Level: core.VerdictBenign, Known: true},
		},
		{
			name: "single detection is suspicious",
			rep:  core.FileReport{Queried: true, Found: true, Malicious: 1},
			want: core.SourceVerdict{Level: core.VerdictSuspicious, Known: true},
		},
		{
			name: "named threat crosses malicious",
			rep:  core.FileReport{Queried: true, Found: true, Malicious: 1, ThreatNames: 1},
			want: core.SourceVerdict{Level: core.VerdictMalicious, Known: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreFile(tt.rep))
		})
	}
}

func TestWorstVerdict(t *testing.T) {
	unknown := core.SourceVerdict{}
	benign := core.SourceVerdict{Level: core.VerdictBenign, Known: true}
	suspicious := core.SourceVerdict{Level: core.VerdictSuspicious, Known: true}
	malicious := core.SourceVerdict{Level: core.VerdictMalicious, Known: true}

	assert.Equal(t, unknown, worstVerdict())
	assert.Equal(t, unknown, worstVerdict(unknown, unknown))
	assert.Equal(t, benign, worstVerdict(unknown, benign))
	assert.Equal(t, malicious, worstVerdict(benign, malicious, suspicious))
}
