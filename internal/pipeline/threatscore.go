package pipeline

import (
	"strings"
	"time"

	"github.com/hyinfo/phishgate/internal/core"
)

const newDomainWindow = 7 * 24 * time.Hour

// scoreDomain folds a domain reputation report into a verdict. New domains
// and vendor risk tags weigh in alongside raw detection counts.
func scoreDomain(rep core.DomainReport, now time.Time) core.SourceVerdict {
	if !rep.Queried {
		return core.SourceVerdict{}
	}
	if !rep.Found {
		// The source has never seen the resource: that is a clean answer
		return core.SourceVerdict{Level: core.VerdictBenign, Known: true}
	}

	score := float64(rep.Malicious)*5 + float64(rep.Suspicious)*2 + float64(rep.RiskTags)*3
	if rep.Reputation <= 0 {
		score += float64(rep.Reputation) * -0.01
	}
	if !rep.FirstSubmission.IsZero() && now.Sub(rep.FirstSubmission) <= newDomainWindow {
		score += 2
	}

	switch {
	case score >= 6:
		return core.SourceVerdict{Level: core.VerdictMalicious, Known: true}
	case score >= 3:
		return core.SourceVerdict{Level: core.VerdictSuspicious, Known: true}
	default:
		return core.SourceVerdict{Level: core.VerdictBenign, Known: true}
	}
}

// scoreIP folds an IP reputation report into a verdict. Addresses parked
// outside the major cloud operators carry extra weight.
func scoreIP(rep core.IPReport, trustedASOwners []string) core.SourceVerdict {
	if !rep.Queried {
		return core.SourceVerdict{}
	}
	if !rep.Found {
		return core.SourceVerdict{Level: core.VerdictBenign, Known: true}
	}

	score := float64(rep.Malicious)*5 + float64(rep.Suspicious)*2 + float64(rep.CrowdsourcedContext)*4
	if rep.Reputation <= 500 {
		score += float64(500-rep.Reputation) * 0.001
	}
	if !trustedASOwner(rep.ASOwner, trustedASOwners) {
		score += 3
	}

	switch {
	case score >= 8:
		return core.SourceVerdict{Level: core.VerdictMalicious, Known: true}
	case score >= 4:
		return core.SourceVerdict{Level: core.VerdictSuspicious, Known: true}
	default:
		return core.SourceVerdict{Level: core.VerdictBenign, Known: true}
	}
}

// scoreFile folds a file reputation report into a verdict
func scoreFile(rep core.FileReport) core.SourceVerdict {
	if !rep.Queried {
		return core.SourceVerdict{}
	}
	if !rep.Found {
		return core.SourceVerdict{Level: core.VerdictBenign, Known: true}
	}

	score := float64(rep.Malicious)*6 + float64(rep.Suspicious)*2 + float64(rep.ThreatNames)*5
	if rep.Reputation <= 0 {
		score += float64(rep.Reputation) * -0.02
	}

	switch {
	case score >= 9:
		return core.SourceVerdict{Level: core.VerdictMalicious, Known: true}
	case score >= 4:
		return core.SourceVerdict{Level: core.VerdictSuspicious, Known: true}
	default:
		return core.SourceVerdict{Level: core.VerdictBenign, Known: true}
	}
}

func trustedASOwner(owner string, trusted []string) bool {
	if owner == "" {
		return false
	}
	lower := strings.ToLower(owner)
	for _, t := range trusted {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

// worstVerdict picks the highest known level across a set of verdicts
func worstVerdict(verdicts ...core.SourceVerdict) core.SourceVerdict {
	out := core.SourceVerdict{}
	for _, v := range verdicts {
		if !v.Known {
			continue
		}
		if !out.Known || v.Level > out.Level {
			out.Level = v.Level
		}
		out.Known = true
	}
	return out
}
