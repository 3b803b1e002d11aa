package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyinfo/phishgate/internal/core"
)

// SystemPrompt frames the model as a phishing analyst that answers in JSON
const SystemPrompt = "You are an email security analyst specializing in phishing detection. Respond only with JSON."

const promptHeader = `Analyze the following email and decide whether it is a phishing attempt.
Respond with a JSON object containing:
- result: integer, 0 = benign, 1 = suspicious, 2 = malicious
- reason: string, brief explanation of the decision
- phishing_type: string, category such as credential_theft, payment_fraud, malware_delivery, impersonation, or none
- confidence: number between 0 and 1

`

// BuildPrompt renders the classification request for a single delivery record
func BuildPrompt(input *core.ClassificationInput, body string) string {
	rec := input.Record

	var b strings.Builder
	b.WriteString(promptHeader)

	b.WriteString("Email:\n")
	fmt.Fprintf(&b, "From: %s\n", rec.Sender)
	fmt.Fprintf(&b, "To: %s\n", rec.Recipient)
	fmt.Fprintf(&b, "Subject: %s\n", rec.Subject)
	fmt.Fprintf(&b, "Sender domain: %s\n", rec.FromDomain)
	fmt.Fprintf(&b, "Source IP: %s\n", rec.SourceIP)
	if len(rec.URLs) > 0 {
		fmt.Fprintf(&b, "URLs: %s\n", strings.Join(rec.URLs, ", "))
	}
	if len(rec.Attachments) > 0 {
		names := make([]string, 0, len(rec.Attachments))
		for _, a := range rec.Attachments {
			names = append(names, a.Filename)
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(names, ", "))
	}
	b.WriteString("Body:\n")
	b.WriteString(body)
	b.WriteString("\n")

	writeSignals(&b, rec)
	writeSimilar(&b, input.Similar)

	b.WriteString("\nRespond only with the JSON object and nothing else.")
	return b.String()
}

// writeSignals reports prior enrichment verdicts so the model can weigh them
func writeSignals(b *strings.Builder, rec *core.DeliveryRecord) {
	signals := []struct {
		label   string
		verdict core.SourceVerdict
	}{
		{"URL reputation", rec.URLVerdict},
		{"Source IP reputation", rec.IPVerdict},
		{"Attachment reputation", rec.FileVerdict},
		{"Sandbox analysis", rec.SandboxVerdict},
	}

	wrote := false
	for _, s := range signals {
		if !s.verdict.Known {
			continue
		}
		if !wrote {
			b.WriteString("\nThreat intelligence signals:\n")
			wrote = true
		}
		fmt.Fprintf(b, "- %s: %s\n", s.label, s.verdict.Level)
	}
}

func writeSimilar(b *strings.Builder, similar []core.SimilarRecord) {
	if len(similar) == 0 {
		return
	}
	b.WriteString("\nPreviously analyzed similar emails:\n")
	for _, s := range similar {
		fmt.Fprintf(b, "- [similarity %.2f, label %s] subject: %s, from: %s\n",
			s.Similarity, s.Label, s.Subject, s.Sender)
	}
}

// ParseAnalysis decodes the model's JSON answer, tolerating code fences and
// surrounding prose
func ParseAnalysis(responseText string) (*core.AIAnalysis, error) {
	text := strings.TrimSpace(responseText)

	// Strip markdown fences some models insist on.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var decoded struct {
		Result       int     `json:"result"`
		Reason       string  `json:"reason"`
		PhishingType string  `json:"phishing_type"`
		Confidence   float64 `json:"confidence"`
	}

	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		// Fall back to the outermost brace pair.
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("failed to extract JSON from model response: %w", err)
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &decoded); err != nil {
			return nil, fmt.Errorf("failed to parse model response as JSON: %w", err)
		}
	}

	if decoded.Result < 0 || decoded.Result > 2 {
		return nil, fmt.Errorf("model returned out-of-range result %d", decoded.Result)
	}

	return &core.AIAnalysis{
		Result:       core.Verdict(decoded.Result),
		Reason:       decoded.Reason,
		PhishingType: decoded.PhishingType,
		Confidence:   decoded.Confidence,
	}, nil
}
