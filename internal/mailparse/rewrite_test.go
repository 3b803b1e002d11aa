package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteSubjectReplacesInPlace(t *testing.T) {
	raw := []byte("From: alice@example.com\r\n" +
		"Subject: Original subject\r\n" +
		"To: bob@hyinfo.cc\r\n" +
		"\r\n" +
		"body line\r\n")

	out := RewriteSubject(raw, "[SUSPICIOUS] Original subject")
	s := string(out)

	assert.Contains(t, s, "Subject: [SUSPICIOUS] Original subject\r\n")
	assert.NotContains(t, s, "Subject: Original subject")
	// Everything else survives untouched.
	assert.Contains(t, s, "From: alice@example.com\r\n")
	assert.Contains(t, s, "To: bob@hyinfo.cc\r\n")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\nbody line\r\n"))
}

func TestRewriteSubjectDropsFoldedContinuation(t *testing.T) {
	raw := []byte("Subject: a very long\r\n" +
		" folded subject line\r\n" +
		"From: alice@example.com\r\n" +
		"\r\n" +
		"body\r\n")

	out := RewriteSubject(raw, "short")
	s := string(out)

	assert.Contains(t, s, "Subject: short\r\n")
	assert.NotContains(t, s, "folded subject line")
	assert.Contains(t, s, "From: alice@example.com\r\n")
}

func TestRewriteSubjectAddsWhenMissing(t *testing.T) {
	raw := []byte("From: alice@example.com\r\n\r\nbody\r\n")

	out := RewriteSubject(raw, "added")
	s := string(out)
	assert.Contains(t, s, "Subject: added\r\n")
	assert.Contains(t, s, "body")
}

func TestRewriteSubjectEncodesNonASCII(t *testing.T) {
	raw := []byte("Subject: plain\r\nFrom: a@example.com\r\n\r\nbody\r\n")

	out := RewriteSubject(raw, "Warnung: Rechnung für März")
	s := string(out)
	require.Contains(t, s, "Subject: =?utf-8?q?")

	// The rewritten message still round-trips through the decoder.
	p := Decode(out)
	assert.Equal(t, "Warnung: Rechnung für März", p.Subject)
}

func TestRewriteSubjectLFOnlyMessage(t *testing.T) {
	raw := []byte("Subject: old\nFrom: a@example.com\n\nbody\n")

	out := RewriteSubject(raw, "new")
	s := string(out)
	assert.Contains(t, s, "Subject: new\r\n")
	assert.NotContains(t, s, "Subject: old")
	assert.True(t, strings.HasSuffix(s, "\nbody\n"))
}
