package mailparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyinfo/phishgate/internal/core"
)

func TestDecodePlainTextMessage(t *testing.T) {
	raw := []byte("From: Alice Smith <Alice@Example.COM>\r\n" +
		"To: bob@hyinfo.cc, carol@hyinfo.cc\r\n" +
		"Subject: Weekly update\r\n" +
		"Date: Mon, 02 Jun 2025 09:30:00 +0000\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"See https://intranet.hyinfo.cc/wiki and https://intranet.hyinfo.cc/wiki again.\r\n")

	p := Decode(raw)
	assert.Equal(t, "alice@example.com", p.Sender)
	assert.Equal(t, "Alice Smith", p.SenderName)
	assert.Equal(t, []string{"bob@hyinfo.cc", "carol@hyinfo.cc"}, p.Recipients)
	assert.Equal(t, "Weekly update", p.Subject)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC), p.SendTime.UTC())
	assert.Contains(t, p.Body, "See https://intranet.hyinfo.cc/wiki")
	// Duplicate URLs collapse to one entry.
	assert.Equal(t, []string{"https://intranet.hyinfo.cc/wiki"}, p.URLs)
	assert.Empty(t, p.Attachments)
}

func TestDecodeEncodedSubject(t *testing.T) {
	raw := []byte("From: alice@example.com\r\n" +
		"To: bob@hyinfo.cc\r\n" +
		"Subject: =?utf-8?q?Rechnung_f=C3=BCr_M=C3=A4rz?=\r\n" +
		"\r\n" +
		"body\r\n")

	p := Decode(raw)
	assert.Equal(t, "Rechnung für März", p.Subject)
}

func TestDecodeMultipartWithAttachment(t *testing.T) {
	raw := []byte("From: alice@example.com\r\n" +
		"To: bob@hyinfo.cc\r\n" +
		"Subject: Invoice\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Invoice attached.\r\n" +
		"--outer\r\n" +
		"Content-Type: application/pdf; name=\"invoice.pdf\"\r\n" +
		"Content-Disposition: attachment; filename=\"invoice.pdf\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"aGVsbG8gd29ybGQ=\r\n" +
		"--outer--\r\n")

	p := Decode(raw)
	assert.Contains(t, p.Body, "Invoice attached.")
	require.Len(t, p.Attachments, 1)
	att := p.Attachments[0]
	assert.Equal(t, "invoice.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, 11, att.Size)
	// md5("hello world")
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", att.MD5)
}

func TestDecodeHTMLOnlyFallsBackToHTML(t *testing.T) {
	raw := []byte("From: alice@example.com\r\n" +
		"To: bob@hyinfo.cc\r\n" +
		"Subject: Promo\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>Click <a href=\"http://promo.example.com/deal\">here</a></p>\r\n")

	p := Decode(raw)
	assert.Contains(t, p.Body, "<p>Click")
	assert.Equal(t, []string{"http://promo.example.com/deal"}, p.URLs)
}

func TestDecodeUnparsableBodyKeepsSentinel(t *testing.T) {
	raw := []byte("this is not an rfc822 message")
	p := Decode(raw)
	assert.Equal(t, core.PendingBody, p.Body)
	assert.Empty(t, p.Recipients)
	assert.False(t, p.SendTime.IsZero(), "send time must never be unset")
}

func TestDecodeMissingDateFallsBackToNow(t *testing.T) {
	raw := []byte("From: alice@example.com\r\nTo: bob@hyinfo.cc\r\nSubject: x\r\n\r\nbody\r\n")
	before := time.Now()
	p := Decode(raw)
	assert.False(t, p.SendTime.Before(before.Add(-time.Second)))
}

func TestRecipientHeadersMergesToCcBcc(t *testing.T) {
	raw := []byte("From: alice@example.com\r\n" +
		"To: bob@hyinfo.cc\r\n" +
		"Cc: carol@hyinfo.cc\r\n" +
		"Bcc: dave@hyinfo.cc, bob@hyinfo.cc\r\n" +
		"Subject: x\r\n" +
		"\r\nbody\r\n")

	p := Decode(raw)
	assert.Equal(t, []string{"bob@hyinfo.cc", "carol@hyinfo.cc", "dave@hyinfo.cc"}, p.RecipientHeaders())
}

func TestAlternateRecipients(t *testing.T) {
	raw := []byte("From: alice@example.com\r\n" +
		"Subject: x\r\n" +
		"X-Original-To: hidden@hyinfo.cc\r\n" +
		"Delivered-To: other@hyinfo.cc\r\n" +
		"\r\nbody\r\n")

	p := Decode(raw)
	assert.Empty(t, p.Recipients)
	// X-Original-To wins over Delivered-To.
	assert.Equal(t, []string{"hidden@hyinfo.cc"}, p.AlternateRecipients())
}

func TestExtractURLs(t *testing.T) {
	urls := ExtractURLs("Visit http://a.example/x and https://b.example/y?q=1 now, then http://a.example/x again")
	assert.Equal(t, []string{"http://a.example/x", "https://b.example/y?q=1"}, urls)
}
