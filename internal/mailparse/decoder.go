package mailparse

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"

	"github.com/hyinfo/phishgate/internal/core"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// ParsedMail is the structured decode of one raw transport-level message
type ParsedMail struct {
	Sender      string
	SenderName  string
	Recipients  []string
	Subject     string
	SendTime    time.Time
	Body        string
	URLs        []string
	Attachments []core.Attachment

	// Header retains all raw header occurrences for trace inspection and
	// envelope recomputation at forward time.
	Header mail.Header
}

// Decode parses a raw message into structured fields. Every field is
// best-effort: decode failures fall back per field, never abort the whole
// message.
func Decode(raw []byte) *ParsedMail {
	p := &ParsedMail{
		Body:   core.PendingBody,
		Header: mail.Header{},
	}

	if msg, err := mail.ReadMessage(bytes.NewReader(raw)); err == nil {
		p.Header = msg.Header
	}

	p.Subject = DecodeHeader(p.Header.Get("Subject"))
	p.Sender = SenderAddress(p.Header.Get("From"))
	p.SenderName = senderName(p.Header.Get("From"))
	p.Recipients = ParseAddressList(p.Header["To"])
	p.SendTime = parseDate(p.Header.Get("Date"))

	texts, htmls, atts := walkParts(raw)
	if len(texts) > 0 {
		p.Body = strings.Join(texts, "\n")
	} else if len(htmls) > 0 {
		p.Body = strings.Join(htmls, "\n")
	}
	p.Attachments = atts
	p.URLs = ExtractURLs(p.Body)

	return p
}

// ExtractURLs scans body text for http(s) URLs, deduplicated in first-seen
// order
func ExtractURLs(body string) []string {
	if body == "" {
		return nil
	}
	matches := urlPattern.FindAllString(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var urls []string
	for _, u := range matches {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	return urls
}

// RecipientHeaders parses the full recipient header set (To/Cc/Bcc) into one
// deduplicated address list, used when recomputing the relay envelope.
func (p *ParsedMail) RecipientHeaders() []string {
	var values []string
	for _, key := range []string{"To", "Cc", "Bcc"} {
		values = append(values, p.Header[key]...)
	}
	return ParseAddressList(values)
}

// AlternateRecipients falls back to proxy delivery headers when the standard
// recipient headers carried no usable address
func (p *ParsedMail) AlternateRecipients() []string {
	alt := p.Header["X-Original-To"]
	if len(alt) == 0 {
		alt = p.Header["Delivered-To"]
	}
	return ParseAddressList(alt)
}

func senderName(fromHeader string) string {
	if fromHeader == "" {
		return ""
	}
	if a, err := addressParser.Parse(fromHeader); err == nil {
		return strings.TrimSpace(a.Name)
	}
	return ""
}

func parseDate(value string) time.Time {
	if value != "" {
		if t, err := mail.ParseDate(value); err == nil {
			return t
		}
	}
	// Never leave the send time unset
	return time.Now()
}

// walkParts traverses the MIME part tree depth-first, collecting decoded
// text/plain and text/html bodies and hashing every part that carries a
// filename. Transfer encoding (quoted-printable, base64) and charsets are
// decoded by go-message before we see the payload.
func walkParts(raw []byte) (texts, htmls []string, atts []core.Attachment) {
	ent, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, nil, nil
	}
	collect(ent, &texts, &htmls, &atts)
	return texts, htmls, atts
}

func collect(ent *message.Entity, texts, htmls *[]string, atts *[]core.Attachment) {
	if mr := ent.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return
			}
			if err != nil && !message.IsUnknownCharset(err) {
				return
			}
			collect(part, texts, htmls, atts)
		}
	}

	mediaType, typeParams, _ := ent.Header.ContentType()
	_, dispParams, _ := ent.Header.ContentDisposition()

	filename := dispParams["filename"]
	if filename == "" {
		filename = typeParams["name"]
	}

	payload, err := io.ReadAll(ent.Body)
	if err != nil {
		return
	}

	if filename != "" {
		sum := md5.Sum(payload)
		*atts = append(*atts, core.Attachment{
			Filename:    DecodeHeader(filename),
			ContentType: mediaType,
			Size:        len(payload),
			MD5:         hex.EncodeToString(sum[:]),
		})
	}

	switch mediaType {
	case "text/plain":
		*texts = append(*texts, string(payload))
	case "text/html":
		*htmls = append(*htmls, string(payload))
	}
}
