package mailparse

import (
	"mime"
	"net/mail"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
)

// addressPattern validates a bare local@domain.tld address
var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// looseAddressPattern salvages address-like tokens from unparsable headers
var looseAddressPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

var headerDecoder = mime.WordDecoder{CharsetReader: charset.Reader}

var addressParser = mail.AddressParser{WordDecoder: &headerDecoder}

// DecodeHeader decodes an RFC 2047 encoded header value to plain text.
// Decoding failures fall back to the raw value rather than erroring.
func DecodeHeader(value string) string {
	if value == "" {
		return ""
	}
	decoded, err := headerDecoder.DecodeHeader(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(decoded)
}

// ParseAddressList merges one or more address header values into a single
// list of validated, lower-cased bare addresses, deduplicated in first-seen
// order. Encoded display names are tolerated and discarded.
func ParseAddressList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	joined := strings.Join(values, ", ")

	var candidates []string
	if list, err := addressParser.ParseList(joined); err == nil {
		for _, a := range list {
			candidates = append(candidates, a.Address)
		}
	} else {
		// Malformed header; salvage whatever looks like an address
		candidates = looseAddressPattern.FindAllString(joined, -1)
	}

	seen := make(map[string]struct{}, len(candidates))
	var out []string
	for _, c := range candidates {
		addr := strings.ToLower(strings.TrimSpace(c))
		if !addressPattern.MatchString(addr) {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// SenderAddress extracts the bare sender address from a From header value,
// dropping any display name. Returns "" when no address can be parsed.
func SenderAddress(fromHeader string) string {
	if fromHeader == "" {
		return ""
	}
	if a, err := addressParser.Parse(fromHeader); err == nil {
		return strings.ToLower(strings.TrimSpace(a.Address))
	}
	if m := looseAddressPattern.FindString(fromHeader); m != "" {
		return strings.ToLower(m)
	}
	return ""
}

// DomainOf returns the domain part of an address, or "" if there is none
func DomainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 {
		return addr[i+1:]
	}
	return ""
}
