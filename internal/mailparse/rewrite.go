package mailparse

import (
	"bytes"
	"mime"
)

// RewriteSubject returns a copy of the raw message with its Subject header
// replaced (or added), leaving every other byte of the message untouched.
// Non-ASCII subjects are re-encoded as RFC 2047 words.
func RewriteSubject(raw []byte, subject string) []byte {
	encoded := mime.QEncoding.Encode("utf-8", subject)
	headerLine := []byte("Subject: " + encoded + "\r\n")

	headerEnd, sepLen := headerBoundary(raw)
	if headerEnd < 0 {
		// No header/body separator; treat the whole input as headers
		headerEnd = len(raw)
		sepLen = 0
	}

	var out bytes.Buffer
	out.Grow(len(raw) + len(headerLine))

	replaced := false
	rest := raw[:headerEnd]
	for len(rest) > 0 {
		line, remainder := nextLine(rest)
		rest = remainder

		if isSubjectLine(line) {
			if !replaced {
				out.Write(headerLine)
				replaced = true
			}
			// Skip folded continuation lines of the original subject
			for len(rest) > 0 {
				peek, after := nextLine(rest)
				if len(peek) == 0 || (peek[0] != ' ' && peek[0] != '\t') {
					break
				}
				rest = after
			}
			continue
		}
		out.Write(line)
	}

	if !replaced {
		out.Write(headerLine)
	}
	out.Write(raw[headerEnd : headerEnd+sepLen])
	out.Write(raw[headerEnd+sepLen:])
	return out.Bytes()
}

// headerBoundary finds the header/body separator, returning the offset of
// the blank line and the separator length
func headerBoundary(raw []byte) (int, int) {
	if i := bytes.Index(raw, []byte("\r\n\r\n")); i >= 0 {
		return i + 2, 2
	}
	if i := bytes.Index(raw, []byte("\n\n")); i >= 0 {
		return i + 1, 1
	}
	return -1, 0
}

// nextLine splits off one line including its terminator
func nextLine(b []byte) (line, rest []byte) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i+1], b[i+1:]
	}
	return b, nil
}

func isSubjectLine(line []byte) bool {
	const prefix = "subject:"
	if len(line) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		c := line[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != prefix[i] {
			return false
		}
	}
	return true
}
