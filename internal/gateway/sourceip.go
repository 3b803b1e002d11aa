package gateway

import (
	"net"
	"net/mail"
	"regexp"
)

var ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

// ResolveSourceIP determines the real client IP for a session: a
// proxy-supplied peer hint wins, then the TCP peer address, then the last
// IPv4 token of the final Received header, then loopback.
func ResolveSourceIP(remote net.Addr, header mail.Header) string {
	if peer := header.Get("X-Peer"); peer != "" {
		if ip := ipv4Pattern.FindString(peer); ip != "" {
			return ip
		}
		if net.ParseIP(peer) != nil {
			return peer
		}
	}

	if remote != nil {
		if host, _, err := net.SplitHostPort(remote.String()); err == nil && net.ParseIP(host) != nil {
			return host
		}
		if net.ParseIP(remote.String()) != nil {
			return remote.String()
		}
	}

	if received := header["Received"]; len(received) > 0 {
		if ip := ipv4Pattern.FindString(received[len(received)-1]); ip != "" {
			return ip
		}
	}

	return "127.0.0.1"
}
