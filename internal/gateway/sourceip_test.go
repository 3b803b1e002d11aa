package gateway

import (
	"net"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSourceIP(t *testing.T) {
	tcpAddr := &net.TCPAddr{IP: net.ParseIP("198.51.100.4"), Port: 40022}

	tests := []struct {
		name   string
		remote net.Addr
		header mail.Header
		want   string
	}{
		{
			name:   "peer hint wins over tcp address",
			remote: tcpAddr,
			header: mail.Header{"X-Peer": {"('203.0.113.9', 51234)"}},
			want:   "203.0.113.9",
		},
		{
			name:   "bare ipv6 peer hint",
			remote: tcpAddr,
			header: mail.Header{"X-Peer": {"2001:db8::17"}},
			want:   "2001:db8::17",
		},
		{
			name:   "tcp peer address",
			remote: tcpAddr,
			header: mail.Header{},
			want:   "198.51.100.4",
		},
		{
			name:   "received header fallback",
			remote: nil,
			header: mail.Header{"Received": {
				"from relay.example (relay.example [192.0.2.50]) by mx.hyinfo.cc",
				"from origin.example (origin.example [203.0.113.77]) by relay.example",
			}},
			want: "203.0.113.77",
		},
		{
			name:   "nothing resolvable defaults to loopback",
			remote: nil,
			header: mail.Header{},
			want:   "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSourceIP(tt.remote, tt.header))
		})
	}
}
