package allowlist

import (
	"strings"

	"go.uber.org/zap"
)

// Checker filters recipient addresses against the configured domain
// allow-list. An empty list accepts every syntactically valid recipient.
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new allow-list checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	normalized := make([]string, 0, len(domains))
	for _, domain := range domains {
		d := strings.ToLower(strings.TrimSpace(domain))
		if d != "" {
			normalized = append(normalized, d)
		}
	}

	if len(normalized) > 0 && logger != nil {
		logger.Info("Initialized recipient domain allow-list", zap.Strings("domains", normalized))
	}

	return &Checker{
		domains: normalized,
		logger:  logger,
	}
}

// Accepts reports whether the recipient address belongs to an allowed domain
func (c *Checker) Accepts(addr string) bool {
	if len(c.domains) == 0 {
		return true
	}

	for _, domain := range c.domains {
		if strings.HasSuffix(addr, "@"+domain) {
			return true
		}
	}
	return false
}

// Filter returns the allowed subset of addrs, preserving order
func (c *Checker) Filter(addrs []string) []string {
	if len(c.domains) == 0 {
		return addrs
	}

	var out []string
	for _, addr := range addrs {
		if c.Accepts(addr) {
			out = append(out, addr)
		}
	}
	return out
}
