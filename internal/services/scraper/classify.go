package scraper

import (
	"errors"
	"net"
	"strings"
)

// networkErrorIndicators marks failures that auto-pause a job for
// later resumption instead of failing it. Matching is case-insensitive
// substring search over the error text, used when the error chain
// carries no net.Error.
var networkErrorIndicators = []string{
	"connection",
	"timeout",
	"network",
	"dns",
	"resolve",
	"unreachable",
	"refused",
	"reset",
	"ssl",
	"certificate",
}

// isNetworkError reports whether the error names a transient network
// condition. Transport errors surface as net.Error through the wrap
// chain; HTTP status and parse errors do not and fall through to the
// text match.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range networkErrorIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
