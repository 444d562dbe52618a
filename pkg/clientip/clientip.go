package clientip

import (
	"net"
	"net/http"
	"strings"
)

// DefaultHeaders are consulted in order before falling back to RemoteAddr.
var DefaultHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// Resolver extracts the client address recorded in session payloads and
// used as the rate limit key.
type Resolver struct {
	headers []string
}

// New returns a resolver trusting headers in order. With no headers only
// RemoteAddr is used, which is the right choice when no proxy sits in front.
func New(headers ...string) *Resolver {
	return &Resolver{headers: headers}
}

// GetIP resolves the client address with DefaultHeaders.
func GetIP(r *http.Request) string {
	return New(DefaultHeaders...).IP(r)
}

// IP returns the first valid address among the trusted headers, then
// RemoteAddr. X-Forwarded-For lists are scanned left to right. The result is
// normalized, or empty when nothing parses.
func (res *Resolver) IP(r *http.Request) string {
	for _, h := range res.headers {
		v := r.Header.Get(h)
		if v == "" {
			continue
		}
		for part := range strings.SplitSeq(v, ",") {
			if ip := parseIP(part); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

func parseIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil {
		return ""
	}
	return ip.String()
}
