package middleware

import (
	"net"
	"net/http"
	"strings"
)

// Proxy headers carrying the originating client address, in trust order.
var clientIPHeaders = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// ClientIP extracts the real client IP address from proxy headers, falling
// back to the connection's remote address. It is the default Key function
// of the rate limiting middleware, so requests funneled through a proxy or
// load balancer are attributed to the originating client rather than to
// the proxy itself.
//
// Candidate addresses are validated and normalized; malformed values and
// the 0.0.0.0 placeholder are skipped. If nothing yields a valid address,
// the raw RemoteAddr is returned so every request still maps to some key.
func ClientIP(r *http.Request) string {
	for _, header := range clientIPHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		// X-Forwarded-For carries "client, proxy1, proxy2"; the leftmost
		// entry is the originating client.
		if i := strings.IndexByte(value, ','); i >= 0 {
			value = value[:i]
		}
		if ip := normalizeIP(value); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := normalizeIP(host); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// normalizeIP validates a candidate address and canonicalizes its textual
// form. Returns "" for anything unparseable and for unspecified addresses
// (0.0.0.0, ::), which some proxies emit when no client IP is known.
func normalizeIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
