package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// maxUserAgentKey is the longest user-agent prefix used as an identity.
const maxUserAgentKey = 64

// ClientIdentity derives the rate limit key for r. It returns the first
// non-empty of: the edge-provided CF-Connecting-IP header, the first hop of
// X-Forwarded-For, X-Real-IP, the host part of RemoteAddr, the user agent
// prefixed with "ua:", and finally "anonymous".
func ClientIdentity(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			if host != "" {
				return host
			}
		} else {
			return r.RemoteAddr
		}
	}

	if ua := r.UserAgent(); ua != "" {
		if len(ua) > maxUserAgentKey {
			ua = ua[:maxUserAgentKey]
		}
		return "ua:" + ua
	}

	return "anonymous"
}
