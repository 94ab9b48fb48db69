// Package origin validates browser Origin headers for the relay's HTTP and
// WebSocket surfaces.
package origin

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Check validates an Origin header against the allowlist.
//
// With a non-empty allowlist, each entry must be "*" or a normalized
// origin (scheme://host[:port], default ports elided). With an empty
// allowlist the policy is same-host: the origin's host[:port] must match
// the request's Host header, scheme ignored so the relay can sit behind a
// TLS-terminating proxy.
//
// An absent Origin header (non-browser client) always passes; callers
// should invoke Check only when the header is present.
func Check(originHeader, requestHost string, allowed []string) (normalized string, ok bool) {
	normalized, host, ok := Normalize(originHeader)
	if !ok {
		return "", false
	}

	if len(allowed) > 0 {
		for _, a := range allowed {
			if a == "*" || a == normalized {
				return normalized, true
			}
		}
		return "", false
	}

	if normalized == "null" {
		return "", false
	}
	reqHost, ok := normalizeHost(requestHost, schemeOf(normalized))
	if !ok {
		return "", false
	}
	if host != reqHost {
		return "", false
	}
	return normalized, true
}

// Normalize validates and canonicalizes a browser Origin header value into
// scheme://host[:port] form, lowercased, with default ports elided. The
// special value "null" is allowed and returned as-is.
func Normalize(originHeader string) (normalized, host string, ok bool) {
	raw := strings.TrimSpace(originHeader)
	if raw == "" {
		return "", "", false
	}
	if raw == "null" {
		return "null", "", true
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	host, ok = normalizeHost(u.Host, scheme)
	if !ok {
		return "", "", false
	}
	return scheme + "://" + host, host, true
}

func schemeOf(normalizedOrigin string) string {
	if strings.HasPrefix(normalizedOrigin, "https://") {
		return "https"
	}
	return "http"
}

// normalizeHost lowercases host[:port], validates the port, and elides the
// scheme's default port so "https://example.com:443" and
// "https://example.com" compare equal.
func normalizeHost(rawHost, scheme string) (string, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(rawHost))
	if trimmed == "" {
		return "", false
	}

	hostname := trimmed
	port := ""
	if h, p, err := net.SplitHostPort(trimmed); err == nil {
		hostname, port = h, p
	} else if strings.HasPrefix(trimmed, "[") {
		// Bracketed IPv6 literal without a port.
		end := strings.IndexByte(trimmed, ']')
		if end < 0 || end != len(trimmed)-1 {
			return "", false
		}
		hostname = trimmed[1:end]
	} else if strings.Contains(trimmed, ":") {
		// Unbracketed colon that isn't a valid host:port split.
		return "", false
	}
	if hostname == "" {
		return "", false
	}

	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil || n == 0 {
			return "", false
		}
		if (scheme == "http" && n == 80) || (scheme == "https" && n == 443) {
			port = ""
		}
	}

	out := hostname
	if strings.Contains(hostname, ":") {
		out = "[" + hostname + "]"
	}
	if port != "" {
		out += ":" + port
	}
	return out, true
}
