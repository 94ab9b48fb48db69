package origin

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"plain https", "https://app.example.com", "https://app.example.com", true},
		{"uppercase host", "HTTPS://App.Example.COM", "https://app.example.com", true},
		{"default https port elided", "https://app.example.com:443", "https://app.example.com", true},
		{"default http port elided", "http://app.example.com:80", "http://app.example.com", true},
		{"non-default port kept", "https://app.example.com:8443", "https://app.example.com:8443", true},
		{"trailing slash tolerated", "https://app.example.com/", "https://app.example.com", true},
		{"whitespace trimmed", "  https://app.example.com  ", "https://app.example.com", true},
		{"ipv6 literal", "https://[2001:db8::1]:8443", "https://[2001:db8::1]:8443", true},
		{"null origin", "null", "null", true},
		{"empty", "", "", false},
		{"no scheme", "app.example.com", "", false},
		{"unsupported scheme", "ftp://app.example.com", "", false},
		{"path", "https://app.example.com/login", "", false},
		{"query", "https://app.example.com?x=1", "", false},
		{"fragment", "https://app.example.com#top", "", false},
		{"userinfo", "https://alice@app.example.com", "", false},
		{"port zero", "https://app.example.com:0", "", false},
		{"port out of range", "https://app.example.com:70000", "", false},
		{"unclosed ipv6 bracket", "https://[2001:db8::1", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, _, ok := Normalize(tc.raw)
			if ok != tc.wantOK || got != tc.want {
				t.Fatalf("Normalize(%q)=(%q, %v), want (%q, %v)", tc.raw, got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestCheckAllowlist(t *testing.T) {
	allowed := []string{"https://app.example.com", "http://localhost:3000"}

	tests := []struct {
		name   string
		origin string
		wantOK bool
	}{
		{"listed origin", "https://app.example.com", true},
		{"listed origin with default port", "https://app.example.com:443", true},
		{"listed localhost", "http://localhost:3000", true},
		{"unlisted origin", "https://evil.example.com", false},
		{"scheme mismatch", "http://app.example.com", false},
		{"null not listed", "null", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := Check(tc.origin, "relay.example.com", allowed)
			if ok != tc.wantOK {
				t.Fatalf("Check(%q)=%v, want %v", tc.origin, ok, tc.wantOK)
			}
		})
	}
}

func TestCheckWildcard(t *testing.T) {
	if _, ok := Check("https://anything.example.com", "relay.example.com", []string{"*"}); !ok {
		t.Fatal("wildcard allowlist rejected a well-formed origin")
	}
	if _, ok := Check("not a url", "relay.example.com", []string{"*"}); ok {
		t.Fatal("wildcard allowlist accepted a malformed origin")
	}
}

func TestCheckSameHostPolicy(t *testing.T) {
	tests := []struct {
		name        string
		origin      string
		requestHost string
		wantOK      bool
	}{
		{"same host", "https://relay.example.com", "relay.example.com", true},
		{"same host with default port", "https://relay.example.com", "relay.example.com:443", true},
		{"scheme ignored behind tls proxy", "https://relay.example.com", "relay.example.com", true},
		{"http origin same host", "http://relay.example.com:8080", "relay.example.com:8080", true},
		{"different host", "https://evil.example.com", "relay.example.com", false},
		{"different port", "https://relay.example.com:9443", "relay.example.com", false},
		{"null origin rejected", "null", "relay.example.com", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := Check(tc.origin, tc.requestHost, nil)
			if ok != tc.wantOK {
				t.Fatalf("Check(%q, %q)=%v, want %v", tc.origin, tc.requestHost, ok, tc.wantOK)
			}
		})
	}
}
