package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

const (
	envICEServersJSON = "ICE_SERVERS_JSON"

	envSTUNURLs       = "STUN_URLS"
	envTURNURLs       = "TURN_URLS"
	envTURNUsername   = "TURN_USERNAME"
	envTURNCredential = "TURN_CREDENTIAL"
)

// parseICEServersFromEnv builds the ICE server list served to clients at
// /rtc/ice. ICE_SERVERS_JSON takes precedence; otherwise the convenience
// variables STUN_URLS/TURN_URLS(/TURN_USERNAME/TURN_CREDENTIAL) apply.
func parseICEServersFromEnv(lookup func(string) (string, bool)) ([]webrtc.ICEServer, error) {
	if raw := envOrDefault(lookup, envICEServersJSON, ""); raw != "" {
		servers, err := ParseICEServersJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envICEServersJSON, err)
		}
		return servers, nil
	}

	var servers []webrtc.ICEServer
	if stun := envOrDefault(lookup, envSTUNURLs, ""); stun != "" {
		urls, err := splitURLList(stun, "stun")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envSTUNURLs, err)
		}
		servers = append(servers, webrtc.ICEServer{URLs: urls})
	}
	if turn := envOrDefault(lookup, envTURNURLs, ""); turn != "" {
		urls, err := splitURLList(turn, "turn")
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envTURNURLs, err)
		}
		server := webrtc.ICEServer{
			URLs:     urls,
			Username: envOrDefault(lookup, envTURNUsername, ""),
		}
		if cred := envOrDefault(lookup, envTURNCredential, ""); cred != "" {
			server.Credential = cred
		}
		servers = append(servers, server)
	}
	return servers, nil
}

type iceServerJSON struct {
	URLs       stringOrStringSlice `json:"urls"`
	Username   string              `json:"username,omitempty"`
	Credential string              `json:"credential,omitempty"`
}

type stringOrStringSlice []string

func (s *stringOrStringSlice) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// ParseICEServersJSON parses an RTCIceServer-shaped JSON array.
func ParseICEServersJSON(raw string) ([]webrtc.ICEServer, error) {
	var servers []iceServerJSON
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		return nil, err
	}

	out := make([]webrtc.ICEServer, 0, len(servers))
	for i, server := range servers {
		urls := make([]string, 0, len(server.URLs))
		for _, u := range server.URLs {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if !validICEURL(u) {
				return nil, fmt.Errorf("server %d: unsupported url %q", i, u)
			}
			urls = append(urls, u)
		}
		if len(urls) == 0 {
			return nil, fmt.Errorf("server %d: no urls", i)
		}
		entry := webrtc.ICEServer{
			URLs:     urls,
			Username: strings.TrimSpace(server.Username),
		}
		if cred := strings.TrimSpace(server.Credential); cred != "" {
			entry.Credential = cred
		}
		out = append(out, entry)
	}
	return out, nil
}

func splitURLList(raw, kind string) ([]string, error) {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		u := strings.TrimSpace(part)
		if u == "" {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(u), kind+":") && !strings.HasPrefix(strings.ToLower(u), kind+"s:") {
			return nil, fmt.Errorf("url %q must start with %s: or %ss:", u, kind, kind)
		}
		out = append(out, u)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no urls")
	}
	return out, nil
}

func validICEURL(u string) bool {
	lower := strings.ToLower(u)
	for _, prefix := range []string{"stun:", "stuns:", "turn:", "turns:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func hasTURNServer(servers []webrtc.ICEServer) bool {
	for _, server := range servers {
		for _, raw := range server.URLs {
			lower := strings.ToLower(strings.TrimSpace(raw))
			if strings.HasPrefix(lower, "turn:") || strings.HasPrefix(lower, "turns:") {
				return true
			}
		}
	}
	return false
}
