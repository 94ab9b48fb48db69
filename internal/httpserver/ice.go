package httpserver

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// withTURNCredentials returns a copy of servers with ephemeral credentials
// applied to every entry that carries a turn:/turns: URL. STUN-only
// entries are left untouched.
func withTURNCredentials(servers []webrtc.ICEServer, username, credential string) []webrtc.ICEServer {
	if len(servers) == 0 {
		return servers
	}
	out := make([]webrtc.ICEServer, len(servers))
	for i, server := range servers {
		out[i] = server
		if hasTURNURL(server) {
			out[i].Username = username
			out[i].Credential = credential
		}
	}
	return out
}

func hasTURNURL(server webrtc.ICEServer) bool {
	for _, raw := range server.URLs {
		lower := strings.ToLower(strings.TrimSpace(raw))
		if strings.HasPrefix(lower, "turn:") || strings.HasPrefix(lower, "turns:") {
			return true
		}
	}
	return false
}
