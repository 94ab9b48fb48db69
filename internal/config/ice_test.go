package config

import (
	"strings"
	"testing"
)

func TestParseICEServersJSON(t *testing.T) {
	raw := `[
		{"urls": "stun:stun.example.com:3478"},
		{"urls": ["turn:turn.example.com:3478?transport=udp", "turns:turn.example.com:5349"],
		 "username": "u", "credential": "c"}
	]`
	servers, err := ParseICEServersJSON(raw)
	if err != nil {
		t.Fatalf("ParseICEServersJSON: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("got %d servers, want 2", len(servers))
	}
	if len(servers[0].URLs) != 1 || servers[0].URLs[0] != "stun:stun.example.com:3478" {
		t.Errorf("server 0 URLs=%v", servers[0].URLs)
	}
	if servers[0].Credential != nil {
		t.Errorf("server 0 Credential=%v, want unset", servers[0].Credential)
	}
	if len(servers[1].URLs) != 2 {
		t.Errorf("server 1 URLs=%v", servers[1].URLs)
	}
	if servers[1].Username != "u" {
		t.Errorf("server 1 Username=%q", servers[1].Username)
	}
	if cred, ok := servers[1].Credential.(string); !ok || cred != "c" {
		t.Errorf("server 1 Credential=%v", servers[1].Credential)
	}
}

func TestParseICEServersJSONRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "stun:stun.example.com"},
		{"object not array", `{"urls": "stun:stun.example.com"}`},
		{"unsupported scheme", `[{"urls": "http://example.com"}]`},
		{"empty urls", `[{"urls": []}]`},
		{"blank url only", `[{"urls": [" "]}]`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseICEServersJSON(tc.raw); err == nil {
				t.Fatal("ParseICEServersJSON succeeded, want error")
			}
		})
	}
}

func TestICEServersJSONTakesPrecedence(t *testing.T) {
	cfg, err := load(mapLookup(map[string]string{
		envICEServersJSON: `[{"urls": "stun:json.example.com:3478"}]`,
		envSTUNURLs:       "stun:env.example.com:3478",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.ICEServers) != 1 || cfg.ICEServers[0].URLs[0] != "stun:json.example.com:3478" {
		t.Fatalf("ICEServers=%v, want the JSON entry only", cfg.ICEServers)
	}
}

func TestConvenienceSTUNAndTURNVariables(t *testing.T) {
	cfg, err := load(mapLookup(map[string]string{
		envSTUNURLs:       "stun:stun1.example.com:3478, stun:stun2.example.com:3478",
		envTURNURLs:       "turn:turn.example.com:3478",
		envTURNUsername:   "u",
		envTURNCredential: "c",
	}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.ICEServers) != 2 {
		t.Fatalf("got %d servers, want stun + turn", len(cfg.ICEServers))
	}
	if len(cfg.ICEServers[0].URLs) != 2 {
		t.Errorf("stun URLs=%v, want both entries", cfg.ICEServers[0].URLs)
	}
	turn := cfg.ICEServers[1]
	if turn.Username != "u" {
		t.Errorf("turn Username=%q", turn.Username)
	}
	if cred, ok := turn.Credential.(string); !ok || cred != "c" {
		t.Errorf("turn Credential=%v", turn.Credential)
	}
	if !hasTURNServer(cfg.ICEServers) {
		t.Error("hasTURNServer=false for a turn: URL")
	}
}

func TestConvenienceVariablesRejectWrongScheme(t *testing.T) {
	_, err := load(mapLookup(map[string]string{
		envSTUNURLs: "turn:turn.example.com:3478",
	}), nil)
	if err == nil || !strings.Contains(err.Error(), envSTUNURLs) {
		t.Fatalf("err=%v, want %s rejection", err, envSTUNURLs)
	}

	_, err = load(mapLookup(map[string]string{
		envTURNURLs: "stun:stun.example.com:3478",
	}), nil)
	if err == nil || !strings.Contains(err.Error(), envTURNURLs) {
		t.Fatalf("err=%v, want %s rejection", err, envTURNURLs)
	}
}
