package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/hearthlink/hearthlink/services/call-relay/internal/config"
)

func captureWarnings(cfg config.Config) string {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logStartupSecurityWarnings(logger, cfg)
	return buf.String()
}

func TestStartupWarnings(t *testing.T) {
	turnWithStaticCreds := []webrtc.ICEServer{{
		URLs:       []string{"turn:turn.example.com:3478"},
		Username:   "u",
		Credential: "c",
	}}

	tests := []struct {
		name        string
		cfg         config.Config
		wantCodes   []string
		absentCodes []string
	}{
		{
			name:      "auth mode none",
			cfg:       config.Config{Mode: config.ModeDev, AuthMode: config.AuthModeNone},
			wantCodes: []string{"auth_mode_none"},
		},
		{
			name:        "api key auth is quiet",
			cfg:         config.Config{Mode: config.ModeDev, AuthMode: config.AuthModeAPIKey, APIKey: "k"},
			absentCodes: []string{"auth_mode_none"},
		},
		{
			name: "wildcard origins",
			cfg: config.Config{
				Mode:           config.ModeDev,
				AuthMode:       config.AuthModeAPIKey,
				APIKey:         "k",
				AllowedOrigins: []string{"*"},
			},
			wantCodes: []string{"allowed_origins_wildcard"},
		},
		{
			name: "no ice servers in prod",
			cfg: config.Config{
				Mode:     config.ModeProd,
				AuthMode: config.AuthModeAPIKey,
				APIKey:   "k",
			},
			wantCodes: []string{"no_ice_servers_in_prod"},
		},
		{
			name: "no ice servers in dev is quiet",
			cfg: config.Config{
				Mode:     config.ModeDev,
				AuthMode: config.AuthModeAPIKey,
				APIKey:   "k",
			},
			absentCodes: []string{"no_ice_servers_in_prod"},
		},
		{
			name: "static turn credentials in prod",
			cfg: config.Config{
				Mode:       config.ModeProd,
				AuthMode:   config.AuthModeAPIKey,
				APIKey:     "k",
				ICEServers: turnWithStaticCreds,
			},
			wantCodes: []string{"static_turn_credentials_in_prod"},
		},
		{
			name: "turn rest silences the static credential warning",
			cfg: config.Config{
				Mode:                 config.ModeProd,
				AuthMode:             config.AuthModeAPIKey,
				APIKey:               "k",
				ICEServers:           turnWithStaticCreds,
				TURNRESTSharedSecret: "s",
			},
			absentCodes: []string{"static_turn_credentials_in_prod"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := captureWarnings(tc.cfg)
			for _, code := range tc.wantCodes {
				if !strings.Contains(out, code) {
					t.Errorf("output missing warning_code=%s:\n%s", code, out)
				}
			}
			for _, code := range tc.absentCodes {
				if strings.Contains(out, code) {
					t.Errorf("output has unexpected warning_code=%s:\n%s", code, out)
				}
			}
		})
	}
}

func TestHasStaticTURNCredential(t *testing.T) {
	if hasStaticTURNCredential(config.Config{}) {
		t.Error("no servers reported as static credentials")
	}
	stunOnly := config.Config{ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:s.example.com"}}}}
	if hasStaticTURNCredential(stunOnly) {
		t.Error("credential-less server reported as static credentials")
	}
	withCred := config.Config{ICEServers: []webrtc.ICEServer{{
		URLs:       []string{"turn:t.example.com"},
		Credential: "c",
	}}}
	if !hasStaticTURNCredential(withCred) {
		t.Error("string credential not detected")
	}
}
