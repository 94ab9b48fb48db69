package main

import (
	"log/slog"

	"github.com/hearthlink/hearthlink/services/call-relay/internal/config"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.AuthMode == config.AuthModeNone {
		logger.Warn("startup security warning: AUTH_MODE=none leaves the signaling surface open",
			"warning_code", "auth_mode_none",
			"auth_mode", cfg.AuthMode,
			"mode", cfg.Mode,
		)
	}

	if containsString(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (allows any origin)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && len(cfg.ICEServers) == 0 {
		logger.Warn("startup warning: no ICE servers configured; clients behind NAT may fail to connect media",
			"warning_code", "no_ice_servers_in_prod",
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && !cfg.TURNRESTEnabled() && hasStaticTURNCredential(cfg) {
		logger.Warn("startup security warning: static TURN credentials configured; prefer TURN_REST_SHARED_SECRET for ephemeral credentials",
			"warning_code", "static_turn_credentials_in_prod",
			"mode", cfg.Mode,
		)
	}
}

func hasStaticTURNCredential(cfg config.Config) bool {
	for _, server := range cfg.ICEServers {
		if server.Username != "" {
			return true
		}
		if cred, ok := server.Credential.(string); ok && cred != "" {
			return true
		}
	}
	return false
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
