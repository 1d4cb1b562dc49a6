package main

import (
	"log/slog"
	"slices"

	"github.com/pion/webrtc/v4"

	"github.com/AhmedrAshraf/filepizza/internal/config"
	"github.com/AhmedrAshraf/filepizza/internal/ice"
)

func logStartupWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := cfg.ICEConfigError(); err != nil {
		logger.Warn("startup warning: ICE server configuration is invalid; serving the default STUN server and reporting not ready",
			"warning_code", "ice_config_invalid",
			"err", err,
			"mode", cfg.Mode,
		)
	}

	if slices.Contains(cfg.AllowedOrigins, "*") {
		logger.Warn("startup security warning: ALLOWED_ORIGINS contains '*' (any site can open signaling sockets)",
			"warning_code", "allowed_origins_wildcard",
			"allowed_origins", cfg.AllowedOrigins,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.Transport() == config.TransportHTTP && !cfg.TrustProxyHeaders {
		logger.Warn("startup security warning: serving plain HTTP in prod without a trusted proxy (browsers require a secure context for WebRTC)",
			"warning_code", "plain_http_in_prod",
			"listen_addr", cfg.ListenAddr,
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && !cfg.Twilio.Enabled() && !hasTURN(cfg.ICEServers) {
		logger.Warn("startup warning: no TURN server configured; peers behind symmetric NATs will fail to connect",
			"warning_code", "stun_only_in_prod",
			"mode", cfg.Mode,
		)
	}

	if cfg.Twilio.Enabled() && !isDefaultICE(cfg.ICEServers) {
		logger.Warn("startup warning: static ICE servers are only used when the Twilio fetch fails",
			"warning_code", "static_ice_shadowed_by_twilio",
			"static_ice_servers", len(cfg.ICEServers),
			"mode", cfg.Mode,
		)
	}

	if cfg.TURNREST.Enabled() && !hasTURN(cfg.ICEServers) {
		logger.Warn("startup warning: TURN_REST_SHARED_SECRET is set but no turn: or turns: URL is configured",
			"warning_code", "turn_rest_without_turn_urls",
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && cfg.PublicBaseURL == "" {
		logger.Warn("startup warning: FILEPIZZA_PUBLIC_BASE_URL is unset; share links will use the request Host header",
			"warning_code", "public_base_url_unset",
			"mode", cfg.Mode,
		)
	}
}

func hasTURN(servers []webrtc.ICEServer) bool {
	return slices.ContainsFunc(servers, ice.HasTURNURL)
}

func isDefaultICE(servers []webrtc.ICEServer) bool {
	def := ice.DefaultServers()
	if len(servers) != len(def) {
		return false
	}
	for i := range servers {
		if !slices.Equal(servers[i].URLs, def[i].URLs) {
			return false
		}
	}
	return true
}
