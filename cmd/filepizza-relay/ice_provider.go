package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/AhmedrAshraf/filepizza/internal/config"
	"github.com/AhmedrAshraf/filepizza/internal/ice"
	"github.com/AhmedrAshraf/filepizza/internal/metrics"
	"github.com/AhmedrAshraf/filepizza/internal/turnrest"
)

// newICEProvider layers the configured sources: the static list, TURN REST
// credentials stamped onto its TURN entries, and Twilio in front of both with
// the layers below as its fallback.
func newICEProvider(cfg config.Config, logger *slog.Logger, m *metrics.Metrics) (ice.Provider, error) {
	var p ice.Provider = ice.Static(cfg.ICEServers)

	if cfg.TURNREST.Enabled() {
		gen, err := turnrest.NewGenerator(turnrest.GeneratorConfig{
			SharedSecret:   cfg.TURNREST.SharedSecret,
			TTL:            time.Duration(cfg.TURNREST.TTLSeconds) * time.Second,
			UsernamePrefix: cfg.TURNREST.UsernamePrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("turn rest: %w", err)
		}
		p = ice.TURNREST{Next: p, Generator: gen}
	}

	if cfg.Twilio.Enabled() {
		tw, err := ice.NewTwilio(ice.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			BaseURL:    cfg.Twilio.BaseURL,
			CacheTTL:   cfg.Twilio.CacheTTL,
			Fallback:   p,
			Logger:     logger,
			Metrics:    m,
		})
		if err != nil {
			return nil, err
		}
		p = tw
	}

	return p, nil
}

func iceProviderName(cfg config.Config) string {
	switch {
	case cfg.Twilio.Enabled() && cfg.TURNREST.Enabled():
		return "twilio+turn-rest"
	case cfg.Twilio.Enabled():
		return "twilio"
	case cfg.TURNREST.Enabled():
		return "turn-rest"
	default:
		return "static"
	}
}
