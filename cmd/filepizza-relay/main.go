package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"golang.org/x/sync/errgroup"

	"github.com/AhmedrAshraf/filepizza/internal/config"
	"github.com/AhmedrAshraf/filepizza/internal/httpserver"
	"github.com/AhmedrAshraf/filepizza/internal/metrics"
	"github.com/AhmedrAshraf/filepizza/internal/session"
	"github.com/AhmedrAshraf/filepizza/internal/share"
	"github.com/AhmedrAshraf/filepizza/internal/signaling"
)

var (
	// Set via -ldflags at build time. Values may be empty in local/dev builds.
	buildCommit = ""
	buildTime   = ""
)

var errUnhandledFailure = errors.New("unhandled failure")

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	slog.SetDefault(logger)

	m := metrics.New()

	provider, err := newICEProvider(cfg, logger, m)
	if err != nil {
		logger.Error("failed to configure ice servers", "err", err)
		os.Exit(2)
	}

	logger.Info("starting filepizza-relay",
		"listen_addr", cfg.ListenAddr,
		"public_base_url", cfg.PublicBaseURL,
		"mode", cfg.Mode,
		"transport", cfg.Transport(),
		"ice_provider", iceProviderName(cfg),
		"token_words", cfg.TokenWords,
		"short_token_length", cfg.ShortTokenLength,
		"max_signaling_message_bytes", cfg.MaxSignalingMessageBytes,
	)
	logStartupWarnings(logger, cfg)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Error("failed to listen", "err", err)
		os.Exit(1)
	}

	commit, built := resolveBuildInfo(buildCommit, buildTime)

	registry := session.NewMemoryRegistry(session.MemoryConfig{
		Tokens:  session.RandomTokens{Words: cfg.TokenWords, ShortLength: cfg.ShortTokenLength},
		Metrics: m,
	})

	fatalCh := make(chan error, 1)
	sig := signaling.NewServer(signaling.Config{
		Registry: registry,
		ICE:      provider,
		Metrics:  m,
		Logger:   logger,
		OnFatal: func(err error) {
			select {
			case fatalCh <- err:
			default:
			}
		},
		AllowedOrigins:       cfg.AllowedOrigins,
		TrustProxyHeaders:    cfg.TrustProxyHeaders,
		IdleTimeout:          cfg.SignalingWSIdleTimeout,
		PingInterval:         cfg.SignalingWSPingInterval,
		MaxMessageBytes:      cfg.MaxSignalingMessageBytes,
		MaxMessagesPerSecond: cfg.MaxSignalingMessagesPerSecond,
	})

	srv := httpserver.New(cfg, logger, httpserver.BuildInfo{Commit: commit, BuildTime: built}, provider)
	sig.RegisterRoutes(srv.Mux())
	share.NewHandler(share.HandlerConfig{
		Registry: registry,
		BaseURL:  cfg.PublicBaseURL,
		Logger:   logger,
	}).RegisterRoutes(srv.Mux())
	srv.Mux().Handle("GET /metrics", metrics.PrometheusHandler(m,
		metrics.Gauge{
			Name:  "filepizza_relay_active_sessions",
			Help:  "Uploads currently registered.",
			Value: func() float64 { return float64(registry.Len()) },
		},
		metrics.Gauge{
			Name:  "filepizza_relay_active_connections",
			Help:  "Open signaling WebSocket connections.",
			Value: func() float64 { return float64(sig.Connections()) },
		},
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var challenge *http.Server
	switch cfg.Transport() {
	case config.TransportHTTPS:
		g.Go(func() error {
			return ignoreClosed(srv.ServeTLS(ln, cfg.TLS.CertFile, cfg.TLS.KeyFile))
		})
	case config.TransportAutocert:
		manager := httpserver.NewAutocertManager(cfg.Autocert)
		challenge = httpserver.NewChallengeServer(cfg.Autocert.HTTPAddr, manager, logger)
		g.Go(func() error {
			return ignoreClosed(srv.ServeAutocert(ln, manager))
		})
		g.Go(func() error {
			logger.Info("acme challenge server serving", "addr", challenge.Addr)
			return ignoreClosed(challenge.ListenAndServe())
		})
	default:
		g.Go(func() error {
			return ignoreClosed(srv.Serve(ln))
		})
	}

	g.Go(func() error {
		var failure error
		select {
		case <-gctx.Done():
			if ctx.Err() != nil {
				logger.Info("shutdown signal received")
			}
		case err := <-fatalCh:
			logger.Error("exiting due to unhandled failure", "err", err)
			failure = fmt.Errorf("%w: %w", errUnhandledFailure, err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", "err", err)
		}
		if challenge != nil {
			if err := challenge.Shutdown(shutdownCtx); err != nil {
				logger.Error("acme challenge server shutdown failed", "err", err)
			}
		}
		sig.Close()
		return failure
	})

	if err := g.Wait(); err != nil {
		if !errors.Is(err, errUnhandledFailure) {
			logger.Error("http server exited", "err", err)
		}
		os.Exit(1)
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, httpserver.ErrServerClosed) {
		return nil
	}
	return err
}

func resolveBuildInfo(commit, buildTime string) (string, string) {
	// Prefer ldflags-injected values (production builds) but fall back to the Go
	// build info when available (useful for `go run` / dev builds).
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = s.Value
				}
			case "vcs.time":
				if buildTime == "" {
					buildTime = s.Value
				}
			}
		}
	}

	return commit, buildTime
}
