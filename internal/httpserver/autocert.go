package httpserver

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/AhmedrAshraf/filepizza/internal/config"
)

// NewAutocertManager obtains certificates for exactly the configured domains
// and caches them on disk.
func NewAutocertManager(cfg config.AutocertConfig) *autocert.Manager {
	m := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Email:      cfg.Email,
	}
	if cfg.CacheDir != "" {
		m.Cache = autocert.DirCache(cfg.CacheDir)
	}
	return m
}

// ServeAutocert serves HTTPS with certificates from m.
func (s *Server) ServeAutocert(l net.Listener, m *autocert.Manager) error {
	tlsConfig := m.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12
	s.srv.TLSConfig = tlsConfig

	s.ready.Store(true)
	s.log.Info("http server serving", "addr", l.Addr().String(), "transport", "autocert")
	return s.srv.ServeTLS(l, "", "")
}

// NewChallengeServer answers ACME HTTP-01 challenges on addr and redirects
// every other request to HTTPS.
func NewChallengeServer(addr string, m *autocert.Manager, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           chain(m.HTTPHandler(nil), recoverMiddleware(logger)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}
