package signaling

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AhmedrAshraf/filepizza/internal/ice"
	"github.com/AhmedrAshraf/filepizza/internal/metrics"
	"github.com/AhmedrAshraf/filepizza/internal/origin"
	"github.com/AhmedrAshraf/filepizza/internal/ratelimit"
	"github.com/AhmedrAshraf/filepizza/internal/session"
)

const (
	// SocketPath is where browsers open their signaling WebSocket.
	SocketPath = "/socket"

	defaultIdleTimeout     = 60 * time.Second
	defaultPingInterval    = 20 * time.Second
	defaultMaxMessageBytes = 64 * 1024
)

// Config wires together the runtime dependencies for the signaling service.
type Config struct {
	Registry session.Registry
	ICE      ice.Provider
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// OnFatal receives collaborator failures (registry or ICE provider errors).
	// These are not recoverable per connection; the process is expected to log
	// and exit. When nil the failing connection is simply closed.
	OnFatal func(error)

	// AllowedOrigins restricts which browser origins may upgrade. Empty means
	// same host only.
	AllowedOrigins    []string
	TrustProxyHeaders bool

	IdleTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageBytes int64
	// MaxMessagesPerSecond per connection; 0 means unlimited.
	MaxMessagesPerSecond int
}

// Server upgrades browser connections and runs one handler per connection.
type Server struct {
	registry session.Registry
	ice      ice.Provider
	metrics  *metrics.Metrics
	log      *slog.Logger
	onFatal  func(error)
	origins  origin.Policy

	trustProxyHeaders bool
	idleTimeout       time.Duration
	pingInterval      time.Duration
	maxMessageBytes   int64
	maxMessagesPerSec int

	upgrader websocket.Upgrader
	hub      *hub

	wg       sync.WaitGroup
	mu       sync.Mutex
	closed   bool
	closeCtx context.Context
	cancel   context.CancelFunc
}

func NewServer(cfg Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = session.NewMemoryRegistry(session.MemoryConfig{Metrics: cfg.Metrics})
	}
	if cfg.ICE == nil {
		cfg.ICE = ice.Static(ice.DefaultServers())
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.IdleTimeout {
		cfg.PingInterval = min(defaultPingInterval, cfg.IdleTimeout/2)
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaultMaxMessageBytes
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		registry:          cfg.Registry,
		ice:               cfg.ICE,
		metrics:           cfg.Metrics,
		log:               cfg.Logger,
		onFatal:           cfg.OnFatal,
		origins:           origin.Policy{AllowedOrigins: cfg.AllowedOrigins},
		trustProxyHeaders: cfg.TrustProxyHeaders,
		idleTimeout:       cfg.IdleTimeout,
		pingInterval:      cfg.PingInterval,
		maxMessageBytes:   cfg.MaxMessageBytes,
		maxMessagesPerSec: cfg.MaxMessagesPerSecond,
		hub:               newHub(),
		closeCtx:          ctx,
		cancel:            cancel,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			_, _, allowed := s.origins.Check(r)
			return allowed
		},
	}
	return s
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET "+SocketPath, s.handleSocket)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Connections reports the number of open signaling connections.
func (s *Server) Connections() int { return s.hub.len() }

// Close drops every open connection and waits for their handlers to finish
// tearing down. Sessions owned by those connections are removed.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	for _, c := range s.hub.snapshot() {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
		c.close()
	}
	s.wg.Wait()
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error response.
		s.log.Debug("websocket upgrade failed", "err", err, "remote_addr", r.RemoteAddr)
		return
	}

	id := session.ConnID(uuid.NewString())
	ctx, cancel := context.WithCancel(s.closeCtx)
	c := &conn{
		srv:      s,
		id:       id,
		ws:       ws,
		ip:       remoteIP(r, s.trustProxyHeaders),
		ctx:      ctx,
		cancel:   cancel,
		pingDone: make(chan struct{}),
		limiter:  ratelimit.NewBucket(s.maxMessagesPerSec, s.maxMessagesPerSec, nil),
	}
	c.log = s.log.With("conn_id", string(id), "remote_addr", c.ip)

	s.hub.add(c)
	if s.closeCtx.Err() != nil {
		// Close ran between the check above and add; it missed this one.
		c.close()
	}
	s.metrics.Inc(metrics.WSConnectionOpened)
	c.log.Debug("signaling connection opened")

	c.run()
}

// fatal hands a collaborator failure to the supervisory policy.
func (s *Server) fatal(err error) {
	s.metrics.Inc(metrics.CollaboratorFailure)
	if s.onFatal != nil {
		s.onFatal(err)
	}
}
