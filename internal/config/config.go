package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pion/webrtc/v4"

	"github.com/AhmedrAshraf/filepizza/internal/origin"
)

const (
	DefaultMode            = ModeDev
	DefaultDevListenAddr   = ":3000"
	DefaultProdListenAddr  = ":80"
	DefaultShutdown        = 15 * time.Second
	DefaultAutocertHTTP    = ":80"
	DefaultAutocertCache   = "autocert-cache"
	DefaultWSIdleTimeout   = 60 * time.Second
	DefaultWSPingInterval  = 20 * time.Second
	DefaultMaxMessageBytes = 64 * 1024
	DefaultMaxMessagesPerS = 50
	DefaultTokenWords      = 4
	DefaultShortTokenLen   = 8

	DefaultTURNRESTTTLSeconds     = 3600
	DefaultTURNRESTUsernamePrefix = "filepizza"
	DefaultTwilioCacheTTL         = 5 * time.Minute

	minTokenWords     = 3
	maxTokenWords     = 16
	minShortTokenLen  = 4
	maxShortTokenLen  = 32
	defaultSTUNServer = "stun:stun.l.google.com:19302"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// Transport is the listener flavour selected from the TLS settings.
type Transport string

const (
	TransportHTTP     Transport = "http"
	TransportHTTPS    Transport = "https"
	TransportAutocert Transport = "autocert"
)

// envConfig mirrors the supported environment variables. Values read here
// become the defaults of the corresponding command line flags.
type envConfig struct {
	Mode    string `env:"FILEPIZZA_MODE"`
	NodeEnv string `env:"NODE_ENV"`

	ListenAddr      string        `env:"FILEPIZZA_LISTEN_ADDR"`
	Port            string        `env:"PORT"`
	PublicBaseURL   string        `env:"FILEPIZZA_PUBLIC_BASE_URL"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS"`
	LogFormat       string        `env:"FILEPIZZA_LOG_FORMAT"`
	LogLevel        string        `env:"FILEPIZZA_LOG_LEVEL"`
	Quiet           string        `env:"QUIET"`
	ShutdownTimeout time.Duration `env:"FILEPIZZA_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	HTTPSKey         string   `env:"HTTPS_KEY"`
	HTTPSCert        string   `env:"HTTPS_CERT"`
	AutocertDomains  []string `env:"FILEPIZZA_AUTOCERT_DOMAINS" envSeparator:","`
	AutocertCacheDir string   `env:"FILEPIZZA_AUTOCERT_CACHE_DIR" envDefault:"autocert-cache"`
	AutocertEmail    string   `env:"FILEPIZZA_AUTOCERT_EMAIL"`
	AutocertHTTPAddr string   `env:"FILEPIZZA_AUTOCERT_HTTP_ADDR" envDefault:":80"`

	WSIdleTimeout     time.Duration `env:"SIGNALING_WS_IDLE_TIMEOUT" envDefault:"60s"`
	WSPingInterval    time.Duration `env:"SIGNALING_WS_PING_INTERVAL" envDefault:"20s"`
	MaxMessageBytes   int64         `env:"MAX_SIGNALING_MESSAGE_BYTES" envDefault:"65536"`
	MaxMessagesPerSec int           `env:"MAX_SIGNALING_MESSAGES_PER_SECOND" envDefault:"50"`
	TrustProxyHeaders bool          `env:"TRUST_PROXY_HEADERS"`
	TokenWords        int           `env:"TOKEN_WORDS" envDefault:"4"`
	ShortTokenLength  int           `env:"SHORT_TOKEN_LENGTH" envDefault:"8"`

	ICEServersJSON string `env:"FILEPIZZA_ICE_SERVERS_JSON"`
	STUNURLs       string `env:"FILEPIZZA_STUN_URLS"`
	TURNURLs       string `env:"FILEPIZZA_TURN_URLS"`
	TURNUsername   string `env:"FILEPIZZA_TURN_USERNAME"`
	TURNCredential string `env:"FILEPIZZA_TURN_CREDENTIAL"`

	TURNRESTSharedSecret   string `env:"TURN_REST_SHARED_SECRET"`
	TURNRESTTTLSeconds     int64  `env:"TURN_REST_TTL_SECONDS" envDefault:"3600"`
	TURNRESTUsernamePrefix string `env:"TURN_REST_USERNAME_PREFIX" envDefault:"filepizza"`

	TwilioSID        string        `env:"TWILIO_SID"`
	TwilioToken      string        `env:"TWILIO_TOKEN"`
	TwilioCacheTTL   time.Duration `env:"TWILIO_CACHE_TTL" envDefault:"5m"`
	TwilioAPIBaseURL string        `env:"TWILIO_API_BASE_URL"`
}

type TLSConfig struct {
	KeyFile  string
	CertFile string
}

type AutocertConfig struct {
	Domains  []string
	CacheDir string
	Email    string
	// HTTPAddr serves ACME HTTP-01 challenges.
	HTTPAddr string
}

type TURNRESTConfig struct {
	SharedSecret   string
	TTLSeconds     int64
	UsernamePrefix string
}

func (c TURNRESTConfig) Enabled() bool { return c.SharedSecret != "" }

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	CacheTTL   time.Duration
	BaseURL    string
}

func (c TwilioConfig) Enabled() bool { return c.AccountSID != "" && c.AuthToken != "" }

type Config struct {
	Mode            Mode
	ListenAddr      string
	PublicBaseURL   string
	AllowedOrigins  []string
	LogFormat       LogFormat
	LogLevel        slog.Level
	Quiet           bool
	ShutdownTimeout time.Duration

	TLS      TLSConfig
	Autocert AutocertConfig

	SignalingWSIdleTimeout   time.Duration
	SignalingWSPingInterval  time.Duration
	MaxSignalingMessageBytes int64
	TrustProxyHeaders        bool

	// MaxSignalingMessagesPerSecond of 0 disables the per-connection limit.
	MaxSignalingMessagesPerSecond int

	TokenWords       int
	ShortTokenLength int

	// ICEServers is the static list served to clients when no remote
	// provider is configured, and the fallback when one fails.
	ICEServers   []webrtc.ICEServer
	iceConfigErr error

	TURNREST TURNRESTConfig
	Twilio   TwilioConfig
}

// Transport picks HTTPS when both a key and a certificate are configured,
// ACME when autocert domains are configured, and plain HTTP otherwise.
func (c Config) Transport() Transport {
	switch {
	case c.TLS.KeyFile != "" && c.TLS.CertFile != "":
		return TransportHTTPS
	case len(c.Autocert.Domains) > 0:
		return TransportAutocert
	default:
		return TransportHTTP
	}
}

// ICEConfigError reports a problem parsing the static ICE server settings.
// The relay still starts (serving the default STUN server) but reports not
// ready until the configuration is fixed.
func (c Config) ICEConfigError() error { return c.iceConfigErr }

// Load reads configuration from the process environment and args.
func Load(args []string) (Config, error) {
	return load(env.ToMap(os.Environ()), args)
}

func load(environ map[string]string, args []string) (Config, error) {
	var ec envConfig
	if err := env.ParseWithOptions(&ec, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	modeDefault := string(DefaultMode)
	switch {
	case strings.TrimSpace(ec.Mode) != "":
		modeDefault = ec.Mode
	case strings.EqualFold(strings.TrimSpace(ec.NodeEnv), "production"):
		modeDefault = string(ModeProd)
	}

	listenAddrDefault := strings.TrimSpace(ec.ListenAddr)
	if listenAddrDefault == "" && strings.TrimSpace(ec.Port) != "" {
		listenAddrDefault = ":" + strings.TrimSpace(ec.Port)
	}

	fs := flag.NewFlagSet("filepizza-relay", flag.ContinueOnError)

	var (
		modeStr           = fs.String("mode", modeDefault, "Runtime mode (dev|prod)")
		listenAddr        = fs.String("listen-addr", listenAddrDefault, "HTTP listen address (default :3000 in dev, :80 in prod)")
		publicBaseURL     = fs.String("public-base-url", ec.PublicBaseURL, "Public base URL used for share links and QR codes")
		allowedOriginsStr = fs.String("allowed-origins", ec.AllowedOrigins, "Comma-separated browser origins allowed to connect (default: same host; * allows any)")
		logFormatStr      = fs.String("log-format", ec.LogFormat, "Log format (text|json)")
		logLevelStr       = fs.String("log-level", ec.LogLevel, "Log level (debug|info|warn|error)")
		quiet             = fs.Bool("quiet", isTruthy(ec.Quiet), "Disable HTTP request logging")
		shutdownTimeout   = fs.Duration("shutdown-timeout", ec.ShutdownTimeout, "Graceful shutdown timeout")

		httpsKey         = fs.String("https-key", ec.HTTPSKey, "TLS private key file")
		httpsCert        = fs.String("https-cert", ec.HTTPSCert, "TLS certificate file")
		autocertDomains  = fs.String("autocert-domains", strings.Join(ec.AutocertDomains, ","), "Comma-separated domains to obtain ACME certificates for")
		autocertCacheDir = fs.String("autocert-cache-dir", ec.AutocertCacheDir, "Directory for cached ACME certificates")
		autocertEmail    = fs.String("autocert-email", ec.AutocertEmail, "Contact email for the ACME account")
		autocertHTTPAddr = fs.String("autocert-http-addr", ec.AutocertHTTPAddr, "Listen address for ACME HTTP-01 challenges")

		wsIdleTimeout     = fs.Duration("signaling-ws-idle-timeout", ec.WSIdleTimeout, "Close signaling connections idle for this long")
		wsPingInterval    = fs.Duration("signaling-ws-ping-interval", ec.WSPingInterval, "Interval between server pings on signaling connections")
		maxMessageBytes   = fs.Int64("max-signaling-message-bytes", ec.MaxMessageBytes, "Maximum inbound signaling message size")
		maxMessagesPerSec = fs.Int("max-signaling-messages-per-second", ec.MaxMessagesPerSec, "Per-connection signaling message rate limit (0 disables)")
		trustProxyHeaders = fs.Bool("trust-proxy-headers", ec.TrustProxyHeaders, "Take downloader addresses from X-Forwarded-For style headers")
		tokenWords        = fs.Int("token-words", ec.TokenWords, "Number of words in a long session token")
		shortTokenLength  = fs.Int("short-token-length", ec.ShortTokenLength, "Number of characters in a short session token")

		iceServersJSON = fs.String("ice-servers-json", ec.ICEServersJSON, "ICE servers as a JSON array of RTCIceServer objects")
		stunURLs       = fs.String("stun-urls", ec.STUNURLs, "Comma-separated STUN URLs")
		turnURLs       = fs.String("turn-urls", ec.TURNURLs, "Comma-separated TURN URLs")
		turnUsername   = fs.String("turn-username", ec.TURNUsername, "TURN username for --turn-urls")
		turnCredential = fs.String("turn-credential", ec.TURNCredential, "TURN credential for --turn-urls")

		turnRESTSharedSecret   = fs.String("turn-rest-shared-secret", ec.TURNRESTSharedSecret, "Shared secret for coturn REST credentials")
		turnRESTTTLSeconds     = fs.Int64("turn-rest-ttl-seconds", ec.TURNRESTTTLSeconds, "Lifetime of TURN REST credentials")
		turnRESTUsernamePrefix = fs.String("turn-rest-username-prefix", ec.TURNRESTUsernamePrefix, "Username prefix for TURN REST credentials")

		twilioSID        = fs.String("twilio-sid", ec.TwilioSID, "Twilio account SID for Network Traversal Service credentials")
		twilioToken      = fs.String("twilio-token", ec.TwilioToken, "Twilio auth token")
		twilioCacheTTL   = fs.Duration("twilio-cache-ttl", ec.TwilioCacheTTL, "How long fetched Twilio ICE servers are reused")
		twilioAPIBaseURL = fs.String("twilio-api-base-url", ec.TwilioAPIBaseURL, "Override the Twilio API base URL")
	)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	mode, err := parseMode(*modeStr)
	if err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(*listenAddr) == "" {
		*listenAddr = DefaultDevListenAddr
		if mode == ModeProd {
			*listenAddr = DefaultProdListenAddr
		}
	}
	if _, _, err := net.SplitHostPort(*listenAddr); err != nil {
		return Config{}, fmt.Errorf("invalid FILEPIZZA_LISTEN_ADDR/PORT/--listen-addr %q: %w", *listenAddr, err)
	}

	if strings.TrimSpace(*logFormatStr) == "" {
		*logFormatStr = defaultLogFormatForMode(mode)
	}
	logFormat, err := parseLogFormat(*logFormatStr)
	if err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(*logLevelStr) == "" {
		*logLevelStr = defaultLogLevelForMode(mode)
	}
	logLevel, err := parseLogLevel(*logLevelStr)
	if err != nil {
		return Config{}, err
	}

	baseURL, err := parsePublicBaseURL(*publicBaseURL)
	if err != nil {
		return Config{}, err
	}

	allowedOrigins, err := parseAllowedOrigins(*allowedOriginsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid ALLOWED_ORIGINS/--allowed-origins: %w", err)
	}

	if *shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("FILEPIZZA_SHUTDOWN_TIMEOUT/--shutdown-timeout must be > 0")
	}
	if *wsIdleTimeout <= 0 {
		return Config{}, fmt.Errorf("SIGNALING_WS_IDLE_TIMEOUT/--signaling-ws-idle-timeout must be > 0")
	}
	if *wsPingInterval <= 0 {
		return Config{}, fmt.Errorf("SIGNALING_WS_PING_INTERVAL/--signaling-ws-ping-interval must be > 0")
	}
	if *wsPingInterval >= *wsIdleTimeout {
		return Config{}, fmt.Errorf("SIGNALING_WS_PING_INTERVAL/--signaling-ws-ping-interval must be < SIGNALING_WS_IDLE_TIMEOUT")
	}
	if *maxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_SIGNALING_MESSAGE_BYTES/--max-signaling-message-bytes must be > 0")
	}
	if *maxMessagesPerSec < 0 {
		return Config{}, fmt.Errorf("MAX_SIGNALING_MESSAGES_PER_SECOND/--max-signaling-messages-per-second must be >= 0")
	}
	// Fewer words leave a token space small enough for uploads to exhaust.
	if *tokenWords < minTokenWords || *tokenWords > maxTokenWords {
		return Config{}, fmt.Errorf("TOKEN_WORDS/--token-words must be between %d and %d", minTokenWords, maxTokenWords)
	}
	if *shortTokenLength < minShortTokenLen || *shortTokenLength > maxShortTokenLen {
		return Config{}, fmt.Errorf("SHORT_TOKEN_LENGTH/--short-token-length must be between %d and %d", minShortTokenLen, maxShortTokenLen)
	}

	cfg := Config{
		Mode:            mode,
		ListenAddr:      *listenAddr,
		PublicBaseURL:   baseURL,
		AllowedOrigins:  allowedOrigins,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		Quiet:           *quiet,
		ShutdownTimeout: *shutdownTimeout,
		TLS: TLSConfig{
			KeyFile:  strings.TrimSpace(*httpsKey),
			CertFile: strings.TrimSpace(*httpsCert),
		},
		Autocert: AutocertConfig{
			Domains:  splitCommaSeparated(*autocertDomains),
			CacheDir: strings.TrimSpace(*autocertCacheDir),
			Email:    strings.TrimSpace(*autocertEmail),
			HTTPAddr: strings.TrimSpace(*autocertHTTPAddr),
		},
		SignalingWSIdleTimeout:        *wsIdleTimeout,
		SignalingWSPingInterval:       *wsPingInterval,
		MaxSignalingMessageBytes:      *maxMessageBytes,
		MaxSignalingMessagesPerSecond: *maxMessagesPerSec,
		TrustProxyHeaders:             *trustProxyHeaders,
		TokenWords:                    *tokenWords,
		ShortTokenLength:              *shortTokenLength,
		TURNREST: TURNRESTConfig{
			SharedSecret:   *turnRESTSharedSecret,
			TTLSeconds:     *turnRESTTTLSeconds,
			UsernamePrefix: strings.TrimSpace(*turnRESTUsernamePrefix),
		},
		Twilio: TwilioConfig{
			AccountSID: strings.TrimSpace(*twilioSID),
			AuthToken:  strings.TrimSpace(*twilioToken),
			CacheTTL:   *twilioCacheTTL,
			BaseURL:    strings.TrimSpace(*twilioAPIBaseURL),
		},
	}

	if cfg.Transport() == TransportAutocert {
		if cfg.Autocert.CacheDir == "" {
			cfg.Autocert.CacheDir = DefaultAutocertCache
		}
		if cfg.Autocert.HTTPAddr == "" {
			cfg.Autocert.HTTPAddr = DefaultAutocertHTTP
		}
		if _, _, err := net.SplitHostPort(cfg.Autocert.HTTPAddr); err != nil {
			return Config{}, fmt.Errorf("invalid FILEPIZZA_AUTOCERT_HTTP_ADDR/--autocert-http-addr %q: %w", cfg.Autocert.HTTPAddr, err)
		}
	}

	if cfg.TURNREST.Enabled() {
		if cfg.TURNREST.TTLSeconds <= 0 {
			return Config{}, fmt.Errorf("TURN_REST_TTL_SECONDS/--turn-rest-ttl-seconds must be > 0")
		}
		if cfg.TURNREST.UsernamePrefix == "" || strings.Contains(cfg.TURNREST.UsernamePrefix, ":") {
			return Config{}, fmt.Errorf("TURN_REST_USERNAME_PREFIX/--turn-rest-username-prefix must be non-empty and must not contain ':'")
		}
	}

	if (cfg.Twilio.AccountSID == "") != (cfg.Twilio.AuthToken == "") {
		return Config{}, errors.New("TWILIO_SID and TWILIO_TOKEN must be set together")
	}
	if cfg.Twilio.Enabled() && cfg.Twilio.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("TWILIO_CACHE_TTL/--twilio-cache-ttl must be > 0")
	}

	// With TURN REST enabled, static TURN entries get their credentials per
	// request, so they may be listed without any.
	iceServers, err := parseICEServersFromValues(*iceServersJSON, *stunURLs, *turnURLs, *turnUsername, *turnCredential, cfg.TURNREST.Enabled())
	switch {
	case err != nil:
		cfg.iceConfigErr = err
		cfg.ICEServers = defaultICEServers()
	case len(iceServers) == 0:
		cfg.ICEServers = defaultICEServers()
	default:
		cfg.ICEServers = iceServers
	}

	return cfg, nil
}

func defaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{{URLs: []string{defaultSTUNServer}}}
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

// isTruthy treats any non-empty value other than an explicit false as set,
// so QUIET=1 and QUIET=yes both work.
func isTruthy(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return true
}

func defaultLogFormatForMode(mode Mode) string {
	if mode == ModeProd {
		return string(LogFormatJSON)
	}
	return string(LogFormatText)
}

func defaultLogLevelForMode(mode Mode) string {
	if mode == ModeProd {
		return "info"
	}
	return "debug"
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}

func parsePublicBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid FILEPIZZA_PUBLIC_BASE_URL/--public-base-url %q (expected http(s)://host[/path])", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("invalid FILEPIZZA_PUBLIC_BASE_URL/--public-base-url %q: must not contain a query or fragment", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func parseAllowedOrigins(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var out []string
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if entry == "*" {
			out = append(out, entry)
			continue
		}

		normalizedOrigin, _, ok := origin.NormalizeHeader(entry)
		if !ok {
			return nil, fmt.Errorf("invalid origin %q (expected full origin like https://example.com)", entry)
		}
		out = append(out, normalizedOrigin)
	}

	return out, nil
}
