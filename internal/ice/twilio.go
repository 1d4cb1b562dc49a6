package ice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"golang.org/x/sync/singleflight"

	"github.com/AhmedrAshraf/filepizza/internal/metrics"
)

const (
	DefaultTwilioBaseURL  = "https://api.twilio.com"
	DefaultTwilioCacheTTL = 5 * time.Minute

	twilioFetchTimeout = 10 * time.Second
	twilioMaxBodyBytes = 1 << 20
)

var ErrRemoteStatus = errors.New("ice: remote credential service returned non-2xx status")

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	// BaseURL defaults to DefaultTwilioBaseURL.
	BaseURL string
	// CacheTTL is how long one fetched list (or the fallback, after a failed
	// fetch) is served before the next fetch. Defaults to DefaultTwilioCacheTTL.
	CacheTTL time.Duration
	// Fallback is served when the fetch fails. Defaults to DefaultServers.
	Fallback Provider

	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// Twilio fetches short-lived STUN/TURN servers from Twilio's Network
// Traversal Service. Results are cached and concurrent fetches coalesce into
// one request.
type Twilio struct {
	cfg   TwilioConfig
	group singleflight.Group

	mu      sync.Mutex
	cached  []webrtc.ICEServer
	expires time.Time
}

func NewTwilio(cfg TwilioConfig) (*Twilio, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, errors.New("ice: twilio account sid and auth token are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTwilioBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("ice: invalid twilio base url: %w", err)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultTwilioCacheTTL
	}
	if cfg.Fallback == nil {
		cfg.Fallback = Static(DefaultServers())
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: twilioFetchTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Twilio{cfg: cfg}, nil
}

func (t *Twilio) ICEServers(ctx context.Context) ([]webrtc.ICEServer, error) {
	if servers, ok := t.cachedServers(); ok {
		t.cfg.Metrics.Inc(metrics.ICECacheHit)
		return servers, nil
	}

	// The shared fetch must not be cut short because the first caller went
	// away; the others are still waiting on it.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := t.group.Do("ice", func() (any, error) {
		if servers, ok := t.cachedServers(); ok {
			return servers, nil
		}
		return t.refresh(fetchCtx)
	})
	if err != nil {
		return nil, err
	}
	return cloneServers(v.([]webrtc.ICEServer)), nil
}

func (t *Twilio) cachedServers() ([]webrtc.ICEServer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cached == nil || !t.cfg.Now().Before(t.expires) {
		return nil, false
	}
	return cloneServers(t.cached), true
}

func (t *Twilio) refresh(ctx context.Context) ([]webrtc.ICEServer, error) {
	t.cfg.Metrics.Inc(metrics.ICERemoteFetch)
	servers, err := t.fetch(ctx)
	if err != nil {
		t.cfg.Metrics.Inc(metrics.ICERemoteFetchFailure)
		t.cfg.Logger.Error("ice: twilio fetch failed, serving fallback servers", "err", err)
		servers, err = t.cfg.Fallback.ICEServers(ctx)
		if err != nil {
			return nil, fmt.Errorf("ice: fallback provider: %w", err)
		}
	}

	t.mu.Lock()
	t.cached = cloneServers(servers)
	t.expires = t.cfg.Now().Add(t.cfg.CacheTTL)
	t.mu.Unlock()
	return servers, nil
}

type twilioTokenResponse struct {
	ICEServers []struct {
		URL        string `json:"url"`
		URLs       string `json:"urls"`
		Username   string `json:"username"`
		Credential string `json:"credential"`
	} `json:"ice_servers"`
}

func (t *Twilio) fetch(ctx context.Context) ([]webrtc.ICEServer, error) {
	ctx, cancel := context.WithTimeout(ctx, twilioFetchTimeout)
	defer cancel()

	endpoint := strings.TrimRight(t.cfg.BaseURL, "/") +
		"/2010-04-01/Accounts/" + url.PathEscape(t.cfg.AccountSID) + "/Tokens.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(url.Values{}.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, twilioMaxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrRemoteStatus, resp.StatusCode)
	}

	var tok twilioTokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("decode twilio token: %w", err)
	}
	servers := make([]webrtc.ICEServer, 0, len(tok.ICEServers))
	for _, s := range tok.ICEServers {
		u := s.URLs
		if u == "" {
			u = s.URL
		}
		if u == "" {
			continue
		}
		server := webrtc.ICEServer{URLs: []string{u}, Username: s.Username}
		if s.Credential != "" {
			server.Credential = s.Credential
		}
		servers = append(servers, server)
	}
	if len(servers) == 0 {
		return nil, errors.New("twilio token contained no ice servers")
	}
	return servers, nil
}
