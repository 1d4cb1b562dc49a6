package session

import (
	"context"
	"sync"
	"time"

	"github.com/AhmedrAshraf/filepizza/internal/metrics"
)

const maxCreateAttempts = 8

// MemoryConfig configures a MemoryRegistry. Zero values pick defaults.
type MemoryConfig struct {
	Tokens  TokenGenerator
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// MemoryRegistry is a process-local Registry. Sessions do not survive a
// restart.
type MemoryRegistry struct {
	tokens  TokenGenerator
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	byToken map[string]*Session
	byShort map[string]*Session
}

var _ Registry = (*MemoryRegistry)(nil)

func NewMemoryRegistry(cfg MemoryConfig) *MemoryRegistry {
	if cfg.Tokens == nil {
		cfg.Tokens = RandomTokens{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &MemoryRegistry{
		tokens:  cfg.Tokens,
		metrics: cfg.Metrics,
		now:     cfg.Now,
		byToken: make(map[string]*Session),
		byShort: make(map[string]*Session),
	}
}

// Create allocates a session owned by owner. Both identifiers are checked for
// uniqueness and inserted under the same lock, so concurrent calls never hand
// out the same token or short token.
func (r *MemoryRegistry) Create(ctx context.Context, owner ConnID) (*Session, error) {
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		token, err := r.tokens.Token()
		if err != nil {
			return nil, err
		}
		short, err := r.tokens.ShortToken()
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		_, tokenTaken := r.byToken[token]
		_, shortTaken := r.byShort[short]
		if tokenTaken || shortTaken {
			r.mu.Unlock()
			continue
		}
		s := &Session{
			token:      token,
			shortToken: short,
			owner:      owner,
			createdAt:  r.now(),
		}
		r.byToken[token] = s
		r.byShort[short] = s
		r.mu.Unlock()

		r.metrics.Inc(metrics.SessionCreated)
		return s, nil
	}
	return nil, ErrTokenSpaceExhausted
}

func (r *MemoryRegistry) Find(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	r.mu.RLock()
	s, ok := r.byToken[token]
	r.mu.RUnlock()
	return s, ok
}

func (r *MemoryRegistry) FindShort(shortToken string) (*Session, bool) {
	if shortToken == "" {
		return nil, false
	}
	r.mu.RLock()
	s, ok := r.byShort[shortToken]
	r.mu.RUnlock()
	return s, ok
}

func (r *MemoryRegistry) Remove(s *Session) {
	if s == nil {
		return
	}
	r.mu.Lock()
	removed := false
	if cur, ok := r.byToken[s.token]; ok && cur == s {
		delete(r.byToken, s.token)
		removed = true
	}
	if cur, ok := r.byShort[s.shortToken]; ok && cur == s {
		delete(r.byShort, s.shortToken)
	}
	r.mu.Unlock()

	if removed {
		r.metrics.Inc(metrics.SessionRemoved)
	}
}

// Len reports the number of registered sessions.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}
