package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AhmedrAshraf/filepizza/internal/metrics"
)

type scriptedTokens struct {
	mu     sync.Mutex
	tokens []string
	shorts []string
	err    error
}

func (s *scriptedTokens) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	t := s.tokens[0]
	if len(s.tokens) > 1 {
		s.tokens = s.tokens[1:]
	}
	return t, nil
}

func (s *scriptedTokens) ShortToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.shorts[0]
	if len(s.shorts) > 1 {
		s.shorts = s.shorts[1:]
	}
	return t, nil
}

func TestMemoryRegistry_CreateFindRemove(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m := metrics.New()
	r := NewMemoryRegistry(MemoryConfig{Metrics: m, Now: func() time.Time { return now }})

	s, err := r.Create(context.Background(), "conn-a")
	require.NoError(t, err)
	require.NotEmpty(t, s.Token())
	require.NotEmpty(t, s.ShortToken())
	assert.Equal(t, ConnID("conn-a"), s.Owner())
	assert.Equal(t, now, s.CreatedAt())

	got, ok := r.Find(s.Token())
	require.True(t, ok)
	assert.Same(t, s, got)

	got, ok = r.FindShort(s.ShortToken())
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = r.Find(s.ShortToken())
	assert.False(t, ok, "short token must not resolve through Find")
	_, ok = r.FindShort(s.Token())
	assert.False(t, ok, "long token must not resolve through FindShort")

	assert.Equal(t, 1, r.Len())
	r.Remove(s)
	assert.Equal(t, 0, r.Len())

	_, ok = r.Find(s.Token())
	assert.False(t, ok)
	_, ok = r.FindShort(s.ShortToken())
	assert.False(t, ok)

	assert.Equal(t, uint64(1), m.Get(metrics.SessionCreated))
	assert.Equal(t, uint64(1), m.Get(metrics.SessionRemoved))
}

func TestMemoryRegistry_RemoveIsIdempotent(t *testing.T) {
	m := metrics.New()
	r := NewMemoryRegistry(MemoryConfig{Metrics: m})

	r.Remove(nil)

	s, err := r.Create(context.Background(), "conn-a")
	require.NoError(t, err)
	r.Remove(s)
	r.Remove(s)

	assert.Equal(t, uint64(1), m.Get(metrics.SessionRemoved))
}

func TestMemoryRegistry_EmptyLookupsMiss(t *testing.T) {
	r := NewMemoryRegistry(MemoryConfig{})
	_, err := r.Create(context.Background(), "conn-a")
	require.NoError(t, err)

	_, ok := r.Find("")
	assert.False(t, ok)
	_, ok = r.FindShort("")
	assert.False(t, ok)
}

func TestMemoryRegistry_RetriesOnCollision(t *testing.T) {
	gen := &scriptedTokens{
		tokens: []string{"a/b", "a/b", "c/d"},
		shorts: []string{"short1", "short2", "short3"},
	}
	r := NewMemoryRegistry(MemoryConfig{Tokens: gen})

	first, err := r.Create(context.Background(), "conn-a")
	require.NoError(t, err)
	assert.Equal(t, "a/b", first.Token())

	second, err := r.Create(context.Background(), "conn-b")
	require.NoError(t, err)
	assert.Equal(t, "c/d", second.Token())
	assert.Equal(t, "short3", second.ShortToken())
}

func TestMemoryRegistry_ShortTokenCollisionAlsoRetries(t *testing.T) {
	gen := &scriptedTokens{
		tokens: []string{"a/b", "c/d", "e/f"},
		shorts: []string{"same", "same", "other"},
	}
	r := NewMemoryRegistry(MemoryConfig{Tokens: gen})

	_, err := r.Create(context.Background(), "conn-a")
	require.NoError(t, err)

	second, err := r.Create(context.Background(), "conn-b")
	require.NoError(t, err)
	assert.Equal(t, "other", second.ShortToken())
	assert.Equal(t, "e/f", second.Token())
}

func TestMemoryRegistry_TokenSpaceExhausted(t *testing.T) {
	gen := &scriptedTokens{tokens: []string{"a/b"}, shorts: []string{"s"}}
	r := NewMemoryRegistry(MemoryConfig{Tokens: gen})

	_, err := r.Create(context.Background(), "conn-a")
	require.NoError(t, err)

	_, err = r.Create(context.Background(), "conn-b")
	require.ErrorIs(t, err, ErrTokenSpaceExhausted)
}

func TestMemoryRegistry_GeneratorFailure(t *testing.T) {
	boom := errors.New("entropy unavailable")
	r := NewMemoryRegistry(MemoryConfig{Tokens: &scriptedTokens{err: boom}})

	_, err := r.Create(context.Background(), "conn-a")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, r.Len())
}

func TestMemoryRegistry_CanceledContext(t *testing.T) {
	r := NewMemoryRegistry(MemoryConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Create(ctx, "conn-a")
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryRegistry_ConcurrentCreatesAreUnique(t *testing.T) {
	r := NewMemoryRegistry(MemoryConfig{Tokens: RandomTokens{Words: 3, ShortLength: 6}})

	const n = 200
	var wg sync.WaitGroup
	sessions := make([]*Session, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = r.Create(context.Background(), ConnID(fmt.Sprintf("conn-%d", i)))
		}(i)
	}
	wg.Wait()

	tokens := make(map[string]bool)
	shorts := make(map[string]bool)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		s := sessions[i]
		require.False(t, tokens[s.Token()], "duplicate token %q", s.Token())
		require.False(t, shorts[s.ShortToken()], "duplicate short token %q", s.ShortToken())
		tokens[s.Token()] = true
		shorts[s.ShortToken()] = true
	}
	assert.Equal(t, n, r.Len())
}
