package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	DefaultTokenWords       = 4
	DefaultShortTokenLength = 8

	// Lowercase letters and digits, without characters that are easy to
	// misread when a short link is typed by hand.
	shortTokenAlphabet = "abcdefghjkmnpqrstuvwxyz23456789"
)

// TokenGenerator produces the long (word based) and short identifiers of a
// session.
type TokenGenerator interface {
	Token() (string, error)
	ShortToken() (string, error)
}

// RandomTokens draws tokens from crypto/rand.
type RandomTokens struct {
	// Words is the number of words joined with "/" in a long token.
	Words int
	// ShortLength is the number of characters in a short token.
	ShortLength int
}

func (g RandomTokens) Token() (string, error) {
	n := g.Words
	if n <= 0 {
		n = DefaultTokenWords
	}
	parts := make([]string, n)
	for i := range parts {
		idx, err := randIndex(len(wordList))
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		parts[i] = wordList[idx]
	}
	return strings.Join(parts, "/"), nil
}

func (g RandomTokens) ShortToken() (string, error) {
	n := g.ShortLength
	if n <= 0 {
		n = DefaultShortTokenLength
	}
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := randIndex(len(shortTokenAlphabet))
		if err != nil {
			return "", fmt.Errorf("generate short token: %w", err)
		}
		b.WriteByte(shortTokenAlphabet[idx])
	}
	return b.String(), nil
}

func randIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
