package session

import (
	"context"
	"errors"
)

// ErrTokenSpaceExhausted is returned when Create cannot find an unused token
// pair within its retry budget.
var ErrTokenSpaceExhausted = errors.New("session: failed to allocate unique tokens")

// Registry stores live sessions and resolves them by either identifier.
//
// Implementations must be safe for concurrent use. Find and FindShort never
// return a Session that Create has not finished constructing.
type Registry interface {
	Create(ctx context.Context, owner ConnID) (*Session, error)
	Find(token string) (*Session, bool)
	FindShort(shortToken string) (*Session, bool)
	// Remove deletes s if it is still registered. A nil session is a no-op.
	Remove(s *Session)
}
