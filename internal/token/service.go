// Package token implements single-use upload authorization tokens backed by
// a key/value store with per-key expiry and an atomic get-and-delete.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the token lifetime applied when the caller does not choose one.
const DefaultTTL = 300 * time.Second

var (
	// ErrInvalidToken covers tokens that were never issued, already consumed,
	// or expired. The three cases are deliberately indistinguishable.
	ErrInvalidToken = errors.New("invalid upload token")
	// ErrUnavailable signals the token store could not be reached.
	ErrUnavailable = errors.New("token store unavailable")
)

// Store is the key/value contract the service needs. GetDel must be atomic
// with respect to concurrent calls on the same key.
type Store interface {
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, bool, error)
}

// Service issues and consumes single-use upload tokens.
type Service struct {
	store Store
}

// NewService builds a token service on top of the given store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Issue generates a random token bound to the optional owner and stores it
// with the given time to live. An empty stored value marks an anonymous token.
func (s *Service) Issue(ctx context.Context, owner *uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	tok := uuid.NewString()
	value := ""
	if owner != nil {
		value = owner.String()
	}

	if err := s.store.SetEx(ctx, storeKey(tok), value, ttl); err != nil {
		return "", fmt.Errorf("%w: store token: %v", ErrUnavailable, err)
	}
	return tok, nil
}

// Consume fetches and deletes the token in one atomic operation. Under
// concurrent calls on the same token exactly one succeeds; the rest see
// ErrInvalidToken. A nil owner marks an anonymous token.
func (s *Service) Consume(ctx context.Context, tok string) (*uuid.UUID, error) {
	value, ok, err := s.store.GetDel(ctx, storeKey(tok))
	if err != nil {
		return nil, fmt.Errorf("%w: consume token: %v", ErrUnavailable, err)
	}
	if !ok {
		return nil, ErrInvalidToken
	}
	if value == "" {
		return nil, nil
	}

	owner, err := uuid.Parse(value)
	if err != nil {
		return nil, fmt.Errorf("malformed token owner %q: %w", value, err)
	}
	return &owner, nil
}

func storeKey(tok string) string {
	return "upload_token:" + tok
}
