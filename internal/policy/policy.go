// Package policy holds the process-wide upload policy. The policy is loaded
// from the database at startup and refreshed by the instance administration
// path; request handlers read one immutable snapshot per request.
package policy

import (
	"sync"
	"time"
)

// Policy is the global upload policy.
type Policy struct {
	MimeTypes    []string
	MaxSize      int64
	ChunkSize    int64
	TempFileLife time.Duration
	DefaultQuota int64
}

// Allows reports whether the declared MIME type is in the allow-set.
func (p Policy) Allows(mimeType string) bool {
	for _, m := range p.MimeTypes {
		if m == mimeType {
			return true
		}
	}
	return false
}

// Store is a read-mostly holder of the current Policy. Snapshots are
// replaced wholesale, never mutated in place.
type Store struct {
	mu      sync.RWMutex
	current Policy
}

// NewStore builds a store around the initial policy.
func NewStore(p Policy) *Store {
	return &Store{current: p}
}

// Snapshot returns the policy active at call time.
func (s *Store) Snapshot() Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in a fresh policy.
func (s *Store) Replace(p Policy) {
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
}
