package provider

import "sync"

// Handle holds the currently active Provider shared by all in-flight
// requests. Reads vastly outnumber writes; the lock is only ever held for
// the pointer copy, never across provider I/O. Operations that captured the
// old provider before a swap run to completion against it.
type Handle struct {
	mu      sync.RWMutex
	current Provider
}

// NewHandle builds a handle around the initially configured provider.
func NewHandle(p Provider) *Handle {
	return &Handle{current: p}
}

// Current returns the provider active at call time.
func (h *Handle) Current() Provider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Replace atomically swaps the active provider.
func (h *Handle) Replace(p Provider) {
	h.mu.Lock()
	h.current = p
	h.mu.Unlock()
}
