// Package cache provides the TTL stores shared by the quote, technical, and
// financial resolution paths. Each store is an explicit, mutex-guarded value
// owned by its consumer; there is no package-level state.
package cache

import (
	"sync"
	"time"
)

// Entry holds a cached value and when it was fetched.
type Entry[T any] struct {
	Value     T
	FetchedAt time.Time
	expiresAt time.Time
}

// Store is a generic thread-safe TTL map keyed by canonical symbol (plus
// options where the caller encodes them into the key).
type Store[T any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]Entry[T]
}

// New creates a store with the given default TTL.
func New[T any](ttl time.Duration) *Store[T] {
	return &Store[T]{
		ttl:     ttl,
		entries: make(map[string]Entry[T]),
	}
}

// Get returns the value for key if present and still fresh.
func (s *Store[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Stale returns the value for key even when it has expired. Used for the
// stale-cache fallback when every provider has failed.
func (s *Store[T]) Stale(key string) (T, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	return e.Value, true
}

// Put stores a value with the default TTL.
func (s *Store[T]) Put(key string, value T) {
	s.PutWithTTL(key, value, s.ttl)
}

// PutWithTTL stores a value with a custom TTL. Asymmetric success/failure
// TTLs are expressed by the caller choosing the duration per outcome.
func (s *Store[T]) PutWithTTL(key string, value T, ttl time.Duration) {
	now := time.Now()
	s.mu.Lock()
	s.entries[key] = Entry[T]{
		Value:     value,
		FetchedAt: now,
		expiresAt: now.Add(ttl),
	}
	s.mu.Unlock()
}

// Invalidate removes a key.
func (s *Store[T]) Invalidate(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Flush removes all entries.
func (s *Store[T]) Flush() {
	s.mu.Lock()
	s.entries = make(map[string]Entry[T])
	s.mu.Unlock()
}

// Cleanup removes expired entries. Stale-fallback consumers should not call
// this on the quote store, since expired entries back the stale path.
func (s *Store[T]) Cleanup() {
	now := time.Now()
	s.mu.Lock()
	for k, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.mu.Unlock()
}
