package tgui

import (
	"sync"
	"time"
)

// Sessions keeps per-user conversation state for multi-step flows. Entries
// expire after the TTL measured from their last Put, and the oldest entry is
// evicted once max is reached.
type Sessions[T any] struct {
	mu  sync.Mutex
	ttl time.Duration
	max int
	now func() time.Time

	nextCleanup time.Time
	m           map[int64]session[T]
}

type session[T any] struct {
	v   T
	exp time.Time
}

// NewSessions creates a store. Defaults: ttl=15m, max=5000.
func NewSessions[T any](ttl time.Duration, max int) *Sessions[T] {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if max <= 0 {
		max = 5000
	}
	return &Sessions[T]{ttl: ttl, max: max, now: time.Now, m: map[int64]session[T]{}}
}

// Put stores v for key and restarts its TTL.
func (s *Sessions[T]) Put(key int64, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.cleanupLocked(now)
	if _, ok := s.m[key]; !ok && len(s.m) >= s.max {
		s.evictOldestLocked()
	}
	s.m[key] = session[T]{v: v, exp: now.Add(s.ttl)}
}

// Get returns the live value for key.
func (s *Sessions[T]) Get(key int64) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok {
		var zero T
		return zero, false
	}
	if s.now().After(e.exp) {
		delete(s.m, key)
		var zero T
		return zero, false
	}
	return e.v, true
}

func (s *Sessions[T]) Delete(key int64) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// Len counts entries, expired ones included until the next sweep.
func (s *Sessions[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// cleanupLocked drops expired entries at most once per minute.
func (s *Sessions[T]) cleanupLocked(now time.Time) {
	if now.Before(s.nextCleanup) {
		return
	}
	for k, e := range s.m {
		if now.After(e.exp) {
			delete(s.m, k)
		}
	}
	s.nextCleanup = now.Add(time.Minute)
}

func (s *Sessions[T]) evictOldestLocked() {
	var (
		oldest int64
		exp    time.Time
		found  bool
	)
	for k, e := range s.m {
		if !found || e.exp.Before(exp) {
			oldest, exp, found = k, e.exp, true
		}
	}
	if found {
		delete(s.m, oldest)
	}
}
