package auth

import (
	"sync"
	"time"
)

const revocationSweepInterval = 5 * time.Minute

// TokenRevocationStore remembers the jti of tokens revoked at logout until
// they would have expired anyway. Safe for concurrent use.
type TokenRevocationStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time // jti -> token expiry
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewTokenRevocationStore starts a background sweep of expired entries.
// Call Close to stop it.
func NewTokenRevocationStore() *TokenRevocationStore {
	s := &TokenRevocationStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Revoke ignores tokens without a jti or that have already expired.
func (s *TokenRevocationStore) Revoke(jti string, expiresAt time.Time) {
	if jti == "" || !s.now().Before(expiresAt) {
		return
	}
	s.mu.Lock()
	s.entries[jti] = expiresAt
	s.mu.Unlock()
}

// IsRevoked reports whether jti was revoked and has not yet expired. An
// empty jti is never revoked.
func (s *TokenRevocationStore) IsRevoked(jti string) bool {
	if jti == "" {
		return false
	}
	s.mu.RLock()
	exp, ok := s.entries[jti]
	s.mu.RUnlock()
	return ok && s.now().Before(exp)
}

func (s *TokenRevocationStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *TokenRevocationStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *TokenRevocationStore) sweepLoop() {
	ticker := time.NewTicker(revocationSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *TokenRevocationStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, jti)
		}
	}
}
