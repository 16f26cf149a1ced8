package session

import (
	"context"
	"sync"
	"time"
)

// MemoryRevocationStore keeps revocation records in a process-local map.
// It is correct only for a single server process: a second instance would
// not see its revocations. Use it for tests and explicitly single-instance
// deployments; production runs the Redis store.
type MemoryRevocationStore struct {
	mu       sync.RWMutex
	tokens   map[string]time.Time
	accounts map[string]accountRevocation
	now      func() time.Time
}

type accountRevocation struct {
	revokedAt time.Time
	expiresAt time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{
		tokens:   make(map[string]time.Time),
		accounts: make(map[string]accountRevocation),
		now:      time.Now,
	}
}

// WithNowFunc overrides the store's clock for expiry tests.
func (s *MemoryRevocationStore) WithNowFunc(now func() time.Time) *MemoryRevocationStore {
	s.now = now
	return s
}

func (s *MemoryRevocationStore) RevokeToken(_ context.Context, rawToken string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenKey(rawToken)] = s.now().Add(ttl)
}

func (s *MemoryRevocationStore) IsTokenRevoked(_ context.Context, rawToken string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiresAt, ok := s.tokens[tokenKey(rawToken)]
	return ok && s.now().Before(expiresAt)
}

func (s *MemoryRevocationStore) RevokeAccount(_ context.Context, accountID string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountID] = accountRevocation{revokedAt: now, expiresAt: now.Add(ttl)}
}

func (s *MemoryRevocationStore) IsAccountRevoked(_ context.Context, accountID string, issuedAt time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.accounts[accountID]
	if !ok || !s.now().Before(record.expiresAt) {
		return false
	}

	// Whole-second comparison, matching the resolution of the iat claim.
	return issuedAt.Unix() < record.revokedAt.Unix()
}

func (s *MemoryRevocationStore) UnrevokeToken(_ context.Context, rawToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, tokenKey(rawToken))
}

// Cleanup drops lapsed entries so a long-lived process does not grow
// unbounded. The Redis store needs no equivalent: its keys expire on TTL.
func (s *MemoryRevocationStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, expiresAt := range s.tokens {
		if now.After(expiresAt) {
			delete(s.tokens, key)
		}
	}
	for key, record := range s.accounts {
		if now.After(record.expiresAt) {
			delete(s.accounts, key)
		}
	}
}

// NoopRevocationStore is the null-object used when no revocation backend is
// configured. Every check returns the fail-open default.
type NoopRevocationStore struct{}

func (NoopRevocationStore) RevokeToken(context.Context, string, time.Duration)       {}
func (NoopRevocationStore) IsTokenRevoked(context.Context, string) bool              { return false }
func (NoopRevocationStore) RevokeAccount(context.Context, string, time.Duration)     {}
func (NoopRevocationStore) IsAccountRevoked(context.Context, string, time.Time) bool { return false }
func (NoopRevocationStore) UnrevokeToken(context.Context, string)                    {}
