package tokenstore

import (
	"context"
	"sync"
	"time"
)

type inmemStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> expiry
}

var _ Store = (*inmemStore)(nil)

// NewInmemStore returns a Store backed by a mutex-guarded map.
// Used in tests and single-process deployments without redis.
func NewInmemStore() *inmemStore {
	return &inmemStore{revoked: make(map[string]time.Time)}
}

func (s *inmemStore) Revoke(_ context.Context, jti string, until time.Time) error {
	if time.Now().After(until) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = until
	return nil
}

func (s *inmemStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	until, ok := s.revoked[jti]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if time.Now().After(until) {
		s.mu.Lock()
		delete(s.revoked, jti)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}
