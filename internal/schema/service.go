package schema

import (
	"context"
	"sync"
)

// Service caches the current schema snapshot and answers drift checks.
// Safe for concurrent use; sessions read the snapshot many times while
// an operator may refresh it from another goroutine.
type Service struct {
	provider Provider

	mu      sync.RWMutex
	current *Descriptor
}

// NewService wraps a provider. The first Snapshot call loads lazily.
func NewService(provider Provider) *Service {
	return &Service{provider: provider}
}

// Snapshot returns the cached snapshot, loading it on first use.
func (s *Service) Snapshot(ctx context.Context) (*Descriptor, error) {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	if cur != nil {
		return cur, nil
	}
	return s.Refresh(ctx)
}

// Refresh reloads from the provider and replaces the cache.
func (s *Service) Refresh(ctx context.Context) (*Descriptor, error) {
	d, err := s.provider.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.current = d
	s.mu.Unlock()
	return d, nil
}

// Drifted reloads and reports whether the live schema no longer matches
// the given version. The fresh snapshot is returned either way and
// becomes the cache.
func (s *Service) Drifted(ctx context.Context, version string) (bool, *Descriptor, error) {
	d, err := s.Refresh(ctx)
	if err != nil {
		return false, nil, err
	}
	return d.Version != version, d, nil
}
