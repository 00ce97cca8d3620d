package memory

import (
	"context"
	"sync"

	"constitution-quest-service/internal/domain"
)

// ProfileStore is an in-memory implementation of app.ProfileStore (useful
// for tests and single-node demos).
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.UserProfile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]domain.UserProfile),
	}
}

func (s *ProfileStore) Get(_ context.Context, userID string) (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	return profile.Clone(), nil
}

func (s *ProfileStore) Put(_ context.Context, profile domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile.Clone()
	return nil
}
