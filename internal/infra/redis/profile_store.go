package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"constitution-quest-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ProfileStore persists profiles as JSON values, one key per user. Profiles
// have no TTL: reward state is durable, unlike session liveness markers.
type ProfileStore struct {
	client *redis.Client
}

func NewProfileStore(client *redis.Client) *ProfileStore {
	return &ProfileStore{client: client}
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (domain.UserProfile, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	var profile domain.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return domain.UserProfile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	return profile, nil
}

func (s *ProfileStore) Put(ctx context.Context, profile domain.UserProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := s.client.Set(ctx, s.key(profile.UserID), raw, 0).Err(); err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) key(userID string) string {
	return "profile:" + userID
}
