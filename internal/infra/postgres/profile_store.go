package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"constitution-quest-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ProfileStore persists profiles as JSONB rows keyed by user id.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (domain.UserProfile, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM profiles WHERE user_id=$1`, userID).Scan(&raw)
	if err == pgx.ErrNoRows {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("load profile: %w", err)
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
	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (user_id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`,
		profile.UserID, raw)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
