package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mealog/mealog/internal/schema"
)

// PutProfile upserts the local cache of a user profile. The cache
// lets the app resolve the last-known household while offline.
func (s *Store) PutProfile(ctx context.Context, p *schema.UserProfile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	_, err := s.conn.ExecContext(ctx, `
	INSERT INTO profiles (uid, email, display_name, current_household_id)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(uid) DO UPDATE SET
		email = excluded.email,
		display_name = excluded.display_name,
		current_household_id = excluded.current_household_id`,
		p.UID, p.Email, p.DisplayName, p.CurrentHouseholdID)
	if err != nil {
		return fmt.Errorf("failed to put profile %s: %w", p.UID, err)
	}
	return nil
}

// GetProfile retrieves a cached profile by uid. A missing uid returns
// (nil, nil).
func (s *Store) GetProfile(ctx context.Context, uid string) (*schema.UserProfile, error) {
	var p schema.UserProfile
	err := s.conn.QueryRowContext(ctx, `
	SELECT uid, email, display_name, current_household_id
	FROM profiles WHERE uid = ?`, uid).
		Scan(&p.UID, &p.Email, &p.DisplayName, &p.CurrentHouseholdID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", uid, err)
	}
	return &p, nil
}
