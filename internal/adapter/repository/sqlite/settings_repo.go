package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"emitenwatch/internal/domain"
)

// settingRepository implements domain.SettingRepository
type settingRepository struct {
	db *DB
}

// NewSettingRepository creates a new profile-settings repository
func NewSettingRepository(db *DB) domain.SettingRepository {
	return &settingRepository{db: db}
}

// Get returns the value for key, or "" when unset
func (r *settingRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM profile_settings WHERE key = ?
	`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// Set writes the value for key
func (r *settingRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profile_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}
