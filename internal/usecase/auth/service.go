package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"emitenwatch/internal/domain"
)

// Profile-setting keys owned by the password gate.
const (
	SettingPasswordEnabled = "password_enabled"
	SettingPasswordHash    = "password_hash"
)

const minPasswordLength = 4

// GateStatus describes the password gate as seen by clients.
type GateStatus struct {
	Enabled     bool `json:"enabled"`
	HasPassword bool `json:"has_password"`
}

// Service implements the password gate over the profile-settings map.
// The gate is a single digest comparison; it owns the two settings keys
// but nothing else.
type Service struct {
	Settings domain.SettingRepository
}

// NewService creates a new Service instance.
func NewService(settings domain.SettingRepository) *Service {
	return &Service{Settings: settings}
}

// Status reports whether the gate is enabled and a password is stored.
func (s *Service) Status(ctx context.Context) (*GateStatus, error) {
	enabled, err := s.Settings.Get(ctx, SettingPasswordEnabled)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SettingPasswordEnabled, err)
	}
	hash, err := s.Settings.Get(ctx, SettingPasswordHash)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SettingPasswordHash, err)
	}
	return &GateStatus{
		Enabled:     enabled == "true",
		HasPassword: hash != "",
	}, nil
}

// SetPassword enables the gate with a new password, or disables it and
// clears the stored hash when enabled is false.
func (s *Service) SetPassword(ctx context.Context, password string, enabled bool) error {
	if enabled && len(password) < minPasswordLength {
		return domain.NewValidationError("password must be at least %d characters", minPasswordLength)
	}

	if !enabled {
		if err := s.Settings.Set(ctx, SettingPasswordHash, ""); err != nil {
			return fmt.Errorf("clear %s: %w", SettingPasswordHash, err)
		}
		if err := s.Settings.Set(ctx, SettingPasswordEnabled, "false"); err != nil {
			return fmt.Errorf("write %s: %w", SettingPasswordEnabled, err)
		}
		return nil
	}

	if err := s.Settings.Set(ctx, SettingPasswordHash, hashPassword(password)); err != nil {
		return fmt.Errorf("write %s: %w", SettingPasswordHash, err)
	}
	if err := s.Settings.Set(ctx, SettingPasswordEnabled, "true"); err != nil {
		return fmt.Errorf("write %s: %w", SettingPasswordEnabled, err)
	}
	return nil
}

// Verify compares the given password against the stored digest.
func (s *Service) Verify(ctx context.Context, password string) (bool, error) {
	if password == "" {
		return false, domain.NewValidationError("password is required")
	}
	stored, err := s.Settings.Get(ctx, SettingPasswordHash)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", SettingPasswordHash, err)
	}
	if stored == "" {
		return false, domain.NewValidationError("no password has been set")
	}
	return hashPassword(password) == stored, nil
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
