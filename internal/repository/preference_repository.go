package repository

import (
	"database/sql"
	"fmt"
	"time"
)

// Preference keys
const (
	PrefWantsTracking = "tracking.wants_active"
	PrefTrackingMode  = "tracking.mode"
)

// PreferenceRepository persists small key/value settings, most importantly the
// "wants tracking" flag used to auto-resume after an OS-driven restart.
type PreferenceRepository struct {
	db *sql.DB
}

// NewPreferenceRepository creates a new preference repository
func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// Set stores a preference value, replacing any previous value
func (r *PreferenceRepository) Set(key, value string) error {
	_, err := r.db.Exec(`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set preference %s: %w", key, err)
	}
	return nil
}

// Get returns a preference value, or "" when the key has never been set
func (r *PreferenceRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get preference %s: %w", key, err)
	}
	return value, nil
}

// SetBool stores a boolean preference
func (r *PreferenceRepository) SetBool(key string, value bool) error {
	str := "false"
	if value {
		str = "true"
	}
	return r.Set(key, str)
}

// GetBool reads a boolean preference; missing keys read as false
func (r *PreferenceRepository) GetBool(key string) (bool, error) {
	value, err := r.Get(key)
	if err != nil {
		return false, err
	}
	return value == "true", nil
}
