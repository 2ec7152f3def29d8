package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/be-confident-group/ccapp-tracking/internal/models"
)

// ErrTripConflict is returned when a write would create a second trip with no
// end timestamp. The single-active-trip invariant is enforced here as the
// backstop, not just by the detector.
var ErrTripConflict = errors.New("another trip is still active")

// TripRepository handles database operations for trips
type TripRepository struct {
	db *sql.DB
}

// NewTripRepository creates a new trip repository
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{db: db}
}

const tripColumns = `local_id, remote_id, activity_type, is_manual, started_at, ended_at,
	distance_m, duration_s, co2_saved_kg, route_summary, sync_state, sync_attempts,
	created_at, updated_at`

// Insert stores a new trip. Inserting an active trip while another trip is
// still active fails with ErrTripConflict.
func (r *TripRepository) Insert(t *models.Trip) error {
	now := time.Now().UnixMilli()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.SyncState == "" {
		t.SyncState = models.SyncStateUnsynced
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if t.EndedAt == nil {
		var count int64
		if err := tx.QueryRow("SELECT COUNT(*) FROM trips WHERE ended_at IS NULL").Scan(&count); err != nil {
			return fmt.Errorf("failed to check active trips: %w", err)
		}
		if count > 0 {
			return ErrTripConflict
		}
	}

	_, err = tx.Exec(`INSERT INTO trips (`+tripColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.LocalID, nullString(t.RemoteID), t.ActivityType, t.IsManual, t.StartedAt, t.EndedAt,
		t.DistanceM, t.DurationS, t.CO2SavedKg, nullString(t.RouteSummary), t.SyncState,
		t.SyncAttempts, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		// The partial unique index on open trips is the last line of defense
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrTripConflict
		}
		return fmt.Errorf("failed to insert trip: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trip insert: %w", err)
	}

	return nil
}

// Update applies a partial update to a trip
func (r *TripRepository) Update(localID string, patch models.TripPatch) error {
	var sets []string
	var args []interface{}

	if patch.EndedAt != nil {
		sets = append(sets, "ended_at = ?")
		args = append(args, *patch.EndedAt)
	}
	if patch.DistanceM != nil {
		sets = append(sets, "distance_m = ?")
		args = append(args, *patch.DistanceM)
	}
	if patch.DurationS != nil {
		sets = append(sets, "duration_s = ?")
		args = append(args, *patch.DurationS)
	}
	if patch.CO2SavedKg != nil {
		sets = append(sets, "co2_saved_kg = ?")
		args = append(args, *patch.CO2SavedKg)
	}
	if patch.RouteSummary != nil {
		sets = append(sets, "route_summary = ?")
		args = append(args, *patch.RouteSummary)
	}
	if patch.SyncState != nil {
		sets = append(sets, "sync_state = ?")
		args = append(args, *patch.SyncState)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UnixMilli(), localID)

	query := "UPDATE trips SET " + strings.Join(sets, ", ") + " WHERE local_id = ?"
	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to update trip: %w", err)
	}

	return nil
}

// GetByLocalID retrieves a single trip, or nil when it does not exist
func (r *TripRepository) GetByLocalID(localID string) (*models.Trip, error) {
	row := r.db.QueryRow(`SELECT `+tripColumns+` FROM trips WHERE local_id = ?`, localID)
	t, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return t, nil
}

// GetActiveTrip returns the trip with no end timestamp, or nil
func (r *TripRepository) GetActiveTrip() (*models.Trip, error) {
	row := r.db.QueryRow(`SELECT ` + tripColumns + ` FROM trips WHERE ended_at IS NULL LIMIT 1`)
	t, err := scanTrip(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active trip: %w", err)
	}
	return t, nil
}

// List retrieves trips with filtering and pagination
func (r *TripRepository) List(filter models.TripFilter) ([]models.Trip, int64, error) {
	query := `SELECT ` + tripColumns + ` FROM trips`

	var conditions []string
	var args []interface{}

	if filter.StartTime > 0 {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, filter.StartTime)
	}
	if filter.EndTime > 0 {
		conditions = append(conditions, "started_at <= ?")
		args = append(args, filter.EndTime)
	}
	if filter.ActivityType != "" {
		conditions = append(conditions, "activity_type = ?")
		args = append(args, filter.ActivityType)
	}
	if filter.SyncState != "" {
		conditions = append(conditions, "sync_state = ?")
		args = append(args, filter.SyncState)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM trips"
	if len(conditions) > 0 {
		countQuery += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trips: %w", err)
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 100
	}
	if filter.PageSize > 1000 {
		filter.PageSize = 1000
	}

	offset := (filter.Page - 1) * filter.PageSize
	query += " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query trips: %w", err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, *t)
	}

	return trips, total, nil
}

// ListUnsynced returns finalized trips still awaiting a successful upload,
// oldest first
func (r *TripRepository) ListUnsynced() ([]models.Trip, error) {
	rows, err := r.db.Query(`SELECT `+tripColumns+` FROM trips
		WHERE ended_at IS NOT NULL AND sync_state IN (?, ?)
		ORDER BY started_at ASC`,
		models.SyncStateUnsynced, models.SyncStateSyncFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced trips: %w", err)
	}
	defer rows.Close()

	var trips []models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trips = append(trips, *t)
	}

	return trips, nil
}

// CountUnsynced returns how many finalized trips still await upload
func (r *TripRepository) CountUnsynced() (int64, error) {
	var count int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM trips
		WHERE ended_at IS NOT NULL AND sync_state IN (?, ?)`,
		models.SyncStateUnsynced, models.SyncStateSyncFailed).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count unsynced trips: %w", err)
	}
	return count, nil
}

// SetSyncState updates the sync state of a trip
func (r *TripRepository) SetSyncState(localID, state string) error {
	_, err := r.db.Exec("UPDATE trips SET sync_state = ?, updated_at = ? WHERE local_id = ?",
		state, time.Now().UnixMilli(), localID)
	if err != nil {
		return fmt.Errorf("failed to set sync state: %w", err)
	}
	return nil
}

// RecordSyncFailure marks a trip as failed and bumps its retry counter
func (r *TripRepository) RecordSyncFailure(localID string) error {
	_, err := r.db.Exec(`UPDATE trips
		SET sync_state = ?, sync_attempts = sync_attempts + 1, updated_at = ?
		WHERE local_id = ?`,
		models.SyncStateSyncFailed, time.Now().UnixMilli(), localID)
	if err != nil {
		return fmt.Errorf("failed to record sync failure: %w", err)
	}
	return nil
}

// RequeueSyncing returns trips stuck mid-upload to the retry queue. A crash
// between marking a trip SYNCING and resolving its upload would otherwise
// park it outside the sync scan forever; the idempotency key makes the
// re-upload safe.
func (r *TripRepository) RequeueSyncing() (int64, error) {
	res, err := r.db.Exec("UPDATE trips SET sync_state = ?, updated_at = ? WHERE sync_state = ?",
		models.SyncStateSyncFailed, time.Now().UnixMilli(), models.SyncStateSyncing)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue syncing trips: %w", err)
	}
	requeued, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read requeued count: %w", err)
	}
	return requeued, nil
}

// SetRemoteID stores the remote identifier assigned on first successful
// upload. The remote ID is write-once; later calls leave an existing value
// untouched.
func (r *TripRepository) SetRemoteID(localID, remoteID string) error {
	_, err := r.db.Exec(`UPDATE trips SET remote_id = ?, updated_at = ?
		WHERE local_id = ? AND (remote_id IS NULL OR remote_id = '')`,
		remoteID, time.Now().UnixMilli(), localID)
	if err != nil {
		return fmt.Errorf("failed to set remote id: %w", err)
	}
	return nil
}

// Delete removes a trip; its samples cascade via the foreign key
func (r *TripRepository) Delete(localID string) error {
	if _, err := r.db.Exec("DELETE FROM trips WHERE local_id = ?", localID); err != nil {
		return fmt.Errorf("failed to delete trip: %w", err)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTrip(s scanner) (*models.Trip, error) {
	var t models.Trip
	var remoteID, routeSummary sql.NullString
	var endedAt sql.NullInt64

	err := s.Scan(
		&t.LocalID, &remoteID, &t.ActivityType, &t.IsManual, &t.StartedAt, &endedAt,
		&t.DistanceM, &t.DurationS, &t.CO2SavedKg, &routeSummary, &t.SyncState,
		&t.SyncAttempts, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if remoteID.Valid {
		t.RemoteID = remoteID.String
	}
	if routeSummary.Valid {
		t.RouteSummary = routeSummary.String
	}
	if endedAt.Valid {
		v := endedAt.Int64
		t.EndedAt = &v
	}

	return &t, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
