package repository

import (
	"database/sql"
	"fmt"

	"github.com/be-confident-group/ccapp-tracking/internal/models"
)

// SampleRepository handles database operations for location samples. Samples
// are append-only; they are never updated after the initial write.
type SampleRepository struct {
	db *sql.DB
}

// NewSampleRepository creates a new sample repository
func NewSampleRepository(db *sql.DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// AppendBatch writes a burst of samples for a trip in a single transaction
func (r *SampleRepository) AppendBatch(tripID string, batch []models.LocationSample) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO locations
		(trip_id, latitude, longitude, altitude, accuracy, speed, heading, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range batch {
		_, err := stmt.Exec(tripID, s.Latitude, s.Longitude,
			s.Altitude, s.Accuracy, s.Speed, s.Heading, s.CapturedAt)
		if err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sample batch: %w", err)
	}

	return nil
}

// ListByTrip returns all samples of a trip ordered by capture time
func (r *SampleRepository) ListByTrip(tripID string) ([]models.LocationSample, error) {
	rows, err := r.db.Query(`SELECT id, trip_id, latitude, longitude,
		COALESCE(altitude, 0), COALESCE(accuracy, 0), COALESCE(speed, 0), COALESCE(heading, 0),
		captured_at
		FROM locations WHERE trip_id = ? ORDER BY captured_at ASC`, tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []models.LocationSample
	for rows.Next() {
		var s models.LocationSample
		err := rows.Scan(&s.ID, &s.TripID, &s.Latitude, &s.Longitude,
			&s.Altitude, &s.Accuracy, &s.Speed, &s.Heading, &s.CapturedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}

	return samples, nil
}

// CountByTrip returns the number of samples stored for a trip
func (r *SampleRepository) CountByTrip(tripID string) (int64, error) {
	var count int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM locations WHERE trip_id = ?", tripID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

// DeleteByTrip removes all samples belonging to a trip
func (r *SampleRepository) DeleteByTrip(tripID string) error {
	if _, err := r.db.Exec("DELETE FROM locations WHERE trip_id = ?", tripID); err != nil {
		return fmt.Errorf("failed to delete samples: %w", err)
	}
	return nil
}

// PruneSynced removes raw samples of trips that were confirmed synced and
// ended before the cutoff. The simplified route summary on the trip row is
// kept, so trip history survives pruning.
func (r *SampleRepository) PruneSynced(endedBefore int64) (int64, error) {
	res, err := r.db.Exec(`DELETE FROM locations WHERE trip_id IN (
		SELECT local_id FROM trips
		WHERE sync_state = ? AND ended_at IS NOT NULL AND ended_at < ?
	)`, models.SyncStateSynced, endedBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to prune samples: %w", err)
	}

	pruned, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned count: %w", err)
	}
	return pruned, nil
}
