package repository

import (
	"database/sql"
	"log"
	"time"

	"github.com/be-confident-group/ccapp-tracking/internal/models"
)

const (
	writeRetries      = 3
	writeRetryBackoff = 100 * time.Millisecond
)

// Store bundles the repositories into the single local-store surface consumed
// by the detector, the coordinator and the sync engine. No component writes to
// the underlying tables except through it.
type Store struct {
	Trips   *TripRepository
	Samples *SampleRepository
	Prefs   *PreferenceRepository
}

// NewStore wires the repositories over one database handle
func NewStore(db *sql.DB) *Store {
	return &Store{
		Trips:   NewTripRepository(db),
		Samples: NewSampleRepository(db),
		Prefs:   NewPreferenceRepository(db),
	}
}

// AppendSamples writes a sample burst, retrying transient failures with
// backoff. Burst-level batching bounds I/O while tracking.
func (s *Store) AppendSamples(tripID string, batch []models.LocationSample) error {
	var err error
	for attempt := 0; attempt < writeRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(writeRetryBackoff << (attempt - 1))
		}
		if err = s.Samples.AppendBatch(tripID, batch); err == nil {
			return nil
		}
		log.Printf("[Store] Sample batch write failed (attempt %d/%d): %v", attempt+1, writeRetries, err)
	}
	return err
}
