package syncer

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/be-confident-group/ccapp-tracking/internal/models"
	"github.com/be-confident-group/ccapp-tracking/internal/repository"
)

// Failure records why one trip could not be uploaded
type Failure struct {
	LocalID string `json:"local_id"`
	Reason  string `json:"reason"`
}

// Report aggregates the outcome of one sync pass. Per-trip failures are
// recorded here instead of aborting the pass, so partial success is always
// representable.
type Report struct {
	SyncedCount int       `json:"synced_count"`
	FailedCount int       `json:"failed_count"`
	Failures    []Failure `json:"failures,omitempty"`
}

// Engine drains locally-finalized, unsynced trips to the remote service.
// Only one sync pass runs at a time; a second call while one is in flight
// receives the in-flight result instead of starting a duplicate run.
type Engine struct {
	store   *repository.Store
	client  *Client
	limiter *rate.Limiter
	group   singleflight.Group
}

// NewEngine creates a sync engine. uploadsPerSecond bounds the upload pace;
// zero or negative disables pacing.
func NewEngine(store *repository.Store, client *Client, uploadsPerSecond float64) *Engine {
	limit := rate.Inf
	if uploadsPerSecond > 0 {
		limit = rate.Limit(uploadsPerSecond)
	}
	return &Engine{
		store:   store,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Sync runs (or joins) a sync pass and returns its aggregate report
func (e *Engine) Sync(ctx context.Context) (Report, error) {
	v, err, _ := e.group.Do("sync", func() (interface{}, error) {
		return e.run(ctx)
	})
	if err != nil {
		return Report{}, err
	}
	return v.(Report), nil
}

// run uploads every pending trip. One trip's failure never blocks the others;
// cancellation is honored between trips, not mid-upload.
func (e *Engine) run(ctx context.Context) (Report, error) {
	trips, err := e.store.Trips.ListUnsynced()
	if err != nil {
		return Report{}, fmt.Errorf("failed to list unsynced trips: %w", err)
	}

	var report Report
	for _, trip := range trips {
		if ctx.Err() != nil {
			log.Printf("[SyncEngine] Sync cancelled with %d trips remaining",
				len(trips)-report.SyncedCount-report.FailedCount)
			break
		}
		if err := e.limiter.Wait(ctx); err != nil {
			break
		}

		if err := e.store.Trips.SetSyncState(trip.LocalID, models.SyncStateSyncing); err != nil {
			log.Printf("[SyncEngine] Failed to mark trip %s as syncing: %v", trip.LocalID, err)
		}

		remoteID, err := e.client.UploadTrip(ctx, trip)
		if err != nil {
			log.Printf("[SyncEngine] Trip %s failed to sync: %v", trip.LocalID, err)
			if dbErr := e.store.Trips.RecordSyncFailure(trip.LocalID); dbErr != nil {
				log.Printf("[SyncEngine] Failed to record sync failure for %s: %v", trip.LocalID, dbErr)
			}
			report.FailedCount++
			report.Failures = append(report.Failures, Failure{
				LocalID: trip.LocalID,
				Reason:  err.Error(),
			})
			continue
		}

		// Remote ID is write-once; a resync of an already-known trip keeps
		// the original assignment
		if err := e.store.Trips.SetRemoteID(trip.LocalID, remoteID); err != nil {
			log.Printf("[SyncEngine] Failed to store remote id for %s: %v", trip.LocalID, err)
		}
		if err := e.store.Trips.SetSyncState(trip.LocalID, models.SyncStateSynced); err != nil {
			log.Printf("[SyncEngine] Failed to mark trip %s as synced: %v", trip.LocalID, err)
		}
		report.SyncedCount++
	}

	log.Printf("[SyncEngine] Sync finished: %d synced, %d failed",
		report.SyncedCount, report.FailedCount)
	return report, nil
}
