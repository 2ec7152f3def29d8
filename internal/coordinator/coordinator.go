package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/be-confident-group/ccapp-tracking/internal/detector"
	"github.com/be-confident-group/ccapp-tracking/internal/models"
	"github.com/be-confident-group/ccapp-tracking/internal/repository"
	"github.com/be-confident-group/ccapp-tracking/internal/sampler"
	"github.com/be-confident-group/ccapp-tracking/internal/syncer"
)

// AppLifecycleEvent decouples the engine from any platform lifecycle API
type AppLifecycleEvent string

// Lifecycle events fed in by the embedding app
const (
	LifecycleForegrounded AppLifecycleEvent = "FOREGROUNDED"
	LifecycleBackgrounded AppLifecycleEvent = "BACKGROUNDED"
	LifecycleRestarted    AppLifecycleEvent = "RESTARTED"
)

// Status is the snapshot returned to the rest of the app
type Status struct {
	Tracking      bool         `json:"tracking"`
	Mode          sampler.Mode `json:"mode,omitempty"`
	ActiveTrip    *models.Trip `json:"active_trip,omitempty"`
	UnsyncedCount int64        `json:"unsynced_count"`
}

// Coordinator is the facade the rest of the app talks to. It owns the
// is-tracking flag and the active-trip reference, wires the sampler into the
// detector, and triggers the sync engine on connectivity changes.
type Coordinator struct {
	store    *repository.Store
	sampler  *sampler.Sampler
	detector *detector.Detector
	engine   *syncer.Engine

	mu          sync.Mutex
	tracking    bool
	mode        sampler.Mode
	online      bool
	onDowngrade func()
}

// New wires the tracking pipeline: sampler -> detector -> store, sync engine
// on the side
func New(store *repository.Store, smp *sampler.Sampler, det *detector.Detector, engine *syncer.Engine) (*Coordinator, error) {
	c := &Coordinator{
		store:    store,
		sampler:  smp,
		detector: det,
		engine:   engine,
		online:   true,
	}

	if err := smp.OnSample(c.handleFixes); err != nil {
		return nil, fmt.Errorf("failed to register sample consumer: %w", err)
	}
	smp.OnPermissionDowngraded(c.handlePermissionDowngrade)

	return c, nil
}

// OnPermissionDowngraded registers the app-facing hook fired after the
// coordinator has stopped tracking due to a permission downgrade
func (c *Coordinator) OnPermissionDowngraded(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDowngrade = fn
}

// StartTracking begins sampling in the given mode. It fails with the
// sampler's permission or subscription error when tracking cannot start.
func (c *Coordinator) StartTracking(mode sampler.Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tracking {
		return nil
	}
	if mode == "" {
		mode = sampler.ModeForeground
	}

	if err := c.sampler.Start(mode); err != nil {
		return err
	}

	c.tracking = true
	c.mode = mode
	log.Printf("[TrackingCoordinator] Tracking started (mode=%s)", mode)
	return nil
}

// StopTracking stops sampling and finalizes the current trip immediately. A
// candidate that never promoted is dropped without creating a trip.
func (c *Coordinator) StopTracking() (*models.Trip, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	trip, err := c.detector.Stop()
	c.sampler.Stop()
	c.tracking = false
	c.mode = ""

	log.Printf("[TrackingCoordinator] Tracking stopped")
	return trip, err
}

// StartManualTrip opens a manually created trip
func (c *Coordinator) StartManualTrip(activityType string) (*models.Trip, error) {
	return c.detector.StartManual(activityType)
}

// IsTracking reports whether tracking is currently active
func (c *Coordinator) IsTracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking
}

// GetActiveTrip returns the open trip from the store, or nil
func (c *Coordinator) GetActiveTrip() (*models.Trip, error) {
	return c.store.Trips.GetActiveTrip()
}

// SyncNow runs (or joins) a sync pass
func (c *Coordinator) SyncNow(ctx context.Context) (syncer.Report, error) {
	return c.engine.Sync(ctx)
}

// UnsyncedCount returns how many finalized trips still await upload
func (c *Coordinator) UnsyncedCount() (int64, error) {
	return c.store.Trips.CountUnsynced()
}

// Status returns a snapshot for diagnostics and the status endpoint
func (c *Coordinator) Status() (Status, error) {
	trip, err := c.store.Trips.GetActiveTrip()
	if err != nil {
		return Status{}, err
	}
	pending, err := c.store.Trips.CountUnsynced()
	if err != nil {
		return Status{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Tracking:      c.tracking,
		Mode:          c.mode,
		ActiveTrip:    trip,
		UnsyncedCount: pending,
	}, nil
}

// HandleConnectivityChange triggers an opportunistic sync when connectivity
// returns. Sync is never scheduled on a timer while offline.
func (c *Coordinator) HandleConnectivityChange(online bool) {
	c.mu.Lock()
	wasOnline := c.online
	c.online = online
	c.mu.Unlock()

	if !wasOnline && online {
		log.Printf("[TrackingCoordinator] Connectivity restored, syncing")
		go func() {
			if _, err := c.engine.Sync(context.Background()); err != nil {
				log.Printf("[TrackingCoordinator] Opportunistic sync failed: %v", err)
			}
		}()
	}
}

// HandleLifecycleEvent reacts to app lifecycle transitions. The sampling
// subscription itself survives foreground/background flips; a restart
// attempts auto-resume.
func (c *Coordinator) HandleLifecycleEvent(ev AppLifecycleEvent) {
	switch ev {
	case LifecycleRestarted:
		if err := c.Resume(); err != nil {
			log.Printf("[TrackingCoordinator] Auto-resume failed: %v", err)
		}
	case LifecycleForegrounded, LifecycleBackgrounded:
		log.Printf("[TrackingCoordinator] Lifecycle event: %s", ev)
	}
}

// Resume restarts tracking after a process restart when the persisted
// preference says the user still wants it and permission is still valid
func (c *Coordinator) Resume() error {
	wants, mode, err := c.sampler.WantsTracking()
	if err != nil {
		return fmt.Errorf("failed to read tracking preference: %w", err)
	}
	if !wants {
		return nil
	}

	perm, err := c.sampler.RequestPermission(mode)
	if err != nil {
		return err
	}
	if !perm.Allows(mode) {
		log.Printf("[TrackingCoordinator] Not resuming: permission no longer covers %s", mode)
		return sampler.ErrPermissionDenied
	}

	log.Printf("[TrackingCoordinator] Auto-resuming tracking (mode=%s)", mode)
	return c.StartTracking(mode)
}

// StartMaintenance prunes raw samples of synced trips past the retention
// window on a fixed interval, until the context is cancelled
func (c *Coordinator) StartMaintenance(ctx context.Context, interval time.Duration, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention).UnixMilli()
				pruned, err := c.store.Samples.PruneSynced(cutoff)
				if err != nil {
					log.Printf("[TrackingCoordinator] Sample pruning failed: %v", err)
					continue
				}
				if pruned > 0 {
					log.Printf("[TrackingCoordinator] Pruned %d synced samples", pruned)
				}
			}
		}
	}()
}

// handleFixes converts a fix burst into location samples and feeds the
// detector. Malformed fixes are the detector's problem; it drops them.
func (c *Coordinator) handleFixes(fixes []sampler.Fix) {
	batch := make([]models.LocationSample, len(fixes))
	for i, f := range fixes {
		batch[i] = models.LocationSample{
			Latitude:   f.Latitude,
			Longitude:  f.Longitude,
			Altitude:   f.Altitude,
			Accuracy:   f.Accuracy,
			Speed:      f.Speed,
			Heading:    f.Heading,
			CapturedAt: f.CapturedAt,
		}
	}
	c.detector.HandleSamples(batch)
}

// handlePermissionDowngrade stops tracking gracefully instead of silently
// losing data, then surfaces the downgrade to the app
func (c *Coordinator) handlePermissionDowngrade() {
	log.Printf("[TrackingCoordinator] Permission downgraded, stopping tracking")
	if _, err := c.StopTracking(); err != nil {
		log.Printf("[TrackingCoordinator] Stop after downgrade failed: %v", err)
	}

	c.mu.Lock()
	fn := c.onDowngrade
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
