package main

import (
	"context"
	"log"
	"time"

	"github.com/be-confident-group/ccapp-tracking/internal/api"
	"github.com/be-confident-group/ccapp-tracking/internal/config"
	"github.com/be-confident-group/ccapp-tracking/internal/coordinator"
	"github.com/be-confident-group/ccapp-tracking/internal/database"
	"github.com/be-confident-group/ccapp-tracking/internal/detector"
	"github.com/be-confident-group/ccapp-tracking/internal/handler"
	"github.com/be-confident-group/ccapp-tracking/internal/repository"
	"github.com/be-confident-group/ccapp-tracking/internal/sampler"
	"github.com/be-confident-group/ccapp-tracking/internal/service"
	"github.com/be-confident-group/ccapp-tracking/internal/syncer"
)

const maintenanceInterval = time.Hour

func main() {
	cfg := config.Load()

	db, err := database.Open(database.Config{Path: cfg.DBPath})
	if err != nil {
		log.Fatalf("[Main] Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("[Main] Failed to run migrations: %v", err)
	}

	store := repository.NewStore(db)

	// Trips caught mid-upload by a previous crash go back into the retry queue
	if requeued, err := store.Trips.RequeueSyncing(); err != nil {
		log.Fatalf("[Main] Failed to requeue in-flight trips: %v", err)
	} else if requeued > 0 {
		log.Printf("[Main] Requeued %d trips stuck mid-sync", requeued)
	}

	det := detector.New(detector.Config{
		MinSpeedMPS:          cfg.MinSpeedMPS,
		MinTripDurationS:     cfg.MinTripDurationS,
		MinTripDistanceM:     cfg.MinTripDistanceM,
		MaxSampleAccuracyM:   cfg.MaxSampleAccuracyM,
		DriftRadiusM:         cfg.DriftRadiusM,
		CandidateWindowS:     cfg.CandidateWindowS,
		SimplifyToleranceDeg: cfg.SimplifyToleranceDeg,
	}, store)
	det.SetEventHandler(func(ev detector.Event) {
		log.Printf("[Main] Trip event: %s (%s)", ev.Kind, ev.Trip.LocalID)
	})

	platform := sampler.NewReplayPlatform()
	smp := sampler.New(platform, store.Prefs)

	client := syncer.NewClient(cfg.RemoteBaseURL, cfg.DeviceID, cfg.JWTSecret)
	engine := syncer.NewEngine(store, client, cfg.SyncRPS)

	coord, err := coordinator.New(store, smp, det, engine)
	if err != nil {
		log.Fatalf("[Main] Failed to wire coordinator: %v", err)
	}
	coord.OnPermissionDowngraded(func() {
		log.Printf("[Main] Location permission revoked by the user")
	})

	// Restore tracking across process restarts
	if err := coord.Resume(); err != nil {
		log.Printf("[Main] Tracking not resumed: %v", err)
	}

	retention := time.Duration(cfg.SampleRetentionDays) * 24 * time.Hour
	coord.StartMaintenance(context.Background(), maintenanceInterval, retention)

	r := api.SetupRouter(api.Handlers{
		Tracking: handler.NewTrackingHandler(coord),
		Trips:    handler.NewTripHandler(service.NewTripService(store)),
		Sync:     handler.NewSyncHandler(coord),
		Ingest:   handler.NewIngestHandler(platform.Emit),
	})

	log.Printf("[Main] Tracking engine listening on %s", cfg.Port)
	if err := r.Run(cfg.Port); err != nil {
		log.Fatalf("[Main] Server exited: %v", err)
	}
}
