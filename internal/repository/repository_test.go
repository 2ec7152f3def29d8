package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/be-confident-group/ccapp-tracking/internal/database"
	"github.com/be-confident-group/ccapp-tracking/internal/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func finalizedTrip(localID string, startedAt int64) *models.Trip {
	endedAt := startedAt + 120_000
	return &models.Trip{
		LocalID:      localID,
		ActivityType: models.ActivityWalk,
		StartedAt:    startedAt,
		EndedAt:      &endedAt,
		DistanceM:    500,
		DurationS:    120,
		SyncState:    models.SyncStateUnsynced,
	}
}

func TestTripInsertAndGet(t *testing.T) {
	store := NewStore(newTestDB(t))

	trip := finalizedTrip("t1", 1000)
	if err := store.Trips.Insert(trip); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := store.Trips.GetByLocalID("t1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected trip, got nil")
	}
	if got.ActivityType != models.ActivityWalk || got.DistanceM != 500 {
		t.Fatalf("unexpected trip: %+v", got)
	}
	if got.EndedAt == nil || *got.EndedAt != 121000 {
		t.Fatalf("unexpected end timestamp: %v", got.EndedAt)
	}
	if got.CreatedAt == 0 || got.UpdatedAt == 0 {
		t.Fatal("insert should stamp created_at and updated_at")
	}

	missing, err := store.Trips.GetByLocalID("nope")
	if err != nil {
		t.Fatalf("get missing failed: %v", err)
	}
	if missing != nil {
		t.Fatal("missing trip should be nil")
	}
}

func TestSingleActiveTripInvariant(t *testing.T) {
	store := NewStore(newTestDB(t))

	active := &models.Trip{LocalID: "a1", ActivityType: models.ActivityWalk, StartedAt: 1000}
	if err := store.Trips.Insert(active); err != nil {
		t.Fatalf("insert active trip failed: %v", err)
	}

	second := &models.Trip{LocalID: "a2", ActivityType: models.ActivityRun, StartedAt: 2000}
	if err := store.Trips.Insert(second); !errors.Is(err, ErrTripConflict) {
		t.Fatalf("expected ErrTripConflict, got %v", err)
	}

	// A finalized trip can always be inserted alongside an active one
	if err := store.Trips.Insert(finalizedTrip("f1", 3000)); err != nil {
		t.Fatalf("finalized insert should succeed: %v", err)
	}

	got, err := store.Trips.GetActiveTrip()
	if err != nil {
		t.Fatalf("get active failed: %v", err)
	}
	if got == nil || got.LocalID != "a1" {
		t.Fatalf("unexpected active trip: %+v", got)
	}
}

func TestTripUpdatePatch(t *testing.T) {
	store := NewStore(newTestDB(t))

	trip := &models.Trip{LocalID: "t1", ActivityType: models.ActivityWalk, StartedAt: 1000}
	if err := store.Trips.Insert(trip); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	endedAt := int64(61_000)
	distance := 320.5
	duration := int64(60)
	summary := `{"v":1,"points":[]}`
	state := models.SyncStateUnsynced
	err := store.Trips.Update("t1", models.TripPatch{
		EndedAt:      &endedAt,
		DistanceM:    &distance,
		DurationS:    &duration,
		RouteSummary: &summary,
		SyncState:    &state,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, _ := store.Trips.GetByLocalID("t1")
	if got.EndedAt == nil || *got.EndedAt != endedAt {
		t.Fatalf("ended_at not applied: %v", got.EndedAt)
	}
	if got.DistanceM != distance || got.DurationS != duration {
		t.Fatalf("totals not applied: %+v", got)
	}
	if got.RouteSummary != summary {
		t.Fatalf("route summary not applied: %q", got.RouteSummary)
	}

	// An empty patch is a no-op, not an error
	if err := store.Trips.Update("t1", models.TripPatch{}); err != nil {
		t.Fatalf("empty patch failed: %v", err)
	}
}

func TestSetRemoteIDIsWriteOnce(t *testing.T) {
	store := NewStore(newTestDB(t))

	if err := store.Trips.Insert(finalizedTrip("t1", 1000)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := store.Trips.SetRemoteID("t1", "remote-1"); err != nil {
		t.Fatalf("first assignment failed: %v", err)
	}
	if err := store.Trips.SetRemoteID("t1", "remote-2"); err != nil {
		t.Fatalf("second assignment errored: %v", err)
	}

	got, _ := store.Trips.GetByLocalID("t1")
	if got.RemoteID != "remote-1" {
		t.Fatalf("remote id must keep its first value, got %q", got.RemoteID)
	}
}

func TestListUnsyncedOrderAndStates(t *testing.T) {
	store := NewStore(newTestDB(t))

	if err := store.Trips.Insert(finalizedTrip("newer", 5000)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.Trips.Insert(finalizedTrip("older", 1000)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	failed := finalizedTrip("failed", 3000)
	failed.SyncState = models.SyncStateSyncFailed
	if err := store.Trips.Insert(failed); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	synced := finalizedTrip("synced", 2000)
	synced.SyncState = models.SyncStateSynced
	if err := store.Trips.Insert(synced); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	// Active trips are never eligible for sync
	if err := store.Trips.Insert(&models.Trip{LocalID: "act", ActivityType: models.ActivityWalk, StartedAt: 4000}); err != nil {
		t.Fatalf("insert active failed: %v", err)
	}

	trips, err := store.Trips.ListUnsynced()
	if err != nil {
		t.Fatalf("list unsynced failed: %v", err)
	}
	if len(trips) != 3 {
		t.Fatalf("expected 3 unsynced trips, got %d", len(trips))
	}
	if trips[0].LocalID != "older" || trips[1].LocalID != "failed" || trips[2].LocalID != "newer" {
		t.Fatalf("unsynced trips not oldest-first: %s %s %s",
			trips[0].LocalID, trips[1].LocalID, trips[2].LocalID)
	}

	count, err := store.Trips.CountUnsynced()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
}

func TestRecordSyncFailure(t *testing.T) {
	store := NewStore(newTestDB(t))

	if err := store.Trips.Insert(finalizedTrip("t1", 1000)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := store.Trips.RecordSyncFailure("t1"); err != nil {
		t.Fatalf("record failure failed: %v", err)
	}
	if err := store.Trips.RecordSyncFailure("t1"); err != nil {
		t.Fatalf("record failure failed: %v", err)
	}

	got, _ := store.Trips.GetByLocalID("t1")
	if got.SyncState != models.SyncStateSyncFailed {
		t.Fatalf("expected SYNC_FAILED, got %s", got.SyncState)
	}
	if got.SyncAttempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", got.SyncAttempts)
	}
}

func TestRequeueSyncing(t *testing.T) {
	store := NewStore(newTestDB(t))

	// A trip a crash left mid-upload
	stuck := finalizedTrip("stuck", 1000)
	stuck.SyncState = models.SyncStateSyncing
	if err := store.Trips.Insert(stuck); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	done := finalizedTrip("done", 2000)
	done.SyncState = models.SyncStateSynced
	if err := store.Trips.Insert(done); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	requeued, err := store.Trips.RequeueSyncing()
	if err != nil {
		t.Fatalf("requeue failed: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("expected 1 requeued trip, got %d", requeued)
	}

	got, _ := store.Trips.GetByLocalID("stuck")
	if got.SyncState != models.SyncStateSyncFailed {
		t.Fatalf("expected SYNC_FAILED, got %s", got.SyncState)
	}
	unsynced, err := store.Trips.ListUnsynced()
	if err != nil {
		t.Fatalf("list unsynced failed: %v", err)
	}
	if len(unsynced) != 1 || unsynced[0].LocalID != "stuck" {
		t.Fatalf("requeued trip must be visible to sync, got %+v", unsynced)
	}

	synced, _ := store.Trips.GetByLocalID("done")
	if synced.SyncState != models.SyncStateSynced {
		t.Fatalf("synced trip must be untouched, got %s", synced.SyncState)
	}
}

func TestTripListFilterAndPagination(t *testing.T) {
	store := NewStore(newTestDB(t))

	for i := 0; i < 5; i++ {
		trip := finalizedTrip("t"+string(rune('a'+i)), int64(1000*(i+1)))
		if i%2 == 1 {
			trip.ActivityType = models.ActivityCycle
		}
		if err := store.Trips.Insert(trip); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	trips, total, err := store.Trips.List(models.TripFilter{ActivityType: models.ActivityCycle})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 2 || len(trips) != 2 {
		t.Fatalf("expected 2 cycle trips, got total=%d len=%d", total, len(trips))
	}

	trips, total, err = store.Trips.List(models.TripFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 5 || len(trips) != 2 {
		t.Fatalf("expected page of 2 from 5, got total=%d len=%d", total, len(trips))
	}
	// Newest first
	if trips[0].StartedAt < trips[1].StartedAt {
		t.Fatal("trips should be ordered by started_at descending")
	}

	trips, _, err = store.Trips.List(models.TripFilter{StartTime: 3000, EndTime: 4000})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(trips) != 2 {
		t.Fatalf("expected 2 trips in range, got %d", len(trips))
	}
}

func TestSamplesAppendListAndCascade(t *testing.T) {
	store := NewStore(newTestDB(t))

	if err := store.Trips.Insert(finalizedTrip("t1", 1000)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	batch := []models.LocationSample{
		{Latitude: 40.0, Longitude: -74.0, Speed: 1.2, CapturedAt: 3000},
		{Latitude: 40.001, Longitude: -74.0, Speed: 1.3, CapturedAt: 1000},
		{Latitude: 40.002, Longitude: -74.0, Speed: 1.4, CapturedAt: 2000},
	}
	if err := store.AppendSamples("t1", batch); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	samples, err := store.Samples.ListByTrip("t1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].CapturedAt < samples[i-1].CapturedAt {
			t.Fatal("samples must be ordered by captured_at")
		}
	}

	count, err := store.Samples.CountByTrip("t1")
	if err != nil || count != 3 {
		t.Fatalf("expected count 3, got %d (%v)", count, err)
	}

	// Deleting the trip cascades to its samples
	if err := store.Trips.Delete("t1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	count, err = store.Samples.CountByTrip("t1")
	if err != nil || count != 0 {
		t.Fatalf("expected cascade delete, got %d samples (%v)", count, err)
	}
}

func TestCascadeFiresOnFreshPoolConnections(t *testing.T) {
	db := newTestDB(t)
	store := NewStore(db)

	if err := store.Trips.Insert(finalizedTrip("t1", 1000)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.AppendSamples("t1", []models.LocationSample{
		{Latitude: 40.0, Longitude: -74.0, CapturedAt: 1000},
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Pin every connection the pool has opened so far; the delete below is
	// forced onto a connection opened after setup, which must still enforce
	// the foreign key cascade
	ctx := context.Background()
	var pinned []*sql.Conn
	for i := 0; i < 5; i++ {
		conn, err := db.Conn(ctx)
		if err != nil {
			t.Fatalf("failed to pin connection: %v", err)
		}
		pinned = append(pinned, conn)
	}

	if err := store.Trips.Delete("t1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	for _, conn := range pinned {
		conn.Close()
	}

	count, err := store.Samples.CountByTrip("t1")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("cascade did not fire, %d orphan samples remain", count)
	}
}

func TestPruneSynced(t *testing.T) {
	store := NewStore(newTestDB(t))

	old := finalizedTrip("old", 1000)
	old.SyncState = models.SyncStateSynced
	if err := store.Trips.Insert(old); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.AppendSamples("old", []models.LocationSample{
		{Latitude: 40.0, Longitude: -74.0, CapturedAt: 1000},
		{Latitude: 40.001, Longitude: -74.0, CapturedAt: 2000},
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Recent trip with the same sync state stays untouched
	recent := finalizedTrip("recent", time.Now().UnixMilli())
	recent.SyncState = models.SyncStateSynced
	if err := store.Trips.Insert(recent); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := store.AppendSamples("recent", []models.LocationSample{
		{Latitude: 41.0, Longitude: -74.0, CapturedAt: time.Now().UnixMilli()},
	}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	pruned, err := store.Samples.PruneSynced(time.Now().Add(-24 * time.Hour).UnixMilli())
	if err != nil {
		t.Fatalf("prune failed: %v", err)
	}
	if pruned != 2 {
		t.Fatalf("expected 2 pruned samples, got %d", pruned)
	}

	// The trip row itself survives pruning
	got, _ := store.Trips.GetByLocalID("old")
	if got == nil {
		t.Fatal("pruning must not delete the trip")
	}
	count, _ := store.Samples.CountByTrip("recent")
	if count != 1 {
		t.Fatalf("recent samples should survive, got %d", count)
	}
}

func TestPreferences(t *testing.T) {
	store := NewStore(newTestDB(t))

	val, err := store.Prefs.Get("missing")
	if err != nil || val != "" {
		t.Fatalf("missing key should read empty, got %q (%v)", val, err)
	}

	if err := store.Prefs.Set(PrefTrackingMode, "BACKGROUND"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Prefs.Set(PrefTrackingMode, "FOREGROUND"); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	val, _ = store.Prefs.Get(PrefTrackingMode)
	if val != "FOREGROUND" {
		t.Fatalf("expected upserted value, got %q", val)
	}

	if err := store.Prefs.SetBool(PrefWantsTracking, true); err != nil {
		t.Fatalf("set bool failed: %v", err)
	}
	wants, err := store.Prefs.GetBool(PrefWantsTracking)
	if err != nil || !wants {
		t.Fatalf("expected true, got %v (%v)", wants, err)
	}
	wants, err = store.Prefs.GetBool("never.set")
	if err != nil || wants {
		t.Fatalf("missing bool should read false, got %v (%v)", wants, err)
	}
}
