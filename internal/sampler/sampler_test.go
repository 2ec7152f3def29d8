package sampler

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/be-confident-group/ccapp-tracking/internal/database"
	"github.com/be-confident-group/ccapp-tracking/internal/repository"
)

func newTestSampler(t *testing.T) (*Sampler, *ReplayPlatform, *repository.Store) {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	store := repository.NewStore(db)
	platform := NewReplayPlatform()
	return New(platform, store.Prefs), platform, store
}

func TestStartDeliversFixes(t *testing.T) {
	smp, platform, _ := newTestSampler(t)

	var received [][]Fix
	if err := smp.OnSample(func(fixes []Fix) { received = append(received, fixes) }); err != nil {
		t.Fatalf("consumer registration failed: %v", err)
	}

	if err := smp.Start(ModeForeground); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !smp.Running() || smp.Mode() != ModeForeground {
		t.Fatalf("unexpected sampler state: running=%v mode=%s", smp.Running(), smp.Mode())
	}

	platform.Emit(
		Fix{Latitude: 40.0, Longitude: -74.0, CapturedAt: 1000},
		Fix{Latitude: 40.001, Longitude: -74.0, CapturedAt: 2000},
	)
	if len(received) != 1 || len(received[0]) != 2 {
		t.Fatalf("expected one burst of 2 fixes, got %v", received)
	}

	smp.Stop()
	if smp.Running() {
		t.Fatal("sampler should not be running after stop")
	}
	platform.Emit(Fix{Latitude: 40.0, Longitude: -74.0, CapturedAt: 3000})
	if len(received) != 1 {
		t.Fatal("fixes must not be delivered after stop")
	}
}

func TestSingleConsumerOnly(t *testing.T) {
	smp, _, _ := newTestSampler(t)

	if err := smp.OnSample(func([]Fix) {}); err != nil {
		t.Fatalf("first consumer failed: %v", err)
	}
	if err := smp.OnSample(func([]Fix) {}); !errors.Is(err, ErrConsumerRegistered) {
		t.Fatalf("expected ErrConsumerRegistered, got %v", err)
	}
}

func TestStartWithoutConsumerFails(t *testing.T) {
	smp, _, _ := newTestSampler(t)

	if err := smp.Start(ModeForeground); !errors.Is(err, ErrNoConsumer) {
		t.Fatalf("expected ErrNoConsumer, got %v", err)
	}
}

func TestStartDeniedWithoutPermission(t *testing.T) {
	smp, platform, _ := newTestSampler(t)
	if err := smp.OnSample(func([]Fix) {}); err != nil {
		t.Fatalf("consumer registration failed: %v", err)
	}

	platform.SetPermission(PermissionResult{Foreground: true, Background: false})
	if err := smp.Start(ModeBackground); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if smp.Running() {
		t.Fatal("sampler must not run without permission")
	}

	// Foreground mode is still covered by the grant
	if err := smp.Start(ModeForeground); err != nil {
		t.Fatalf("foreground start should succeed: %v", err)
	}
}

func TestSubscriptionRetriesOnce(t *testing.T) {
	smp, platform, _ := newTestSampler(t)
	if err := smp.OnSample(func([]Fix) {}); err != nil {
		t.Fatalf("consumer registration failed: %v", err)
	}

	// One transient failure is absorbed by the retry
	platform.FailSubscriptions(1)
	if err := smp.Start(ModeForeground); err != nil {
		t.Fatalf("start should survive one transient failure: %v", err)
	}
	smp.Stop()

	// Two consecutive failures surface as ErrSubscriptionFailed
	platform.FailSubscriptions(2)
	if err := smp.Start(ModeForeground); !errors.Is(err, ErrSubscriptionFailed) {
		t.Fatalf("expected ErrSubscriptionFailed, got %v", err)
	}
}

func TestWantsTrackingPersists(t *testing.T) {
	smp, _, store := newTestSampler(t)
	if err := smp.OnSample(func([]Fix) {}); err != nil {
		t.Fatalf("consumer registration failed: %v", err)
	}

	if err := smp.Start(ModeBackground); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// A fresh sampler over the same store sees the persisted preference,
	// mimicking a process restart
	platform2 := NewReplayPlatform()
	smp2 := New(platform2, store.Prefs)
	wants, mode, err := smp2.WantsTracking()
	if err != nil {
		t.Fatalf("wants tracking failed: %v", err)
	}
	if !wants || mode != ModeBackground {
		t.Fatalf("expected persisted wants=true mode=BACKGROUND, got %v %s", wants, mode)
	}

	smp.Stop()
	wants, _, err = smp2.WantsTracking()
	if err != nil {
		t.Fatalf("wants tracking failed: %v", err)
	}
	if wants {
		t.Fatal("stop must clear the tracking preference")
	}
}

func TestPermissionDowngradeFiresCallback(t *testing.T) {
	smp, platform, _ := newTestSampler(t)
	if err := smp.OnSample(func([]Fix) {}); err != nil {
		t.Fatalf("consumer registration failed: %v", err)
	}

	downgrades := 0
	smp.OnPermissionDowngraded(func() { downgrades++ })

	if err := smp.Start(ModeBackground); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Background grant revoked while sampling in background mode
	platform.SetPermission(PermissionResult{Foreground: true, Background: false})
	if downgrades != 1 {
		t.Fatalf("expected 1 downgrade callback, got %d", downgrades)
	}

	// Further changes while not covering the active mode fire again, but
	// changes while stopped never do
	smp.Stop()
	platform.SetPermission(PermissionResult{Foreground: false, Background: false})
	if downgrades != 1 {
		t.Fatalf("downgrade must not fire while stopped, got %d", downgrades)
	}
}
