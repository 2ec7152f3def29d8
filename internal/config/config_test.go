package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != ":8080" {
		t.Fatalf("unexpected default port: %q", cfg.Port)
	}
	if cfg.DBPath == "" {
		t.Fatal("default db path must not be empty")
	}
	if cfg.SyncRPS <= 0 {
		t.Fatalf("default sync pace must be positive, got %v", cfg.SyncRPS)
	}
	if cfg.MinSpeedMPS != 0.8 || cfg.MinTripDurationS != 60 || cfg.MinTripDistanceM != 50 {
		t.Fatalf("unexpected detection defaults: %+v", cfg)
	}
	if cfg.SampleRetentionDays != 30 {
		t.Fatalf("unexpected retention default: %d", cfg.SampleRetentionDays)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", ":9999")
	t.Setenv("MIN_TRIP_DISTANCE_M", "75")

	cfg := Load()
	if cfg.Port != ":9999" {
		t.Fatalf("PORT override not applied: %q", cfg.Port)
	}
	if cfg.MinTripDistanceM != 75 {
		t.Fatalf("MIN_TRIP_DISTANCE_M override not applied: %v", cfg.MinTripDistanceM)
	}
}
