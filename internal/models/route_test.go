package models

import (
	"strings"
	"testing"
)

func TestRouteSummaryRoundTrip(t *testing.T) {
	points := []RoutePoint{
		{Lat: 40.0, Lng: -74.0},
		{Lat: 40.001, Lng: -74.001},
	}

	raw, err := EncodeRouteSummary(points)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !strings.Contains(raw, `"v":1`) {
		t.Fatalf("encoded summary is missing the version field: %s", raw)
	}

	summary, err := DecodeRouteSummary(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if summary.Version != RouteSummaryVersion {
		t.Fatalf("expected version %d, got %d", RouteSummaryVersion, summary.Version)
	}
	if len(summary.Points) != 2 || summary.Points[0].Lat != 40.0 {
		t.Fatalf("unexpected points: %+v", summary.Points)
	}
}

func TestDecodeRouteSummaryEmpty(t *testing.T) {
	summary, err := DecodeRouteSummary("")
	if err != nil {
		t.Fatalf("empty summary should decode: %v", err)
	}
	if len(summary.Points) != 0 {
		t.Fatalf("empty summary should have no points, got %d", len(summary.Points))
	}
}

func TestDecodeRouteSummaryBadInput(t *testing.T) {
	if _, err := DecodeRouteSummary("{not json"); err == nil {
		t.Fatal("expected error for malformed summary")
	}
	if _, err := DecodeRouteSummary(`{"v":99,"points":[]}`); err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if _, err := DecodeRouteSummary(`{"v":0,"points":[]}`); err == nil {
		t.Fatal("expected error for version 0")
	}
}

func TestTripActive(t *testing.T) {
	trip := Trip{StartedAt: 1000}
	if !trip.Active() {
		t.Fatal("trip without end timestamp should be active")
	}

	ended := int64(2000)
	trip.EndedAt = &ended
	if trip.Active() {
		t.Fatal("trip with end timestamp should not be active")
	}
}
