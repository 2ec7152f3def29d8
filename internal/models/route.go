package models

import (
	"encoding/json"
	"fmt"
)

// RouteSummaryVersion is the current serialization version for route summaries
const RouteSummaryVersion = 1

// RoutePoint is a single coordinate pair in a simplified route
type RoutePoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteSummary is the versioned simplified-polyline representation stored on a
// finalized trip. The version field makes format changes explicit.
type RouteSummary struct {
	Version int          `json:"v"`
	Points  []RoutePoint `json:"points"`
}

// EncodeRouteSummary serializes a simplified route for storage
func EncodeRouteSummary(points []RoutePoint) (string, error) {
	summary := RouteSummary{
		Version: RouteSummaryVersion,
		Points:  points,
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("failed to encode route summary: %w", err)
	}
	return string(data), nil
}

// DecodeRouteSummary parses a stored route summary. An empty string decodes to
// an empty route.
func DecodeRouteSummary(raw string) (RouteSummary, error) {
	if raw == "" {
		return RouteSummary{Version: RouteSummaryVersion}, nil
	}

	var summary RouteSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return RouteSummary{}, fmt.Errorf("failed to decode route summary: %w", err)
	}
	if summary.Version < 1 || summary.Version > RouteSummaryVersion {
		return RouteSummary{}, fmt.Errorf("unsupported route summary version %d", summary.Version)
	}

	return summary, nil
}
