package models

// LocationSample represents a single accepted GPS fix. Samples are immutable
// once written and are ordered by CapturedAt within a trip.
type LocationSample struct {
	ID         int64   `json:"id" db:"id"`
	TripID     string  `json:"trip_id" db:"trip_id"` // empty while buffered, set on persist
	Latitude   float64 `json:"latitude" db:"latitude"`
	Longitude  float64 `json:"longitude" db:"longitude"`
	Altitude   float64 `json:"altitude,omitempty" db:"altitude"`
	Accuracy   float64 `json:"accuracy,omitempty" db:"accuracy"` // horizontal accuracy in meters, 0 = unknown
	Speed      float64 `json:"speed,omitempty" db:"speed"`       // m/s
	Heading    float64 `json:"heading,omitempty" db:"heading"`   // degrees
	CapturedAt int64   `json:"captured_at" db:"captured_at"`     // Unix timestamp in milliseconds
}

// SampleFilter represents filter parameters for querying samples
type SampleFilter struct {
	TripID    string `form:"tripId"`
	StartTime int64  `form:"startTime"` // Unix milliseconds
	EndTime   int64  `form:"endTime"`   // Unix milliseconds
	Limit     int    `form:"limit"`
}
