package models

// SyncState describes where a trip is in the upload lifecycle
const (
	SyncStateUnsynced   = "UNSYNCED"
	SyncStateSyncing    = "SYNCING"
	SyncStateSynced     = "SYNCED"
	SyncStateSyncFailed = "SYNC_FAILED"
)

// ActivityType constants
const (
	ActivityWalk   = "WALK"
	ActivityRun    = "RUN"
	ActivityCycle  = "CYCLE"
	ActivityDrive  = "DRIVE"
	ActivityManual = "MANUAL"
)

// Trip represents a detected or manually created activity session.
// LocalID is generated on the device and doubles as the idempotency key for
// uploads; RemoteID is assigned exactly once on first successful sync.
type Trip struct {
	LocalID      string  `json:"local_id" db:"local_id"`
	RemoteID     string  `json:"remote_id,omitempty" db:"remote_id"` // empty until first successful sync
	ActivityType string  `json:"activity_type" db:"activity_type"`
	IsManual     bool    `json:"is_manual" db:"is_manual"`
	StartedAt    int64   `json:"started_at" db:"started_at"`       // Unix milliseconds
	EndedAt      *int64  `json:"ended_at,omitempty" db:"ended_at"` // nil while the trip is active
	DistanceM    float64 `json:"distance_m" db:"distance_m"`
	DurationS    int64   `json:"duration_s" db:"duration_s"`
	CO2SavedKg   float64 `json:"co2_saved_kg" db:"co2_saved_kg"`
	RouteSummary string  `json:"route_summary,omitempty" db:"route_summary"` // versioned JSON, see route.go
	SyncState    string  `json:"sync_state" db:"sync_state"`
	SyncAttempts int     `json:"sync_attempts" db:"sync_attempts"`
	CreatedAt    int64   `json:"created_at" db:"created_at"` // Unix milliseconds
	UpdatedAt    int64   `json:"updated_at" db:"updated_at"` // Unix milliseconds
}

// Active reports whether the trip is still open (no end timestamp)
func (t *Trip) Active() bool {
	return t.EndedAt == nil
}

// TripPatch carries a partial update for a trip. Nil fields are left untouched.
type TripPatch struct {
	EndedAt      *int64
	DistanceM    *float64
	DurationS    *int64
	CO2SavedKg   *float64
	RouteSummary *string
	SyncState    *string
}

// TripsResponse represents a paginated response of trips
type TripsResponse struct {
	Data       []Trip `json:"data"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}

// TripFilter represents filter parameters for querying trips
type TripFilter struct {
	StartTime    int64  `form:"startTime"` // Unix milliseconds
	EndTime      int64  `form:"endTime"`   // Unix milliseconds
	ActivityType string `form:"activityType"`
	SyncState    string `form:"syncState"`
	Page         int    `form:"page"`
	PageSize     int    `form:"pageSize"`
}
