package detector

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/be-confident-group/ccapp-tracking/internal/models"
	"github.com/be-confident-group/ccapp-tracking/internal/repository"
	"github.com/be-confident-group/ccapp-tracking/internal/spatial"
)

// State of the detection state machine
type State string

// Detector states
const (
	StateIdle      State = "IDLE"
	StateCandidate State = "CANDIDATE"
	StateActive    State = "ACTIVE"
)

// EventKind classifies trip lifecycle events
type EventKind string

// Trip lifecycle events emitted by the detector
const (
	EventTripStarted   EventKind = "TRIP_STARTED"
	EventTripFinalized EventKind = "TRIP_FINALIZED"
	EventTripDiscarded EventKind = "TRIP_DISCARDED"
)

// Event is a trip lifecycle notification
type Event struct {
	Kind EventKind
	Trip models.Trip
}

// ErrNoActiveTrip is returned when a manual operation requires an active trip
var ErrNoActiveTrip = errors.New("no active trip")

// Detector consumes the sample stream and drives trips through
// Idle -> Candidate -> Active -> (Finalized | Discarded). All mutation of the
// active trip is serialized through a single Detector instance; samples for a
// trip are persisted in arrival order.
type Detector struct {
	cfg   Config
	store *repository.Store

	mu             sync.Mutex
	state          State
	buffer         []models.LocationSample
	candidateSince int64 // when the buffer first left Idle, Unix ms
	active         *models.Trip
	lastPoint      spatial.Point
	lastCapturedAt int64
	onEvent        func(Event)
	pending        []Event
}

// New creates a detector over the local store
func New(cfg Config, store *repository.Store) *Detector {
	return &Detector{
		cfg:   cfg,
		store: store,
		state: StateIdle,
	}
}

// SetEventHandler registers the single consumer of trip lifecycle events
func (d *Detector) SetEventHandler(fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onEvent = fn
}

// State returns the current detection state
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ActiveTrip returns a copy of the trip currently being extended, or nil
func (d *Detector) ActiveTrip() *models.Trip {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return nil
	}
	trip := *d.active
	return &trip
}

// HandleSamples processes one burst of samples. While a trip is active the
// accepted samples of a burst are persisted with a single batched write.
func (d *Detector) HandleSamples(batch []models.LocationSample) {
	d.mu.Lock()
	defer d.dispatch()
	defer d.mu.Unlock()

	var burst []models.LocationSample

	for _, s := range batch {
		if !validSample(s) {
			log.Printf("[TripDetector] Dropping malformed sample (lat=%v lon=%v acc=%v)",
				s.Latitude, s.Longitude, s.Accuracy)
			continue
		}

		switch d.state {
		case StateIdle:
			d.handleIdle(s)
		case StateCandidate:
			d.handleCandidate(s)
		case StateActive:
			if accepted := d.handleActive(s); accepted != nil {
				burst = append(burst, *accepted)
			}
		}
	}

	if len(burst) > 0 && d.active != nil {
		d.persistBurst(burst)
	}
}

// handleIdle starts buffering when a sample shows plausible movement
func (d *Detector) handleIdle(s models.LocationSample) {
	if s.Speed < d.cfg.MinSpeedMPS {
		return
	}
	if s.Accuracy > 0 && s.Accuracy > d.cfg.MaxSampleAccuracyM {
		return
	}

	d.state = StateCandidate
	d.buffer = []models.LocationSample{s}
	d.candidateSince = s.CapturedAt
}

// handleCandidate buffers samples and tests whether movement is sustained
func (d *Detector) handleCandidate(s models.LocationSample) {
	// A candidate that never promotes within the bounded window is noise
	// (parked car jitter, a dropped phone). Drop it and start over.
	if s.CapturedAt-d.candidateSince >= d.cfg.candidateWindowMs() {
		d.buffer = nil
		d.state = StateIdle
		d.handleIdle(s)
		return
	}

	d.buffer = append(d.buffer, s)

	elapsedMs := s.CapturedAt - d.buffer[0].CapturedAt
	if elapsedMs < d.cfg.MinTripDurationS*1000 {
		return
	}

	points := bufferPoints(d.buffer)
	if spatial.RouteDistance(points) >= d.cfg.MinTripDistanceM {
		d.promote()
		return
	}

	// Stationary-noise cluster: jittery positions confined to a small radius.
	// Slide the window instead of promoting.
	if spatial.RadiusOfGyration(points) < d.cfg.DriftRadiusM {
		for len(d.buffer) > 2 && s.CapturedAt-d.buffer[0].CapturedAt > d.cfg.MinTripDurationS*1000 {
			d.buffer = d.buffer[1:]
		}
	}
}

// promote turns the candidate buffer into a real trip
func (d *Detector) promote() {
	first := d.buffer[0]
	last := d.buffer[len(d.buffer)-1]
	points := bufferPoints(d.buffer)

	var speedSum float64
	for _, s := range d.buffer {
		speedSum += s.Speed
	}
	avgSpeed := speedSum / float64(len(d.buffer))

	trip := &models.Trip{
		LocalID:      uuid.NewString(),
		ActivityType: classifyActivity(avgSpeed),
		StartedAt:    first.CapturedAt,
		SyncState:    models.SyncStateUnsynced,
	}

	if err := d.store.Trips.Insert(trip); err != nil {
		if errors.Is(err, repository.ErrTripConflict) {
			// Ordering bug upstream; reject the promotion rather than merge
			log.Printf("[TripDetector] Trip conflict on promotion, resetting: %v", err)
			d.reset()
			return
		}
		log.Printf("[TripDetector] Failed to create trip, staying in candidate: %v", err)
		return
	}

	for i := range d.buffer {
		d.buffer[i].TripID = trip.LocalID
	}
	if err := d.store.AppendSamples(trip.LocalID, d.buffer); err != nil {
		log.Printf("[TripDetector] Failed to flush candidate buffer: %v", err)
	}

	trip.DistanceM = spatial.RouteDistance(points)
	trip.DurationS = (last.CapturedAt - first.CapturedAt) / 1000
	if err := d.store.Trips.Update(trip.LocalID, models.TripPatch{
		DistanceM: &trip.DistanceM,
		DurationS: &trip.DurationS,
	}); err != nil {
		log.Printf("[TripDetector] Failed to update promoted trip: %v", err)
	}

	d.active = trip
	d.state = StateActive
	d.buffer = nil
	d.lastPoint = spatial.Point{Lat: last.Latitude, Lon: last.Longitude}
	d.lastCapturedAt = last.CapturedAt

	log.Printf("[TripDetector] Trip %s started (%s, %.0fm buffered)",
		trip.LocalID, trip.ActivityType, trip.DistanceM)
	d.emit(Event{Kind: EventTripStarted, Trip: *trip})
}

// handleActive accepts a sample into the running trip, or rejects it on
// accuracy. Distance only ever grows while a trip is active.
func (d *Detector) handleActive(s models.LocationSample) *models.LocationSample {
	if s.Accuracy > 0 && s.Accuracy > d.cfg.MaxSampleAccuracyM {
		return nil
	}

	p := spatial.Point{Lat: s.Latitude, Lon: s.Longitude}
	if d.lastCapturedAt > 0 {
		d.active.DistanceM += spatial.Distance(d.lastPoint, p)
	}
	d.active.DurationS = (s.CapturedAt - d.active.StartedAt) / 1000

	d.lastPoint = p
	d.lastCapturedAt = s.CapturedAt

	s.TripID = d.active.LocalID
	return &s
}

// persistBurst writes the accepted samples of a burst and the incremental
// trip totals
func (d *Detector) persistBurst(burst []models.LocationSample) {
	if err := d.store.AppendSamples(d.active.LocalID, burst); err != nil {
		log.Printf("[TripDetector] Dropping sample burst after retries: %v", err)
		return
	}

	if err := d.store.Trips.Update(d.active.LocalID, models.TripPatch{
		DistanceM: &d.active.DistanceM,
		DurationS: &d.active.DurationS,
	}); err != nil {
		log.Printf("[TripDetector] Failed to update trip totals: %v", err)
	}
}

// StartManual opens a manually created trip, bypassing candidate detection
func (d *Detector) StartManual(activityType string) (*models.Trip, error) {
	d.mu.Lock()
	defer d.dispatch()
	defer d.mu.Unlock()

	if d.state == StateActive {
		return nil, repository.ErrTripConflict
	}
	if activityType == "" {
		activityType = models.ActivityManual
	}

	trip := &models.Trip{
		LocalID:      uuid.NewString(),
		ActivityType: activityType,
		IsManual:     true,
		StartedAt:    time.Now().UnixMilli(),
		SyncState:    models.SyncStateUnsynced,
	}
	if err := d.store.Trips.Insert(trip); err != nil {
		return nil, err
	}

	d.buffer = nil
	d.active = trip
	d.state = StateActive
	d.lastPoint = spatial.Point{}
	d.lastCapturedAt = 0

	log.Printf("[TripDetector] Manual trip %s started (%s)", trip.LocalID, trip.ActivityType)
	d.emit(Event{Kind: EventTripStarted, Trip: *trip})

	trip2 := *trip
	return &trip2, nil
}

// Stop ends detection. An active trip is finalized immediately (or discarded
// when it still fails the minimum thresholds); a candidate buffer is dropped
// without ever creating a trip.
func (d *Detector) Stop() (*models.Trip, error) {
	d.mu.Lock()
	defer d.dispatch()
	defer d.mu.Unlock()

	switch d.state {
	case StateIdle:
		return nil, nil
	case StateCandidate:
		d.reset()
		return nil, nil
	}

	trip := d.active
	endedAt := d.lastCapturedAt
	if endedAt == 0 {
		endedAt = time.Now().UnixMilli()
	}
	if endedAt < trip.StartedAt {
		endedAt = trip.StartedAt
	}
	trip.DurationS = (endedAt - trip.StartedAt) / 1000

	// Trips that still fail the minimum thresholds would only pollute the
	// trip history; delete instead of keeping them.
	if trip.DistanceM < d.cfg.MinTripDistanceM || trip.DurationS < d.cfg.MinTripDurationS {
		if err := d.store.Trips.Delete(trip.LocalID); err != nil {
			return nil, fmt.Errorf("failed to discard trip: %w", err)
		}
		log.Printf("[TripDetector] Trip %s discarded (%.0fm in %ds below thresholds)",
			trip.LocalID, trip.DistanceM, trip.DurationS)
		d.emit(Event{Kind: EventTripDiscarded, Trip: *trip})
		d.reset()
		return nil, nil
	}

	routeSummary, err := d.buildRouteSummary(trip.LocalID)
	if err != nil {
		log.Printf("[TripDetector] Failed to build route summary for %s: %v", trip.LocalID, err)
		routeSummary = ""
	}

	co2 := 0.0
	switch trip.ActivityType {
	case models.ActivityWalk, models.ActivityRun, models.ActivityCycle:
		co2 = spatial.CO2SavedKg(trip.DistanceM / 1000)
	}

	trip.EndedAt = &endedAt
	trip.CO2SavedKg = co2
	trip.RouteSummary = routeSummary
	syncState := models.SyncStateUnsynced
	if err := d.store.Trips.Update(trip.LocalID, models.TripPatch{
		EndedAt:      &endedAt,
		DurationS:    &trip.DurationS,
		CO2SavedKg:   &co2,
		RouteSummary: &routeSummary,
		SyncState:    &syncState,
	}); err != nil {
		return nil, fmt.Errorf("failed to finalize trip: %w", err)
	}

	log.Printf("[TripDetector] Trip %s finalized (%.0fm in %ds)",
		trip.LocalID, trip.DistanceM, trip.DurationS)
	d.emit(Event{Kind: EventTripFinalized, Trip: *trip})

	finalized := *trip
	d.reset()
	return &finalized, nil
}

// buildRouteSummary simplifies the persisted track into the versioned route
// blob stored on the trip
func (d *Detector) buildRouteSummary(tripID string) (string, error) {
	samples, err := d.store.Samples.ListByTrip(tripID)
	if err != nil {
		return "", err
	}
	if len(samples) == 0 {
		return "", nil
	}

	points := make([]spatial.Point, len(samples))
	for i, s := range samples {
		points[i] = spatial.Point{Lat: s.Latitude, Lon: s.Longitude}
	}

	simplified := spatial.Simplify(points, d.cfg.SimplifyToleranceDeg)
	route := make([]models.RoutePoint, len(simplified))
	for i, p := range simplified {
		route[i] = models.RoutePoint{Lat: p.Lat, Lng: p.Lon}
	}

	return models.EncodeRouteSummary(route)
}

func (d *Detector) reset() {
	d.state = StateIdle
	d.buffer = nil
	d.candidateSince = 0
	d.active = nil
	d.lastPoint = spatial.Point{}
	d.lastCapturedAt = 0
}

// emit queues an event for delivery after the lock is released
func (d *Detector) emit(ev Event) {
	d.pending = append(d.pending, ev)
}

// dispatch delivers queued events without holding the lock, so a handler may
// call back into the detector
func (d *Detector) dispatch() {
	d.mu.Lock()
	events := d.pending
	d.pending = nil
	fn := d.onEvent
	d.mu.Unlock()

	if fn == nil {
		return
	}
	for _, ev := range events {
		fn(ev)
	}
}

func bufferPoints(buffer []models.LocationSample) []spatial.Point {
	points := make([]spatial.Point, len(buffer))
	for i, s := range buffer {
		points[i] = spatial.Point{Lat: s.Latitude, Lon: s.Longitude}
	}
	return points
}

// validSample rejects impossible fixes before they can reach the store or
// affect state transitions
func validSample(s models.LocationSample) bool {
	if math.IsNaN(s.Latitude) || math.IsNaN(s.Longitude) {
		return false
	}
	if s.Latitude < -90 || s.Latitude > 90 || s.Longitude < -180 || s.Longitude > 180 {
		return false
	}
	if s.Accuracy < 0 || s.CapturedAt <= 0 {
		return false
	}
	return true
}
