package service

import (
	"errors"

	"github.com/be-confident-group/ccapp-tracking/internal/models"
	"github.com/be-confident-group/ccapp-tracking/internal/repository"
)

// ErrTripActive is returned when an operation is not allowed on an open trip
var ErrTripActive = errors.New("trip is still active")

// TripService handles business logic for stored trips
type TripService struct {
	store *repository.Store
}

// NewTripService creates a new trip service
func NewTripService(store *repository.Store) *TripService {
	return &TripService{store: store}
}

// List retrieves trips with filtering and pagination
func (s *TripService) List(filter models.TripFilter) ([]models.Trip, int64, error) {
	return s.store.Trips.List(filter)
}

// GetByLocalID retrieves a single trip, or nil when it does not exist
func (s *TripService) GetByLocalID(localID string) (*models.Trip, error) {
	return s.store.Trips.GetByLocalID(localID)
}

// Samples returns the ordered sample track of a trip
func (s *TripService) Samples(localID string) ([]models.LocationSample, error) {
	return s.store.Samples.ListByTrip(localID)
}

// Delete removes a trip and its samples on explicit user request. The open
// trip cannot be deleted; it must be stopped first.
func (s *TripService) Delete(localID string) error {
	trip, err := s.store.Trips.GetByLocalID(localID)
	if err != nil {
		return err
	}
	if trip == nil {
		return nil
	}
	if trip.Active() {
		return ErrTripActive
	}
	return s.store.Trips.Delete(localID)
}
