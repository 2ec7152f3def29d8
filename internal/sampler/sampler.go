package sampler

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/be-confident-group/ccapp-tracking/internal/repository"
)

// Mode selects the sampling scope requested from the platform
type Mode string

// Sampling modes
const (
	ModeForeground Mode = "FOREGROUND"
	ModeBackground Mode = "BACKGROUND"
)

// Fix is one raw position fix delivered by the platform
type Fix struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Altitude   float64 `json:"altitude,omitempty"`
	Accuracy   float64 `json:"accuracy,omitempty"` // horizontal accuracy in meters, 0 = unknown
	Speed      float64 `json:"speed,omitempty"`    // m/s
	Heading    float64 `json:"heading,omitempty"`  // degrees
	CapturedAt int64   `json:"captured_at"`        // Unix milliseconds
}

// PermissionResult reports the granted permission per scope
type PermissionResult struct {
	Foreground bool `json:"foreground"`
	Background bool `json:"background"`
}

// Allows reports whether the granted permission covers a sampling mode
func (p PermissionResult) Allows(mode Mode) bool {
	if mode == ModeBackground {
		return p.Background
	}
	return p.Foreground
}

// Platform abstracts the OS location stack: permission requests, the fix
// subscription, and permission-change notifications
type Platform interface {
	RequestPermission(mode Mode) (PermissionResult, error)
	Subscribe(mode Mode, fn func([]Fix)) error
	Unsubscribe()
	OnPermissionChanged(fn func(PermissionResult))
}

// Sampler errors
var (
	ErrPermissionDenied   = errors.New("location permission denied for requested mode")
	ErrSubscriptionFailed = errors.New("platform location subscription failed")
	ErrNoConsumer         = errors.New("no sample consumer registered")
	ErrConsumerRegistered = errors.New("a sample consumer is already registered")
)

// Sampler owns the permission state and the platform sampling subscription.
// It persists the user's "wants tracking" preference so the coordinator can
// auto-resume after an OS-driven process restart.
type Sampler struct {
	platform Platform
	prefs    *repository.PreferenceRepository

	mu          sync.Mutex
	running     bool
	mode        Mode
	perm        PermissionResult
	onSample    func([]Fix)
	onDowngrade func()
}

// New creates a sampler over the given platform
func New(platform Platform, prefs *repository.PreferenceRepository) *Sampler {
	s := &Sampler{
		platform: platform,
		prefs:    prefs,
	}
	platform.OnPermissionChanged(s.handlePermissionChange)
	return s
}

// OnSample registers the single consumer of the sample stream
func (s *Sampler) OnSample(fn func([]Fix)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onSample != nil {
		return ErrConsumerRegistered
	}
	s.onSample = fn
	return nil
}

// OnPermissionDowngraded registers the callback fired when background
// permission is revoked while sampling is active
func (s *Sampler) OnPermissionDowngraded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDowngrade = fn
}

// RequestPermission asks the platform for the permission covering a mode
func (s *Sampler) RequestPermission(mode Mode) (PermissionResult, error) {
	perm, err := s.platform.RequestPermission(mode)
	if err != nil {
		return PermissionResult{}, fmt.Errorf("permission request failed: %w", err)
	}

	s.mu.Lock()
	s.perm = perm
	s.mu.Unlock()
	return perm, nil
}

// Start establishes the platform subscription in the given mode. A transient
// subscription failure is retried once before being surfaced.
func (s *Sampler) Start(mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.onSample == nil {
		return ErrNoConsumer
	}

	if !s.perm.Allows(mode) {
		perm, err := s.platform.RequestPermission(mode)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		s.perm = perm
		if !perm.Allows(mode) {
			return ErrPermissionDenied
		}
	}

	if err := s.platform.Subscribe(mode, s.deliver); err != nil {
		log.Printf("[LocationSampler] Subscription failed, retrying once: %v", err)
		if err = s.platform.Subscribe(mode, s.deliver); err != nil {
			return fmt.Errorf("%w: %v", ErrSubscriptionFailed, err)
		}
	}

	s.running = true
	s.mode = mode

	if err := s.prefs.SetBool(repository.PrefWantsTracking, true); err != nil {
		log.Printf("[LocationSampler] Failed to persist tracking preference: %v", err)
	}
	if err := s.prefs.Set(repository.PrefTrackingMode, string(mode)); err != nil {
		log.Printf("[LocationSampler] Failed to persist tracking mode: %v", err)
	}

	log.Printf("[LocationSampler] Started in %s mode", mode)
	return nil
}

// Stop tears down the subscription and clears the auto-resume preference
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.platform.Unsubscribe()
	s.running = false

	if err := s.prefs.SetBool(repository.PrefWantsTracking, false); err != nil {
		log.Printf("[LocationSampler] Failed to clear tracking preference: %v", err)
	}

	log.Printf("[LocationSampler] Stopped")
}

// Running reports whether a subscription is active
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Mode returns the mode of the active subscription
func (s *Sampler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// WantsTracking reads the persisted auto-resume preference and the mode it
// was last started with
func (s *Sampler) WantsTracking() (bool, Mode, error) {
	wants, err := s.prefs.GetBool(repository.PrefWantsTracking)
	if err != nil {
		return false, "", err
	}

	mode := ModeForeground
	if raw, err := s.prefs.Get(repository.PrefTrackingMode); err == nil && raw != "" {
		mode = Mode(raw)
	}

	return wants, mode, nil
}

// deliver forwards a fix burst to the registered consumer without holding the
// sampler lock
func (s *Sampler) deliver(fixes []Fix) {
	s.mu.Lock()
	fn := s.onSample
	s.mu.Unlock()

	if fn != nil && len(fixes) > 0 {
		fn(fixes)
	}
}

// handlePermissionChange tracks permission updates from the platform and
// fires the downgrade callback when the active mode loses its grant. The
// coordinator stops gracefully and surfaces this to the user instead of
// silently losing data.
func (s *Sampler) handlePermissionChange(perm PermissionResult) {
	s.mu.Lock()
	s.perm = perm
	downgraded := s.running && !perm.Allows(s.mode)
	fn := s.onDowngrade
	s.mu.Unlock()

	if downgraded {
		log.Printf("[LocationSampler] Permission downgraded while active (mode=%s)", s.mode)
		if fn != nil {
			fn()
		}
	}
}
