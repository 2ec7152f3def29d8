package sampler

import (
	"errors"
	"sync"
)

// ReplayPlatform is a scripted Platform implementation. It backs local runs
// without a real location stack and the test suites: fixes are injected with
// Emit, permissions flipped with SetPermission.
type ReplayPlatform struct {
	mu          sync.Mutex
	perm        PermissionResult
	handler     func([]Fix)
	permHandler func(PermissionResult)
	failNext    int
	subscribed  bool
}

// NewReplayPlatform creates a replay platform with both scopes granted
func NewReplayPlatform() *ReplayPlatform {
	return &ReplayPlatform{
		perm: PermissionResult{Foreground: true, Background: true},
	}
}

// SetPermission changes the granted permission and notifies the watcher,
// mimicking the user revoking access in system settings
func (p *ReplayPlatform) SetPermission(perm PermissionResult) {
	p.mu.Lock()
	p.perm = perm
	fn := p.permHandler
	p.mu.Unlock()

	if fn != nil {
		fn(perm)
	}
}

// FailSubscriptions makes the next n Subscribe calls fail
func (p *ReplayPlatform) FailSubscriptions(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = n
}

// RequestPermission implements Platform
func (p *ReplayPlatform) RequestPermission(Mode) (PermissionResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.perm, nil
}

// Subscribe implements Platform
func (p *ReplayPlatform) Subscribe(_ Mode, fn func([]Fix)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failNext > 0 {
		p.failNext--
		return errors.New("replay: injected subscription failure")
	}

	p.handler = fn
	p.subscribed = true
	return nil
}

// Unsubscribe implements Platform
func (p *ReplayPlatform) Unsubscribe() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = nil
	p.subscribed = false
}

// OnPermissionChanged implements Platform
func (p *ReplayPlatform) OnPermissionChanged(fn func(PermissionResult)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.permHandler = fn
}

// Subscribed reports whether a consumer is currently attached
func (p *ReplayPlatform) Subscribed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribed
}

// Emit delivers a burst of fixes to the subscriber, if any
func (p *ReplayPlatform) Emit(fixes ...Fix) {
	p.mu.Lock()
	fn := p.handler
	p.mu.Unlock()

	if fn != nil && len(fixes) > 0 {
		fn(fixes)
	}
}
