package idp

import (
	"context"
	"fmt"
	"sync"

	"modelfolio/pkg/domain"
)

// Tracker maintains a single current-identity value observed from the
// provider and notifies dependents on changes. The submission workflow
// registers an OnChange callback so it can recompute review eligibility
// whenever the identity flips between nil and non-nil.
type Tracker struct {
	provider Provider

	mu            sync.Mutex
	session       *Session
	started       bool
	listenerFired bool
	unsubscribe   func()
	onChange      []func(*domain.Identity)
}

// NewTracker builds a tracker over the provider. Call Start to begin observing.
func NewTracker(provider Provider) *Tracker {
	return &Tracker{provider: provider}
}

// OnChange registers a dependent notified with the new identity (nil on
// sign-out). Registration must happen before Start.
func (t *Tracker) OnChange(fn func(*domain.Identity)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

// Start registers the provider change listener and then performs the
// one-shot query for a session that pre-dates the listener. When a listener
// event has already arrived, the one-shot result is discarded so a fresher
// listener-delivered state is never overwritten by the startup snapshot.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return nil
	}
	t.started = true
	t.mu.Unlock()

	unsubscribe := t.provider.OnSessionChange(func(event Event, sess *Session) {
		t.apply(sess, true)
	})
	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	sess, err := t.provider.CurrentSession(ctx)
	if err != nil {
		return fmt.Errorf("query current session: %w", err)
	}
	t.apply(sess, false)
	return nil
}

// Stop deregisters the listener. Safe to call multiple times.
func (t *Tracker) Stop() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.started = false
	t.listenerFired = false
	t.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Current returns the tracked identity, or nil when signed out.
func (t *Tracker) Current() *domain.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil
	}
	identity := t.session.Identity
	return &identity
}

// SessionToken returns the token of the tracked session, or empty.
func (t *Tracker) SessionToken() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return ""
	}
	return t.session.Token
}

// SignIn returns the provider consent URL; no local state changes until the
// browser round-trips back and the listener fires.
func (t *Tracker) SignIn(redirectTo string) string {
	return t.provider.SignInURL(redirectTo)
}

// SignOut invalidates the provider session. On failure the tracked identity
// is left at its last known-good value and the error is returned.
func (t *Tracker) SignOut(ctx context.Context) error {
	t.mu.Lock()
	sess := t.session
	t.mu.Unlock()
	if sess == nil {
		return nil
	}
	if err := t.provider.SignOut(ctx, sess.Token); err != nil {
		return err
	}
	t.apply(nil, true)
	return nil
}

func (t *Tracker) apply(sess *Session, fromListener bool) {
	t.mu.Lock()
	if fromListener {
		t.listenerFired = true
	} else if t.listenerFired {
		// A listener event already delivered fresher state than the
		// startup snapshot; drop the one-shot result.
		t.mu.Unlock()
		return
	}
	changed := identityChanged(t.session, sess)
	t.session = sess
	fns := t.onChange
	var identity *domain.Identity
	if sess != nil {
		id := sess.Identity
		identity = &id
	}
	t.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range fns {
		fn(identity)
	}
}

func identityChanged(prev, next *Session) bool {
	switch {
	case prev == nil && next == nil:
		return false
	case prev == nil || next == nil:
		return true
	default:
		return prev.Identity.ID != next.Identity.ID
	}
}
