package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"modelfolio/internal/idp"
	"modelfolio/internal/storage"
	"modelfolio/internal/store"
	"modelfolio/pkg/domain"
)

// Config carries the collaborators App needs. Store, Sessions and Provider
// are required; Objects may be nil when image hosting is disabled.
type Config struct {
	Store    store.Store
	Sessions store.SessionStore
	Provider idp.Provider
	Objects  storage.ObjectStore

	// PresignTTL bounds the lifetime of generated image URLs.
	PresignTTL time.Duration

	// AdminIDs are identity ids granted admin rights at startup.
	AdminIDs []string
}

// editBuffer holds an in-progress edit for one identity. It lives in memory
// only; cancelling discards it without touching the store.
type editBuffer struct {
	reviewID string
	body     string
}

// App implements the session-gated review workflow and the public portfolio
// read paths on top of the store.
type App struct {
	store      store.Store
	sessions   store.SessionStore
	provider   idp.Provider
	objects    storage.ObjectStore
	tracker    *idp.Tracker
	presignTTL time.Duration

	mu     sync.Mutex
	cache  []domain.Review // newest first, last successful load
	loaded bool
	edits  map[string]editBuffer // identity id -> pending edit
}

func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("identity provider is required")
	}
	if cfg.PresignTTL <= 0 {
		cfg.PresignTTL = time.Hour
	}

	a := &App{
		store:      cfg.Store,
		sessions:   cfg.Sessions,
		provider:   cfg.Provider,
		objects:    cfg.Objects,
		presignTTL: cfg.PresignTTL,
		edits:      make(map[string]editBuffer),
	}

	for _, id := range cfg.AdminIDs {
		if err := cfg.Store.AddAdmin(id); err != nil {
			return nil, fmt.Errorf("seed admin %s: %w", id, err)
		}
	}

	a.tracker = idp.NewTracker(cfg.Provider)
	a.tracker.OnChange(a.handleIdentityChange)
	return a, nil
}

// Start begins observing the identity provider. Safe to call once.
func (a *App) Start(ctx context.Context) error {
	return a.tracker.Start(ctx)
}

// Close stops identity observation. Idempotent.
func (a *App) Close() {
	a.tracker.Stop()
}

// Tracker exposes the identity tracker for transports that need the current
// session directly.
func (a *App) Tracker() *idp.Tracker {
	return a.tracker
}

// SignOut ends the session for token and clears any pending edit for the
// identity that owned it. When the provider call fails the session stays
// live and the pending edit is kept, so the caller can retry.
func (a *App) SignOut(ctx context.Context, token string) error {
	identity, ok, err := a.sessions.IdentityByToken(token)
	if err != nil {
		slog.Warn("resolve session before sign out", "error", err)
	}
	if err := a.provider.SignOut(ctx, token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	if ok {
		a.mu.Lock()
		delete(a.edits, identity.ID)
		a.mu.Unlock()
	}
	return nil
}

// IsAdmin reports whether identity has admin rights. A nil identity is never
// an admin.
func (a *App) IsAdmin(identity *domain.Identity) (bool, error) {
	if identity == nil {
		return false, nil
	}
	return a.store.IsAdmin(identity.ID)
}

// handleIdentityChange runs whenever the tracked identity flips. A fresh
// sign-in drops any edit buffer left over from a previous session of the
// same identity whose review has since disappeared.
func (a *App) handleIdentityChange(identity *domain.Identity) {
	if identity == nil {
		return
	}
	review, ok, err := a.store.ReviewByIdentity(identity.ID)
	if err != nil {
		slog.Warn("check existing review on sign in", "identity", identity.ID, "error", err)
		return
	}
	a.mu.Lock()
	if buf, editing := a.edits[identity.ID]; editing {
		if !ok || buf.reviewID != review.ID {
			delete(a.edits, identity.ID)
		}
	}
	a.mu.Unlock()
	slog.Debug("identity signed in", "identity", identity.ID, "has_review", ok)
}
