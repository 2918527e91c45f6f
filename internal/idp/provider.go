package idp

import (
	"context"

	"modelfolio/pkg/domain"
)

// Event classifies a session change delivered to listeners.
type Event string

const (
	EventSignedIn  Event = "signed_in"
	EventSignedOut Event = "signed_out"
	EventRefreshed Event = "token_refreshed"
)

// Session is an installed provider session and the identity behind it.
type Session struct {
	Token    string
	Identity domain.Identity
}

// Provider is the identity provider consumed by the submission workflow.
// Listeners registered via OnSessionChange fire on sign-in, sign-out, and
// token refresh; CurrentSession answers the one-shot startup query for a
// session that existed before any listener was attached.
type Provider interface {
	CurrentSession(ctx context.Context) (*Session, error)
	OnSessionChange(fn func(Event, *Session)) (unsubscribe func())
	SignInURL(redirectTo string) string
	SignOut(ctx context.Context, token string) error
	SetSession(ctx context.Context, accessToken, refreshToken string) (*Session, error)
}
