package idp

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"modelfolio/internal/store"
)

// Navigation is the outcome of resolving an OAuth redirect landing: where the
// router should send the user, and the installed session when one was created.
type Navigation struct {
	Path           string
	ReplaceHistory bool
	Session        *Session
}

// Resolver handles the single return hop from the OAuth provider. The router
// collaborator supplies the landing URL (fragment included) and applies the
// returned navigation. Each landing is resolved exactly once; Resolve never
// retries and always produces a navigation.
type Resolver struct {
	provider     Provider
	sessions     store.SessionStore
	successPath  string
	fallbackPath string
}

// NewResolver builds a resolver navigating to successPath after login and
// fallbackPath when no credentials are present.
func NewResolver(provider Provider, sessions store.SessionStore, successPath, fallbackPath string) *Resolver {
	return &Resolver{
		provider:     provider,
		sessions:     sessions,
		successPath:  successPath,
		fallbackPath: fallbackPath,
	}
}

// Resolve inspects the landing URL fragment for the token handoff, installs
// the session when tokens are present, and decides the destination. Session
// installation errors are logged and still produce a navigation; the user is
// never left stranded on the redirect page.
func (r *Resolver) Resolve(ctx context.Context, landing *url.URL, existingToken string) Navigation {
	fragment := ""
	if landing != nil {
		fragment = landing.Fragment
	}

	if strings.Contains(fragment, "access_token") {
		accessToken, refreshToken := parseFragmentTokens(fragment)
		sess, err := r.provider.SetSession(ctx, accessToken, refreshToken)
		if err != nil {
			slog.Error("oauth redirect: session install failed", "err", err)
			return Navigation{Path: r.successPath, ReplaceHistory: true}
		}
		return Navigation{Path: r.successPath, ReplaceHistory: true, Session: sess}
	}

	if existingToken != "" {
		if _, ok, err := r.sessions.IdentityByToken(existingToken); err == nil && ok {
			return Navigation{Path: r.successPath, ReplaceHistory: true}
		}
	}

	return Navigation{Path: r.fallbackPath, ReplaceHistory: true}
}

// parseFragmentTokens reads the provider's key/value fragment. Malformed
// pairs are skipped rather than failing the whole handoff.
func parseFragmentTokens(fragment string) (accessToken, refreshToken string) {
	values, err := url.ParseQuery(strings.TrimPrefix(fragment, "#"))
	if err != nil {
		for _, pair := range strings.Split(fragment, "&") {
			key, value, ok := strings.Cut(pair, "=")
			if !ok {
				continue
			}
			switch key {
			case "access_token":
				accessToken, _ = url.QueryUnescape(value)
			case "refresh_token":
				refreshToken, _ = url.QueryUnescape(value)
			}
		}
		return accessToken, refreshToken
	}
	return values.Get("access_token"), values.Get("refresh_token")
}
