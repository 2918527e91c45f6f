package idp

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"modelfolio/internal/store"
	"modelfolio/pkg/domain"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestResolveInstallsSessionFromFragment(t *testing.T) {
	provider := &fakeProvider{setSessionResult: sessionFor("u1", "Ada")}
	resolver := NewResolver(provider, store.NewMemoryStore(), "/reviews", "/")

	landing := mustParse(t, "https://example.com/redirect#access_token=at-123&refresh_token=rt-456&token_type=bearer")
	nav := resolver.Resolve(context.Background(), landing, "")

	if nav.Path != "/reviews" || !nav.ReplaceHistory {
		t.Fatalf("nav = %+v, want /reviews with history replacement", nav)
	}
	if nav.Session == nil || nav.Session.Identity.ID != "u1" {
		t.Fatalf("session = %+v, want installed u1", nav.Session)
	}
	if len(provider.setSessionCalls) != 1 || provider.setSessionCalls[0] != "at-123" {
		t.Fatalf("SetSession calls = %v, want [at-123]", provider.setSessionCalls)
	}
}

func TestResolveNavigatesDespiteInstallFailure(t *testing.T) {
	provider := &fakeProvider{setSessionErr: errors.New("provider rejected token")}
	resolver := NewResolver(provider, store.NewMemoryStore(), "/reviews", "/")

	landing := mustParse(t, "https://example.com/redirect#access_token=bad-token")
	nav := resolver.Resolve(context.Background(), landing, "")

	if nav.Path != "/reviews" || !nav.ReplaceHistory {
		t.Fatalf("nav = %+v, want /reviews even on failure", nav)
	}
	if nav.Session != nil {
		t.Fatalf("session = %+v, want nil", nav.Session)
	}
}

func TestResolveRecognizesExistingSession(t *testing.T) {
	sessions := store.NewMemoryStore()
	token, err := sessions.NewSession(domain.Identity{ID: "u1", DisplayName: "Ada"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	provider := &fakeProvider{}
	resolver := NewResolver(provider, sessions, "/reviews", "/")

	nav := resolver.Resolve(context.Background(), mustParse(t, "https://example.com/redirect"), token)
	if nav.Path != "/reviews" || !nav.ReplaceHistory {
		t.Fatalf("nav = %+v, want /reviews for existing session", nav)
	}
	if len(provider.setSessionCalls) != 0 {
		t.Fatalf("SetSession should not run without a fragment handoff")
	}
}

func TestResolveFallsBackWithoutCredentials(t *testing.T) {
	resolver := NewResolver(&fakeProvider{}, store.NewMemoryStore(), "/reviews", "/")

	for _, tc := range []struct {
		name  string
		raw   string
		token string
	}{
		{name: "bare landing", raw: "https://example.com/redirect"},
		{name: "unrelated fragment", raw: "https://example.com/redirect#section-2"},
		{name: "stale token", raw: "https://example.com/redirect", token: "no-such-token"},
	} {
		nav := resolver.Resolve(context.Background(), mustParse(t, tc.raw), tc.token)
		if nav.Path != "/" || !nav.ReplaceHistory {
			t.Fatalf("%s: nav = %+v, want fallback /", tc.name, nav)
		}
	}
}

func TestParseFragmentTokens(t *testing.T) {
	at, rt := parseFragmentTokens("#access_token=aaa&refresh_token=bbb&expires_in=3600")
	if at != "aaa" || rt != "bbb" {
		t.Fatalf("parsed = %q, %q", at, rt)
	}

	// Malformed pairs are skipped, not fatal.
	at, rt = parseFragmentTokens("access_token=ccc&broken&refresh_token=ddd")
	if at != "ccc" || rt != "ddd" {
		t.Fatalf("parsed with noise = %q, %q", at, rt)
	}
}
