package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"modelfolio/pkg/domain"
)

func TestRedisSessionStoreRoundTrip(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSessionStore(redis.Addr(), "", time.Minute)

	identity := domain.Identity{ID: "discord-1", DisplayName: "Ada", AvatarURL: "https://cdn.example/a.png"}
	token, err := s.NewSession(identity)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if token == "" {
		t.Fatalf("expected non-empty token")
	}

	got, ok, err := s.IdentityByToken(token)
	if err != nil || !ok {
		t.Fatalf("resolve token: ok=%v err=%v", ok, err)
	}
	if got != identity {
		t.Fatalf("identity = %+v, want %+v", got, identity)
	}
}

func TestRedisSessionStoreDelete(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSessionStore(redis.Addr(), "", time.Minute)

	token, err := s.NewSession(domain.Identity{ID: "discord-2", DisplayName: "Grace"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, err := s.IdentityByToken(token); err != nil || ok {
		t.Fatalf("expected token gone, ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionStoreExpires(t *testing.T) {
	redis := miniredis.RunT(t)
	s := NewRedisSessionStore(redis.Addr(), "", time.Minute)

	token, err := s.NewSession(domain.Identity{ID: "discord-3", DisplayName: "Joan"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	redis.FastForward(2 * time.Minute)
	if _, ok, err := s.IdentityByToken(token); err != nil || ok {
		t.Fatalf("expected expired token, ok=%v err=%v", ok, err)
	}
}
