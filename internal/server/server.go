package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"modelfolio/internal/app"
	"modelfolio/internal/idp"
	"modelfolio/internal/ratelimit"
	"modelfolio/internal/store"
	"modelfolio/internal/util"
	"modelfolio/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App      *app.App
	Sessions store.SessionStore
	Resolver *idp.Resolver

	RedisAddr     string
	RedisPassword string

	// TrustedProxies lists CIDR/IP entries whose forwarded headers are
	// honored when resolving client IPs. Empty means trust none.
	TrustedProxies []string

	LoginRateLimitPerMinute  int
	SubmitRateLimitPerMinute int
	MaxUploadBytes           int64
}

// Server exposes the portfolio backend HTTP endpoints.
type Server struct {
	app            *app.App
	sessions       store.SessionStore
	resolver       *idp.Resolver
	mux            *http.ServeMux
	maxUploadBytes int64
	trustedProxies *util.TrustedProxies
	loginLimiter   *ratelimit.FixedWindowLimiter
	submitLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil || cfg.Sessions == nil || cfg.Resolver == nil {
		return nil, errors.New("app, sessions and resolver are required")
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	submitLimit := cfg.SubmitRateLimitPerMinute
	if submitLimit <= 0 {
		submitLimit = 5
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "modelfolio:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	submitLimiter, err := newLimiter("submit", submitLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:            cfg.App,
		sessions:       cfg.Sessions,
		resolver:       cfg.Resolver,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		trustedProxies: trusted,
		loginLimiter:   loginLimiter,
		submitLimiter:  submitLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog("modelfolio", s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/redirect", s.handleRedirect)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// reviews (list is public, everything else needs a session)
	s.mux.HandleFunc("/api/reviews", s.handleReviews)
	s.mux.Handle("/api/reviews/", s.authenticated(s.handleReviewByID))

	// public portfolio reads
	s.mux.HandleFunc("/api/projects", s.handleProjects)
	s.mux.HandleFunc("/api/content", s.handleContent)
	s.mux.HandleFunc("/api/stats", s.handleStats)

	// admin
	s.mux.Handle("/api/admin/projects", s.adminOnly(s.handleAdminProjects))
	s.mux.Handle("/api/admin/projects/", s.adminOnly(s.handleAdminProjectByID))
	s.mux.Handle("/api/admin/content", s.adminOnly(s.handleAdminContent))
	s.mux.Handle("/api/admin/content/", s.adminOnly(s.handleAdminContentByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.Identity)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.authorize(r)
		if !ok {
			s.audit(r, "auth.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, identity)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
		isAdmin, err := s.app.IsAdmin(&identity)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if !isAdmin {
			s.audit(r, "admin.authorize", "fail", "identity", identity.ID)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, identity)
	})
}

func (s *Server) authorize(r *http.Request) (domain.Identity, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok, err := s.sessions.IdentityByToken(token)
	if err != nil {
		slog.Warn("resolve session token", "error", err)
		return domain.Identity{}, false
	}
	return identity, ok
}

// viewer resolves the request's identity when a valid bearer token is
// present, without requiring one.
func (s *Server) viewer(r *http.Request) *domain.Identity {
	identity, ok := s.authorize(r)
	if !ok {
		return nil
	}
	return &identity
}

// auth handlers

// handleLogin redirects the browser to the identity provider's consent page.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "auth.login", "rate_limited")
		return
	}
	target := s.app.Tracker().SignIn(r.URL.Query().Get("redirectTo"))
	s.audit(r, "auth.login", "success")
	http.Redirect(w, r, target, http.StatusFound)
}

// handleRedirect resolves the provider's return hop. The client posts the
// full landing URL, fragment included, and receives the destination plus the
// freshly installed session token when the handoff carried credentials.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req redirectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	landing, err := url.Parse(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid landing url")
		return
	}
	existingToken, _ := bearerToken(r)
	nav := s.resolver.Resolve(r.Context(), landing, existingToken)

	resp := redirectResponse{RedirectTo: nav.Path, Replace: nav.ReplaceHistory}
	if nav.Session != nil {
		resp.Token = nav.Session.Token
		resp.Identity = &nav.Session.Identity
		s.audit(r, "auth.redirect", "success", "identity", nav.Session.Identity.ID)
	} else {
		s.audit(r, "auth.redirect", "success")
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.SignOut(r.Context(), token); err != nil {
		s.audit(r, "auth.logout", "fail", "reason", err.Error())
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.audit(r, "auth.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	isAdmin, err := s.app.IsAdmin(&identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Identity: identity, IsAdmin: isAdmin})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func normalizeMaxBytes(v int64) int64 {
	if v <= 0 {
		return 10 << 20
	}
	return v
}
