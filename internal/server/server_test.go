package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"modelfolio/internal/app"
	"modelfolio/internal/idp"
	"modelfolio/internal/store"
	"modelfolio/pkg/domain"
)

// testProvider signs any access token in as a fixed identity keyed by the
// token value.
type testProvider struct {
	sessions  store.SessionStore
	signInURL string
}

func (p *testProvider) CurrentSession(context.Context) (*idp.Session, error) { return nil, nil }

func (p *testProvider) OnSessionChange(func(idp.Event, *idp.Session)) func() { return func() {} }

func (p *testProvider) SignInURL(string) string { return p.signInURL }

func (p *testProvider) SignOut(_ context.Context, token string) error {
	return p.sessions.DeleteSession(token)
}

func (p *testProvider) SetSession(_ context.Context, accessToken, _ string) (*idp.Session, error) {
	if accessToken == "" || strings.HasPrefix(accessToken, "bad-") {
		return nil, errors.New("rejected token")
	}
	ident := domain.Identity{ID: "discord-" + accessToken, DisplayName: "User " + accessToken}
	token, err := p.sessions.NewSession(ident)
	if err != nil {
		return nil, err
	}
	return &idp.Session{Token: token, Identity: ident}, nil
}

type testEnv struct {
	srv  *httptest.Server
	mem  *store.MemoryStore
	app  *app.App
	prov *testProvider
}

func newTestEnv(t *testing.T, tweak func(*Config)) *testEnv {
	t.Helper()
	redis := miniredis.RunT(t)
	mem := store.NewMemoryStore()
	prov := &testProvider{sessions: mem, signInURL: "https://discord.example/consent"}

	appCore, err := app.New(app.Config{
		Store:    mem,
		Sessions: mem,
		Provider: prov,
		AdminIDs: []string{"admin-1"},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if err := appCore.Start(context.Background()); err != nil {
		t.Fatalf("start app: %v", err)
	}
	t.Cleanup(appCore.Close)

	cfg := Config{
		App:       appCore,
		Sessions:  mem,
		Resolver:  idp.NewResolver(prov, mem, "/reviews", "/"),
		RedisAddr: redis.Addr(),
	}
	if tweak != nil {
		tweak(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, mem: mem, app: appCore, prov: prov}
}

// signIn drives the redirect resolution endpoint and returns the session token.
func (e *testEnv) signIn(t *testing.T, accessToken string) string {
	t.Helper()
	body := fmt.Sprintf(`{"url":"https://example.com/redirect#access_token=%s&refresh_token=r"}`, accessToken)
	resp, err := http.Post(e.srv.URL+"/api/auth/redirect", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("redirect request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("redirect status = %d", resp.StatusCode)
	}
	var out struct {
		RedirectTo string `json:"redirectTo"`
		Replace    bool   `json:"replace"`
		Token      string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode redirect response: %v", err)
	}
	if out.RedirectTo != "/reviews" || !out.Replace {
		t.Fatalf("redirect outcome = %+v", out)
	}
	if out.Token == "" {
		t.Fatalf("expected session token")
	}
	return out.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestLoginRedirectsToProvider(t *testing.T) {
	env := newTestEnv(t, nil)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(env.srv.URL + "/api/auth/login")
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("status = %d, want 302", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != "https://discord.example/consent" {
		t.Fatalf("location = %q", got)
	}
}

func TestRedirectWithoutCredentialsFallsBack(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := http.Post(env.srv.URL+"/api/auth/redirect", "application/json",
		strings.NewReader(`{"url":"https://example.com/redirect"}`))
	if err != nil {
		t.Fatalf("redirect request: %v", err)
	}
	out := decodeBody[map[string]any](t, resp)
	if out["redirectTo"] != "/" || out["replace"] != true {
		t.Fatalf("outcome = %v, want fallback to /", out)
	}
	if _, ok := out["token"]; ok {
		t.Fatalf("unexpected token without credentials")
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signIn(t, "abc")

	resp := env.do(t, http.MethodGet, "/api/users/me", token, nil)
	me := decodeBody[meResponse](t, resp)
	if me.Identity.ID != "discord-abc" || me.IsAdmin {
		t.Fatalf("me = %+v", me)
	}

	resp = env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/users/me", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", resp.StatusCode)
	}
}

func TestSubmitReviewFlow(t *testing.T) {
	env := newTestEnv(t, nil)

	// Anonymous submissions are rejected before any validation.
	resp, err := http.Post(env.srv.URL+"/api/reviews", "application/json",
		strings.NewReader(`{"rating":5,"body":"a perfectly fine review"}`))
	if err != nil {
		t.Fatalf("anonymous post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want 401", resp.StatusCode)
	}

	token := env.signIn(t, "abc")

	resp = env.do(t, http.MethodPost, "/api/reviews", token, map[string]any{"rating": 9, "body": "short"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid submit status = %d, want 400", resp.StatusCode)
	}
	invalid := decodeBody[map[string]any](t, resp)
	fields, _ := invalid["fields"].(map[string]any)
	if _, ok := fields["rating"]; !ok {
		t.Fatalf("fields = %v, want rating error", invalid)
	}
	if _, ok := fields["body"]; !ok {
		t.Fatalf("fields = %v, want body error", invalid)
	}

	resp = env.do(t, http.MethodPost, "/api/reviews", token, map[string]any{"rating": 5, "body": "an excellent collaboration"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit status = %d, want 201", resp.StatusCode)
	}
	created := decodeBody[reviewResponse](t, resp)
	if created.Review.ID == "" || !created.Review.Owned {
		t.Fatalf("created = %+v", created)
	}

	// Second submission is benign, returns the existing record.
	resp = env.do(t, http.MethodPost, "/api/reviews", token, map[string]any{"rating": 1, "body": "changed my mind entirely"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("duplicate status = %d, want 200", resp.StatusCode)
	}
	dup := decodeBody[reviewResponse](t, resp)
	if dup.Review.ID != created.Review.ID || dup.Notice == "" {
		t.Fatalf("duplicate = %+v", dup)
	}

	// The public list shows the review and the viewer's state.
	resp = env.do(t, http.MethodGet, "/api/reviews", token, nil)
	list := decodeBody[reviewListResponse](t, resp)
	if list.Count != 1 || list.SessionState != domain.StateHasSubmitted {
		t.Fatalf("list = %+v", list)
	}
	if list.Stats == nil || list.Stats.AverageRating != 5.0 {
		t.Fatalf("stats = %+v", list.Stats)
	}

	// Anonymous view of the same list: logged_out, nothing owned.
	resp = env.do(t, http.MethodGet, "/api/reviews", "", nil)
	anon := decodeBody[reviewListResponse](t, resp)
	if anon.SessionState != domain.StateLoggedOut || anon.Items[0].Owned {
		t.Fatalf("anonymous list = %+v", anon)
	}
}

func TestEditReviewEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signIn(t, "abc")

	resp := env.do(t, http.MethodPost, "/api/reviews", token, map[string]any{"rating": 4, "body": "the original review body"})
	created := decodeBody[reviewResponse](t, resp)

	resp = env.do(t, http.MethodPost, "/api/reviews/"+created.Review.ID+"/edit", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("begin edit status = %d", resp.StatusCode)
	}
	seed := decodeBody[map[string]string](t, resp)
	if seed["body"] != "the original review body" {
		t.Fatalf("seed = %v", seed)
	}

	resp = env.do(t, http.MethodPatch, "/api/reviews/"+created.Review.ID, token, map[string]string{"body": "the revised review body"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save edit status = %d", resp.StatusCode)
	}
	saved := decodeBody[reviewResponse](t, resp)
	if saved.Review.Body != "the revised review body" {
		t.Fatalf("saved = %+v", saved)
	}

	// A different signed-in user cannot touch it; 404 hides existence.
	otherToken := env.signIn(t, "xyz")
	resp = env.do(t, http.MethodPatch, "/api/reviews/"+created.Review.ID, otherToken, map[string]string{"body": "a hostile replacement body"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("foreign edit status = %d, want 404", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/reviews/"+created.Review.ID+"/edit", token, nil)
	resp.Body.Close()
	resp = env.do(t, http.MethodPost, "/api/reviews/"+created.Review.ID+"/cancel", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("cancel status = %d, want 204", resp.StatusCode)
	}
}

func TestSubmitRateLimit(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.SubmitRateLimitPerMinute = 1
	})
	token := env.signIn(t, "abc")

	resp := env.do(t, http.MethodPost, "/api/reviews", token, map[string]any{"rating": 5, "body": "the first and only one"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("first submit status = %d", resp.StatusCode)
	}
	resp = env.do(t, http.MethodPost, "/api/reviews", token, map[string]any{"rating": 5, "body": "hammering the endpoint"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second submit status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Fatalf("missing Retry-After header")
	}
}

func TestRateLimitIgnoresForwardedHeaderFromUntrustedPeer(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.LoginRateLimitPerMinute = 1
	})
	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	// No trusted proxies are configured, so changing X-Forwarded-For must
	// not open a fresh rate limit bucket.
	loginWithForwarded := func(forwarded string) int {
		req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/api/auth/login", nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("X-Forwarded-For", forwarded)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("login request: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if got := loginWithForwarded("203.0.113.10"); got != http.StatusFound {
		t.Fatalf("first login status = %d, want 302", got)
	}
	if got := loginWithForwarded("203.0.113.11"); got != http.StatusTooManyRequests {
		t.Fatalf("spoofed login status = %d, want 429", got)
	}
}

func TestAdminGating(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/admin/projects", "", map[string]string{"title": "X", "category": "Web"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous admin status = %d, want 401", resp.StatusCode)
	}

	visitorToken := env.signIn(t, "visitor")
	resp = env.do(t, http.MethodPost, "/api/admin/projects", visitorToken, map[string]string{"title": "X", "category": "Web"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("visitor admin status = %d, want 403", resp.StatusCode)
	}

	// admin-1 was seeded at app construction.
	adminToken, err := env.mem.NewSession(domain.Identity{ID: "admin-1", DisplayName: "Admin"})
	if err != nil {
		t.Fatalf("admin session: %v", err)
	}
	resp = env.do(t, http.MethodPost, "/api/admin/projects", adminToken, map[string]any{
		"title":    "Launch site",
		"category": "Web",
		"tools":    []string{"Go"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin create status = %d", resp.StatusCode)
	}
	project := decodeBody[domain.Project](t, resp)
	if project.Title != "Launch site" {
		t.Fatalf("project = %+v", project)
	}

	// The public grid serves it without auth.
	resp = env.do(t, http.MethodGet, "/api/projects?category=Web", "", nil)
	grid := decodeBody[map[string]any](t, resp)
	if grid["count"].(float64) != 1 {
		t.Fatalf("grid = %v", grid)
	}

	resp = env.do(t, http.MethodDelete, "/api/admin/projects/"+project.ID, adminToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
}

func TestAdminContentEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	adminToken, err := env.mem.NewSession(domain.Identity{ID: "admin-1", DisplayName: "Admin"})
	if err != nil {
		t.Fatalf("admin session: %v", err)
	}

	resp := env.do(t, http.MethodPost, "/api/admin/content", adminToken, map[string]string{
		"page": "home", "section": "hero", "content": "welcome",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert status = %d", resp.StatusCode)
	}
	block := decodeBody[domain.ContentBlock](t, resp)

	resp = env.do(t, http.MethodPatch, "/api/admin/content/"+block.ID, adminToken, map[string]string{"content": "welcome back"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	updated := decodeBody[domain.ContentBlock](t, resp)
	if updated.Content != "welcome back" {
		t.Fatalf("updated = %+v", updated)
	}

	resp = env.do(t, http.MethodGet, "/api/content?page=home", "", nil)
	public := decodeBody[map[string]any](t, resp)
	if public["count"].(float64) != 1 {
		t.Fatalf("public content = %v", public)
	}
}

func TestProjectImageUploadRejectsUnknownType(t *testing.T) {
	env := newTestEnv(t, nil)
	adminToken, err := env.mem.NewSession(domain.Identity{ID: "admin-1", DisplayName: "Admin"})
	if err != nil {
		t.Fatalf("admin session: %v", err)
	}
	resp := env.do(t, http.MethodPost, "/api/admin/projects", adminToken, map[string]string{"title": "X", "category": "Web"})
	project := decodeBody[domain.Project](t, resp)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "malware.exe")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("not an image"))
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/admin/projects/"+project.ID+"/image", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+adminToken)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	uploadResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	uploadResp.Body.Close()
	if uploadResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("upload status = %d, want 400", uploadResp.StatusCode)
	}
}
