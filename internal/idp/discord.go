package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"modelfolio/internal/store"
	"modelfolio/pkg/domain"
)

const (
	discordAuthURL  = "https://discord.com/oauth2/authorize"
	discordTokenURL = "https://discord.com/api/oauth2/token"
	discordAPIBase  = "https://discord.com/api"
	discordCDNBase  = "https://cdn.discordapp.com"
)

// DiscordConfig wires a Discord OAuth application to the local session store.
type DiscordConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Sessions     store.SessionStore

	// APIBase and HTTPClient are overridable for tests.
	APIBase    string
	HTTPClient *http.Client
}

// Client implements Provider backed by Discord OAuth (token handoff flow)
// and the local session store. The server holds no ambient session, so
// CurrentSession always reports none; per-request identity resolution goes
// through the session store directly.
type Client struct {
	config   *oauth2.Config
	apiBase  string
	http     *http.Client
	sessions store.SessionStore

	mu        sync.Mutex
	listeners map[int]func(Event, *Session)
	nextID    int
}

// NewDiscordClient builds a Discord-backed identity provider client.
func NewDiscordClient(cfg DiscordConfig) *Client {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = discordAPIBase
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  discordAuthURL,
				TokenURL: discordTokenURL,
			},
			Scopes: []string{"identify"},
		},
		apiBase:   apiBase,
		http:      httpClient,
		sessions:  cfg.Sessions,
		listeners: make(map[int]func(Event, *Session)),
	}
}

// CurrentSession reports the ambient session. Server-side there is none;
// every request carries its own token.
func (c *Client) CurrentSession(_ context.Context) (*Session, error) {
	return nil, nil
}

// OnSessionChange registers a listener; the returned func deregisters it
// and is safe to call more than once.
func (c *Client) OnSessionChange(fn func(Event, *Session)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// SignInURL builds the Discord consent URL for the fragment token handoff.
// redirectTo overrides the registered callback URL when non-empty.
func (c *Client) SignInURL(redirectTo string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", "token"),
	}
	if redirectTo != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectTo))
	}
	return c.config.AuthCodeURL("", opts...)
}

// SetSession validates the handed-off access token against the provider,
// snapshots the identity, and installs a local session for it.
func (c *Client) SetSession(ctx context.Context, accessToken, _ string) (*Session, error) {
	identity, err := c.fetchIdentity(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	token, err := c.sessions.NewSession(identity)
	if err != nil {
		return nil, fmt.Errorf("install session: %w", err)
	}
	sess := &Session{Token: token, Identity: identity}
	c.notify(EventSignedIn, sess)
	return sess, nil
}

// SignOut invalidates the session. Local identity state is the caller's
// concern and must be left unchanged when this fails.
func (c *Client) SignOut(_ context.Context, token string) error {
	if err := c.sessions.DeleteSession(token); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	c.notify(EventSignedOut, nil)
	return nil
}

func (c *Client) notify(event Event, sess *Session) {
	c.mu.Lock()
	fns := make([]func(Event, *Session), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(event, sess)
	}
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

func (c *Client) fetchIdentity(ctx context.Context, accessToken string) (domain.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/users/@me", nil)
	if err != nil {
		return domain.Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("fetch identity: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.Identity{}, fmt.Errorf("fetch identity: unexpected status %d", resp.StatusCode)
	}
	var user discordUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return domain.Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	if user.ID == "" {
		return domain.Identity{}, fmt.Errorf("identity response missing id")
	}
	name := user.GlobalName
	if name == "" {
		name = user.Username
	}
	identity := domain.Identity{
		ID:          user.ID,
		DisplayName: name,
	}
	if user.Avatar != "" {
		identity.AvatarURL = fmt.Sprintf("%s/avatars/%s/%s.png", discordCDNBase, user.ID, user.Avatar)
	}
	return identity, nil
}
