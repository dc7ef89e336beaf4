package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

// Config configures a Client
type Config struct {
	// BaseURL is the server root, e.g. http://localhost:3000
	BaseURL string

	// Timeout bounds each HTTP exchange; 30s when zero
	Timeout time.Duration

	// Transport performs the network I/O; http.DefaultTransport when nil
	Transport http.RoundTripper

	// Jar keeps the refresh cookie. Sharing one jar between clients models
	// tabs of one browser; a new public-suffix aware jar is created when nil.
	Jar http.CookieJar

	// OnSessionExpired is the redirect to the anonymous entry point.
	// It runs when a refresh fails mid-session or a peer logs out.
	OnSessionExpired func()

	// Broadcaster shares logout with other sessions; optional
	Broadcaster Broadcaster

	Logger *zap.Logger
}

type tokenResponse struct {
	Message     string  `json:"message"`
	AccessToken string  `json:"accessToken"`
	User        Profile `json:"user"`
}

type userResponse struct {
	Message string  `json:"message"`
	User    Profile `json:"user"`
}

// Client talks to the auth server on behalf of one session
type Client struct {
	id          string
	baseURL     *url.URL
	session     *Session
	api         *http.Client // refreshes and retries on 401
	plain       *http.Client // same cookie jar, no interception
	onExpired   func()
	broadcaster Broadcaster
	logger      *zap.Logger
	timeout     time.Duration

	refreshGroup singleflight.Group

	mu          sync.Mutex
	unsubscribe func()
}

// New creates a Client bound to session
func New(cfg Config, session *Session) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}
	if session == nil {
		return nil, errors.New("session is required")
	}

	jar := cfg.Jar
	if jar == nil {
		jar, err = NewCookieJar()
		if err != nil {
			return nil, err
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		id:          uuid.NewString(),
		baseURL:     base,
		session:     session,
		onExpired:   cfg.OnSessionExpired,
		broadcaster: cfg.Broadcaster,
		logger:      logger,
		timeout:     timeout,
	}

	c.plain = &http.Client{Jar: jar, Timeout: timeout, Transport: cfg.Transport}
	c.api = &http.Client{
		Jar:     jar,
		Timeout: timeout,
		Transport: &Transport{
			Base:            cfg.Transport,
			Session:         session,
			Refresh:         c.refresh,
			OnRefreshFailed: c.refreshFailed,
		},
	}

	return c, nil
}

// NewCookieJar returns an in-memory jar using the public suffix list
func NewCookieJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// Session returns the session the client writes to
func (c *Client) Session() *Session {
	return c.session
}

// Init restores identity after a process start by calling refresh once
// against the durable cookie. It reports whether a session was recovered;
// a rejected refresh leaves the client anonymous without error.
func (c *Client) Init(ctx context.Context) (bool, error) {
	c.subscribe(ctx)

	err := c.refresh(ctx)
	switch {
	case err == nil:
		return true, nil
	case IsStatus(err, http.StatusUnauthorized):
		c.session.Clear()
		return false, nil
	default:
		return false, err
	}
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, name, email, password string) (*Profile, error) {
	var out userResponse
	err := c.call(ctx, c.api, http.MethodPost, "/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out.User, nil
}

// Login signs in, keeping the access token in memory and the refresh
// cookie in the jar
func (c *Client) Login(ctx context.Context, email, password string) (*Profile, error) {
	var out tokenResponse
	err := c.call(ctx, c.api, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}

	c.session.SetAccessToken(out.AccessToken, &out.User)
	return &out.User, nil
}

// Logout revokes the refresh cookie and tells peers. The local session is
// cleared even when the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	err := c.call(ctx, c.plain, http.MethodPost, "/auth/logout", nil, nil)
	c.session.Clear()
	c.publishLogout(ctx)
	return err
}

// LogoutAll revokes every refresh token of the signed-in account
func (c *Client) LogoutAll(ctx context.Context) (int64, error) {
	if !c.session.Authenticated() {
		return 0, ErrNotAuthenticated
	}

	var out struct {
		Revoked int64 `json:"revoked"`
	}
	if err := c.call(ctx, c.api, http.MethodPost, "/auth/logout-all", nil, &out); err != nil {
		return 0, err
	}

	c.session.Clear()
	c.publishLogout(ctx)
	return out.Revoked, nil
}

// Profile fetches the signed-in account
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.call(ctx, c.api, http.MethodGet, "/user/me", nil, &out); err != nil {
		return nil, err
	}
	c.session.SetUser(out)
	return &out, nil
}

// UpdateName renames the signed-in account
func (c *Client) UpdateName(ctx context.Context, name string) (*Profile, error) {
	var out Profile
	if err := c.call(ctx, c.api, http.MethodPatch, "/user/name", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	c.session.SetUser(out)
	return &out, nil
}

// Close stops listening for peer events
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// refresh exchanges the refresh cookie for a new access token. Concurrent
// callers share one request, which outlives any single caller's context so
// that one cancellation does not fail the others.
func (c *Client) refresh(ctx context.Context) error {
	ch := c.refreshGroup.DoChan("refresh", func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		var out tokenResponse
		if err := c.call(rctx, c.plain, http.MethodPost, "/auth/refresh", nil, &out); err != nil {
			return nil, err
		}
		c.session.SetAccessToken(out.AccessToken, &out.User)
		return nil, nil
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) refreshFailed(err error) {
	c.logger.Info("session expired", zap.Error(err))
	c.expire()
}

// expire clears the session and sends the caller to the anonymous entry point
func (c *Client) expire() {
	c.session.Clear()
	if c.onExpired != nil {
		c.onExpired()
	}
}

func (c *Client) subscribe(ctx context.Context) {
	if c.broadcaster == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		return
	}

	unsubscribe, err := c.broadcaster.Subscribe(ctx, c.handleEvent)
	if err != nil {
		c.logger.Warn("logout broadcast unavailable", zap.Error(err))
		return
	}
	c.unsubscribe = unsubscribe
}

func (c *Client) handleEvent(event Event) {
	if event.Origin == c.id || event.Type != EventLogout {
		return
	}
	c.logger.Debug("peer logged out")
	c.expire()
}

func (c *Client) publishLogout(ctx context.Context) {
	if c.broadcaster == nil {
		return
	}
	if err := c.broadcaster.Publish(ctx, Event{Type: EventLogout, Origin: c.id}); err != nil {
		c.logger.Warn("failed to broadcast logout", zap.Error(err))
	}
}

// call sends a JSON request and decodes a JSON answer into out
func (c *Client) call(ctx context.Context, hc *http.Client, method, path string, in, out interface{}) error {
	var body *bytes.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	endpoint := c.baseURL.String() + path

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
