package client

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// Paths that never trigger a refresh on 401: a failed login or a failed
// refresh is an answer, not an expired access token.
var authPaths = []string{"/auth/login", "/auth/register", "/auth/refresh"}

type retriedKey struct{}

// markRetried flags ctx so a second 401 is returned as is
func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func isRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

func isAuthPath(path string) bool {
	for _, p := range authPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

// Transport is an http.RoundTripper that attaches the session's bearer token
// and, on a 401 from a non-auth endpoint, refreshes once and retries once.
type Transport struct {
	// Base performs the actual requests; http.DefaultTransport when nil
	Base http.RoundTripper

	Session *Session

	// Refresh obtains a new access token and stores it in Session
	Refresh func(ctx context.Context) error

	// OnRefreshFailed runs after Refresh returned an error, unless the
	// request's own context was cancelled or timed out
	OnRefreshFailed func(err error)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base().RoundTrip(t.authorize(req))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized ||
		isAuthPath(req.URL.Path) ||
		isRetried(req.Context()) ||
		t.Refresh == nil {
		return resp, nil
	}

	// A consumed body without GetBody cannot be replayed
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return resp, nil
	}

	if refreshErr := t.Refresh(req.Context()); refreshErr != nil {
		// The caller gave up; the refresh cookie was never rejected
		if ctxErr := req.Context().Err(); ctxErr != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil, ctxErr
		}
		if t.OnRefreshFailed != nil {
			t.OnRefreshFailed(refreshErr)
		}
		return resp, nil
	}

	retry := req.Clone(markRetried(req.Context()))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return t.base().RoundTrip(t.authorize(retry))
}

// authorize returns a copy of req carrying the current bearer token.
// RoundTrippers must not modify the caller's request.
func (t *Transport) authorize(req *http.Request) *http.Request {
	token := t.Session.AccessToken()
	if token == "" {
		return req
	}
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return out
}
