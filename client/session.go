// Package client is the browser-side half of the dual-token scheme rendered
// for Go programs: it keeps the access token in process memory, attaches it to
// outgoing requests and recovers from expiry with a single cookie refresh.
package client

import (
	"sync"
	"time"
)

// Profile is the public view of an account returned by the server
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session holds the access token and the signed-in profile.
// It lives only as long as the process; nothing is written to disk.
type Session struct {
	mu          sync.RWMutex
	accessToken string
	user        *Profile
}

// NewSession returns an empty, anonymous session
func NewSession() *Session {
	return &Session{}
}

// AccessToken returns the current token or "" when anonymous
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// SetAccessToken stores a token and the profile it was issued for.
// A nil user keeps the previously known profile.
func (s *Session) SetAccessToken(token string, user *Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
	if user != nil {
		u := *user
		s.user = &u
	}
}

// User returns a copy of the signed-in profile, or nil
func (s *Session) User() *Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// SetUser replaces the cached profile without touching the token
func (s *Session) SetUser(user Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &user
}

// Authenticated reports whether a token is held
func (s *Session) Authenticated() bool {
	return s.AccessToken() != ""
}

// Clear forgets the token and profile
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.user = nil
}
