package query

import (
	"context"
	"sync"

	"github.com/tunegraph/tunegraph/internal/spotify"
)

// Refresher exchanges a refresh token for fresh credentials.
// Implemented by [spotify.Exchanger].
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (spotify.Credentials, error)
}

// Session holds the credential pair for one inbound request. It is derived
// from the request's headers, threaded through every call of that request,
// and discarded afterwards.
type Session struct {
	mu      sync.Mutex
	access  string
	refresh string
}

// NewSession creates a Session from an access/refresh token pair.
func NewSession(accessToken, refreshToken string) *Session {
	return &Session{access: accessToken, refresh: refreshToken}
}

// Authenticated reports whether both tokens are present.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access != "" && s.refresh != ""
}

// AccessToken returns the current access token.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// refreshFrom swaps the session's access token for a fresh one, performing at
// most one upstream refresh per stale token: if a concurrent sibling call
// already replaced stale, its token is reused and no refresh is issued.
//
// A failed refresh is terminal for the session; only then is the refresh
// token considered invalid.
func (s *Session) refreshFrom(ctx context.Context, r Refresher, stale string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.access != stale {
		return s.access, nil
	}

	creds, err := r.Refresh(ctx, s.refresh)
	if err != nil {
		return "", err
	}

	s.access = creds.AccessToken
	if creds.RefreshToken != "" {
		s.refresh = creds.RefreshToken
	}

	return s.access, nil
}
