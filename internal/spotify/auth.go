package spotify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tunegraph/tunegraph/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
)

// Scopes is the full permission set the login flow requests.
var Scopes = []string{
	"user-top-read",
	"user-read-recently-played",
	"user-read-private",
	"user-read-email",
	"user-follow-read",
	"playlist-read-private",
	"playlist-read-collaborative",
	"user-library-read",
	"user-read-playback-state",
	"user-modify-playback-state",
	"streaming",
}

// Credentials is an access/refresh token pair. The pair belongs to a single
// request context and is never persisted by this service.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Exchanger converts authorization codes and refresh tokens into credentials
// by calling the upstream token endpoint with Basic client authentication.
// Stateless beyond its configuration.
type Exchanger struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewExchanger creates an Exchanger from Spotify client credentials.
// The HTTP client defaults to [http.DefaultClient].
func NewExchanger(cfg shared.SpotifyConfig, httpClient *http.Client) (*Exchanger, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &Exchanger{config: config, httpClient: httpClient}, nil
}

// AuthCodeURL returns the authorization URL the login endpoint redirects to.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.config.AuthCodeURL(state)
}

// ExchangeCode exchanges an authorization code for a credential pair.
// A rejected code (invalid, expired, reused) yields [shared.ErrAuthFailed].
func (e *Exchanger) ExchangeCode(ctx context.Context, code string) (Credentials, error) {
	token, err := e.config.Exchange(e.withClient(ctx), code)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	return Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The returned pair
// keeps the given refresh token when the upstream does not rotate it.
//
// A rejected refresh token yields [shared.ErrRefreshFailed], which is terminal
// for the session; callers must force re-authentication rather than retry.
func (e *Exchanger) Refresh(ctx context.Context, refreshToken string) (Credentials, error) {
	if refreshToken == "" {
		return Credentials{}, fmt.Errorf("%w: no refresh token", shared.ErrRefreshFailed)
	}

	source := e.config.TokenSource(e.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	creds := Credentials{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = refreshToken
	}

	return creds, nil
}

// withClient threads the Exchanger's HTTP client (and its timeout) into the
// oauth2 transport.
func (e *Exchanger) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}
