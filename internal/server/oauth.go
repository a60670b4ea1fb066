package server

import (
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/tunegraph/tunegraph/internal/shared"
	"github.com/tunegraph/tunegraph/internal/spotify"
)

const stateCookie = "oauth_state"

// AuthHandler serves the OAuth redirect endpoints: login initiation toward
// the upstream authorization URL and the callback that exchanges the returned
// code for a credential pair.
type AuthHandler struct {
	exchanger *spotify.Exchanger
	cfg       shared.ServerConfig
	logger    *log.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(exchanger *spotify.Exchanger, cfg shared.ServerConfig, logger *log.Logger) *AuthHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AuthHandler{exchanger: exchanger, cfg: cfg, logger: logger}
}

// Routes returns the patterns this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{"GET /login", "GET /callback"}
}

// ServeHTTP dispatches between login and callback.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// login redirects to the upstream authorization URL with the full scope list
// and a random state token for CSRF protection.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.exchanger.AuthCodeURL(state), http.StatusFound)
}

// callback validates state, exchanges the authorization code for a credential
// pair, and redirects to the front-end.
//
// By default the tokens travel as HttpOnly cookies on the redirect. The
// legacy behavior of carrying them as query parameters sits behind
// tokens_in_redirect for front-ends that still parse the URL.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Warn("authorization denied", "err", errParam)
		writeError(w, shared.ErrAuthFailed)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		h.logger.Warn("state mismatch on callback")
		writeError(w, shared.ErrAuthFailed)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, shared.ErrAuthFailed)
		return
	}

	creds, err := h.exchanger.ExchangeCode(r.Context(), code)
	if err != nil {
		h.logger.Error("code exchange failed", "err", err)
		writeError(w, err)
		return
	}

	redirect, err := url.Parse(h.cfg.FrontendURI)
	if err != nil {
		writeError(w, shared.ErrInternal)
		return
	}
	redirect.Path = "/auth/callback"

	if h.cfg.TokensInRedirect {
		q := redirect.Query()
		q.Set("access", creds.AccessToken)
		q.Set("refresh", creds.RefreshToken)
		redirect.RawQuery = q.Encode()
	} else {
		http.SetCookie(w, &http.Cookie{
			Name:     "access_token",
			Value:    creds.AccessToken,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.SetCookie(w, &http.Cookie{
			Name:     "refresh_token",
			Value:    creds.RefreshToken,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	// Clear the state cookie either way.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	http.Redirect(w, r, redirect.String(), http.StatusFound)
}
