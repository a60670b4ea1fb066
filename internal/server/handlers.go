package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/tunegraph/tunegraph/internal/models"
	"github.com/tunegraph/tunegraph/internal/query"
	"github.com/tunegraph/tunegraph/internal/shared"
)

const refreshTokenHeader = "X-Refresh-Token"

// QueryService is the slice of the query layer the HTTP handlers need.
// Implemented by [query.Queries].
type QueryService interface {
	Me(ctx context.Context, sess *query.Session) (models.User, error)
	TopTracks(ctx context.Context, sess *query.Session, limit int, timeRange string) ([]models.Track, error)
	TopArtists(ctx context.Context, sess *query.Session, limit int, timeRange string) ([]models.Artist, error)
	AnalyzeTrack(ctx context.Context, sess *query.Session, id string) (models.AudioFeatures, error)
	GenreStats(ctx context.Context, sess *query.Session, timeRange string, limit int) ([]models.GenreStat, error)
	UserStats(ctx context.Context, sess *query.Session, year int) (models.UserStat, error)
	PlaylistsStats(ctx context.Context, sess *query.Session, limit, offset int) ([]models.Playlist, error)
	FollowedArtists(ctx context.Context, sess *query.Session, limit int, after string) (models.FollowedArtists, error)
	RandomRecommendedTracks(ctx context.Context, sess *query.Session) ([]models.Track, error)
}

// QueryHandler serves the typed query surface as JSON over GET, one route per
// logical query.
type QueryHandler struct {
	queries QueryService
	logger  *log.Logger
}

// NewQueryHandler creates a QueryHandler.
func NewQueryHandler(queries QueryService, logger *log.Logger) *QueryHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &QueryHandler{queries: queries, logger: logger}
}

// Routes returns the patterns this handler serves.
func (h *QueryHandler) Routes() []string {
	return []string{
		"GET /health",
		"GET /api/me",
		"GET /api/top-tracks",
		"GET /api/top-artists",
		"GET /api/tracks/{id}/analysis",
		"GET /api/genre-stats",
		"GET /api/user-stats",
		"GET /api/playlists",
		"GET /api/followed-artists",
		"GET /api/random-tracks",
	}
}

// ServeHTTP dispatches on the matched route pattern.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Pattern {
	case "GET /health":
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case "GET /api/me":
		h.me(w, r)
	case "GET /api/top-tracks":
		h.topTracks(w, r)
	case "GET /api/top-artists":
		h.topArtists(w, r)
	case "GET /api/tracks/{id}/analysis":
		h.analyzeTrack(w, r)
	case "GET /api/genre-stats":
		h.genreStats(w, r)
	case "GET /api/user-stats":
		h.userStats(w, r)
	case "GET /api/playlists":
		h.playlists(w, r)
	case "GET /api/followed-artists":
		h.followedArtists(w, r)
	case "GET /api/random-tracks":
		h.randomTracks(w, r)
	default:
		http.NotFound(w, r)
	}
}

// sessionFrom builds the request's credential session. The bearer header and
// the refresh header win; cookies set by the callback redirect are the
// fallback for browser callers.
func sessionFrom(r *http.Request) *query.Session {
	access := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		access = strings.TrimPrefix(auth, "Bearer ")
	}
	if access == "" {
		if c, err := r.Cookie("access_token"); err == nil {
			access = c.Value
		}
	}

	refresh := r.Header.Get(refreshTokenHeader)
	if refresh == "" {
		if c, err := r.Cookie("refresh_token"); err == nil {
			refresh = c.Value
		}
	}

	return query.NewSession(access, refresh)
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func (h *QueryHandler) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.queries.Me(r.Context(), sessionFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *QueryHandler) topTracks(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", query.DefaultLimit)
	timeRange := r.URL.Query().Get("time_range")

	tracks, err := h.queries.TopTracks(r.Context(), sessionFrom(r), limit, timeRange)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}

func (h *QueryHandler) topArtists(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", query.DefaultLimit)
	timeRange := r.URL.Query().Get("time_range")

	artists, err := h.queries.TopArtists(r.Context(), sessionFrom(r), limit, timeRange)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artists)
}

func (h *QueryHandler) analyzeTrack(w http.ResponseWriter, r *http.Request) {
	features, err := h.queries.AnalyzeTrack(r.Context(), sessionFrom(r), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, features)
}

func (h *QueryHandler) genreStats(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", query.DefaultLimit)
	timeRange := r.URL.Query().Get("time_range")

	stats, err := h.queries.GenreStats(r.Context(), sessionFrom(r), timeRange, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *QueryHandler) userStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queries.UserStats(r.Context(), sessionFrom(r), intParam(r, "year", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *QueryHandler) playlists(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", query.DefaultLimit)
	offset := intParam(r, "offset", 0)

	playlists, err := h.queries.PlaylistsStats(r.Context(), sessionFrom(r), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

func (h *QueryHandler) followedArtists(w http.ResponseWriter, r *http.Request) {
	limit := intParam(r, "limit", query.DefaultLimit)
	after := r.URL.Query().Get("after")

	followed, err := h.queries.FollowedArtists(r.Context(), sessionFrom(r), limit, after)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, followed)
}

func (h *QueryHandler) randomTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.queries.RandomRecommendedTracks(r.Context(), sessionFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tracks)
}
