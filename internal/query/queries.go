package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/tunegraph/tunegraph/internal/models"
	"github.com/tunegraph/tunegraph/internal/shared"
	"github.com/tunegraph/tunegraph/internal/spotify"
)

// Schema defaults for optional query arguments.
const (
	DefaultLimit     = 20
	DefaultTimeRange = "medium_term"
)

// ProfileStore persists the last-seen profile and top-tracks snapshot per
// user. Implemented by repositories.ProfileRepository.
type ProfileStore interface {
	Get(id string) (*models.CachedUser, error)
	Upsert(user models.User) error
	SaveTopTracks(id string, tracks []models.Track) error
}

// Queries answers the logical queries of the inbound surface. Each method
// takes the request's Session, enforces the authentication precondition, fans
// out the needed upstream calls through the resilient invoker, and returns a
// canonical shape or a taxonomy error.
type Queries struct {
	client   *spotify.Client
	auth     Refresher
	profiles ProfileStore
	logger   *log.Logger
	now      func() time.Time
}

// NewQueries creates the query layer. The profile store may be nil, in which
// case cache writes are skipped entirely.
func NewQueries(client *spotify.Client, auth Refresher, profiles ProfileStore, logger *log.Logger) *Queries {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Queries{
		client:   client,
		auth:     auth,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// Me returns the user's profile and upserts the profile cache. A cache-write
// failure is logged, never surfaced.
func (q *Queries) Me(ctx context.Context, sess *Session) (models.User, error) {
	if !sess.Authenticated() {
		return models.User{}, shared.ErrNotAuthenticated
	}

	user, err := invoke(ctx, q.auth, sess, q.client.Profile)
	if err != nil {
		return models.User{}, classify(err)
	}

	q.cacheProfile(user)
	return user, nil
}

// TopTracks returns the user's top tracks and records them as the cached
// snapshot. Upstream failures degrade to an empty list rather than erroring;
// only the missing-credentials precondition fails the query.
func (q *Queries) TopTracks(ctx context.Context, sess *Session, limit int, timeRange string) ([]models.Track, error) {
	if !sess.Authenticated() {
		return nil, shared.ErrNotAuthenticated
	}
	limit, timeRange = applyDefaults(limit, timeRange)

	// The profile fetch seeds the cache record and warms the token for the
	// tracks call, which reuses whatever refresh it triggered.
	user, err := invoke(ctx, q.auth, sess, q.client.Profile)
	if err != nil {
		q.logger.Warn("top tracks degraded to empty list", "err", err)
		return []models.Track{}, nil
	}
	q.cacheProfile(user)

	tracks, err := invoke(ctx, q.auth, sess, func(ctx context.Context, token string) ([]models.Track, error) {
		return q.client.TopTracks(ctx, token, limit, timeRange)
	})
	if err != nil {
		q.logger.Warn("top tracks degraded to empty list", "err", err)
		return []models.Track{}, nil
	}

	if q.profiles != nil {
		if err := q.profiles.SaveTopTracks(user.ID, tracks); err != nil {
			q.logger.Warn("failed to cache top tracks", "user", user.ID, "err", err)
		}
	}

	return tracks, nil
}

// TopArtists returns the user's top artists for a time range.
func (q *Queries) TopArtists(ctx context.Context, sess *Session, limit int, timeRange string) ([]models.Artist, error) {
	if !sess.Authenticated() {
		return nil, shared.ErrNotAuthenticated
	}
	limit, timeRange = applyDefaults(limit, timeRange)

	artists, err := invoke(ctx, q.auth, sess, func(ctx context.Context, token string) ([]models.Artist, error) {
		return q.client.TopArtists(ctx, token, limit, timeRange)
	})
	if err != nil {
		return nil, classify(err)
	}
	return artists, nil
}

// AnalyzeTrack returns the audio features for a track id.
func (q *Queries) AnalyzeTrack(ctx context.Context, sess *Session, id string) (models.AudioFeatures, error) {
	if !sess.Authenticated() {
		return models.AudioFeatures{}, shared.ErrNotAuthenticated
	}

	features, err := invoke(ctx, q.auth, sess, func(ctx context.Context, token string) (models.AudioFeatures, error) {
		return q.client.AudioFeatures(ctx, token, id)
	})
	if err != nil {
		return models.AudioFeatures{}, classify(err)
	}
	return features, nil
}

// GenreStats returns genre occurrence counts across the user's top artists.
func (q *Queries) GenreStats(ctx context.Context, sess *Session, timeRange string, limit int) ([]models.GenreStat, error) {
	if !sess.Authenticated() {
		return nil, shared.ErrNotAuthenticated
	}
	limit, timeRange = applyDefaults(limit, timeRange)

	stats, err := invoke(ctx, q.auth, sess, func(ctx context.Context, token string) ([]models.GenreStat, error) {
		return q.client.GenreStats(ctx, token, limit, timeRange)
	})
	if err != nil {
		return nil, classify(err)
	}
	return stats, nil
}

// UserStats aggregates four independent listening metrics. The four upstream
// fetches run concurrently inside one invocation; a failure in any one fails
// the whole query, never a partial result.
func (q *Queries) UserStats(ctx context.Context, sess *Session, year int) (models.UserStat, error) {
	if !sess.Authenticated() {
		return models.UserStat{}, shared.ErrNotAuthenticated
	}
	if year <= 0 {
		year = q.now().Year()
	}

	stats, err := invoke(ctx, q.auth, sess, func(ctx context.Context, token string) (models.UserStat, error) {
		var (
			stat models.UserStat
			wg   sync.WaitGroup
			errs = make(chan error, 4)
		)

		fetch := func(assign func() error) {
			defer wg.Done()
			if err := assign(); err != nil {
				errs <- err
			}
		}

		wg.Add(4)
		go fetch(func() (err error) { stat.HoursListened, err = q.client.HoursListened(ctx, token); return })
		go fetch(func() (err error) { stat.ArtistsDiscovered, err = q.client.ArtistsDiscovered(ctx, token); return })
		go fetch(func() (err error) { stat.SongsInLibrary, err = q.client.LibraryTrackCount(ctx, token); return })
		go fetch(func() (err error) { stat.PlaylistsCreated, err = q.client.PlaylistsCreatedIn(ctx, token, year); return })
		wg.Wait()
		close(errs)

		if err := <-errs; err != nil {
			return models.UserStat{}, err
		}
		return stat, nil
	})
	if err != nil {
		return models.UserStat{}, classify(err)
	}
	return stats, nil
}

// PlaylistsStats returns the user's playlists with pagination.
func (q *Queries) PlaylistsStats(ctx context.Context, sess *Session, limit, offset int) ([]models.Playlist, error) {
	if !sess.Authenticated() {
		return nil, shared.ErrNotAuthenticated
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	playlists, err := invoke(ctx, q.auth, sess, func(ctx context.Context, token string) ([]models.Playlist, error) {
		return q.client.Playlists(ctx, token, limit, offset)
	})
	if err != nil {
		return nil, classify(err)
	}
	return playlists, nil
}

// FollowedArtists returns artists the user follows.
func (q *Queries) FollowedArtists(ctx context.Context, sess *Session, limit int, after string) (models.FollowedArtists, error) {
	if !sess.Authenticated() {
		return models.FollowedArtists{}, shared.ErrNotAuthenticated
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	followed, err := invoke(ctx, q.auth, sess, func(ctx context.Context, token string) (models.FollowedArtists, error) {
		return q.client.FollowedArtists(ctx, token, limit, after)
	})
	if err != nil {
		return models.FollowedArtists{}, classify(err)
	}
	return followed, nil
}

// RandomRecommendedTracks returns up to 5 tracks pooled from randomly sampled
// top artists.
func (q *Queries) RandomRecommendedTracks(ctx context.Context, sess *Session) ([]models.Track, error) {
	if !sess.Authenticated() {
		return nil, shared.ErrNotAuthenticated
	}

	tracks, err := invoke(ctx, q.auth, sess, func(ctx context.Context, token string) ([]models.Track, error) {
		return q.client.RandomTracks(ctx, token, DefaultTimeRange)
	})
	if err != nil {
		return nil, classify(err)
	}
	return tracks, nil
}

// cacheProfile upserts the profile cache best-effort.
func (q *Queries) cacheProfile(user models.User) {
	if q.profiles == nil {
		return
	}
	if err := q.profiles.Upsert(user); err != nil {
		q.logger.Warn("failed to cache profile", "user", user.ID, "err", err)
	}
}

func applyDefaults(limit int, timeRange string) (int, string) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if timeRange == "" {
		timeRange = DefaultTimeRange
	}
	return limit, timeRange
}

// classify maps any propagated failure onto the error taxonomy; anything
// unrecognized is internal.
func classify(err error) error {
	for _, kind := range []error{
		shared.ErrNotAuthenticated,
		shared.ErrAuthFailed,
		shared.ErrRefreshFailed,
		shared.ErrTokenExpired,
		shared.ErrNotFound,
		shared.ErrInvalidResponse,
		shared.ErrInternal,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrInternal, err)
}
