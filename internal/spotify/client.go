package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tunegraph/tunegraph/internal/models"
	"github.com/tunegraph/tunegraph/internal/shared"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	// DefaultTimeout bounds every upstream call; without it a stalled
	// upstream read hangs the whole query.
	DefaultTimeout = 10 * time.Second

	// topTracksMarket matches the market the original deployment pinned for
	// artist top-track lookups.
	topTracksMarket = "IN"
)

// Client issues Bearer-authenticated reads against the Spotify Web API.
// Every method takes the access token per call; the Client itself holds no
// credential state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	now        func() time.Time

	// rand is not goroutine-safe; shuffle serializes access.
	randMu sync.Mutex
	rand   *rand.Rand
}

// shuffle randomizes order in place using the client's seeded source.
func (c *Client) shuffle(n int, swap func(i, j int)) {
	c.randMu.Lock()
	defer c.randMu.Unlock()
	c.rand.Shuffle(n, swap)
}

// NewClient constructs a Client. The HTTP client defaults to one with
// [DefaultTimeout]; baseURL defaults to the public API.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// get performs an authenticated GET and decodes the JSON response.
//
// Status classification: 401 means the access token expired, 404 means the
// requested sub-resource is absent, any other non-2xx is internal. Transport
// failures (including timeouts) are internal; undecodable bodies are invalid
// responses.
func (c *Client) get(ctx context.Context, token, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", shared.ErrInternal, err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrInternal, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, endpoint)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API status %d for %s", shared.ErrInternal, resp.StatusCode, endpoint)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrInvalidResponse, err)
		}
	}

	return nil
}

// Profile retrieves the authenticated user's profile.
func (c *Client) Profile(ctx context.Context, token string) (models.User, error) {
	var user wireUser
	if err := c.get(ctx, token, "/me", &user); err != nil {
		return models.User{}, err
	}

	image := ""
	if len(user.Images) > 0 {
		image = user.Images[0].URL
	}

	return models.User{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Followers:   user.Followers.Total,
		Image:       image,
	}, nil
}

// TopTracks retrieves the user's top tracks for a time range.
func (c *Client) TopTracks(ctx context.Context, token string, limit int, timeRange string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/me/top/tracks?limit=%d&time_range=%s", limit, url.QueryEscape(timeRange))

	var page pagedTracks
	if err := c.get(ctx, token, endpoint, &page); err != nil {
		return nil, err
	}

	return mapTracks(page.Items), nil
}

// TopArtists retrieves the user's top artists for a time range.
func (c *Client) TopArtists(ctx context.Context, token string, limit int, timeRange string) ([]models.Artist, error) {
	endpoint := fmt.Sprintf("/me/top/artists?limit=%d&time_range=%s", limit, url.QueryEscape(timeRange))

	var page pagedArtists
	if err := c.get(ctx, token, endpoint, &page); err != nil {
		return nil, err
	}

	artists := make([]models.Artist, 0, len(page.Items))
	for _, a := range page.Items {
		artists = append(artists, mapArtist(a))
	}
	return artists, nil
}

// AudioFeatures retrieves the audio analysis metrics for a track.
func (c *Client) AudioFeatures(ctx context.Context, token, trackID string) (models.AudioFeatures, error) {
	var features wireAudioFeatures
	endpoint := fmt.Sprintf("/audio-features/%s", url.PathEscape(trackID))
	if err := c.get(ctx, token, endpoint, &features); err != nil {
		return models.AudioFeatures{}, err
	}

	return models.AudioFeatures(features), nil
}

// LibraryTrackCount returns the total number of tracks saved in the user's library.
func (c *Client) LibraryTrackCount(ctx context.Context, token string) (int, error) {
	var page savedTracksPage
	if err := c.get(ctx, token, "/me/tracks?limit=1", &page); err != nil {
		return 0, err
	}
	return page.Total, nil
}

// Playlists retrieves the user's playlists with pagination.
func (c *Client) Playlists(ctx context.Context, token string, limit, offset int) ([]models.Playlist, error) {
	endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)

	var page pagedPlaylists
	if err := c.get(ctx, token, endpoint, &page); err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(page.Items))
	for _, p := range page.Items {
		owner := p.Owner.DisplayName
		if owner == "" {
			owner = "Unknown"
		}
		playlists = append(playlists, models.Playlist{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Owner:       owner,
			TotalTracks: p.Tracks.Total,
			Public:      p.Public,
			Images:      mapImages(p.Images),
		})
	}
	return playlists, nil
}

// FollowedArtists retrieves artists the user follows. The after cursor is the
// last artist ID of the previous page and may be empty.
func (c *Client) FollowedArtists(ctx context.Context, token string, limit int, after string) (models.FollowedArtists, error) {
	endpoint := fmt.Sprintf("/me/following?type=artist&limit=%d", limit)
	if after != "" {
		endpoint += "&after=" + url.QueryEscape(after)
	}

	var envelope followingEnvelope
	if err := c.get(ctx, token, endpoint, &envelope); err != nil {
		return models.FollowedArtists{}, err
	}

	items := make([]models.Artist, 0, len(envelope.Artists.Items))
	for _, a := range envelope.Artists.Items {
		items = append(items, mapArtist(a))
	}

	return models.FollowedArtists{
		Total: envelope.Artists.Total,
		Items: items,
	}, nil
}

// ArtistTopTracks retrieves an artist's most popular tracks.
func (c *Client) ArtistTopTracks(ctx context.Context, token, artistID string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/artists/%s/top-tracks?market=%s", url.PathEscape(artistID), topTracksMarket)

	var envelope artistTopTracks
	if err := c.get(ctx, token, endpoint, &envelope); err != nil {
		return nil, err
	}

	return mapTracks(envelope.Tracks), nil
}

// recentlyPlayed retrieves up to 50 most recently played tracks.
func (c *Client) recentlyPlayed(ctx context.Context, token string) ([]playedItem, error) {
	var page recentlyPlayedPage
	if err := c.get(ctx, token, "/me/player/recently-played?limit=50", &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

func mapTracks(items []wireTrack) []models.Track {
	tracks := make([]models.Track, 0, len(items))
	for _, t := range items {
		tracks = append(tracks, mapTrack(t))
	}
	return tracks
}

func mapTrack(t wireTrack) models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	var album *models.Album
	if t.Album != nil {
		album = &models.Album{
			Name:        nullableString(t.Album.Name),
			ReleaseDate: nullableString(t.Album.ReleaseDate),
			AlbumType:   nullableString(t.Album.AlbumType),
			Images:      mapImages(t.Album.Images),
		}
	}

	return models.Track{
		ID:           t.ID,
		Name:         t.Name,
		Artists:      artists,
		Album:        album,
		ExternalURLs: models.ExternalURLs{Spotify: t.ExternalURLs.Spotify},
	}
}

func mapArtist(a wireArtist) models.Artist {
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}

	return models.Artist{
		ID:           a.ID,
		Name:         a.Name,
		Genres:       genres,
		Popularity:   a.Popularity,
		Images:       mapImages(a.Images),
		ExternalURLs: models.ExternalURLs{Spotify: a.ExternalURLs.Spotify},
	}
}

func mapImages(images []wireImage) []models.Image {
	mapped := make([]models.Image, 0, len(images))
	for _, img := range images {
		mapped = append(mapped, models.Image{URL: img.URL, Height: img.Height, Width: img.Width})
	}
	return mapped
}

// nullableString maps the upstream's empty-string-or-missing fields to null.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
