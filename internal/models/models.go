package models

import "time"

// Image represents an image resource attached to albums, artists, and playlists.
// Dimensions are pointers because the upstream omits them for some image sizes.
type Image struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

// ExternalURLs carries the public link for a resource.
type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// Album is the canonical album shape. Every field other than Images may be
// absent upstream and is therefore nullable.
type Album struct {
	Name        *string `json:"name"`
	ReleaseDate *string `json:"release_date"`
	AlbumType   *string `json:"album_type"`
	Images      []Image `json:"images"`
}

// Track is the canonical track shape.
type Track struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Artists      []string     `json:"artists"`
	Album        *Album       `json:"album"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// Artist is the canonical artist shape.
type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Genres       []string     `json:"genres"`
	Popularity   int          `json:"popularity"`
	Images       []Image      `json:"images"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

// AudioFeatures is the fixed metric set returned by track analysis.
type AudioFeatures struct {
	Danceability     float64 `json:"danceability"`
	Energy           float64 `json:"energy"`
	Tempo            float64 `json:"tempo"`
	Valence          float64 `json:"valence"`
	Speechiness      float64 `json:"speechiness"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
	Liveness         float64 `json:"liveness"`
	DurationMS       int     `json:"duration_ms"`
}

// GenreStat counts how many of the user's top artists carry a genre tag.
// Derived per request, never persisted.
type GenreStat struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// UserStat aggregates four independent listening metrics. Derived per request.
type UserStat struct {
	HoursListened     int `json:"hoursListened"`
	ArtistsDiscovered int `json:"artistsDiscovered"`
	SongsInLibrary    int `json:"songsInLibrary"`
	PlaylistsCreated  int `json:"playlistsCreated"`
}

// Playlist is the canonical playlist shape exposed by the playlists query.
type Playlist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Owner       string  `json:"owner"`
	TotalTracks int     `json:"totalTracks"`
	Public      bool    `json:"public"`
	Images      []Image `json:"images"`
}

// FollowedArtists is the envelope returned by the followed-artists query.
type FollowedArtists struct {
	Total int      `json:"total"`
	Items []Artist `json:"items"`
}

// User is the canonical profile shape.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Followers   int    `json:"followers"`
	Image       string `json:"image"`
}

// CachedUser is the persisted profile record: the last-seen profile fields plus
// the last-known top-tracks snapshot. Records are created on first profile
// fetch and overwritten on later fetches; they are never deleted.
type CachedUser struct {
	ID          string    `json:"id"`
	Sequence    int       `json:"-"`
	DisplayName string    `json:"display_name"`
	Followers   int       `json:"followers"`
	Image       string    `json:"image"`
	TopTracks   []Track   `json:"topTracks"`
	CreatedAt   time.Time `json:"-"`
	UpdatedAt   time.Time `json:"-"`
}
