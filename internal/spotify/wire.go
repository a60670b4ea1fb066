package spotify

// Raw response shapes as the upstream returns them. These never leave the
// package; mapping into [models] happens in client.go and stats.go.

type followers struct {
	Total int `json:"total"`
}

type wireImage struct {
	URL    string `json:"url"`
	Height *int   `json:"height"`
	Width  *int   `json:"width"`
}

type wireExternalURLs struct {
	Spotify string `json:"spotify"`
}

type wireUser struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Followers   followers   `json:"followers"`
	Images      []wireImage `json:"images"`
}

type wireArtist struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Genres       []string         `json:"genres"`
	Popularity   int              `json:"popularity"`
	Images       []wireImage      `json:"images"`
	ExternalURLs wireExternalURLs `json:"external_urls"`
}

type wireAlbum struct {
	Name        string      `json:"name"`
	ReleaseDate string      `json:"release_date"`
	AlbumType   string      `json:"album_type"`
	Images      []wireImage `json:"images"`
}

type wireTrack struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Artists      []wireArtist     `json:"artists"`
	Album        *wireAlbum       `json:"album"`
	DurationMS   int              `json:"duration_ms"`
	ExternalURLs wireExternalURLs `json:"external_urls"`
}

type wireAudioFeatures struct {
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

type wireOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type playlistTracks struct {
	Total int `json:"total"`
}

type wirePlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       wireOwner      `json:"owner"`
	Public      bool           `json:"public"`
	SnapshotID  string         `json:"snapshot_id"`
	Tracks      playlistTracks `json:"tracks"`
	Images      []wireImage    `json:"images"`
}

type pagedTracks struct {
	Items []wireTrack `json:"items"`
	Total int         `json:"total"`
}

type pagedArtists struct {
	Items []wireArtist `json:"items"`
	Total int          `json:"total"`
}

type pagedPlaylists struct {
	Items []wirePlaylist `json:"items"`
	Total int            `json:"total"`
}

type savedTracksPage struct {
	Total int `json:"total"`
}

type followingEnvelope struct {
	Artists pagedArtists `json:"artists"`
}

type playedItem struct {
	Track wireTrack `json:"track"`
}

type recentlyPlayedPage struct {
	Items []playedItem `json:"items"`
}

type artistTopTracks struct {
	Tracks []wireTrack `json:"tracks"`
}
