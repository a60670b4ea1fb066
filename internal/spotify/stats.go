package spotify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tunegraph/tunegraph/internal/models"
)

// Derived aggregations built on top of the raw endpoint calls. Each still
// takes the access token per call, like the rest of the Client.

const (
	// placeholderOwner is the platform account that owns autogenerated
	// playlists (Discover Weekly etc.); those never count as user-created.
	placeholderOwner = "spotify"

	randomArtistPool  = 20
	randomArtistCount = 5
	randomTrackCount  = 5
)

// GenreStats tallies genre occurrences across the user's top artists and
// returns one entry per distinct genre, sorted by descending count. Ties keep
// first-seen order.
func (c *Client) GenreStats(ctx context.Context, token string, limit int, timeRange string) ([]models.GenreStat, error) {
	artists, err := c.TopArtists(ctx, token, limit, timeRange)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	order := []string{}
	for _, artist := range artists {
		for _, genre := range artist.Genres {
			if _, seen := counts[genre]; !seen {
				order = append(order, genre)
			}
			counts[genre]++
		}
	}

	stats := make([]models.GenreStat, 0, len(order))
	for _, genre := range order {
		stats = append(stats, models.GenreStat{Genre: genre, Count: counts[genre]})
	}

	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})

	return stats, nil
}

// HoursListened estimates the user's listening hours for the current year:
// the durations of the most recent plays (at most 50) are summed and scaled
// by 365 over the elapsed days of the year, floored. No recent plays means 0.
func (c *Client) HoursListened(ctx context.Context, token string) (int, error) {
	items, err := c.recentlyPlayed(ctx, token)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	totalMS := 0
	for _, item := range items {
		totalMS += item.Track.DurationMS
	}

	recentHours := float64(totalMS) / float64(time.Hour/time.Millisecond)
	dayOfYear := c.now().YearDay()

	return int(recentHours * 365 / float64(dayOfYear)), nil
}

// ArtistsDiscovered counts the user's all-time top artists (up to 50).
func (c *Client) ArtistsDiscovered(ctx context.Context, token string) (int, error) {
	artists, err := c.TopArtists(ctx, token, 50, "long_term")
	if err != nil {
		return 0, err
	}
	return len(artists), nil
}

// PlaylistsCreatedIn counts playlists created by the user in the target year:
// the owner must not be the platform placeholder account and the snapshot
// timestamp must fall in that year. Unparseable snapshots are excluded.
func (c *Client) PlaylistsCreatedIn(ctx context.Context, token string, year int) (int, error) {
	endpoint := "/me/playlists?limit=50"

	var page pagedPlaylists
	if err := c.get(ctx, token, endpoint, &page); err != nil {
		return 0, err
	}

	count := 0
	for _, p := range page.Items {
		if p.Owner.ID == "" || p.Owner.ID == placeholderOwner {
			continue
		}
		snapshot, err := time.Parse(time.RFC3339, p.SnapshotID)
		if err != nil {
			continue
		}
		if snapshot.Year() == year {
			count++
		}
	}

	return count, nil
}

// RandomTracks picks 5 artists at random from the user's top 20, pools each
// artist's top tracks, shuffles the pool, and returns the first 5.
// Non-deterministic by design. Individual artist lookups that fail are
// skipped; the pool degrades instead of the call aborting.
func (c *Client) RandomTracks(ctx context.Context, token, timeRange string) ([]models.Track, error) {
	artists, err := c.TopArtists(ctx, token, randomArtistPool, timeRange)
	if err != nil {
		return nil, err
	}

	c.shuffle(len(artists), func(i, j int) {
		artists[i], artists[j] = artists[j], artists[i]
	})
	if len(artists) > randomArtistCount {
		artists = artists[:randomArtistCount]
	}

	var (
		mu   sync.Mutex
		pool []models.Track
		wg   sync.WaitGroup
	)
	for _, artist := range artists {
		wg.Add(1)
		go func(artistID string) {
			defer wg.Done()
			tracks, err := c.ArtistTopTracks(ctx, token, artistID)
			if err != nil {
				return
			}
			mu.Lock()
			pool = append(pool, tracks...)
			mu.Unlock()
		}(artist.ID)
	}
	wg.Wait()

	c.shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	if len(pool) > randomTrackCount {
		pool = pool[:randomTrackCount]
	}
	if pool == nil {
		pool = []models.Track{}
	}

	return pool, nil
}
