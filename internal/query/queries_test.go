package query

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tunegraph/tunegraph/internal/models"
	"github.com/tunegraph/tunegraph/internal/shared"
	"github.com/tunegraph/tunegraph/internal/spotify"
)

// fakeProfileStore records cache writes in memory.
type fakeProfileStore struct {
	mu        sync.Mutex
	upserts   []models.User
	saved     map[string][]models.Track
	upsertErr error
	saveErr   error
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{saved: map[string][]models.Track{}}
}

func (f *fakeProfileStore) Get(id string) (*models.CachedUser, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProfileStore) Upsert(user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, user)
	return nil
}

func (f *fakeProfileStore) SaveTopTracks(id string, tracks []models.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved[id] = tracks
	return nil
}

// newTestQueries wires Queries against a fake upstream, returning the request
// counter alongside.
func newTestQueries(t *testing.T, mux *http.ServeMux, store ProfileStore) (*Queries, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	counted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		mux.ServeHTTP(w, r)
	})

	server := httptest.NewServer(counted)
	t.Cleanup(server.Close)

	client := spotify.NewClient(server.Client(), server.URL)
	refresher := &fakeRefresher{creds: spotify.Credentials{AccessToken: "fresh", RefreshToken: "refresh"}}

	return NewQueries(client, refresher, store, shared.NewLogger(io.Discard)), &hits
}

func profileHandler(mux *http.ServeMux) {
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "user1", "display_name": "Test", "followers": {"total": 5}, "images": []}`))
	})
}

func TestQueries(t *testing.T) {
	ctx := context.Background()

	t.Run("Unauthenticated", func(t *testing.T) {
		queries, hits := newTestQueries(t, http.NewServeMux(), nil)

		cases := map[string]func(sess *Session) error{
			"Me":              func(sess *Session) error { _, err := queries.Me(ctx, sess); return err },
			"TopTracks":       func(sess *Session) error { _, err := queries.TopTracks(ctx, sess, 0, ""); return err },
			"TopArtists":      func(sess *Session) error { _, err := queries.TopArtists(ctx, sess, 0, ""); return err },
			"AnalyzeTrack":    func(sess *Session) error { _, err := queries.AnalyzeTrack(ctx, sess, "t1"); return err },
			"GenreStats":      func(sess *Session) error { _, err := queries.GenreStats(ctx, sess, "", 0); return err },
			"UserStats":       func(sess *Session) error { _, err := queries.UserStats(ctx, sess, 2024); return err },
			"PlaylistsStats":  func(sess *Session) error { _, err := queries.PlaylistsStats(ctx, sess, 0, 0); return err },
			"FollowedArtists": func(sess *Session) error { _, err := queries.FollowedArtists(ctx, sess, 0, ""); return err },
			"RandomTracks":    func(sess *Session) error { _, err := queries.RandomRecommendedTracks(ctx, sess); return err },
		}

		for name, call := range cases {
			t.Run(name+" Missing Access Token", func(t *testing.T) {
				if err := call(NewSession("", "refresh")); !errors.Is(err, shared.ErrNotAuthenticated) {
					t.Errorf("expected ErrNotAuthenticated, got %v", err)
				}
			})
			t.Run(name+" Missing Refresh Token", func(t *testing.T) {
				if err := call(NewSession("access", "")); !errors.Is(err, shared.ErrNotAuthenticated) {
					t.Errorf("expected ErrNotAuthenticated, got %v", err)
				}
			})
		}

		if hits.Load() != 0 {
			t.Errorf("expected zero upstream calls, got %d", hits.Load())
		}
	})

	t.Run("Me", func(t *testing.T) {
		t.Run("Caches Profile", func(t *testing.T) {
			mux := http.NewServeMux()
			profileHandler(mux)

			store := newFakeProfileStore()
			queries, _ := newTestQueries(t, mux, store)

			user, err := queries.Me(ctx, NewSession("access", "refresh"))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if user.ID != "user1" {
				t.Errorf("expected user1, got %s", user.ID)
			}
			if len(store.upserts) != 1 || store.upserts[0].ID != "user1" {
				t.Errorf("expected profile cached, got %+v", store.upserts)
			}
		})

		t.Run("Cache Failure Is Swallowed", func(t *testing.T) {
			mux := http.NewServeMux()
			profileHandler(mux)

			store := newFakeProfileStore()
			store.upsertErr = errors.New("disk full")
			queries, _ := newTestQueries(t, mux, store)

			if _, err := queries.Me(ctx, NewSession("access", "refresh")); err != nil {
				t.Errorf("expected cache failure swallowed, got %v", err)
			}
		})

		t.Run("Refreshes Expired Token", func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Authorization") == "Bearer stale" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.Write([]byte(`{"id": "user1", "followers": {"total": 0}, "images": []}`))
			})

			queries, hits := newTestQueries(t, mux, nil)

			if _, err := queries.Me(ctx, NewSession("stale", "refresh")); err != nil {
				t.Fatalf("expected refresh-and-retry to succeed, got %v", err)
			}
			if hits.Load() != 2 {
				t.Errorf("expected 2 upstream calls, got %d", hits.Load())
			}
		})
	})

	t.Run("TopTracks", func(t *testing.T) {
		t.Run("Success Saves Snapshot", func(t *testing.T) {
			mux := http.NewServeMux()
			profileHandler(mux)
			mux.HandleFunc("/me/top/tracks", func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("limit") != "20" || r.URL.Query().Get("time_range") != "medium_term" {
					t.Errorf("expected defaults applied, got %s", r.URL.RawQuery)
				}
				w.Write([]byte(`{"items": [{"id": "t1", "name": "Song"}]}`))
			})

			store := newFakeProfileStore()
			queries, _ := newTestQueries(t, mux, store)

			tracks, err := queries.TopTracks(ctx, NewSession("access", "refresh"), 0, "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 1 {
				t.Fatalf("expected 1 track, got %d", len(tracks))
			}
			if len(store.saved["user1"]) != 1 {
				t.Errorf("expected snapshot saved, got %+v", store.saved)
			}
		})

		t.Run("Upstream Failure Degrades To Empty", func(t *testing.T) {
			mux := http.NewServeMux()
			profileHandler(mux)
			mux.HandleFunc("/me/top/tracks", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			})

			queries, _ := newTestQueries(t, mux, nil)

			tracks, err := queries.TopTracks(ctx, NewSession("access", "refresh"), 20, "medium_term")
			if err != nil {
				t.Fatalf("expected degradation, got %v", err)
			}
			if tracks == nil || len(tracks) != 0 {
				t.Errorf("expected empty non-nil list, got %v", tracks)
			}
		})

		t.Run("Profile Failure Degrades To Empty", func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			})

			queries, _ := newTestQueries(t, mux, nil)

			tracks, err := queries.TopTracks(ctx, NewSession("access", "refresh"), 20, "medium_term")
			if err != nil {
				t.Fatalf("expected degradation, got %v", err)
			}
			if len(tracks) != 0 {
				t.Errorf("expected empty list, got %v", tracks)
			}
		})
	})

	t.Run("AnalyzeTrack Maps Not Found", func(t *testing.T) {
		queries, _ := newTestQueries(t, http.NewServeMux(), nil)

		_, err := queries.AnalyzeTrack(ctx, NewSession("access", "refresh"), "missing")
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UserStats", func(t *testing.T) {
		statsMux := func(failLibrary bool) *http.ServeMux {
			mux := http.NewServeMux()
			mux.HandleFunc("/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"items": []}`))
			})
			mux.HandleFunc("/me/top/artists", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"items": [{"id": "a1"}, {"id": "a2"}]}`))
			})
			mux.HandleFunc("/me/tracks", func(w http.ResponseWriter, r *http.Request) {
				if failLibrary {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				w.Write([]byte(`{"total": 321}`))
			})
			mux.HandleFunc("/me/playlists", func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"items": [{"id": "p1", "owner": {"id": "user1"}, "snapshot_id": "2024-03-03T00:00:00Z"}]}`))
			})
			return mux
		}

		t.Run("Aggregates All Four Metrics", func(t *testing.T) {
			queries, _ := newTestQueries(t, statsMux(false), nil)

			stats, err := queries.UserStats(ctx, NewSession("access", "refresh"), 2024)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if stats.HoursListened != 0 {
				t.Errorf("expected 0 hours, got %d", stats.HoursListened)
			}
			if stats.ArtistsDiscovered != 2 {
				t.Errorf("expected 2 artists, got %d", stats.ArtistsDiscovered)
			}
			if stats.SongsInLibrary != 321 {
				t.Errorf("expected 321 songs, got %d", stats.SongsInLibrary)
			}
			if stats.PlaylistsCreated != 1 {
				t.Errorf("expected 1 playlist, got %d", stats.PlaylistsCreated)
			}
		})

		t.Run("Any Failure Fails The Whole Query", func(t *testing.T) {
			queries, _ := newTestQueries(t, statsMux(true), nil)

			_, err := queries.UserStats(ctx, NewSession("access", "refresh"), 2024)
			if !errors.Is(err, shared.ErrInternal) {
				t.Errorf("expected ErrInternal, got %v", err)
			}
		})
	})

	t.Run("GenreStats", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/me/top/artists", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"items": [{"id": "a1", "genres": ["rock"]}, {"id": "a2", "genres": ["rock", "pop"]}]}`))
		})

		queries, _ := newTestQueries(t, mux, nil)

		stats, err := queries.GenreStats(ctx, NewSession("access", "refresh"), "", 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(stats) != 2 || stats[0].Genre != "rock" || stats[0].Count != 2 {
			t.Errorf("unexpected stats: %+v", stats)
		}
	})

	t.Run("FollowedArtists", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/me/following", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"artists": {"total": 3, "items": [{"id": "a1"}]}}`))
		})

		queries, _ := newTestQueries(t, mux, nil)

		followed, err := queries.FollowedArtists(ctx, NewSession("access", "refresh"), 0, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if followed.Total != 3 {
			t.Errorf("expected total 3, got %d", followed.Total)
		}
	})
}
