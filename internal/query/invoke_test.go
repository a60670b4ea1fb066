package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tunegraph/tunegraph/internal/shared"
	"github.com/tunegraph/tunegraph/internal/spotify"
)

// fakeRefresher counts refreshes and hands out sequential access tokens.
type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	creds spotify.Credentials
	err   error
}

func (f *fakeRefresher) Refresh(ctx context.Context, refreshToken string) (spotify.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return spotify.Credentials{}, f.err
	}
	return f.creds, nil
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestInvoke(t *testing.T) {
	ctx := context.Background()

	t.Run("Success Without Refresh", func(t *testing.T) {
		refresher := &fakeRefresher{}
		sess := NewSession("access", "refresh")

		result, err := invoke(ctx, refresher, sess, func(ctx context.Context, token string) (string, error) {
			return "ok:" + token, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result != "ok:access" {
			t.Errorf("expected result with original token, got %s", result)
		}
		if refresher.count() != 0 {
			t.Errorf("expected no refresh, got %d", refresher.count())
		}
	})

	t.Run("Expired Token Refreshes Once And Retries", func(t *testing.T) {
		refresher := &fakeRefresher{creds: spotify.Credentials{AccessToken: "fresh", RefreshToken: "refresh"}}
		sess := NewSession("stale", "refresh")

		var calls int
		result, err := invoke(ctx, refresher, sess, func(ctx context.Context, token string) (string, error) {
			calls++
			if token == "stale" {
				return "", shared.ErrTokenExpired
			}
			return "ok:" + token, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result != "ok:fresh" {
			t.Errorf("expected retry with fresh token, got %s", result)
		}
		if calls != 2 {
			t.Errorf("expected 2 call attempts, got %d", calls)
		}
		if refresher.count() != 1 {
			t.Errorf("expected exactly 1 refresh, got %d", refresher.count())
		}
		if sess.AccessToken() != "fresh" {
			t.Errorf("expected session updated, got %s", sess.AccessToken())
		}
	})

	t.Run("Non-Auth Failure Skips Refresh", func(t *testing.T) {
		refresher := &fakeRefresher{}
		sess := NewSession("access", "refresh")

		_, err := invoke(ctx, refresher, sess, func(ctx context.Context, token string) (int, error) {
			return 0, shared.ErrNotFound
		})
		if !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if refresher.count() != 0 {
			t.Errorf("expected no refresh on non-auth failure, got %d", refresher.count())
		}
	})

	t.Run("Second Expiry Propagates Without Second Refresh", func(t *testing.T) {
		refresher := &fakeRefresher{creds: spotify.Credentials{AccessToken: "fresh", RefreshToken: "refresh"}}
		sess := NewSession("stale", "refresh")

		_, err := invoke(ctx, refresher, sess, func(ctx context.Context, token string) (int, error) {
			return 0, shared.ErrTokenExpired
		})
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if refresher.count() != 1 {
			t.Errorf("expected exactly 1 refresh, got %d", refresher.count())
		}
	})

	t.Run("Refresh Failure Propagates", func(t *testing.T) {
		refresher := &fakeRefresher{err: shared.ErrRefreshFailed}
		sess := NewSession("stale", "revoked")

		_, err := invoke(ctx, refresher, sess, func(ctx context.Context, token string) (int, error) {
			return 0, shared.ErrTokenExpired
		})
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})

	t.Run("Rotated Refresh Token Is Kept", func(t *testing.T) {
		refresher := &fakeRefresher{creds: spotify.Credentials{AccessToken: "fresh", RefreshToken: "rotated"}}
		sess := NewSession("stale", "refresh")

		_, err := invoke(ctx, refresher, sess, func(ctx context.Context, token string) (int, error) {
			if token == "stale" {
				return 0, shared.ErrTokenExpired
			}
			return 1, nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		sess.mu.Lock()
		rotated := sess.refresh
		sess.mu.Unlock()
		if rotated != "rotated" {
			t.Errorf("expected rotated refresh token in session, got %s", rotated)
		}
	})

	t.Run("Concurrent Siblings Share One Refresh", func(t *testing.T) {
		refresher := &fakeRefresher{creds: spotify.Credentials{AccessToken: "fresh", RefreshToken: "refresh"}}
		sess := NewSession("stale", "refresh")

		var (
			wg       sync.WaitGroup
			failures atomic.Int32
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := invoke(ctx, refresher, sess, func(ctx context.Context, token string) (string, error) {
					if token == "stale" {
						return "", shared.ErrTokenExpired
					}
					return token, nil
				})
				if err != nil {
					failures.Add(1)
				}
			}()
		}
		wg.Wait()

		if failures.Load() != 0 {
			t.Errorf("expected all siblings to succeed, got %d failures", failures.Load())
		}
		if refresher.count() != 1 {
			t.Errorf("expected exactly 1 refresh across siblings, got %d", refresher.count())
		}
	})
}
