package query

import (
	"context"
	"errors"

	"github.com/tunegraph/tunegraph/internal/shared"
)

// invoke runs one upstream call with automatic one-shot refresh-and-retry.
//
// The call is attempted with the session's current access token. On an
// expired-token failure the session refreshes once and the call is retried
// once with the new token; any later failure, including a second expiry,
// propagates unchanged. Non-auth failures propagate immediately without a
// refresh. At most one refresh happens per invocation, so a permanently
// invalid refresh token can never loop.
func invoke[T any](ctx context.Context, r Refresher, sess *Session, call func(ctx context.Context, token string) (T, error)) (T, error) {
	token := sess.AccessToken()

	result, err := call(ctx, token)
	if err == nil || !errors.Is(err, shared.ErrTokenExpired) {
		return result, err
	}

	fresh, refreshErr := sess.refreshFrom(ctx, r, token)
	if refreshErr != nil {
		var zero T
		return zero, refreshErr
	}

	return call(ctx, fresh)
}
