package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireReceive receives a value from c, failing the test if ctx expires
// first or c is closed.
//
// Safety: Must only be called from the Go routine that created `t`.
func RequireReceive[A any](ctx context.Context, t testing.TB, c <-chan A) A {
	t.Helper()
	select {
	case <-ctx.Done():
		require.Fail(t, "RequireReceive: context expired")
		var a A
		return a
	case a, ok := <-c:
		if !ok {
			require.Fail(t, "RequireReceive: channel closed")
		}
		return a
	}
}

// RequireClosed waits for c to be closed, failing the test if a value
// arrives instead or ctx expires.
//
// Safety: Must only be called from the Go routine that created `t`.
func RequireClosed[A any](ctx context.Context, t testing.TB, c <-chan A) {
	t.Helper()
	select {
	case <-ctx.Done():
		require.Fail(t, "RequireClosed: context expired")
	case a, ok := <-c:
		if ok {
			require.Failf(t, "RequireClosed: unexpected value", "%v", a)
		}
	}
}
