package testutil

import (
	"context"
	"time"

	"beacon/pkg/requestcontext"
)

// FixedTime returns a context whose request clock is pinned to t.
func FixedTime(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}
