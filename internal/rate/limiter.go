// Package rate limits credential-guessing endpoints (login, forgot-password)
// per client IP.
package rate

import (
	"context"
	"time"
)

type Limiter interface {
	// Allow reports whether the caller identified by key may proceed, and if
	// not, how long to wait before retrying.
	Allow(ctx context.Context, key string, now time.Time) (bool, time.Duration, error)
}
