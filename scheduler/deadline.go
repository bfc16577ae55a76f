package scheduler

import (
	"context"
	"time"
)

type softDeadlineKey struct{}

// WithSoftDeadline marks the time after which no new batch or term may start.
// Work already in flight is not interrupted.
func WithSoftDeadline(ctx context.Context, at time.Time) context.Context {
	return context.WithValue(ctx, softDeadlineKey{}, at)
}

// SoftExpired reports whether ctx carries a soft deadline that has passed.
func SoftExpired(ctx context.Context) bool {
	at, ok := ctx.Value(softDeadlineKey{}).(time.Time)
	return ok && !time.Now().Before(at)
}
