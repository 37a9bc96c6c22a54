package middleware

import (
	"context"
	"time"

	"remotecall/message"
)

// Timeout bounds each call with a context deadline. The transport honors
// context cancellation, so an expired deadline aborts the round trip.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, req)
		}
	}
}
