package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"remotecall/message"
)

// ErrRateLimited is returned when a call is rejected by RateLimit.
var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimit rejects calls beyond the configured rate using a token
// bucket of the given rate and burst.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}
