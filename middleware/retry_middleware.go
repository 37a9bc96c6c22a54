package middleware

import (
	"context"
	"time"

	"github.com/levenlabs/go-llog"

	"remotecall/message"
)

// Retry re-issues a call that failed with a transport error, backing off
// exponentially between attempts. Remote errors carried inside a response
// envelope are not retried; the backend already answered.
func Retry(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			resp, err := next(ctx, req)
			for i := 0; i < maxRetries && err != nil; i++ {
				llog.Debug("retrying remote call", llog.KV{
					"method":  req.Method,
					"attempt": i + 1,
					"err":     err,
				})

				select {
				case <-time.After(baseDelay * time.Duration(1<<i)):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				resp, err = next(ctx, req)
			}
			return resp, err
		}
	}
}
