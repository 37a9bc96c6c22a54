package middleware

import (
	"context"
	"time"

	"github.com/levenlabs/go-llog"

	"remotecall/message"
)

// Logging logs every call with its target, duration, and outcome.
func Logging() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) (*message.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			kv := llog.KV{
				"method":   req.Method,
				"params":   len(req.Params),
				"duration": time.Since(start).String(),
			}
			switch {
			case err != nil:
				kv["err"] = err
				llog.Warn("remote call failed", kv)
			case resp.Error != nil:
				kv["remoteErr"] = *resp.Error
				llog.Warn("remote call returned error", kv)
			default:
				llog.Debug("remote call completed", kv)
			}
			return resp, err
		}
	}
}
