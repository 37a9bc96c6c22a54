// Package middleware wraps the request/response path of the call agent.
// The agent core itself performs exactly one round trip with no retries
// or timeouts; anything beyond that is layered on here, opt-in.
package middleware

import (
	"context"

	"remotecall/message"
)

type HandlerFunc func(ctx context.Context, req *message.Request) (*message.Response, error)

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one. Chain(A, B, C)(h) runs as
// A(B(C(h))): A sees the request first and the response last.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
