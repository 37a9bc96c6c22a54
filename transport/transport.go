// Package transport performs the network I/O for remote calls: a single
// HTTP request/response round trip, or a persistent websocket connection
// for duplex sessions.
//
// This layer adds no retries and enforces no timeouts. Failures propagate
// unchanged to the caller, and deadlines come in through the context.
package transport

import (
	"context"
	"errors"

	"remotecall/message"
	"remotecall/registry"
)

// ErrClosed is returned by Send and Receive once the connection has been
// closed, locally or by the peer. Duplex loops treat it as a normal
// termination signal, not a failure.
var ErrClosed = errors.New("transport: connection closed")

// Client issues requests on behalf of the call layer.
type Client interface {
	// RoundTrip sends one request envelope to url with the given verb and
	// returns the parsed response envelope.
	RoundTrip(ctx context.Context, url string, verb registry.Verb, req *message.Request) (*message.Response, error)

	// Open establishes a persistent duplex connection to url.
	Open(ctx context.Context, url string) (Conn, error)
}

// Conn is a duplex text-frame connection. A Conn is exclusively owned by
// one session: only that session's sender and receiver touch it, and both
// stop once it is closed.
type Conn interface {
	// Send writes one text frame. Returns ErrClosed after closure.
	Send(text string) error

	// Receive blocks for the next text frame. Returns ErrClosed on
	// end-of-stream or after closure.
	Receive() (string, error)

	// Close tears the connection down. Safe to call more than once; only
	// the first call has any effect.
	Close() error
}
