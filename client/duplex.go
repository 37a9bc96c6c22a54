package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/levenlabs/go-llog"

	"remotecall/codec"
	"remotecall/message"
	"remotecall/registry"
	"remotecall/transport"
)

// Duplex sessions correlate responses by connection, not by id, so every
// outbound envelope carries the same placeholder.
const duplexRequestID = 0

// HandlerError wraps an error (or recovered panic) raised inside the
// application-supplied duplex handler. It is logged and returned to the
// session's caller, who decides whether to retry or escalate; it never
// crashes the process.
type HandlerError struct {
	Method registry.Method
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("client: %s: duplex handler: %v", e.Method, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// DuplexHandler is the application side of a duplex session. It writes
// values to out and reads decoded values from in; it defines the
// session's protocol and decides when the exchange is finished.
//
// The handler must close out when it has nothing more to send; that is
// the session's graceful shutdown signal. Returning from the handler also
// ends the session, gracefully or not.
type DuplexHandler[IN any, OUT any] func(out chan<- IN, in <-chan OUT) error

// OpenDuplex opens a persistent connection to the endpoint m resolves to
// and runs a duplex session over it: a sender writing the handler's
// outbound values in order, a receiver delivering decoded inbound values
// in arrival order, and the handler itself.
//
// Whichever of the three finishes first, normally or by error, tears the
// whole session down: both channels end up closed and the connection is
// closed exactly once. Values enqueued before the handler closed out are
// written to the connection before it closes. Connection-establishment failures return before
// anything starts. Transport errors inside a running session terminate it
// and are logged, not returned; a handler failure is returned as a
// *HandlerError.
func OpenDuplex[IN any, OUT any](ctx context.Context, a *Agent, m registry.Method, handler DuplexHandler[IN, OUT]) error {
	binding, err := a.Resolve(m)
	if err != nil {
		return err
	}
	if binding.Verb != registry.VerbWS {
		return fmt.Errorf("client: %s is not a duplex method", m)
	}
	target, err := a.endpointURL(m, binding)
	if err != nil {
		return err
	}

	conn, err := a.transport.Open(ctx, target)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make(chan IN)
	in := make(chan OUT)
	done := make(chan struct{})

	var closeOnce sync.Once
	// stop is the single teardown path: it cancels the other tasks and
	// closes the connection, which also unblocks a receiver parked in
	// Receive. The sync.Once keeps the close-exactly-once invariant no
	// matter which task ends first or how often stop runs.
	stop := func() {
		cancel()
		closeOnce.Do(func() { conn.Close() })
	}
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)

	// Closed when the sender has exited, meaning no write is in flight.
	senderDone := make(chan struct{})

	// Sender: serialize and write outbound values in enqueue order.
	go func() {
		defer wg.Done()
		defer stop()
		defer close(senderDone)
		// Once the sender is gone nothing reads out, so a handler still
		// sending must not block forever: absorb its values until it
		// closes out or the session is fully over.
		defer func() {
			go func() {
				for {
					select {
					case _, ok := <-out:
						if !ok {
							return
						}
					case <-done:
						return
					}
				}
			}()
		}()

		for {
			select {
			case v, ok := <-out:
				if !ok {
					// Outbound side closed by the handler: every value
					// enqueued before the close has been written.
					return
				}
				payload, err := codec.Encode(v)
				if err != nil {
					llog.Error("duplex outbound value not serializable", llog.KV{"method": m, "err": err})
					return
				}
				env := &message.Request{ID: duplexRequestID, Method: binding.Path, Params: []string{payload}}
				frame, err := env.Marshal()
				if err != nil {
					llog.Error("duplex envelope marshal failed", llog.KV{"method": m, "err": err})
					return
				}
				if err := conn.Send(frame); err != nil {
					if !errors.Is(err, transport.ErrClosed) {
						llog.Warn("duplex send failed", llog.KV{"method": m, "err": err})
					}
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Receiver: read frames, decode with the same fallback policy as
	// Call, deliver in arrival order.
	go func() {
		defer wg.Done()
		defer stop()
		defer close(in)

		for {
			frame, err := conn.Receive()
			if err != nil {
				// Graceful close and post-teardown reads are normal
				// loop-termination signals.
				if !errors.Is(err, transport.ErrClosed) && ctx.Err() == nil {
					llog.Warn("duplex receive failed", llog.KV{"method": m, "err": err})
				}
				return
			}
			resp, err := message.UnmarshalResponse(frame)
			if err != nil {
				llog.Warn("duplex frame is not a response envelope", llog.KV{"method": m, "err": err})
				continue
			}
			v, err := codec.DecodeValue[OUT](resultPayload(resp))
			if err != nil {
				llog.Warn("duplex payload decode failed", llog.KV{"method": m, "err": err})
				continue
			}
			select {
			case in <- v:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Handler: runs on the calling goroutine; its return is the third
	// termination trigger.
	herr := runHandler(handler, out, in)

	// Every value the handler enqueued has already been handed to the
	// sender (out is unbuffered), so wait for the sender's in-flight
	// write before closing the connection. cancel unblocks a sender
	// parked on the outbound channel when the handler never closed it.
	cancel()
	<-senderDone
	stop()
	wg.Wait()
	close(done)

	if herr != nil {
		llog.Error("duplex handler failed", llog.KV{"method": m, "err": herr})
		return &HandlerError{Method: m, Err: herr}
	}
	return nil
}

// runHandler invokes the handler, converting a panic into an error so one
// misbehaving session cannot crash the process.
func runHandler[IN any, OUT any](h DuplexHandler[IN, OUT], out chan<- IN, in <-chan OUT) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(out, in)
}
