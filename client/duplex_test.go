package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remotecall/message"
	"remotecall/registry"
	"remotecall/transport"
)

// fakeConn is a scripted duplex connection. With echo set, every request
// envelope written is answered with a response envelope carrying the same
// payload.
type fakeConn struct {
	mu      sync.Mutex
	sent    []string
	inbound chan string
	closed  chan struct{}
	once    sync.Once
	closes  atomic.Int32
	echo    bool
}

func newFakeConn(echo bool) *fakeConn {
	return &fakeConn{
		inbound: make(chan string, 16),
		closed:  make(chan struct{}),
		echo:    echo,
	}
}

func (c *fakeConn) Send(text string) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}
	c.mu.Lock()
	c.sent = append(c.sent, text)
	c.mu.Unlock()

	if c.echo {
		var req message.Request
		if err := json.Unmarshal([]byte(text), &req); err == nil && len(req.Params) > 0 {
			payload := req.Params[0]
			frame, _ := json.Marshal(message.Response{Result: &payload})
			c.inbound <- string(frame)
		}
	}
	return nil
}

func (c *fakeConn) Receive() (string, error) {
	// Deliver buffered frames before reporting closure.
	select {
	case s := <-c.inbound:
		return s, nil
	default:
	}
	select {
	case s := <-c.inbound:
		return s, nil
	case <-c.closed:
		return "", transport.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) sentFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

// slowConn delays every write, so teardown can arrive while a flush is
// still in flight.
type slowConn struct {
	*fakeConn
	delay time.Duration
}

func (c *slowConn) Send(text string) error {
	time.Sleep(c.delay)
	return c.fakeConn.Send(text)
}

func duplexAgent(conn transport.Conn) (*Agent, *fakeTransport) {
	ft := &fakeTransport{conn: conn}
	reg := registry.NewLocalRegistry()
	reg.Bind("stream", registry.Binding{Path: "/api/stream", Verb: registry.VerbWS})
	return New(reg, ft, "http://backend"), ft
}

func TestDuplexEchoExchange(t *testing.T) {
	fc := newFakeConn(true)
	agent, _ := duplexAgent(fc)

	var replies []string
	err := OpenDuplex(context.Background(), agent, "stream", func(out chan<- string, in <-chan string) error {
		defer close(out)
		for _, msg := range []string{"one", "two", "three"} {
			out <- msg
			reply, ok := <-in
			if !ok {
				return errors.New("inbound closed early")
			}
			replies = append(replies, reply)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, replies)
	assert.Equal(t, int32(1), fc.closes.Load(), "connection must close exactly once")
}

// Scenario: send three values, close the outbound channel. All three
// must be on the wire, in order, before the session tears down.
func TestDuplexOrderedWritesThenClose(t *testing.T) {
	fc := newFakeConn(false)
	agent, _ := duplexAgent(fc)

	err := OpenDuplex(context.Background(), agent, "stream", func(out chan<- string, in <-chan string) error {
		out <- "one"
		out <- "two"
		out <- "three"
		close(out)
		for range in {
		}
		return nil
	})
	require.NoError(t, err)

	frames := fc.sentFrames()
	require.Len(t, frames, 3)
	for i, want := range []string{`"one"`, `"two"`, `"three"`} {
		var req message.Request
		require.NoError(t, json.Unmarshal([]byte(frames[i]), &req))
		assert.Equal(t, duplexRequestID, req.ID)
		assert.Equal(t, "/api/stream", req.Method)
		require.Len(t, req.Params, 1)
		assert.Equal(t, want, req.Params[0])
	}
	assert.Equal(t, int32(1), fc.closes.Load())
}

// The handler returns the moment it closes out, without waiting on in.
// Values it already enqueued must still reach the connection before the
// connection closes, even with a write in flight at teardown time.
func TestDuplexFlushesEnqueuedValuesOnReturn(t *testing.T) {
	fc := newFakeConn(false)
	agent, _ := duplexAgent(&slowConn{fakeConn: fc, delay: 2 * time.Millisecond})

	err := OpenDuplex(context.Background(), agent, "stream", func(out chan<- string, in <-chan string) error {
		out <- "one"
		out <- "two"
		out <- "three"
		close(out)
		return nil
	})
	require.NoError(t, err)

	frames := fc.sentFrames()
	require.Len(t, frames, 3)
	var req message.Request
	require.NoError(t, json.Unmarshal([]byte(frames[2]), &req))
	assert.Equal(t, []string{`"three"`}, req.Params)
	assert.Equal(t, int32(1), fc.closes.Load())
}

func TestDuplexHandlerErrorReturned(t *testing.T) {
	fc := newFakeConn(false)
	agent, _ := duplexAgent(fc)

	boom := errors.New("boom")
	err := OpenDuplex(context.Background(), agent, "stream", func(out chan<- string, in <-chan string) error {
		return boom
	})
	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), fc.closes.Load())
}

func TestDuplexHandlerPanicRecovered(t *testing.T) {
	fc := newFakeConn(false)
	agent, _ := duplexAgent(fc)

	err := OpenDuplex(context.Background(), agent, "stream", func(out chan<- string, in <-chan string) error {
		panic("kaboom")
	})
	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, int32(1), fc.closes.Load())
}

func TestDuplexInboundDelivery(t *testing.T) {
	fc := newFakeConn(false)
	for _, payload := range []string{`"a"`, `"b"`} {
		p := payload
		frame, _ := json.Marshal(message.Response{Result: &p})
		fc.inbound <- string(frame)
	}
	agent, _ := duplexAgent(fc)

	var got []string
	err := OpenDuplex(context.Background(), agent, "stream", func(out chan<- string, in <-chan string) error {
		got = append(got, <-in, <-in)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, int32(1), fc.closes.Load())
}

func TestDuplexUnregistered(t *testing.T) {
	ft := &fakeTransport{conn: newFakeConn(false)}
	agent := New(registry.NewLocalRegistry(), ft, "http://backend")

	err := OpenDuplex(context.Background(), agent, "ghost", func(out chan<- string, in <-chan string) error {
		t.Fatal("handler must not run")
		return nil
	})
	assert.ErrorIs(t, err, registry.ErrUnregisteredMethod)
	assert.Zero(t, ft.opens)
}

func TestDuplexRejectsRequestResponseMethod(t *testing.T) {
	ft := &fakeTransport{conn: newFakeConn(false)}
	reg := registry.NewLocalRegistry()
	reg.Bind("greet", registry.Binding{Path: "/api/greet", Verb: registry.VerbPost})
	agent := New(reg, ft, "http://backend")

	err := OpenDuplex(context.Background(), agent, "greet", func(out chan<- string, in <-chan string) error {
		return nil
	})
	assert.Error(t, err)
	assert.Zero(t, ft.opens)
}

func TestDuplexOpenFailurePropagates(t *testing.T) {
	fc := newFakeConn(false)
	ft := &fakeTransport{conn: fc, openErr: errors.New("dial refused")}
	reg := registry.NewLocalRegistry()
	reg.Bind("stream", registry.Binding{Path: "/api/stream", Verb: registry.VerbWS})
	agent := New(reg, ft, "http://backend")

	err := OpenDuplex(context.Background(), agent, "stream", func(out chan<- string, in <-chan string) error {
		t.Fatal("handler must not run")
		return nil
	})
	assert.Error(t, err)
	assert.Zero(t, fc.closes.Load())
}
