package transport

import (
	"context"
	"errors"
	"net"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
)

// Open dials a websocket connection to the given url. http and https
// schemes are rewritten to ws and wss; ws and wss pass through untouched.
// Establishment failures propagate to the caller; a session never starts
// on a connection that couldn't be opened.
func (t *HTTPTransport) Open(ctx context.Context, target string) (Conn, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return newWSConn(ws), nil
}

// wsConn adapts a gorilla websocket connection to the Conn interface.
// gorilla allows one concurrent writer, so Send takes a write lock; reads
// are issued only by the owning session's receiver, sequentially.
type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	once    sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

func (c *wsConn) Send(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		return asClosed(err)
	}
	return nil
}

func (c *wsConn) Receive() (string, error) {
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return "", asClosed(err)
		}
		// Binary frames are not part of the protocol; skip them.
		if msgType != websocket.TextMessage {
			continue
		}
		return string(data), nil
	}
}

// Close is idempotent: the first call closes the socket, later calls
// return nil.
func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		err = c.ws.Close()
	})
	return err
}

// asClosed maps the various "peer went away" failures onto ErrClosed so
// the session loops can treat them uniformly as end-of-stream.
func asClosed(err error) error {
	if err == nil {
		return nil
	}
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr),
		errors.Is(err, websocket.ErrCloseSent),
		errors.Is(err, net.ErrClosed):
		return ErrClosed
	}
	return err
}
