package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/levenlabs/go-llog"

	"remotecall/message"
)

// StreamHandler serves one duplex session. It reads the raw serialized
// payloads the client sent from in and writes raw serialized results to
// out; the surrounding machinery handles envelopes and framing. The
// handler must close out when it has nothing more to send; in is closed
// when the client side stops.
type StreamHandler func(ctx context.Context, in <-chan string, out chan<- string) error

// HandleDuplex registers a duplex endpoint at path. The client reaches it
// with a websocket upgrade request.
func (s *Server) HandleDuplex(path string, h StreamHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[path] = h
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func isUpgrade(r *http.Request) bool {
	return websocket.IsWebSocketUpgrade(r)
}

// serveStream runs the server half of a duplex session: a reader feeding
// inbound payloads, a writer draining the handler's outbound payloads,
// and the handler itself. Same teardown rule as the client side: the
// first to finish ends the session, and the socket closes exactly once.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, h StreamHandler) {
	kv := llog.KV{"path": r.URL.Path}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		kv["err"] = err
		llog.Warn("websocket upgrade failed", kv)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	in := make(chan string)
	out := make(chan string)
	done := make(chan struct{})

	var closeOnce sync.Once
	stop := func() {
		cancel()
		closeOnce.Do(func() { ws.Close() })
	}
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)

	// Closed when the writer has exited, meaning no write is in flight.
	writerDone := make(chan struct{})

	// Reader: unwrap request envelopes into raw payloads.
	go func() {
		defer wg.Done()
		defer stop()
		defer close(in)

		for {
			_, frame, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var req message.Request
			if err := json.Unmarshal(frame, &req); err != nil {
				kv["err"] = err
				llog.Warn("duplex frame is not a request envelope", kv)
				continue
			}
			payload := ""
			if len(req.Params) > 0 {
				payload = req.Params[0]
			}
			select {
			case in <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Writer: wrap raw payloads in response envelopes, in order.
	go func() {
		defer wg.Done()
		defer stop()
		defer close(writerDone)
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
			case payload, ok := <-out:
				if !ok {
					return
				}
				resp := message.Response{Result: &payload}
				frame, err := json.Marshal(resp)
				if err != nil {
					kv["err"] = err
					llog.Error("duplex response marshal failed", kv)
					return
				}
				if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := h(ctx, in, out); err != nil {
		kv["err"] = err
		llog.Warn("duplex stream handler failed", kv)
	}

	// Replies the handler enqueued are already with the writer (out is
	// unbuffered); let its in-flight write finish before the socket
	// closes. cancel unblocks a writer parked on the outbound channel.
	cancel()
	<-writerDone
	stop()
	wg.Wait()
	close(done)
}
