// Package server is the serving side of the remotecall wire protocol:
// request/response endpoints over HTTP and duplex endpoints over
// websocket. Handlers are plain functions registered per path; parameter
// decoding is positional, mirroring how the client serializes arguments.
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/levenlabs/go-llog"

	"remotecall/message"
)

// Server routes wire-protocol requests to registered handlers. It
// implements http.Handler and is mounted like any other.
type Server struct {
	mu       sync.RWMutex
	handlers map[string]*handler
	streams  map[string]StreamHandler
}

// NewServer returns a server with no endpoints registered.
func NewServer() *Server {
	return &Server{
		handlers: make(map[string]*handler),
		streams:  make(map[string]StreamHandler),
	}
}

// Handle registers a request/response endpoint at path. fn must be a
// function of up to five JSON-decodable parameters, optionally preceded
// by a context.Context, returning either error or (result, error).
func (s *Server) Handle(path string, fn any) error {
	h, err := newHandler(fn)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[path] = h
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	kv := llog.KV{"path": path, "verb": r.Method}

	s.mu.RLock()
	stream, isStream := s.streams[path]
	h, ok := s.handlers[path]
	s.mu.RUnlock()

	if isStream && isUpgrade(r) {
		s.serveStream(w, r, stream)
		return
	}
	if !ok {
		llog.Warn("no handler for path", kv)
		http.Error(w, "unknown endpoint", http.StatusNotFound)
		return
	}

	req, err := parseRequest(r)
	if err != nil {
		kv["err"] = err
		llog.Warn("malformed request envelope", kv)
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	resp := message.Response{ID: req.ID}
	result, err := h.call(r.Context(), req.Params)
	if err != nil {
		kv["err"] = err
		llog.Warn("handler returned error", kv)
		msg := err.Error()
		resp.Error = &msg
	} else if result != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			kv["err"] = err
			llog.Error("handler result not serializable", kv)
			http.Error(w, "unserializable result", http.StatusInternalServerError)
			return
		}
		raw := string(payload)
		resp.Result = &raw
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		kv["err"] = err
		llog.Warn("failed writing response", kv)
	}
}

// parseRequest reconstructs the request envelope. POST-like verbs carry
// it as the JSON body; GET and DELETE carry the id and positional
// parameters in the query string (see the client's HTTP transport).
func parseRequest(r *http.Request) (*message.Request, error) {
	if r.Method == http.MethodGet || r.Method == http.MethodDelete {
		q := r.URL.Query()
		req := &message.Request{Method: r.URL.Path}
		req.ID, _ = strconv.Atoi(q.Get("id"))
		for i := 0; ; i++ {
			p, ok := q["p"+strconv.Itoa(i)]
			if !ok {
				break
			}
			req.Params = append(req.Params, p[0])
		}
		return req, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	var req message.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
