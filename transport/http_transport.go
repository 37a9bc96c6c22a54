package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"remotecall/message"
	"remotecall/registry"
)

// HTTPTransport is the default Client implementation: request/response
// calls over HTTP, duplex connections over websocket (see ws_conn.go).
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps the given http.Client. Pass nil to use
// http.DefaultClient.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client}
}

// RoundTrip performs one request/response exchange. POST, PUT and OPTIONS
// carry the envelope as the JSON body; GET and DELETE have no body, so the
// id and the positional parameters travel in the query string instead.
func (t *HTTPTransport) RoundTrip(ctx context.Context, target string, verb registry.Verb, req *message.Request) (*message.Response, error) {
	if verb == registry.VerbWS {
		return nil, fmt.Errorf("transport: verb %s needs a duplex connection, not a round trip", verb)
	}

	httpReq, err := t.buildRequest(ctx, target, verb, req)
	if err != nil {
		return nil, err
	}

	res, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("transport: %s %s: %s", verb, target, res.Status)
	}

	return message.UnmarshalResponse(string(body))
}

func (t *HTTPTransport) buildRequest(ctx context.Context, target string, verb registry.Verb, req *message.Request) (*http.Request, error) {
	if verb == registry.VerbGet || verb == registry.VerbDelete {
		u, err := url.Parse(target)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("id", strconv.Itoa(req.ID))
		for i, p := range req.Params {
			q.Set("p"+strconv.Itoa(i), p)
		}
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, string(verb), u.String(), nil)
	}

	payload, err := req.Marshal()
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, string(verb), target, bytes.NewReader([]byte(payload)))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}
