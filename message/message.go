// Package message defines the JSON envelopes exchanged with the backend.
//
// The field names are part of the wire contract and must not change: a
// request
// carries an id, the target path, and an ordered list of serialized
// parameter strings; a response carries the raw result payload (itself a
// JSON document inside a string) or a remote error text.
package message

import "encoding/json"

// Request is the outgoing call envelope.
//
//   - ID correlates a response on the request/response path. Duplex
//     sessions correlate by connection instead and send a placeholder.
//   - Method is the target path, e.g. "/api/greet".
//   - Params holds each argument serialized independently, in positional
//     order. Absent arguments are omitted, not encoded as null.
type Request struct {
	ID     int      `json:"id"`
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// Response is the incoming envelope. Exactly one of Result and Error is
// expected to be set; a nil Result with a nil Error decodes as JSON null.
type Response struct {
	ID     int     `json:"id"`
	Result *string `json:"result"`
	Error  *string `json:"error,omitempty"`
}

// Marshal renders the request envelope for the wire.
func (r *Request) Marshal() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalResponse parses a raw response envelope.
func UnmarshalResponse(raw string) (*Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
