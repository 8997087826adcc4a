package jsonrpc

import (
	"bytes"
	"encoding/json"
)

// Version is the only JSON-RPC protocol version accepted
const Version = "2.0"

// Request represents a JSON-RPC request object.
// A nil ID marks a notification.
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      *ID             `json:"id,omitempty"`
}

// NewRequest creates a new Request object. A nil id creates a notification.
func NewRequest(method string, params json.RawMessage, id interface{}) Request {
	req := Request{
		Version: Version,
		Method:  method,
		Params:  params,
	}
	if id != nil {
		if reqID, err := NewID(id); err == nil {
			req.ID = &reqID
		}
	}
	return req
}

// IsNotification reports whether the request carries no id member
func (r Request) IsNotification() bool {
	return r.ID == nil
}

// ResponseID returns the id a response to r must carry
func (r Request) ResponseID() ID {
	if r.ID == nil {
		return ID{}
	}
	return *r.ID
}

// ParseRequest decodes a single JSON-RPC envelope.
//
// On failure the returned Request carries whatever id could be read, so the
// caller can still correlate the error response; an unreadable id is null.
func ParseRequest(data []byte) (Request, *Error) {
	var req Request

	data = bytes.TrimSpace(data)
	if len(data) == 0 || !json.Valid(data) {
		return req, NewError(ErrParse, nil)
	}
	if data[0] != '{' {
		return req, Errorf(ErrInvalidRequest, "request must be a JSON object")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return req, Errorf(ErrInvalidRequest, "request must be a JSON object")
	}

	if raw, ok := fields["id"]; ok {
		var id ID
		if err := json.Unmarshal(raw, &id); err != nil {
			return req, Errorf(ErrInvalidRequest, "id must be a string, number, or null")
		}
		req.ID = &id
	}

	raw, ok := fields["jsonrpc"]
	if !ok || json.Unmarshal(raw, &req.Version) != nil || req.Version != Version {
		return req, Errorf(ErrInvalidRequest, "jsonrpc must be %q", Version)
	}

	raw, ok = fields["method"]
	if !ok {
		return req, Errorf(ErrInvalidRequest, "method is required")
	}
	if err := json.Unmarshal(raw, &req.Method); err != nil || req.Method == "" {
		return req, Errorf(ErrInvalidRequest, "method must be a non-empty string")
	}

	if raw, ok := fields["params"]; ok && !bytes.Equal(raw, []byte("null")) {
		switch raw[0] {
		case '{', '[':
			req.Params = raw
		default:
			return req, Errorf(ErrInvalidRequest, "params must be an object or array")
		}
	}

	return req, nil
}
