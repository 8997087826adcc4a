package jsonrpc

import "context"

// Handler defines the interface for handling JSON-RPC requests.
// The boolean result is false when the request was a notification and
// no response must be written.
type Handler interface {
	Handle(ctx context.Context, request Request) (Response, bool)
}

// HandlerFunc adapts a function to the Handler interface
type HandlerFunc func(ctx context.Context, request Request) (Response, bool)

// Handle calls f(ctx, request)
func (f HandlerFunc) Handle(ctx context.Context, request Request) (Response, bool) {
	return f(ctx, request)
}
