package internal

import (
	"context"
	"fmt"
	"net/http"
)

// HeaderTransport is a RoundTripper that adds default headers to requests,
// such as the Authorization header for remote catalog sources
type HeaderTransport struct {
	Base    http.RoundTripper
	Headers http.Header
}

// NewHeaderTransport resolves any secret references among headers and
// returns a transport that sends them with every request
func NewHeaderTransport(ctx context.Context, base http.RoundTripper, headers map[string]string) (*HeaderTransport, error) {
	resolved := make(http.Header, len(headers))
	for key, value := range headers {
		v, _, err := ResolveSecretReference(ctx, value)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", key, err)
		}
		resolved.Set(key, v)
	}
	return &HeaderTransport{Base: base, Headers: resolved}, nil
}

func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for key, values := range t.Headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}
