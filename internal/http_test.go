package internal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderTransport(t *testing.T) {
	originalLookupEnv := LookupEnv
	t.Cleanup(func() { LookupEnv = originalLookupEnv })
	LookupEnv = func(name string) (string, bool) {
		if name == "CATALOG_TOKEN" {
			return "Bearer secret", true
		}
		return "", false
	}

	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	transport, err := NewHeaderTransport(context.Background(), nil, map[string]string{
		"Authorization": "env:CATALOG_TOKEN",
		"X-Catalog":     "unreal",
	})
	require.NoError(t, err)

	client := &http.Client{Transport: transport}
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer secret", got.Get("Authorization"))
	assert.Equal(t, "unreal", got.Get("X-Catalog"))
	assert.Empty(t, req.Header.Get("Authorization"), "caller's request must not be modified")
}

func TestNewHeaderTransport_UnresolvableSecret(t *testing.T) {
	originalLookupEnv := LookupEnv
	t.Cleanup(func() { LookupEnv = originalLookupEnv })
	LookupEnv = func(string) (string, bool) { return "", false }

	_, err := NewHeaderTransport(context.Background(), nil, map[string]string{"Authorization": "env:NOPE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header Authorization")
}
