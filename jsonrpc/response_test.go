package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_ResultEncodedAsIs(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{"raw json", json.RawMessage(`{"tools":[{"name":"b"},{"name":"a"}]}`), `{"jsonrpc":"2.0","result":{"tools":[{"name":"b"},{"name":"a"}]},"id":1}`},
		{"struct", struct {
			Status string `json:"status"`
		}{"dispatched"}, `{"jsonrpc":"2.0","result":{"status":"dispatched"},"id":1}`},
		{"empty object", struct{}{}, `{"jsonrpc":"2.0","result":{},"id":1}`},
		{"array", []string{"x"}, `{"jsonrpc":"2.0","result":["x"],"id":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(NewResponse(1, tt.result, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestResponse_Error(t *testing.T) {
	data, err := json.Marshal(NewResponse(nil, nil, NewError(ErrParse, nil)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32700,"message":"Parse error"},"id":null}`, string(data))
}
