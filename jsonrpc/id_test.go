package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  interface{}
	}{
		{name: "integer", input: `42`, want: int64(42)},
		{name: "fractional", input: `1.5`, want: 1.5},
		{name: "string", input: `"req-1"`, want: "req-1"},
		{name: "null", input: `null`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var id ID
			require.NoError(t, json.Unmarshal([]byte(tt.input), &id))
			assert.Equal(t, tt.want, id.Value())

			out, err := json.Marshal(id)
			require.NoError(t, err)
			assert.JSONEq(t, tt.input, string(out))
		})
	}
}

func TestID_RejectsStructuredValues(t *testing.T) {
	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{}`), &id))
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &id))
	assert.Error(t, json.Unmarshal([]byte(`true`), &id))
}

func TestNewID(t *testing.T) {
	id, err := NewID("x")
	require.NoError(t, err)
	assert.True(t, id.Equal("x"))
	assert.Equal(t, `"x"`, id.GoString())

	null, err := NewID(nil)
	require.NoError(t, err)
	assert.True(t, null.IsNil())
	assert.Equal(t, "null", null.GoString())

	_, err = NewID([]int{1})
	assert.Error(t, err)
}
