package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, r *Reader, sources ...Source) ([]Record, error) {
	t.Helper()

	var records []Record
	for rec, err := range r.Read(context.Background(), sources...) {
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReader_SourcesConcatenatedInOrder(t *testing.T) {
	records, err := collect(t, NewReader(),
		Source{Location: "testdata/tools.json"},
		Source{Location: "testdata/more.yaml"},
	)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "testdata/tools.json", records[0].Location)
	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, 1, records[1].Index)
	assert.Equal(t, "testdata/more.yaml", records[2].Location)
	assert.Equal(t, 0, records[2].Index)
	assert.Contains(t, string(records[2].Data), `"material.set_scalar_parameter"`)
	assert.Equal(t, 1, records[3].Index)
}

func TestReader_YAMLKeepsKeyOrder(t *testing.T) {
	path := writeFile(t, "ordered.yaml", `
- name: zeta.last
  description: "Keys stay in document order"
  inputSchema:
    type: object
    properties:
      zulu: {type: string}
      alpha: {type: integer, enum: [1, 2]}
      mike: &shared {type: boolean}
      again: *shared
    required: [zulu]
`)

	records, err := collect(t, NewReader(), Source{Location: path})
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t,
		`{"name":"zeta.last","description":"Keys stay in document order","inputSchema":{"type":"object","properties":{"zulu":{"type":"string"},"alpha":{"type":"integer","enum":[1,2]},"mike":{"type":"boolean"},"again":{"type":"boolean"}},"required":["zulu"]}}`,
		string(records[0].Data))
}

func TestReader_Stdin(t *testing.T) {
	in := strings.NewReader(`[{"name": "a.b", "description": "", "inputSchema": {"type": "object"}}]`)

	records, err := collect(t, NewReader(WithStdin(in)), Source{Location: "-"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "-", records[0].Location)
}

func TestReader_Remote(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tools.yaml":
			w.Write([]byte("- name: remote.tool\n  description: remote\n  inputSchema: {type: object}\n"))
		case "/tools.json":
			w.Write([]byte(`[{"name": "remote.json", "description": "", "inputSchema": {"type": "object"}}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	reader := NewReader(WithHTTPClient(ts.Client()))

	records, err := collect(t, reader,
		Source{Location: ts.URL + "/tools.json"},
		Source{Location: ts.URL + "/tools.yaml?v=2"},
	)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Contains(t, string(records[1].Data), `"remote.tool"`)

	_, err = collect(t, reader, Source{Location: ts.URL + "/missing.json"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceUnreadable))
	assert.Contains(t, err.Error(), "404")
}

func TestReader_Unreadable(t *testing.T) {
	tests := []struct {
		name   string
		source func(t *testing.T) Source
		want   string
	}{
		{
			name: "missing file",
			source: func(t *testing.T) Source {
				return Source{Location: filepath.Join(t.TempDir(), "nope.json")}
			},
			want: "does not exist",
		},
		{
			name: "directory",
			source: func(t *testing.T) Source {
				return Source{Location: t.TempDir()}
			},
			want: "directory",
		},
		{
			name: "malformed JSON",
			source: func(t *testing.T) Source {
				return Source{Location: writeFile(t, "bad.json", `[{"name": `)}
			},
			want: "parsing JSON",
		},
		{
			name: "JSON object instead of array",
			source: func(t *testing.T) Source {
				return Source{Location: writeFile(t, "object.json", `{"name": "a.b"}`)}
			},
			want: "expected a JSON array",
		},
		{
			name: "malformed YAML",
			source: func(t *testing.T) Source {
				return Source{Location: writeFile(t, "bad.yaml", "- name: [unterminated\n")}
			},
			want: "parsing YAML",
		},
		{
			name: "YAML mapping instead of sequence",
			source: func(t *testing.T) Source {
				return Source{Location: writeFile(t, "map.yml", "name: a.b\n")}
			},
			want: "expected a YAML sequence",
		},
		{
			name: "empty location",
			source: func(t *testing.T) Source {
				return Source{}
			},
			want: "empty source location",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, NewReader(), tt.source(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSourceUnreadable))
			assert.False(t, errors.Is(err, ErrCatalogInvalid))
			assert.Contains(t, err.Error(), tt.want)

			var srcErr *SourceError
			require.True(t, errors.As(err, &srcErr))
		})
	}
}

func TestReader_StopsAtFirstFailingSource(t *testing.T) {
	records, err := collect(t, NewReader(),
		Source{Location: "testdata/tools.json"},
		Source{Location: filepath.Join(t.TempDir(), "missing.json")},
		Source{Location: "testdata/more.yaml"},
	)
	require.Error(t, err)
	assert.Len(t, records, 2)
}

func TestReader_OpenAPI(t *testing.T) {
	records, err := collect(t, NewReader(), Source{Location: "testdata/petstore.json", Format: FormatOpenAPI})
	require.NoError(t, err)
	require.Len(t, records, 3)

	tools := make([]Tool, 0, len(records))
	for _, rec := range records {
		tool, err := Validate(rec)
		require.NoError(t, err)
		tools = append(tools, tool)
	}

	assert.Equal(t, "listPets", tools[0].Name)
	assert.Equal(t, "Returns all pets from the system", tools[0].Description)
	assert.JSONEq(t, `{"type":"object","properties":{"limit":{"type":"integer","description":"Maximum number of pets to return"}}}`, string(tools[0].InputSchema))

	assert.Equal(t, "createPet", tools[1].Name)
	assert.Equal(t, "Create a pet", tools[1].Description)
	assert.JSONEq(t, `{"type":"object","properties":{"name":{"type":"string"},"age":{"type":"integer"}},"required":["name"]}`, string(tools[1].InputSchema))

	assert.Equal(t, "delete.pets_petId", tools[2].Name)
	assert.JSONEq(t, `{"type":"object","properties":{"petId":{"type":"string"}},"required":["petId"]}`, string(tools[2].InputSchema))
}

func TestReader_OpenAPINamesAndRequiredParameters(t *testing.T) {
	path := writeFile(t, "api.json", `{
  "openapi": "3.0.0",
  "info": {"title": "Test API", "version": "1.0.0"},
  "paths": {
    "/levels/{levelId}/actors": {
      "put": {
        "operationId": "levels/actors update (v2)",
        "parameters": [
          {"name": "levelId", "in": "path", "required": true, "schema": {"type": "string"}},
          {"name": "dryRun", "in": "query", "schema": {"type": "boolean"}},
          {"name": "X-Trace", "in": "header", "required": false, "schema": {"type": "string"}}
        ],
        "requestBody": {
          "content": {
            "application/json": {
              "schema": {
                "type": "object",
                "properties": {"levelId": {"type": "string"}, "actor": {"type": "string"}},
                "required": ["levelId", "actor"]
              }
            }
          }
        }
      }
    }
  }
}`)

	records, err := collect(t, NewReader(), Source{Location: path, Format: FormatOpenAPI})
	require.NoError(t, err)
	require.Len(t, records, 1)

	tool, err := Validate(records[0])
	require.NoError(t, err)
	assert.Equal(t, "levels_actors_update_v2", tool.Name)

	var schema struct {
		Required []string `json:"required"`
	}
	require.NoError(t, json.Unmarshal(tool.InputSchema, &schema))
	assert.Equal(t, []string{"levelId", "actor"}, schema.Required)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "", want: ""},
		{input: "JSON", want: FormatJSON},
		{input: "yml", want: FormatYAML},
		{input: "openapi", want: FormatOpenAPI},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
