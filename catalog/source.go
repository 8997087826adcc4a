package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxSourceSize bounds how much data a single source may contain
const MaxSourceSize = 100 * 1024 * 1024

// Format identifies how a source is decoded
type Format string

const (
	// FormatJSON is a JSON array of tool records
	FormatJSON Format = "json"
	// FormatYAML is a YAML sequence of tool records
	FormatYAML Format = "yaml"
	// FormatOpenAPI is an OpenAPI 3 document; each operation becomes a record
	FormatOpenAPI Format = "openapi"
)

// ParseFormat converts a configured format name, accepting an empty value
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatJSON, FormatYAML, FormatOpenAPI:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown source format %q (use json, yaml, or openapi)", s)
	}
}

// Source is one configured catalog location: a file path, an http(s) URL,
// or "-" for standard input.
type Source struct {
	Location string `json:"location" yaml:"location"`
	Format   Format `json:"format,omitempty" yaml:"format,omitempty"`
}

func (s Source) String() string {
	return s.Location
}

// format returns the configured format, falling back to the extension
func (s Source) format() Format {
	if s.Format != "" {
		return s.Format
	}
	location := s.Location
	if i := strings.IndexAny(location, "?#"); i >= 0 && isRemote(location) {
		location = location[:i]
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Record is one raw tool definition together with where it came from
type Record struct {
	Location string
	Index    int
	Data     json.RawMessage
}

// Reader reads raw tool records from catalog sources
type Reader struct {
	client *http.Client
	stdin  io.Reader
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithHTTPClient sets the client used for http(s) sources
func WithHTTPClient(client *http.Client) ReaderOption {
	return func(r *Reader) {
		r.client = client
	}
}

// WithStdin sets the reader used for the "-" source
func WithStdin(in io.Reader) ReaderOption {
	return func(r *Reader) {
		r.stdin = in
	}
}

// NewReader creates a Reader. Without options it uses http.DefaultClient
// and os.Stdin.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{
		client: http.DefaultClient,
		stdin:  os.Stdin,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read returns the records of all sources, in source order and then record
// order. Sources are read lazily, one at a time, as the sequence is consumed.
// The first failure is yielded as a *SourceError and ends the sequence.
func (r *Reader) Read(ctx context.Context, sources ...Source) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, src := range sources {
			items, err := r.readSource(ctx, src)
			if err != nil {
				yield(Record{}, &SourceError{Location: src.Location, Err: err})
				return
			}
			for i, item := range items {
				if !yield(Record{Location: src.Location, Index: i, Data: item}, nil) {
					return
				}
			}
		}
	}
}

func (r *Reader) readSource(ctx context.Context, src Source) ([]json.RawMessage, error) {
	data, err := r.fetch(ctx, src.Location)
	if err != nil {
		return nil, err
	}

	switch src.format() {
	case FormatYAML:
		return decodeYAML(data)
	case FormatOpenAPI:
		return decodeOpenAPI(data)
	default:
		return decodeJSON(data)
	}
}

func (r *Reader) fetch(ctx context.Context, location string) ([]byte, error) {
	switch {
	case location == "":
		return nil, errors.New("empty source location")
	case location == "-":
		return readLimited(r.stdin)
	case isRemote(location):
		return r.fetchRemote(ctx, location)
	default:
		return readFile(location)
	}
}

func (r *Reader) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.1")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected HTTP status %s", resp.Status)
	}
	return readLimited(resp.Body)
}

func readFile(path string) ([]byte, error) {
	cleanPath := filepath.Clean(path)

	info, err := os.Stat(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file does not exist: %s", cleanPath)
		}
		return nil, fmt.Errorf("error accessing file %s: %w", cleanPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", cleanPath)
	}
	if info.Size() > MaxSourceSize {
		return nil, fmt.Errorf("file too large (max %d bytes): %s", MaxSourceSize, cleanPath)
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 -- path from operator configuration
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", cleanPath, err)
	}
	return data, nil
}

func readLimited(in io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(in, MaxSourceSize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading source: %w", err)
	}
	if len(data) > MaxSourceSize {
		return nil, fmt.Errorf("source too large (max %d bytes)", MaxSourceSize)
	}
	return data, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func decodeJSON(data []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errors.New("expected a JSON array of tool definitions")
		}
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	return items, nil
}

func decodeYAML(data []byte) ([]json.RawMessage, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}

	root := resolveAlias(doc.Content[0])
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, nil
	}
	if root.Kind != yaml.SequenceNode {
		return nil, errors.New("expected a YAML sequence of tool definitions")
	}

	items := make([]json.RawMessage, 0, len(root.Content))
	for i, entry := range root.Content {
		var buf bytes.Buffer
		if err := writeYAMLAsJSON(&buf, entry); err != nil {
			return nil, fmt.Errorf("entry %d cannot be represented as JSON: %w", i, err)
		}
		items = append(items, buf.Bytes())
	}
	return items, nil
}

// writeYAMLAsJSON encodes a YAML node as JSON, keeping mapping keys in
// document order.
func writeYAMLAsJSON(buf *bytes.Buffer, n *yaml.Node) error {
	n = resolveAlias(n)

	switch n.Kind {
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := resolveAlias(n.Content[i])
			if key.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			encoded, err := json.Marshal(key.Value)
			if err != nil {
				return err
			}
			buf.Write(encoded)
			buf.WriteByte(':')
			if err := writeYAMLAsJSON(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeYAMLAsJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", n.Line, err)
		}
		buf.Write(encoded)
	default:
		return fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
