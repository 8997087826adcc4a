package catalog

import (
	"context"
	"iter"
)

// Merge validates every record and combines them into one ordered,
// duplicate-free sequence. The first failure aborts the merge; no partial
// result is returned.
func Merge(records iter.Seq2[Record, error]) ([]Tool, error) {
	var tools []Tool
	seen := make(map[string]Record)

	for rec, err := range records {
		if err != nil {
			return nil, err
		}

		tool, err := Validate(rec)
		if err != nil {
			return nil, err
		}

		if first, ok := seen[tool.Name]; ok {
			return nil, invalid(rec, tool.Name, "duplicate name, first defined in source %q record %d", first.Location, first.Index)
		}
		seen[tool.Name] = Record{Location: rec.Location, Index: rec.Index}

		tools = append(tools, tool)
	}

	return tools, nil
}

// Load reads, validates, and merges the given sources and builds the
// Registry. A nil reader uses NewReader().
func Load(ctx context.Context, reader *Reader, sources ...Source) (*Registry, error) {
	if reader == nil {
		reader = NewReader()
	}

	tools, err := Merge(reader.Read(ctx, sources...))
	if err != nil {
		return nil, err
	}

	return NewRegistry(tools)
}
