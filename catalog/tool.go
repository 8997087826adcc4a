package catalog

import (
	"bytes"
	"encoding/json"
)

// Tool is one validated catalog entry. InputSchema holds the record's
// schema exactly as it appeared in the source, compacted.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

func (t Tool) clone() Tool {
	t.InputSchema = bytes.Clone(t.InputSchema)
	return t
}
