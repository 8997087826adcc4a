package catalog

import (
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Registry is the immutable, merged tool catalog. It is built once and is
// safe for concurrent use without locking because nothing mutates it after
// NewRegistry returns.
type Registry struct {
	tools      []Tool
	byName     map[string]int
	byFold     map[string]int
	categories []string
	encoded    []byte
}

// NewRegistry builds a Registry from tools in merge order. Names must be
// unique and valid.
func NewRegistry(tools []Tool) (*Registry, error) {
	r := &Registry{
		tools:  make([]Tool, 0, len(tools)),
		byName: make(map[string]int, len(tools)),
		byFold: make(map[string]int, len(tools)),
	}

	categories := make(map[string]struct{})
	for i, tool := range tools {
		if err := ValidateName(tool.Name); err != nil {
			return nil, &CatalogError{Location: "registry", Index: i, Name: tool.Name, Reason: err.Error()}
		}
		if _, ok := r.byName[tool.Name]; ok {
			return nil, &CatalogError{Location: "registry", Index: i, Name: tool.Name, Reason: "duplicate name"}
		}
		r.byName[tool.Name] = len(r.tools)

		// The first tool wins a case-insensitive collision
		folded := strings.ToLower(tool.Name)
		if _, ok := r.byFold[folded]; !ok {
			r.byFold[folded] = len(r.tools)
		}

		categories[Category(tool.Name)] = struct{}{}
		r.tools = append(r.tools, tool.clone())
	}

	for category := range categories {
		r.categories = append(r.categories, category)
	}
	slices.Sort(r.categories)

	encoded, err := json.Marshal(r.tools)
	if err != nil {
		return nil, fmt.Errorf("encoding registry: %w", err)
	}
	r.encoded = encoded

	return r, nil
}

// Len returns the number of tools
func (r *Registry) Len() int {
	return len(r.tools)
}

// Get returns the tool with exactly the given name, or ErrNotFound
func (r *Registry) Get(name string) (Tool, error) {
	i, ok := r.byName[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.tools[i].clone(), nil
}

// Has reports whether a tool with exactly the given name exists
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Lookup is Get with a case-insensitive fallback
func (r *Registry) Lookup(name string) (Tool, error) {
	if tool, err := r.Get(name); err == nil {
		return tool, nil
	}
	i, ok := r.byFold[strings.ToLower(name)]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return r.tools[i].clone(), nil
}

// List returns every tool in merge order. The sequence can be ranged over
// any number of times.
func (r *Registry) List() iter.Seq[Tool] {
	return func(yield func(Tool) bool) {
		for _, tool := range r.tools {
			if !yield(tool.clone()) {
				return
			}
		}
	}
}

// Filter returns the tools whose names fall in category, in merge order.
// Matching ignores case; see InCategory.
func (r *Registry) Filter(category string) iter.Seq[Tool] {
	return func(yield func(Tool) bool) {
		for _, tool := range r.tools {
			if !InCategory(tool.Name, category) {
				continue
			}
			if !yield(tool.clone()) {
				return
			}
		}
	}
}

// Tools returns a copy of every tool in merge order
func (r *Registry) Tools() []Tool {
	return slices.Collect(r.List())
}

// Categories returns the sorted, distinct categories of all tool names
func (r *Registry) Categories() []string {
	return slices.Clone(r.categories)
}

// MarshalJSON encodes the whole registry as a JSON array of tools. The
// encoding is computed once, when the registry is built.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return r.encoded, nil
}
