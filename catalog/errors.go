package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnreadable is wrapped by every error raised while reading a
	// catalog source. It is fatal at startup.
	ErrSourceUnreadable = errors.New("catalog source unreadable")

	// ErrCatalogInvalid is wrapped by every validation or merge failure.
	// It is fatal at startup.
	ErrCatalogInvalid = errors.New("catalog invalid")

	// ErrNotFound is returned by registry lookups for unknown names
	ErrNotFound = errors.New("tool not found")
)

// SourceError reports a source that could not be read as structured data
type SourceError struct {
	Location string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: source %q: %v", ErrSourceUnreadable, e.Location, e.Err)
}

// Unwrap allows errors.Is to match both ErrSourceUnreadable and the cause
func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnreadable, e.Err}
}

// CatalogError identifies the record that failed validation or merging
type CatalogError struct {
	Location string
	Index    int
	Name     string
	Reason   string
}

func (e *CatalogError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: source %q record %d (%q): %s", ErrCatalogInvalid, e.Location, e.Index, e.Name, e.Reason)
	}
	return fmt.Sprintf("%s: source %q record %d: %s", ErrCatalogInvalid, e.Location, e.Index, e.Reason)
}

func (e *CatalogError) Unwrap() error {
	return ErrCatalogInvalid
}

func invalid(rec Record, name, format string, args ...any) *CatalogError {
	return &CatalogError{
		Location: rec.Location,
		Index:    rec.Index,
		Name:     name,
		Reason:   fmt.Sprintf(format, args...),
	}
}
