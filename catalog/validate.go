package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/jsonschema-go/jsonschema"
)

// MaxNameLength bounds tool names
const MaxNameLength = 128

var validName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// rawTool mirrors the record shape with pointers so that absent fields can be
// told apart from empty ones.
type rawTool struct {
	Name        *string         `json:"name"`
	Description *string         `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type rawSchema struct {
	Type       *string                    `json:"type"`
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

type rawProperty struct {
	Type        json.RawMessage   `json:"type"`
	Description *string           `json:"description"`
	Enum        []json.RawMessage `json:"enum"`
}

// Validate checks a single record against the tool definition shape and
// returns the validated Tool. Failures are *CatalogError values.
func Validate(rec Record) (Tool, error) {
	data := bytes.TrimSpace(rec.Data)
	if len(data) == 0 || data[0] != '{' {
		return Tool{}, invalid(rec, "", "record must be a JSON object")
	}

	var raw rawTool
	if err := json.Unmarshal(data, &raw); err != nil {
		return Tool{}, invalid(rec, "", "%s", describeDecodeError(err))
	}

	if raw.Name == nil {
		return Tool{}, invalid(rec, "", "name is required")
	}
	name := *raw.Name
	if err := ValidateName(name); err != nil {
		return Tool{}, invalid(rec, name, "%v", err)
	}

	if raw.Description == nil {
		return Tool{}, invalid(rec, name, "description is required")
	}

	if len(raw.InputSchema) == 0 || bytes.Equal(raw.InputSchema, []byte("null")) {
		return Tool{}, invalid(rec, name, "inputSchema is required")
	}
	if err := validateInputSchema(raw.InputSchema); err != nil {
		return Tool{}, invalid(rec, name, "inputSchema: %v", err)
	}

	var schema bytes.Buffer
	if err := json.Compact(&schema, raw.InputSchema); err != nil {
		return Tool{}, invalid(rec, name, "inputSchema: %v", err)
	}

	return Tool{
		Name:        name,
		Description: *raw.Description,
		InputSchema: schema.Bytes(),
	}, nil
}

// ValidateName enforces the naming rules shared by every tool
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name must not be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name is %d characters long, the maximum is %d", len(name), MaxNameLength)
	}
	if !validName.MatchString(name) {
		return fmt.Errorf("name %q is invalid: only letters, digits, '_', '-' and '.' are allowed", name)
	}
	return nil
}

func validateInputSchema(data json.RawMessage) error {
	if data[0] != '{' {
		return errors.New("must be a JSON object")
	}

	var shape rawSchema
	if err := json.Unmarshal(data, &shape); err != nil {
		return errors.New(describeDecodeError(err))
	}

	if shape.Type == nil {
		return errors.New("type is required")
	}
	if *shape.Type != "object" {
		return fmt.Errorf("type must be \"object\", got %q", *shape.Type)
	}

	for prop, fragment := range shape.Properties {
		if err := validateProperty(fragment); err != nil {
			return fmt.Errorf("property %q: %w", prop, err)
		}
	}

	seen := make(map[string]bool, len(shape.Required))
	for _, req := range shape.Required {
		if _, ok := shape.Properties[req]; !ok {
			return fmt.Errorf("required property %q is not declared in properties", req)
		}
		if seen[req] {
			return fmt.Errorf("required property %q is listed more than once", req)
		}
		seen[req] = true
	}

	// The structural checks above give precise diagnostics; resolving the
	// schema catches everything else a JSON Schema consumer would reject.
	var schema jsonschema.Schema
	if err := json.Unmarshal(data, &schema); err != nil {
		return fmt.Errorf("not a valid JSON Schema: %w", err)
	}
	if _, err := schema.Resolve(&jsonschema.ResolveOptions{}); err != nil {
		return fmt.Errorf("not a valid JSON Schema: %w", err)
	}

	return nil
}

func validateProperty(fragment json.RawMessage) error {
	if len(fragment) == 0 || fragment[0] != '{' {
		return errors.New("schema must be a JSON object")
	}

	var prop rawProperty
	if err := json.Unmarshal(fragment, &prop); err != nil {
		return errors.New(describeDecodeError(err))
	}

	if len(prop.Type) == 0 || bytes.Equal(prop.Type, []byte("null")) {
		return errors.New("type is required")
	}

	var single string
	if err := json.Unmarshal(prop.Type, &single); err == nil {
		if single == "" {
			return errors.New("type must not be empty")
		}
		return nil
	}
	var multiple []string
	if err := json.Unmarshal(prop.Type, &multiple); err != nil || len(multiple) == 0 {
		return errors.New("type must be a string or a non-empty array of strings")
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("field %q must not be a JSON %s", typeErr.Field, typeErr.Value)
	}
	return err.Error()
}
