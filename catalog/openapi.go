package catalog

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/pb33f/libopenapi"
	"github.com/pb33f/libopenapi/datamodel/high/base"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

type openAPITool struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	InputSchema openAPISchema `json:"inputSchema"`
}

type openAPISchema struct {
	Type       string                     `json:"type"`
	Properties map[string]openAPIProperty `json:"properties"`
	Required   []string                   `json:"required,omitempty"`
}

type openAPIProperty struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// decodeOpenAPI turns every operation of an OpenAPI 3 document into a tool
// record, in path order and then method order.
func decodeOpenAPI(data []byte) ([]json.RawMessage, error) {
	doc, err := libopenapi.NewDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parsing OpenAPI document: %w", err)
	}

	model, errs := doc.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("building OpenAPI model: %v", errs)
	}
	if model == nil || model.Model.Paths == nil || model.Model.Paths.PathItems == nil {
		return nil, nil
	}

	var items []json.RawMessage
	for pair := model.Model.Paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		pathItem := pair.Value()

		operations := []struct {
			method string
			op     *v3.Operation
		}{
			{"GET", pathItem.Get},
			{"POST", pathItem.Post},
			{"PUT", pathItem.Put},
			{"DELETE", pathItem.Delete},
			{"PATCH", pathItem.Patch},
		}
		for _, o := range operations {
			if o.op == nil {
				continue
			}
			item, err := json.Marshal(createTool(o.method, path, o.op))
			if err != nil {
				return nil, fmt.Errorf("encoding %s %s: %w", o.method, path, err)
			}
			items = append(items, item)
		}
	}
	return items, nil
}

func createTool(method string, path string, operation *v3.Operation) openAPITool {
	name := sanitizeName(operation.OperationId)
	if name == "" {
		name = strings.ToLower(method) + "." + sanitizeName(path)
	}

	description := operation.Description
	if description == "" {
		description = operation.Summary
	}

	schema := openAPISchema{
		Type:       "object",
		Properties: make(map[string]openAPIProperty),
	}

	for _, param := range operation.Parameters {
		if param == nil || param.Name == "" {
			continue
		}
		schema.Properties[param.Name] = newOpenAPIProperty(param.Schema, param.Description)
		if param.Required != nil && *param.Required {
			schema.require(param.Name)
		}
	}

	if operation.RequestBody != nil && operation.RequestBody.Content != nil {
		if mediaType, ok := operation.RequestBody.Content.Get("application/json"); ok && mediaType != nil && mediaType.Schema != nil {
			if body := mediaType.Schema.Schema(); body != nil && body.Properties != nil {
				for pair := body.Properties.First(); pair != nil; pair = pair.Next() {
					schema.Properties[pair.Key()] = newOpenAPIProperty(pair.Value(), "")
				}
				for _, req := range body.Required {
					if _, ok := schema.Properties[req]; ok {
						schema.require(req)
					}
				}
			}
		}
	}

	return openAPITool{
		Name:        name,
		Description: description,
		InputSchema: schema,
	}
}

// require adds name to the required list once
func (s *openAPISchema) require(name string) {
	if !slices.Contains(s.Required, name) {
		s.Required = append(s.Required, name)
	}
}

// sanitizeName replaces runs of characters not allowed in tool names
func sanitizeName(s string) string {
	return strings.Trim(unsafeNameChars.ReplaceAllString(s, "_"), "_")
}

func newOpenAPIProperty(proxy *base.SchemaProxy, description string) openAPIProperty {
	prop := openAPIProperty{Type: "string", Description: description}
	if proxy == nil {
		return prop
	}
	if inner := proxy.Schema(); inner != nil {
		if len(inner.Type) > 0 {
			prop.Type = inner.Type[0]
		} else {
			prop.Type = "object"
		}
		if prop.Description == "" {
			prop.Description = inner.Description
		}
	}
	return prop
}
