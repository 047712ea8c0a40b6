package catalog

import (
	"reflect"
	"strings"
)

// GenerateSchema creates a JSON Schema from a Go struct.
// It supports the "json" tag for field names, the "description" tag for
// descriptions, and the "enum" tag (comma-separated) for enumerations.
// Fields without omitempty are treated as required.
func GenerateSchema(v any) map[string]any {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	properties := make(map[string]any)
	required := []string{}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		// Skip unexported fields
		if field.PkgPath != "" {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := jsonTag
		if name == "" {
			name = field.Name
		}
		// Handle "name,omitempty"
		if comma := strings.Index(name, ","); comma != -1 {
			name = name[:comma]
		}

		propSchema := map[string]any{
			"type": getType(field.Type),
		}
		if desc := field.Tag.Get("description"); desc != "" {
			propSchema["description"] = desc
		}
		if enum := field.Tag.Get("enum"); enum != "" {
			values := strings.Split(enum, ",")
			vals := make([]any, len(values))
			for j, v := range values {
				vals[j] = strings.TrimSpace(v)
			}
			propSchema["enum"] = vals
		}
		if def := field.Tag.Get("default"); def != "" {
			propSchema["default"] = def
		}

		properties[name] = propSchema

		if !strings.Contains(jsonTag, "omitempty") {
			required = append(required, name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func getType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "string" // Default fallback
	}
}
