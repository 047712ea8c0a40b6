package catalog

import (
	"fmt"
	"strings"
)

// Definition describes one invocable tool: its identity, a JSON-schema-like
// input contract, and whether the caller must confirm with the user before
// executing it. Definitions are built once at process start and never mutated.
type Definition struct {
	Name                 string         `json:"name"`
	Description          string         `json:"description"`
	Category             string         `json:"category,omitempty"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	InputSchema          map[string]any `json:"input_schema"`
}

// WithConfirmation marks the definition as needing user approval before the
// caller may execute it.
func (d Definition) WithConfirmation() Definition {
	d.RequiresConfirmation = true
	return d
}

// WithCategory sets the definition's category.
func (d Definition) WithCategory(c string) Definition {
	d.Category = c
	return d
}

// Define builds a Definition with a schema generated from the fields of the
// input struct type.
func Define[T any](name, description string) Definition {
	var zero T
	return Definition{
		Name:        name,
		Description: description,
		InputSchema: GenerateSchema(zero),
	}
}

// Catalog is a pure lookup over an immutable tool set. It holds no mutable
// state and is safe to share across concurrent requests without locking.
type Catalog struct {
	defs  []Definition
	index map[string]Definition
}

// New builds a Catalog. Duplicate tool names are a programming error.
func New(defs ...Definition) *Catalog {
	index := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if _, dup := index[d.Name]; dup {
			panic(fmt.Sprintf("catalog: duplicate tool %q", d.Name))
		}
		if d.InputSchema == nil {
			d.InputSchema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		index[d.Name] = d
	}
	return &Catalog{defs: append([]Definition(nil), defs...), index: index}
}

// List returns all definitions, unfiltered, in registration order.
func (c *Catalog) List() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get returns a definition by name.
func (c *Catalog) Get(name string) (Definition, bool) {
	d, ok := c.index[name]
	return d, ok
}

// Find returns a definition by name, case-insensitively, or false.
func (c *Catalog) Find(name string) (Definition, bool) {
	if d, ok := c.index[name]; ok {
		return d, true
	}
	for _, d := range c.defs {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Definition{}, false
}

// RequiresConfirmation reports whether the named tool needs user approval
// before execution. Unknown names return false: an unrecognized tool is most
// likely a provider/client version mismatch and should fail soft.
func (c *Catalog) RequiresConfirmation(name string) bool {
	d, ok := c.index[name]
	return ok && d.RequiresConfirmation
}

// Provider identifiers accepted by ForProvider. The set is closed: routing
// already validated the provider, so an unknown name here is a bug.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// ForProvider reshapes the catalog into the wire schema the named provider
// expects. The information is identical in every shape; only the envelope
// differs. Unknown providers panic.
func (c *Catalog) ForProvider(provider string) []map[string]any {
	out := make([]map[string]any, len(c.defs))
	for i, d := range c.defs {
		switch provider {
		case ProviderAnthropic:
			out[i] = map[string]any{
				"name":         d.Name,
				"description":  d.Description,
				"input_schema": d.InputSchema,
			}
		case ProviderOpenAI:
			out[i] = map[string]any{
				"type": "function",
				"function": map[string]any{
					"name":        d.Name,
					"description": d.Description,
					"parameters":  d.InputSchema,
				},
			}
		case ProviderGemini:
			out[i] = map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  d.InputSchema,
			}
		default:
			panic(fmt.Sprintf("catalog: unknown provider %q", provider))
		}
	}
	return out
}

// Format renders a readable tool list, useful for prompt injection.
func Format(defs []Definition) string {
	if len(defs) == 0 {
		return "no tools available"
	}
	parts := make([]string, 0, len(defs))
	for _, d := range defs {
		parts = append(parts, fmt.Sprintf("- %s: %s", d.Name, d.Description))
	}
	return strings.Join(parts, "\n")
}
