// Tool input schemas.
//
// Information Hiding:
// - Schema generation from Go types hidden
// - Compiled schema caching hidden
// - Positional input mapping hidden

package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	ijsonschema "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"

	pjson "github.com/richinex/parley/internal/json"
)

// InputSeparator splits positional inputs such as #grep:TODO;;src.
const InputSeparator = ";;"

// SchemaFor reflects the JSON Schema of an input struct. Field order
// follows json tags; fields without omitempty are required.
func SchemaFor(v any) json.RawMessage {
	r := &ijsonschema.Reflector{
		Anonymous:      true,
		ExpandedStruct: true,
		DoNotReference: true,
	}
	s := r.Reflect(v)
	s.Version = ""
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tools: reflect schema: %v", err))
	}
	return data
}

// schemaShape is the subset of a JSON Schema used to map inputs.
type schemaShape struct {
	Properties map[string]struct {
		Type any `json:"type"`
	} `json:"properties"`
	Required []string `json:"required"`
}

// propertyNames returns the schema properties, required first, then
// alphabetical within each group.
func propertyNames(shape schemaShape) []string {
	required := make(map[string]bool, len(shape.Required))
	for _, name := range shape.Required {
		required[name] = true
	}
	names := make([]string, 0, len(shape.Properties))
	for name := range shape.Properties {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := required[names[i]], required[names[j]]
		if ri != rj {
			return ri
		}
		return names[i] < names[j]
	})
	return names
}

// ParseInput maps a textual reference input onto a tool schema.
//
// Input that looks like a JSON object is decoded (with repair). Otherwise
// the input is split on ";;" and the parts are assigned to the schema
// properties in order: required first, then alphabetical. Array
// properties split their part on commas; numeric and boolean properties
// are converted when the text parses. Empty parts are omitted.
func ParseInput(input string, schema json.RawMessage) (map[string]any, error) {
	if len(schema) == 0 {
		return map[string]any{}, nil
	}
	var shape schemaShape
	if err := json.Unmarshal(schema, &shape); err != nil {
		return nil, fmt.Errorf("invalid tool schema: %w", err)
	}
	if len(shape.Properties) == 0 {
		return map[string]any{}, nil
	}

	input = strings.TrimSpace(input)
	if pjson.LooksLikeObject(input) {
		return pjson.ParseObject(input)
	}

	result := map[string]any{}
	if input == "" {
		return result, nil
	}

	parts := strings.Split(input, InputSeparator)
	for i, name := range propertyNames(shape) {
		if i >= len(parts) {
			break
		}
		part := strings.TrimSpace(parts[i])
		if part == "" {
			continue
		}
		result[name] = coerce(part, typeOf(shape.Properties[name].Type))
	}
	return result, nil
}

func typeOf(t any) string {
	switch v := t.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "null" {
				return s
			}
		}
	}
	return "string"
}

func coerce(part, typ string) any {
	switch typ {
	case "array":
		var items []any
		for _, item := range strings.Split(part, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items
	case "integer":
		if n, err := strconv.ParseInt(part, 10, 64); err == nil {
			return float64(n)
		}
	case "number":
		if f, err := strconv.ParseFloat(part, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(part); err == nil {
			return b
		}
	}
	return part
}

var schemaCache sync.Map

func compileSchema(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := string(schema)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateInput checks input against schema. A nil schema accepts anything.
func ValidateInput(input map[string]any, schema json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}
	compiled, err := compileSchema(schema)
	if err != nil {
		return fmt.Errorf("compile tool schema: %w", err)
	}

	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encode tool input: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("decode tool input: %w", err)
	}

	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}
