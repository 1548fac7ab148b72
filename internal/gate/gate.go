// Package gate is the validation checkpoint between the reasoning
// component and the secrets broker. It runs on fully untrusted input,
// never touches secrets, and never invokes an executor.
package gate

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/rr3khan/secure-tools/internal/registry"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ToolCallRequest is a requested tool call as produced by the reasoning
// component. Every field is untrusted until validated.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ValidatedCall is the only form in which a call may reach the broker.
type ValidatedCall struct {
	ID        string
	Tool      *registry.ToolDefinition
	Arguments map[string]any
}

// UnknownToolError rejects a request whose name is not allow-listed.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// InvalidArgumentsError rejects a request whose arguments do not match
// the tool's parameter schema. Field names the offending property when
// one can be identified.
type InvalidArgumentsError struct {
	Tool   string
	Field  string
	Detail string
}

func (e *InvalidArgumentsError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid arguments for %q: field %q: %s", e.Tool, e.Field, e.Detail)
	}
	return fmt.Sprintf("invalid arguments for %q: %s", e.Tool, e.Detail)
}

// Gate validates requests against the registry allow-list and the
// per-tool parameter schemas, compiled once at construction.
type Gate struct {
	registry *registry.Registry
	schemas  map[string]*jsonschema.Schema
}

// New compiles every registered tool's parameter schema and returns the
// gate. A schema that does not compile is a ConfigError: the process
// must not start with an unverifiable allow-list.
func New(reg *registry.Registry) (*Gate, error) {
	g := &Gate{
		registry: reg,
		schemas:  make(map[string]*jsonschema.Schema),
	}
	for _, def := range reg.List() {
		sch, err := compileSchema(def)
		if err != nil {
			return nil, &registry.ConfigError{Tool: def.Name, Detail: fmt.Sprintf("schema compile error: %v", err)}
		}
		g.schemas[def.Name] = sch
	}
	return g, nil
}

// Validate checks the request against the allow-list and the tool's
// schema. Extra, undeclared properties are rejected rather than dropped.
func (g *Gate) Validate(req *ToolCallRequest) (*ValidatedCall, error) {
	def := g.registry.Lookup(req.Name)
	if def == nil {
		return nil, &UnknownToolError{Name: req.Name}
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}

	for _, required := range def.Parameters.Required {
		if _, ok := args[required]; !ok {
			return nil, &InvalidArgumentsError{Tool: req.Name, Field: required, Detail: "required property missing"}
		}
	}

	for _, name := range sortedKeys(args) {
		prop, declared := def.Parameters.Properties[name]
		if !declared {
			return nil, &InvalidArgumentsError{Tool: req.Name, Field: name, Detail: "property is not declared for this tool"}
		}
		if detail := checkType(prop.Type, args[name]); detail != "" {
			return nil, &InvalidArgumentsError{Tool: req.Name, Field: name, Detail: detail}
		}
	}

	// Backstop for constraints the explicit checks don't cover (enums,
	// nested object shapes).
	if sch := g.schemas[req.Name]; sch != nil {
		if err := sch.Validate(normalize(args)); err != nil {
			return nil, &InvalidArgumentsError{Tool: req.Name, Detail: fmt.Sprintf("schema validation failed: %v", err)}
		}
	}

	return &ValidatedCall{ID: req.ID, Tool: def, Arguments: args}, nil
}

// checkType matches a declared JSON-Schema type against a decoded JSON
// runtime value. Returns an empty string on match.
func checkType(declared string, value any) string {
	switch declared {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Sprintf("expected string, got %s", jsonTypeName(value))
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return fmt.Sprintf("expected number, got %s", jsonTypeName(value))
		}
	case "integer":
		f, ok := value.(float64)
		if !ok || f != math.Trunc(f) {
			return fmt.Sprintf("expected integer, got %s", jsonTypeName(value))
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Sprintf("expected boolean, got %s", jsonTypeName(value))
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Sprintf("expected array, got %s", jsonTypeName(value))
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Sprintf("expected object, got %s", jsonTypeName(value))
		}
	}
	return ""
}

func jsonTypeName(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", value)
	}
}

// compileSchema builds the tool's JSON Schema document, forcing
// additionalProperties to false so extras cannot smuggle past the
// explicit checks.
func compileSchema(def *registry.ToolDefinition) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(def.Parameters)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc["properties"] == nil {
		delete(doc, "properties")
	}
	doc["type"] = "object"
	doc["additionalProperties"] = false

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

// normalize round-trips the argument map through JSON so the schema
// validator sees canonical decoded values regardless of how the caller
// built the map.
func normalize(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
