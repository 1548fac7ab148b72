package registry

import (
	"fmt"
	"sort"
)

// Registry is the immutable allow-list of tool definitions. It is built
// once at startup from a declarative source and shared read-only between
// concurrent calls; no mutation operations exist after construction.
type Registry struct {
	tools map[string]*ToolDefinition
	order []string
}

// ConfigError reports a malformed tool configuration. It is fatal at
// load time; the process must not start with a broken registry.
type ConfigError struct {
	Tool   string
	Detail string
}

func (e *ConfigError) Error() string {
	if e.Tool == "" {
		return "tool config: " + e.Detail
	}
	return fmt.Sprintf("tool config: tool %q: %s", e.Tool, e.Detail)
}

// New validates the definitions and builds a Registry.
func New(defs []ToolDefinition) (*Registry, error) {
	r := &Registry{tools: make(map[string]*ToolDefinition, len(defs))}
	for i := range defs {
		def := defs[i]
		if err := validateDefinition(&def); err != nil {
			return nil, err
		}
		if _, dup := r.tools[def.Name]; dup {
			return nil, &ConfigError{Tool: def.Name, Detail: "duplicate tool name"}
		}
		r.tools[def.Name] = &def
		r.order = append(r.order, def.Name)
	}
	sort.Strings(r.order)
	return r, nil
}

// Lookup returns the definition for name, or nil if the tool is not
// allow-listed.
func (r *Registry) Lookup(name string) *ToolDefinition {
	return r.tools[name]
}

// List returns all definitions in name order, for allow-list enumeration
// and capability advertisement.
func (r *Registry) List() []*ToolDefinition {
	out := make([]*ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func validateDefinition(def *ToolDefinition) error {
	if def.Name == "" {
		return &ConfigError{Detail: "tool name is required"}
	}
	if def.Description == "" {
		return &ConfigError{Tool: def.Name, Detail: "description is required"}
	}
	if def.Executor == "" {
		return &ConfigError{Tool: def.Name, Detail: "executor is required"}
	}
	if def.Parameters.Type != "" && def.Parameters.Type != "object" {
		return &ConfigError{Tool: def.Name, Detail: fmt.Sprintf("parameters type must be object, got %q", def.Parameters.Type)}
	}
	for propName, prop := range def.Parameters.Properties {
		switch prop.Type {
		case "string", "number", "integer", "boolean", "array", "object":
		default:
			return &ConfigError{Tool: def.Name, Detail: fmt.Sprintf("property %q has unsupported type %q", propName, prop.Type)}
		}
	}
	for _, req := range def.Parameters.Required {
		if _, ok := def.Parameters.Properties[req]; !ok {
			return &ConfigError{Tool: def.Name, Detail: fmt.Sprintf("required property %q is not declared", req)}
		}
	}
	for _, sec := range def.Secrets {
		if err := validateRequirement(def.Name, sec); err != nil {
			return err
		}
	}
	return nil
}

func validateRequirement(tool string, req SecretRequirement) error {
	if req.Name == "" {
		return &ConfigError{Tool: tool, Detail: "secret requirement has no name"}
	}
	if len(req.Sources) == 0 {
		return &ConfigError{Tool: tool, Detail: fmt.Sprintf("secret %q has no resolution path: set env or item+field", req.Name)}
	}
	for _, src := range req.Sources {
		switch s := src.(type) {
		case FromEnv:
			if s.Var == "" {
				return &ConfigError{Tool: tool, Detail: fmt.Sprintf("secret %q has an env source with no variable name", req.Name)}
			}
		case FromVault:
			if s.Item == "" || s.Field == "" {
				return &ConfigError{Tool: tool, Detail: fmt.Sprintf("secret %q has a vault source missing item or field", req.Name)}
			}
		}
	}
	return nil
}
