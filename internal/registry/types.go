package registry

// ToolDefinition describes one tool the reasoning component may request.
// Definitions are loaded once at startup and never mutated afterwards.
type ToolDefinition struct {
	Name        string
	Description string
	Executor    string
	Parameters  ParameterSchema
	Secrets     []SecretRequirement
}

// ParameterSchema is a JSON-Schema object describing the tool's arguments:
// typed properties plus a required-field list.
type ParameterSchema struct {
	Type       string                    `json:"type" yaml:"type"`
	Properties map[string]PropertySchema `json:"properties" yaml:"properties"`
	Required   []string                  `json:"required,omitempty" yaml:"required"`
}

// PropertySchema declares a single argument property.
type PropertySchema struct {
	Type        string   `json:"type" yaml:"type"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Enum        []string `json:"enum,omitempty" yaml:"enum"`
}

// SecretRequirement names a secret a tool needs and the ordered sources
// that can produce it. The env arm, when present, is always tried first;
// the vault arm needs a vault identifier supplied at call time.
type SecretRequirement struct {
	// Name is the logical key the executor sees, e.g. "api_key".
	Name    string
	Sources []SecretSource
}

// SecretSource is a closed union: FromEnv or FromVault.
type SecretSource interface {
	secretSource()
}

// FromEnv resolves the secret from an environment variable.
type FromEnv struct {
	Var string
}

// FromVault resolves the secret from the external secret store as
// vault/item/field, where vault comes from the runtime context.
type FromVault struct {
	Item  string
	Field string
}

func (FromEnv) secretSource()   {}
func (FromVault) secretSource() {}

// HasVaultSource reports whether any source of the requirement needs a
// vault identifier at call time.
func (r SecretRequirement) HasVaultSource() bool {
	for _, s := range r.Sources {
		if _, ok := s.(FromVault); ok {
			return true
		}
	}
	return false
}
