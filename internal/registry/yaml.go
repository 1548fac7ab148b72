package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// defaultVaultField matches the secret store convention of storing the
// primary credential under "password" when no field is named.
const defaultVaultField = "password"

// yamlFile is the root of a tools.yml document.
type yamlFile struct {
	Tools map[string]yamlTool `yaml:"tools"`
}

type yamlTool struct {
	Description string          `yaml:"description"`
	Executor    string          `yaml:"executor"`
	Parameters  ParameterSchema `yaml:"parameters"`
	Secrets     []yamlSecret    `yaml:"secrets"`
}

type yamlSecret struct {
	Name  string `yaml:"name"`
	Env   string `yaml:"env"`
	Item  string `yaml:"item"`
	Field string `yaml:"field"`
}

// LoadYAMLFile reads a tools.yml file and builds a validated Registry.
func LoadYAMLFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Detail: fmt.Sprintf("read %s: %v", path, err)}
	}
	return LoadYAML(data)
}

// LoadYAML parses a tools.yml document and builds a validated Registry.
func LoadYAML(data []byte) (*Registry, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &ConfigError{Detail: fmt.Sprintf("parse yaml: %v", err)}
	}
	if len(file.Tools) == 0 {
		return nil, &ConfigError{Detail: "no tools defined"}
	}

	defs := make([]ToolDefinition, 0, len(file.Tools))
	for name, t := range file.Tools {
		def := ToolDefinition{
			Name:        name,
			Description: t.Description,
			Executor:    t.Executor,
			Parameters:  t.Parameters,
		}
		for _, s := range t.Secrets {
			req, err := s.toRequirement(name)
			if err != nil {
				return nil, err
			}
			def.Secrets = append(def.Secrets, req)
		}
		defs = append(defs, def)
	}
	return New(defs)
}

// toRequirement builds the ordered source list: env arm first, vault arm
// second. Entries with neither arm are a config error.
func (s yamlSecret) toRequirement(tool string) (SecretRequirement, error) {
	field := s.Field
	if field == "" && s.Item != "" {
		field = defaultVaultField
	}

	name := s.Name
	if name == "" {
		name = field
	}

	var sources []SecretSource
	if s.Env != "" {
		sources = append(sources, FromEnv{Var: s.Env})
	}
	if s.Item != "" {
		sources = append(sources, FromVault{Item: s.Item, Field: field})
	}
	if len(sources) == 0 {
		return SecretRequirement{}, &ConfigError{
			Tool:   tool,
			Detail: fmt.Sprintf("secret %q has no resolution path: set env or item+field", name),
		}
	}
	return SecretRequirement{Name: name, Sources: sources}, nil
}
