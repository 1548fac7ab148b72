package registry

import (
	"errors"
	"testing"
)

func weatherDef() ToolDefinition {
	return ToolDefinition{
		Name:        "get_current_weather",
		Description: "Get current weather for a location",
		Executor:    "get_current_weather",
		Parameters: ParameterSchema{
			Type: "object",
			Properties: map[string]PropertySchema{
				"location": {Type: "string"},
				"format":   {Type: "string", Enum: []string{"celsius", "fahrenheit"}},
			},
			Required: []string{"location"},
		},
		Secrets: []SecretRequirement{
			{Name: "api_key", Sources: []SecretSource{FromEnv{Var: "OPENWEATHER_API_KEY"}}},
		},
	}
}

func TestRegistry_LookupAndList(t *testing.T) {
	reg, err := New([]ToolDefinition{weatherDef()})
	if err != nil {
		t.Fatal(err)
	}

	if def := reg.Lookup("get_current_weather"); def == nil {
		t.Fatal("expected lookup hit")
	}
	if def := reg.Lookup("delete_everything"); def != nil {
		t.Fatal("expected nil for unregistered tool")
	}
	if got := len(reg.List()); got != 1 {
		t.Fatalf("expected 1 tool, got %d", got)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	_, err := New([]ToolDefinition{weatherDef(), weatherDef()})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestRegistry_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ToolDefinition)
	}{
		{"no description", func(d *ToolDefinition) { d.Description = "" }},
		{"no executor", func(d *ToolDefinition) { d.Executor = "" }},
		{"no name", func(d *ToolDefinition) { d.Name = "" }},
		{"bad property type", func(d *ToolDefinition) {
			d.Parameters.Properties["location"] = PropertySchema{Type: "struct"}
		}},
		{"undeclared required", func(d *ToolDefinition) {
			d.Parameters.Required = []string{"city"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := weatherDef()
			tt.mutate(&def)
			if _, err := New([]ToolDefinition{def}); err == nil {
				t.Fatal("expected ConfigError")
			}
		})
	}
}

func TestRegistry_RequirementNeedsResolutionPath(t *testing.T) {
	def := weatherDef()
	def.Secrets = []SecretRequirement{{Name: "api_key"}}
	if _, err := New([]ToolDefinition{def}); err == nil {
		t.Fatal("expected ConfigError for requirement with no sources")
	}
}

func TestRegistry_VaultSourceNeedsItemAndField(t *testing.T) {
	def := weatherDef()
	def.Secrets = []SecretRequirement{
		{Name: "api_key", Sources: []SecretSource{FromVault{Item: "OpenWeather"}}},
	}
	if _, err := New([]ToolDefinition{def}); err == nil {
		t.Fatal("expected ConfigError for vault source without field")
	}
}
