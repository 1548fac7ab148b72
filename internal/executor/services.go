package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// GetProtectedStatus checks a project's protection status against an
// authenticated internal endpoint. Without an auth_token secret it
// serves mock data so the pipeline stays exercisable in development.
func GetProtectedStatus(_ context.Context, args map[string]any, secrets map[string]string) (*Result, error) {
	project, _ := args["project"].(string)
	if project == "" {
		project = "unknown"
	}

	source := "internal_api"
	if secrets["auth_token"] == "" {
		source = "mock_data"
	}
	// TODO: call the internal projects API with Authorization: Bearer
	// <auth_token> once the endpoint is provisioned.

	content, err := json.Marshal(map[string]any{
		"project":    project,
		"status":     "active",
		"protected":  true,
		"last_check": time.Now().UTC().Format(time.RFC3339),
		"source":     source,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Content: string(content)}, nil
}

// ListAvailableServices needs no secrets but still runs through the
// broker like every other tool.
func ListAvailableServices(_ context.Context, _ map[string]any, _ map[string]string) (*Result, error) {
	content, err := json.Marshal(map[string]any{
		"services": []map[string]string{
			{"name": "weather", "description": "Get current weather for any location"},
			{"name": "protected_status", "description": "Check project protection status"},
		},
	})
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Content: string(content)}, nil
}

// Builtins returns the static executor table shipped with the server.
func Builtins(client *http.Client) map[string]Func {
	return map[string]Func{
		"get_current_weather":     NewGetCurrentWeather(client),
		"get_protected_status":    GetProtectedStatus,
		"list_available_services": ListAvailableServices,
	}
}
