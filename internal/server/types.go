package server

import "github.com/rr3khan/secure-tools/internal/registry"

// CallRequest is the wire form of a requested tool call, plus the
// invocation-scoped parameters that make up the runtime context.
type CallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Vault     string         `json:"vault,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Model     string         `json:"model,omitempty"`
}

// CallResponse is the sanitized result — the only payload that crosses
// back toward the reasoning component.
type CallResponse struct {
	RequestID string `json:"request_id"`
	Success   bool   `json:"success"`
	Content   string `json:"content"`
	Error     string `json:"error,omitempty"`
}

// RejectionResp is a structured validation rejection.
type RejectionResp struct {
	Kind   string `json:"kind"` // "unknown_tool" or "invalid_arguments"
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail"`
}

// ErrorResp is a generic error body.
type ErrorResp struct {
	Detail string `json:"detail"`
}

// ToolAdvert renders one tool definition in the chat-protocol function
// format the reasoning component expects.
type ToolAdvert struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  registry.ParameterSchema `json:"parameters"`
}
