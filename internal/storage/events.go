package storage

import "time"

// EventWriter is the interface for writing tool call audit events.
// Write() must NEVER block the caller.
type EventWriter interface {
	Write(event *ToolCallEvent)
	Close()
}

// ToolCallEvent is the audit record of one tool call crossing the
// boundary. It carries metadata only: never arguments, never secret
// values, never pre-scrub output.
type ToolCallEvent struct {
	RequestID string
	ClientID  string
	SessionID string
	Timestamp time.Time
	ToolName  string
	Outcome   string // "ok", "failed", "rejected"
	Rejection string // gate rejection kind, empty otherwise
	LatencyMs float32
	Source    string
}
