// Package executor performs the external actions bound to tool names.
// Executors run inside the trusted boundary: they receive the validated
// arguments and only the secrets resolved for the current call.
package executor

import (
	"context"
	"fmt"

	"github.com/rr3khan/secure-tools/internal/registry"
	"go.uber.org/zap"
)

// Result is the outcome of a tool execution. Content and Error are still
// raw here — the broker scrubs them before anything leaves the boundary.
type Result struct {
	Success bool   `json:"success"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Func is a single tool action. It gets the validated arguments and the
// secrets resolved for this call only, never the full secret set.
type Func func(ctx context.Context, args map[string]any, secrets map[string]string) (*Result, error)

// UnboundError reports a tool config that references an executor name
// with no registered implementation. This is a configuration error and
// is checked at startup via Bind.
type UnboundError struct {
	Tool     string
	Executor string
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("tool %q references unbound executor %q", e.Tool, e.Executor)
}

// Dispatch maps executor names to their implementations. The table is
// built once at startup and read-only afterwards.
type Dispatch struct {
	table  map[string]Func
	logger *zap.Logger
}

// NewDispatch creates a Dispatch over a static table.
func NewDispatch(table map[string]Func, logger *zap.Logger) *Dispatch {
	return &Dispatch{table: table, logger: logger}
}

// Bind verifies every registered tool's executor has an implementation.
// Called at startup so a bad config fails before the first request.
func (d *Dispatch) Bind(reg *registry.Registry) error {
	for _, def := range reg.List() {
		if _, ok := d.table[def.Executor]; !ok {
			return &UnboundError{Tool: def.Name, Executor: def.Executor}
		}
	}
	return nil
}

// Execute runs the executor bound to the definition. Errors and panics
// from the underlying action are converted into a failure Result whose
// text the broker still scrubs — an upstream error body can echo a
// credential.
func (d *Dispatch) Execute(ctx context.Context, def *registry.ToolDefinition, args map[string]any, secretVals map[string]string) (result *Result) {
	fn, ok := d.table[def.Executor]
	if !ok {
		d.logger.Error("unbound executor reached execution",
			zap.String("tool", def.Name),
			zap.String("executor", def.Executor),
		)
		return &Result{Success: false, Error: "tool executor is not configured"}
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("executor panic",
				zap.String("tool", def.Name),
			)
			result = &Result{Success: false, Error: "tool execution failed"}
		}
	}()

	res, err := fn(ctx, args, secretVals)
	if err != nil {
		// The error text stays in the result for the broker to scrub;
		// it is never logged here.
		return &Result{Success: false, Error: "tool execution failed: " + err.Error()}
	}
	return res
}
