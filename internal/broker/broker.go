// Package broker is the trusted execution boundary. It is the only
// component that ever holds resolved secret values, and only for the
// duration of a single tool call.
package broker

import (
	"context"
	"time"

	"github.com/rr3khan/secure-tools/internal/executor"
	"github.com/rr3khan/secure-tools/internal/gate"
	"github.com/rr3khan/secure-tools/internal/registry"
	"github.com/rr3khan/secure-tools/internal/scrub"
	"github.com/rr3khan/secure-tools/internal/secrets"
	"go.uber.org/zap"
)

// SecretResolver resolves one declared requirement. Implemented by
// secrets.Resolver; abstracted for testability.
type SecretResolver interface {
	Resolve(ctx context.Context, req registry.SecretRequirement, rctx *secrets.RuntimeContext) (string, error)
}

// Dispatcher executes a validated call with its resolved secrets.
// Implemented by executor.Dispatch.
type Dispatcher interface {
	Execute(ctx context.Context, def *registry.ToolDefinition, args map[string]any, secretVals map[string]string) *executor.Result
}

// Broker runs validated calls: resolve each requirement in order,
// dispatch, scrub. Calls are independent pipelines; the broker keeps no
// per-call state, so concurrent Runs need no locking.
type Broker struct {
	resolver SecretResolver
	dispatch Dispatcher
	logger   *zap.Logger
}

// New creates a Broker.
func New(resolver SecretResolver, dispatch Dispatcher, logger *zap.Logger) *Broker {
	return &Broker{resolver: resolver, dispatch: dispatch, logger: logger}
}

// Run executes a validated call. Every result — success or failure —
// passes through the scrubber before it is returned. Arguments and
// pre-scrub output are never logged at any level.
func (b *Broker) Run(ctx context.Context, call *gate.ValidatedCall, rctx *secrets.RuntimeContext) *executor.Result {
	start := time.Now()

	resolved := make(map[string]string, len(call.Tool.Secrets))
	values := make([]string, 0, len(call.Tool.Secrets))

	for _, req := range call.Tool.Secrets {
		// Cancellation is cooperative: checked before each resolution,
		// never mid-lookup.
		if err := ctx.Err(); err != nil {
			return b.finish(call, start, cancelled())
		}

		value, err := b.resolver.Resolve(ctx, req, rctx)
		if err != nil {
			b.logger.Warn("secret resolution failed",
				zap.String("tool", call.Tool.Name),
				zap.String("secret", req.Name),
			)
			// Resolution failures are terminal and not retried. The
			// message still passes the scrubber (with the empty set,
			// since nothing was obtained) for uniformity.
			return b.finish(call, start, &executor.Result{
				Success: false,
				Error:   scrub.Scrub(err.Error(), nil),
			})
		}
		resolved[req.Name] = value
		values = append(values, value)
	}

	if err := ctx.Err(); err != nil {
		return b.finish(call, start, cancelled())
	}

	result := b.dispatch.Execute(ctx, call.Tool, call.Arguments, resolved)

	// Scrub both fields with everything just resolved, whether or not
	// dispatch succeeded — failure bodies are a leak vector too.
	result.Content = scrub.Scrub(result.Content, values)
	result.Error = scrub.Scrub(result.Error, values)

	return b.finish(call, start, result)
}

func (b *Broker) finish(call *gate.ValidatedCall, start time.Time, result *executor.Result) *executor.Result {
	b.logger.Info("tool call completed",
		zap.String("tool", call.Tool.Name),
		zap.Bool("success", result.Success),
		zap.Duration("duration", time.Since(start)),
	)
	return result
}

func cancelled() *executor.Result {
	return &executor.Result{Success: false, Error: "tool call cancelled"}
}
