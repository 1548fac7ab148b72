// Package secrets resolves declared secret requirements into values.
// Resolution happens fresh on every call — secrets rotate, and a cache
// would widen the exposure window.
package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/rr3khan/secure-tools/internal/registry"
	"go.uber.org/zap"
)

// RuntimeContext carries invocation-scoped parameters supplied by the
// caller. It is never persisted.
type RuntimeContext struct {
	// Vault identifies the secret-store vault for FromVault sources.
	Vault     string
	SessionID string
	Model     string
}

// Store is the external secret store: a synchronous read of a
// vault/item/field reference.
type Store interface {
	Read(ctx context.Context, ref string) (string, error)
}

// MissingVaultError reports a vault-backed requirement invoked without a
// vault identifier in the runtime context.
type MissingVaultError struct {
	Requirement string
}

func (e *MissingVaultError) Error() string {
	return fmt.Sprintf("secret %q: vault lookup requires a vault identifier", e.Requirement)
}

// NotFoundError reports a requirement that no configured source could
// satisfy. It names only the logical requirement, never attempted values.
type NotFoundError struct {
	Requirement string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("secret %q could not be resolved from any configured source", e.Requirement)
}

// Resolver tries a requirement's sources in their fixed order:
// environment variable first, vault lookup second.
type Resolver struct {
	store  Store
	getenv func(string) string
	logger *zap.Logger
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store Store, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, getenv: os.Getenv, logger: logger}
}

// newResolverWithGetenv creates a resolver with a custom env lookup (for testing).
func newResolverWithGetenv(store Store, getenv func(string) string, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, getenv: getenv, logger: logger}
}

// Resolve returns the first value a source yields. Failures are terminal
// for the call; nothing here retries.
func (r *Resolver) Resolve(ctx context.Context, req registry.SecretRequirement, rctx *RuntimeContext) (string, error) {
	for _, src := range req.Sources {
		switch s := src.(type) {
		case registry.FromEnv:
			if v := r.getenv(s.Var); v != "" {
				r.logger.Debug("secret resolved",
					zap.String("secret", req.Name),
					zap.String("source", "env"),
				)
				return v, nil
			}
		case registry.FromVault:
			if rctx == nil || rctx.Vault == "" {
				return "", &MissingVaultError{Requirement: req.Name}
			}
			v, err := r.store.Read(ctx, Reference(rctx.Vault, s.Item, s.Field))
			if err != nil {
				r.logger.Warn("secret store lookup failed",
					zap.String("secret", req.Name),
				)
				return "", &NotFoundError{Requirement: req.Name}
			}
			if v != "" {
				r.logger.Debug("secret resolved",
					zap.String("secret", req.Name),
					zap.String("source", "vault"),
				)
				return v, nil
			}
		}
	}
	return "", &NotFoundError{Requirement: req.Name}
}

// Reference builds the canonical secret store reference for a
// vault/item/field triple.
func Reference(vault, item, field string) string {
	return "op://" + vault + "/" + item + "/" + field
}
