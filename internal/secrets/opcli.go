package secrets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultOpTimeout = 30 * time.Second

// OpCLIStore reads secrets through the 1Password CLI (`op read`).
// Supports both service-account and interactive auth.
type OpCLIStore struct {
	serviceAccountToken string
	timeout             time.Duration
	logger              *zap.Logger
}

// OpCLIConfig configures the OpCLIStore.
type OpCLIConfig struct {
	// ServiceAccountToken, when set, is passed to the CLI as
	// OP_SERVICE_ACCOUNT_TOKEN. Empty means interactive auth.
	ServiceAccountToken string
	Timeout             time.Duration
	Logger              *zap.Logger
}

// NewOpCLIStore creates an OpCLIStore.
func NewOpCLIStore(cfg OpCLIConfig) *OpCLIStore {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultOpTimeout
	}
	return &OpCLIStore{
		serviceAccountToken: cfg.ServiceAccountToken,
		timeout:             timeout,
		logger:              cfg.Logger,
	}
}

// Read invokes `op read <ref>` and returns the trimmed stdout. The CLI's
// stdout is never logged; on failure only stderr reaches the error.
func (s *OpCLIStore) Read(ctx context.Context, ref string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "op", "read", ref)
	cmd.Env = os.Environ()
	if s.serviceAccountToken != "" {
		cmd.Env = append(cmd.Env, "OP_SERVICE_ACCOUNT_TOKEN="+s.serviceAccountToken)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("secret store timed out after %s", s.timeout)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", errors.New("op CLI not found: install 1password-cli")
		}
		s.logger.Warn("op read failed", zap.String("stderr", strings.TrimSpace(stderr.String())))
		return "", fmt.Errorf("op read failed: %s", strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}
