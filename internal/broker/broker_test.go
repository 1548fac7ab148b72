package broker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rr3khan/secure-tools/internal/executor"
	"github.com/rr3khan/secure-tools/internal/gate"
	"github.com/rr3khan/secure-tools/internal/registry"
	"github.com/rr3khan/secure-tools/internal/secrets"
	"go.uber.org/zap"
)

// stubVaultStore is a secrets.Store test helper.
type stubVaultStore struct {
	value string
	err   error
	calls int
}

func (s *stubVaultStore) Read(_ context.Context, _ string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.value, nil
}

// countingDispatch wraps a Dispatcher and counts executions.
type countingDispatch struct {
	inner Dispatcher
	calls int
}

func (d *countingDispatch) Execute(ctx context.Context, def *registry.ToolDefinition, args map[string]any, secretVals map[string]string) *executor.Result {
	d.calls++
	return d.inner.Execute(ctx, def, args, secretVals)
}

func weatherCall(t *testing.T, reqs []registry.SecretRequirement) *gate.ValidatedCall {
	t.Helper()
	reg, err := registry.New([]registry.ToolDefinition{{
		Name:        "get_current_weather",
		Description: "Get current weather for a location",
		Executor:    "get_current_weather",
		Parameters: registry.ParameterSchema{
			Type:       "object",
			Properties: map[string]registry.PropertySchema{"location": {Type: "string"}},
			Required:   []string{"location"},
		},
		Secrets: reqs,
	}})
	if err != nil {
		t.Fatal(err)
	}
	return &gate.ValidatedCall{
		ID:        "call-1",
		Tool:      reg.Lookup("get_current_weather"),
		Arguments: map[string]any{"location": "Tokyo"},
	}
}

// Scenario: env-sourced key leaks into executor output and must come
// back redacted.
func TestRun_ScrubsResolvedSecretFromContent(t *testing.T) {
	t.Setenv("OPENWEATHER_API_KEY", "secret123")

	logger, _ := zap.NewDevelopment()
	resolver := secrets.NewResolver(&stubVaultStore{}, logger)
	dispatch := executor.NewDispatch(map[string]executor.Func{
		"get_current_weather": func(_ context.Context, _ map[string]any, secretVals map[string]string) (*executor.Result, error) {
			return &executor.Result{Success: true, Content: secretVals["api_key"] + " weather ok"}, nil
		},
	}, logger)
	b := New(resolver, dispatch, logger)

	call := weatherCall(t, []registry.SecretRequirement{{
		Name:    "api_key",
		Sources: []registry.SecretSource{registry.FromEnv{Var: "OPENWEATHER_API_KEY"}},
	}})

	res := b.Run(context.Background(), call, &secrets.RuntimeContext{})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Content != "[REDACTED] weather ok" {
		t.Fatalf("unexpected content: %s", res.Content)
	}
	if strings.Contains(res.Content, "secret123") || strings.Contains(res.Error, "secret123") {
		t.Fatal("resolved secret crossed the boundary")
	}
}

// Scenario: vault-backed requirement, no vault in context. Resolution
// fails terminally, dispatch never runs, no secret can leak.
func TestRun_MissingVaultShortCircuits(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := &stubVaultStore{value: "never-seen"}
	resolver := secrets.NewResolver(store, logger)
	dispatch := &countingDispatch{inner: executor.NewDispatch(map[string]executor.Func{
		"get_current_weather": func(context.Context, map[string]any, map[string]string) (*executor.Result, error) {
			return &executor.Result{Success: true, Content: "should not run"}, nil
		},
	}, logger)}
	b := New(resolver, dispatch, logger)

	call := weatherCall(t, []registry.SecretRequirement{{
		Name:    "api_key",
		Sources: []registry.SecretSource{registry.FromVault{Item: "OpenWeather", Field: "api_key"}},
	}})

	res := b.Run(context.Background(), call, &secrets.RuntimeContext{})
	if res.Success {
		t.Fatal("expected failure")
	}
	if dispatch.calls != 0 {
		t.Fatalf("dispatch must not run after resolution failure, got %d calls", dispatch.calls)
	}
	if store.calls != 0 {
		t.Fatal("vault store must not be consulted without a vault identifier")
	}
	if strings.Contains(res.Error, "never-seen") {
		t.Fatal("secret material in failure message")
	}
	if !strings.Contains(res.Error, "api_key") {
		t.Fatalf("failure should name the logical requirement, got %s", res.Error)
	}
}

// Failure paths are scrubbed too: an upstream error echoing the
// credential must come back redacted.
func TestRun_ScrubsFailureMessages(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := &stubVaultStore{value: "tok-4511"}
	resolver := secrets.NewResolver(store, logger)
	dispatch := executor.NewDispatch(map[string]executor.Func{
		"get_current_weather": func(context.Context, map[string]any, map[string]string) (*executor.Result, error) {
			return nil, errors.New("401 unauthorized: key tok-4511 rejected")
		},
	}, logger)
	b := New(resolver, dispatch, logger)

	call := weatherCall(t, []registry.SecretRequirement{{
		Name:    "api_key",
		Sources: []registry.SecretSource{registry.FromVault{Item: "OpenWeather", Field: "api_key"}},
	}})

	res := b.Run(context.Background(), call, &secrets.RuntimeContext{Vault: "SecureTools"})
	if res.Success {
		t.Fatal("expected failure")
	}
	if strings.Contains(res.Error, "tok-4511") {
		t.Fatalf("secret survived scrubbing: %s", res.Error)
	}
	if !strings.Contains(res.Error, "[REDACTED]") {
		t.Fatalf("expected redaction marker, got %s", res.Error)
	}
}

func TestRun_MultipleSecretsAllScrubbed(t *testing.T) {
	t.Setenv("WEATHER_KEY", "env-key-1")

	logger, _ := zap.NewDevelopment()
	store := &stubVaultStore{value: "vault-key-2"}
	resolver := secrets.NewResolver(store, logger)
	dispatch := executor.NewDispatch(map[string]executor.Func{
		"get_current_weather": func(_ context.Context, _ map[string]any, secretVals map[string]string) (*executor.Result, error) {
			return &executor.Result{
				Success: true,
				Content: "a=" + secretVals["api_key"] + " b=" + secretVals["auth_token"],
			}, nil
		},
	}, logger)
	b := New(resolver, dispatch, logger)

	call := weatherCall(t, []registry.SecretRequirement{
		{Name: "api_key", Sources: []registry.SecretSource{registry.FromEnv{Var: "WEATHER_KEY"}}},
		{Name: "auth_token", Sources: []registry.SecretSource{registry.FromVault{Item: "InternalAPI", Field: "auth_token"}}},
	})

	res := b.Run(context.Background(), call, &secrets.RuntimeContext{Vault: "SecureTools"})
	if strings.Contains(res.Content, "env-key-1") || strings.Contains(res.Content, "vault-key-2") {
		t.Fatalf("secret survived scrubbing: %s", res.Content)
	}
	if res.Content != "a=[REDACTED] b=[REDACTED]" {
		t.Fatalf("unexpected content: %s", res.Content)
	}
}

func TestRun_CancelledBeforeDispatch(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	resolver := secrets.NewResolver(&stubVaultStore{}, logger)
	dispatch := &countingDispatch{inner: executor.NewDispatch(map[string]executor.Func{
		"get_current_weather": func(context.Context, map[string]any, map[string]string) (*executor.Result, error) {
			return &executor.Result{Success: true, Content: "ran"}, nil
		},
	}, logger)}
	b := New(resolver, dispatch, logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	call := weatherCall(t, nil)
	res := b.Run(ctx, call, &secrets.RuntimeContext{})
	if res.Success {
		t.Fatal("expected cancellation failure")
	}
	if dispatch.calls != 0 {
		t.Fatal("dispatch must not run after cancellation")
	}
}
