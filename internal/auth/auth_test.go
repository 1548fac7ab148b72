package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
		ok     bool
	}{
		{"valid", "Bearer stk_abcdef123", "stk_abcdef123", true},
		{"lowercase bearer", "bearer stk_abcdef123", "stk_abcdef123", true},
		{"missing header", "", "", false},
		{"wrong prefix", "Bearer tok_abcdef123", "", false},
		{"no scheme", "stk_abcdef123", "stk_abcdef123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/v1/tools/call", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearerToken(r)
			if tt.ok && (err != nil || got != tt.want) {
				t.Fatalf("got (%q, %v), want %q", got, err, tt.want)
			}
			if !tt.ok && !errors.Is(err, ErrUnauthenticated) {
				t.Fatalf("expected ErrUnauthenticated, got %v", err)
			}
		})
	}
}

func TestStaticAuthenticator(t *testing.T) {
	a := NewStaticAuthenticator("SecureTools")

	r := httptest.NewRequest("POST", "/v1/tools/call", nil)
	r.Header.Set("Authorization", "Bearer stk_devkey99")
	client, err := a.Authenticate(r)
	if err != nil {
		t.Fatal(err)
	}
	if client.DefaultVault != "SecureTools" {
		t.Fatalf("unexpected vault: %s", client.DefaultVault)
	}

	r = httptest.NewRequest("POST", "/v1/tools/call", nil)
	if _, err := a.Authenticate(r); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

// countingClientStore is a test helper.
type countingClientStore struct {
	row   *clientRow
	err   error
	calls int
}

func (s *countingClientStore) LookupByPrefix(_ context.Context, _ string) (*clientRow, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.row, nil
}

func TestPostgresAuthenticator_ValidKeyAndCache(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	key := "stk_live_0123456789"
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	store := &countingClientStore{row: &clientRow{
		ClientID:     "client-1",
		APIKeyHash:   string(hash),
		DefaultVault: "SecureTools",
	}}
	a := newPostgresAuthenticatorWithStore(store, 30*time.Second, logger)

	r := httptest.NewRequest("POST", "/v1/tools/call", nil)
	r.Header.Set("Authorization", "Bearer "+key)

	client, err := a.Authenticate(r)
	if err != nil {
		t.Fatal(err)
	}
	if client.ClientID != "client-1" {
		t.Fatalf("unexpected client: %s", client.ClientID)
	}
	if store.calls != 1 {
		t.Fatalf("expected 1 DB call, got %d", store.calls)
	}

	// Second call — cache hit
	if _, err := a.Authenticate(r); err != nil {
		t.Fatal(err)
	}
	if store.calls != 1 {
		t.Fatalf("expected still 1 DB call (cache hit), got %d", store.calls)
	}
}

func TestPostgresAuthenticator_WrongKeyFailsClosed(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	hash, err := bcrypt.GenerateFromPassword([]byte("stk_live_other"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	store := &countingClientStore{row: &clientRow{ClientID: "client-1", APIKeyHash: string(hash)}}
	a := newPostgresAuthenticatorWithStore(store, 30*time.Second, logger)

	r := httptest.NewRequest("POST", "/v1/tools/call", nil)
	r.Header.Set("Authorization", "Bearer stk_live_wrongkey")

	if _, err := a.Authenticate(r); err == nil {
		t.Fatal("expected authentication failure")
	}
}

func TestPostgresAuthenticator_StoreError(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	store := &countingClientStore{err: errors.New("connection refused")}
	a := newPostgresAuthenticatorWithStore(store, 30*time.Second, logger)

	r := httptest.NewRequest("POST", "/v1/tools/call", nil)
	r.Header.Set("Authorization", "Bearer stk_live_0123456789")

	if _, err := a.Authenticate(r); err == nil {
		t.Fatal("expected failure when store is down (fail closed)")
	}
}
