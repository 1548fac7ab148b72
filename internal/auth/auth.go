package auth

import (
	"errors"
	"net/http"
	"strings"
)

// Authenticator validates an incoming request's API key and returns the
// calling client's context.
type Authenticator interface {
	Authenticate(r *http.Request) (*ClientContext, error)
}

// ClientContext holds the authenticated caller's identity and settings.
type ClientContext struct {
	ClientID string
	// DefaultVault is used when a call supplies no vault of its own.
	DefaultVault string
}

// ErrUnauthenticated is returned when no valid credentials are found.
var ErrUnauthenticated = errors.New("unauthenticated")

// keyPrefix is the required prefix of broker API keys.
const keyPrefix = "stk_"

// ExtractBearerToken extracts an stk_ API key from the Authorization header.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrUnauthenticated
	}
	token := strings.TrimPrefix(header, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, keyPrefix) {
		return "", ErrUnauthenticated
	}
	return token, nil
}
