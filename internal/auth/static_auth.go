package auth

import "net/http"

// StaticAuthenticator is a development-only authenticator that accepts
// any stk_ key. The default vault comes from server config.
type StaticAuthenticator struct {
	defaultVault string
}

func NewStaticAuthenticator(defaultVault string) *StaticAuthenticator {
	return &StaticAuthenticator{defaultVault: defaultVault}
}

func (a *StaticAuthenticator) Authenticate(r *http.Request) (*ClientContext, error) {
	token, err := ExtractBearerToken(r)
	if err != nil {
		return nil, err
	}
	if len(token) < 8 {
		return nil, ErrUnauthenticated
	}
	return &ClientContext{
		ClientID:     "static-" + token[:8],
		DefaultVault: a.defaultVault,
	}, nil
}
