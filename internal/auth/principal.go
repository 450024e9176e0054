package auth

import (
	"context"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// Principal is the verified caller attached to a request.
type Principal struct {
	UserID      int64
	DisplayName string
}

type principalContextKey struct{}

// WithPrincipal returns a context carrying the verified principal.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok && principal.UserID > 0
}

// BearerToken extracts the credential from an Authorization header value.
// It returns ErrMissingToken when the header is absent or not a bearer credential.
func BearerToken(header string) (string, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}

// BearerTokenFromRequest extracts the bearer credential from the request headers.
func BearerTokenFromRequest(r *http.Request) (string, error) {
	if r == nil {
		return "", ErrMissingToken
	}
	return BearerToken(r.Header.Get("Authorization"))
}
