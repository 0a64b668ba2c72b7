package appMiddleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/thebigby10/sugarvoice-backend/internal/types"
)

var (
	ErrMissingAuthorization   = errors.New("authorization header required")
	ErrMalformedAuthorization = errors.New("authorization header format must be Bearer {token}")
)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthorization
	}

	headerParts := strings.Fields(authHeader)
	if len(headerParts) != 2 || !strings.EqualFold(headerParts[0], "bearer") {
		return "", ErrMalformedAuthorization
	}
	return headerParts[1], nil
}

// WithIdentity stores the resolved identity for downstream handlers.
func WithIdentity(ctx context.Context, identity *types.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// IdentityFromContext returns the identity set by the auth middleware.
func IdentityFromContext(ctx context.Context) (*types.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*types.Identity)
	return identity, ok && identity != nil
}

// ClientIP returns the host part of r.RemoteAddr, or RemoteAddr itself when
// it carries no port (RealIP rewrites it to a bare address).
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// ClientIPFromContext returns "" when no address was recorded.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(ClientIPKey).(string)
	return ip
}
