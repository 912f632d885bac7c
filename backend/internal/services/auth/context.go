package auth

import (
	"context"
	"strings"
)

type identityContextKey string

const identityKey identityContextKey = "auth_identity"

const headerScheme = "tma "

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// CredentialFromHeader strips the "tma " scheme from an Authorization value.
// Values without the scheme are returned as they are.
func CredentialFromHeader(value string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	credential := strings.TrimPrefix(value, headerScheme)
	if credential == "" {
		return "", false
	}
	return credential, true
}
