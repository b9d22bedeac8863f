package middleware

import (
	"context"

	"github.com/Dosada05/chess-arena/models"
)

type contextKey string

const principalContextKey contextKey = "principal"

func WithPrincipal(ctx context.Context, principal *models.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext returns the caller set by Authenticate or Optional.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(*models.Principal)
	return principal, ok && principal != nil
}
