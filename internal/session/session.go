// Package session carries the authenticated principal through request contexts.
package session

import (
	"context"

	"github.com/noah-isme/campus-attendance-api/internal/models"
	appErrors "github.com/noah-isme/campus-attendance-api/pkg/errors"
)

type claimsKey struct{}

// WithClaims returns a context carrying the verified token claims.
func WithClaims(ctx context.Context, claims *models.JWTClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// ClaimsFromContext returns the claims stored by WithClaims.
func ClaimsFromContext(ctx context.Context) (*models.JWTClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(claimsKey{}).(*models.JWTClaims)
	if !ok || claims == nil {
		return nil, false
	}
	return claims, true
}

// Accessor answers "who is calling" for the core services.
type Accessor struct{}

// NewAccessor constructs an Accessor.
func NewAccessor() *Accessor {
	return &Accessor{}
}

// CurrentUserID returns the principal's user ID, if any.
func (Accessor) CurrentUserID(ctx context.Context) (string, bool) {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID() == "" {
		return "", false
	}
	return claims.UserID(), true
}

// Require returns the principal's user ID or an Unauthenticated error.
func (a Accessor) Require(ctx context.Context) (string, error) {
	id, ok := a.CurrentUserID(ctx)
	if !ok {
		return "", appErrors.Clone(appErrors.ErrUnauthenticated, "no authenticated user")
	}
	return id, nil
}
