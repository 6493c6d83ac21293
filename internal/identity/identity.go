// Package identity resolves bearer credentials issued by the external identity
// provider into the caller's user ID.
package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

//go:generate mockgen -source=identity.go -destination=./mocks/mock_resolver.go -package=mocks

var (
	ErrMissingToken = errors.New("missing_token")
	ErrInvalidToken = errors.New("invalid_token")
)

// Identity is the authenticated caller.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// Resolver turns a raw bearer token into an Identity.
type Resolver interface {
	Resolve(ctx context.Context, rawToken string) (*Identity, error)
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(*Identity)
	if !ok || id == nil || id.UserID == uuid.Nil {
		return nil, false
	}
	return id, true
}
