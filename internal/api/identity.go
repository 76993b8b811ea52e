package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"chat-client/internal/models"
)

var ErrNoIdentity = errors.New("no identity available")

// IdentityProvider supplies the authenticated local user.
type IdentityProvider interface {
	Identity(ctx context.Context) (models.Identity, error)
}

// TokenIdentity reads the user id from a claim of the bearer token. The
// signature is not verified; the backend does that on every call.
type TokenIdentity struct {
	token string
	claim string
}

// NewTokenIdentity constructs a TokenIdentity. An empty claim means "sub".
func NewTokenIdentity(token, claim string) *TokenIdentity {
	if claim == "" {
		claim = "sub"
	}
	return &TokenIdentity{token: token, claim: claim}
}

func (t *TokenIdentity) Identity(ctx context.Context) (models.Identity, error) {
	if t.token == "" {
		return models.Identity{}, ErrNoIdentity
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.token, claims); err != nil {
		return models.Identity{}, fmt.Errorf("parse token: %w", err)
	}
	switch v := claims[t.claim].(type) {
	case string:
		if v != "" {
			return models.Identity{ID: v}, nil
		}
	case float64:
		return models.Identity{ID: fmt.Sprintf("%.0f", v)}, nil
	}
	return models.Identity{}, fmt.Errorf("%w: claim %q missing", ErrNoIdentity, t.claim)
}
