package api

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestTokenIdentityFromSub(t *testing.T) {
	provider := NewTokenIdentity(signed(t, jwt.MapClaims{"sub": "u1"}), "")

	id, err := provider.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", id.ID)
}

func TestTokenIdentityNumericClaim(t *testing.T) {
	provider := NewTokenIdentity(signed(t, jwt.MapClaims{"userId": 42}), "userId")

	id, err := provider.Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", id.ID)
}

func TestTokenIdentityMissing(t *testing.T) {
	_, err := NewTokenIdentity("", "").Identity(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)

	_, err = NewTokenIdentity(signed(t, jwt.MapClaims{"name": "amy"}), "").Identity(context.Background())
	assert.ErrorIs(t, err, ErrNoIdentity)

	_, err = NewTokenIdentity("not-a-jwt", "").Identity(context.Background())
	assert.Error(t, err)
}
