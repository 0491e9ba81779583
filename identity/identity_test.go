package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret []byte, sub string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestStatic(t *testing.T) {
	id, ok := Static("u1").CurrentUserID(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "u1", id)

	_, ok = Static("").CurrentUserID(context.Background())
	assert.False(t, ok)
}

func TestTokenProvider(t *testing.T) {
	secret := []byte("test-secret")
	var current string
	p := NewTokenProvider(secret, func() string { return current })
	ctx := context.Background()

	t.Run("SignedOut", func(t *testing.T) {
		current = ""
		_, ok := p.CurrentUserID(ctx)
		assert.False(t, ok)
	})

	t.Run("ValidToken", func(t *testing.T) {
		current = signToken(t, secret, "u1")
		id, ok := p.CurrentUserID(ctx)
		assert.True(t, ok)
		assert.Equal(t, "u1", id)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		current = signToken(t, []byte("other-secret"), "u1")
		_, ok := p.CurrentUserID(ctx)
		assert.False(t, ok)
	})

	t.Run("MissingSubject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(secret)
		require.NoError(t, err)
		current = signed
		_, ok := p.CurrentUserID(ctx)
		assert.False(t, ok)
	})

	t.Run("Expired", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "u1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		signed, err := token.SignedString(secret)
		require.NoError(t, err)
		current = signed
		_, ok := p.CurrentUserID(ctx)
		assert.False(t, ok)
	})
}

func TestAdminList(t *testing.T) {
	authz := AdminList{"a1", "a2"}
	assert.True(t, authz.IsAdmin("a1"))
	assert.False(t, authz.IsAdmin("u1"))
	assert.False(t, AdminList(nil).IsAdmin("a1"))
}
