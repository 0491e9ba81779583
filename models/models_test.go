package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	t.Run("MixedSeparators", func(t *testing.T) {
		assert.Equal(t, []string{"#dog", "#cat", "#fun"}, NormalizeTags("dog, cat #fun"))
	})

	t.Run("AlreadyPrefixed", func(t *testing.T) {
		assert.Equal(t, []string{"#go", "#redis"}, NormalizeTags("#go #redis"))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.Empty(t, NormalizeTags(""))
		assert.Empty(t, NormalizeTags("  , ,, ##"))
	})

	t.Run("Newlines", func(t *testing.T) {
		assert.Equal(t, []string{"#a", "#b"}, NormalizeTags("a\nb"))
	})
}

func TestJoinKeys(t *testing.T) {
	assert.Equal(t, "u1-p1", JoinKey("u1", "p1"))
	assert.Equal(t, JoinKey("u1", "p1"), LikeKey("u1", "p1"))
	assert.Equal(t, JoinKey("u1", "prod1"), FavoriteKey("u1", "prod1"))
	assert.Equal(t, JoinKey("u1", "u2"), FollowKey("u1", "u2"))

	// Same pair always derives the same id, so a second like targets the
	// same record instead of creating another one.
	assert.Equal(t, LikeKey("u1", "p1"), LikeKey("u1", "p1"))
	assert.NotEqual(t, LikeKey("u1", "p1"), LikeKey("p1", "u1"))
}

func TestProductStatusValid(t *testing.T) {
	for _, s := range []ProductStatus{StatusPending, StatusApproved, StatusRejected, StatusPaused, StatusSold} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, ProductStatus("").Valid())
	assert.False(t, ProductStatus("ARCHIVED").Valid())
}

func TestErrorTaxonomy(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		err := NewNotFoundError("post", "p1")
		assert.True(t, IsNotFound(err))
		assert.False(t, IsPermissionDenied(err))
		assert.Contains(t, err.Error(), "p1")
	})

	t.Run("Wrapped", func(t *testing.T) {
		inner := NewPermissionError("nope")
		err := errors.Join(errors.New("context"), inner)
		assert.True(t, IsPermissionDenied(err))
	})

	t.Run("RemoteUnwrap", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := NewRemoteError(cause)
		assert.ErrorIs(t, err, cause)
		assert.False(t, IsValidation(err))
	})
}
