package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	t.Run("should carry the user id through validation", func(t *testing.T) {
		req := require.New(t)

		token, err := GenerateToken("alice", []string{"user"}, time.Hour)
		req.NoError(err)

		claims, err := ValidateToken(token)
		req.NoError(err)
		req.Equal("alice", claims.UserID)
		req.Equal([]string{"user"}, claims.Roles)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		req := require.New(t)

		token, err := GenerateToken("alice", nil, -time.Minute)
		req.NoError(err)

		_, err = ValidateToken(token)
		req.Error(err)
	})

	t.Run("should reject garbage", func(t *testing.T) {
		_, err := ValidateToken("not.a.token")
		require.Error(t, err)
	})
}

func TestPasswordHashing(t *testing.T) {
	t.Run("should verify the original password only", func(t *testing.T) {
		req := require.New(t)

		hash, err := HashPassword("s3cret-passphrase")
		req.NoError(err)
		req.Contains(hash, "$argon2id$")

		ok, err := ComparePassword("s3cret-passphrase", hash)
		req.NoError(err)
		req.True(ok)

		ok, err = ComparePassword("wrong-passphrase", hash)
		req.NoError(err)
		req.False(ok)
	})

	t.Run("should salt each hash independently", func(t *testing.T) {
		req := require.New(t)

		first, err := HashPassword("same input")
		req.NoError(err)
		second, err := HashPassword("same input")
		req.NoError(err)
		req.NotEqual(first, second)
	})

	t.Run("should refuse a malformed stored hash", func(t *testing.T) {
		_, err := ComparePassword("anything", "$md5$deadbeef")
		require.Error(t, err)
	})
}
