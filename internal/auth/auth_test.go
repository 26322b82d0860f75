package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oinkbank/ledger/internal/auth"
	"github.com/oinkbank/ledger/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	a := auth.New("test-secret", time.Hour)
	user := &models.User{ID: uuid.New(), Admin: true}

	token, expiresAt, err := a.GenerateToken(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := a.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.True(t, claims.Admin)

	// "Bearer <token>" is accepted too.
	claims, err = a.VerifyToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
}

func TestVerifyToken_Rejections(t *testing.T) {
	a := auth.New("test-secret", time.Hour)
	user := &models.User{ID: uuid.New()}

	token, _, err := a.GenerateToken(user)
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := a.VerifyToken("")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := a.VerifyToken("not.a.token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := auth.New("other-secret", time.Hour)
		_, err := other.VerifyToken(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		expired := auth.New("test-secret", -time.Minute)
		tok, _, err := expired.GenerateToken(user)
		require.NoError(t, err)
		_, err = a.VerifyToken(tok)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.NoError(t, auth.VerifyPassword("hunter2", hash))
	assert.ErrorIs(t, auth.VerifyPassword("wrong", hash), auth.ErrInvalidCredentials)
}
