package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	mgr := NewJWTManager("secret", time.Hour)
	userID := uuid.New()

	token, err := mgr.Generate(userID)
	require.NoError(t, err)

	claims, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := NewJWTManager("secret", time.Hour).Generate(uuid.New())
	require.NoError(t, err)

	_, err = NewJWTManager("other", time.Hour).Verify(token)
	assert.Error(t, err)
}
