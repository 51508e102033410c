package utils

import (
	"testing"
	"time"

	"visitortrack/api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	assert.Equal(t, 50, Clamp(0, 50, 1, 1000))
	assert.Equal(t, 50, Clamp(-3, 50, 1, 1000))
	assert.Equal(t, 1000, Clamp(5000, 50, 1, 1000))
	assert.Equal(t, 7, Clamp(7, 50, 1, 1000))
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 10))
	assert.Equal(t, 1, TotalPages(10, 10))
	assert.Equal(t, 2, TotalPages(11, 10))
	assert.Equal(t, 0, TotalPages(5, 0))
}

func TestIsValidSortOrder(t *testing.T) {
	assert.True(t, IsValidSortOrder(""))
	assert.True(t, IsValidSortOrder("ASC"))
	assert.True(t, IsValidSortOrder("desc"))
	assert.False(t, IsValidSortOrder("sideways"))
}

func TestGenerateSessionID_Unique(t *testing.T) {
	assert.NotEqual(t, GenerateSessionID(), GenerateSessionID())
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := &models.User{ID: 7, Email: "admin@example.com"}

	token, err := m.GenerateJWT(user)
	require.NoError(t, err)

	claims, err := m.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "admin@example.com", claims.Email)
}

func TestJWTManager_RejectsOtherSecret(t *testing.T) {
	token, err := NewJWTManager("one", time.Hour).GenerateJWT(&models.User{ID: 1})
	require.NoError(t, err)

	_, err = NewJWTManager("two", time.Hour).ValidateJWT(token)
	assert.Error(t, err)
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := m.GenerateJWT(&models.User{ID: 1})
	require.NoError(t, err)

	_, err = m.ValidateJWT(token)
	assert.Error(t, err)
}
