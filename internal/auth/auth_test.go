package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

func testUser() *models.User {
	return &models.User{ID: "user-1", Email: "chef@fleet.local", Role: models.RoleChefPark}
}

func TestNewService(t *testing.T) {
	service := NewService("secret", 0)
	assert.NotNil(t, service)
	assert.Equal(t, []byte("secret"), service.jwtSecret)
	assert.Equal(t, 24*time.Hour, service.tokenExp)

	assert.Equal(t, time.Hour, NewService("secret", time.Hour).tokenExp)
}

func TestService_HashPassword(t *testing.T) {
	service := NewService("secret", time.Hour)

	password := "testpassword123"
	hash, err := service.HashPassword(password)

	assert.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash)
	assert.True(t, service.CheckPassword(password, hash))
	assert.False(t, service.CheckPassword("wrongpassword", hash))
}

func TestService_TokenRoundTrip(t *testing.T) {
	service := NewService("secret", time.Hour)

	token, err := service.GenerateToken(testUser())
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "chef@fleet.local", claims.Email)
	assert.Equal(t, models.RoleChefPark, claims.Role)
	assert.Greater(t, claims.Exp, time.Now().Unix())

	withPrefix, err := service.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, claims.UserID, withPrefix.UserID)
}

func TestService_ValidateToken_Rejections(t *testing.T) {
	service := NewService("secret", time.Hour)

	_, err := service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewService("other", time.Hour).GenerateToken(testUser())
	require.NoError(t, err)
	_, err = service.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewService("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.GenerateToken(testUser())
	require.NoError(t, err)
	_, err = service.ValidateToken(old)
	assert.ErrorIs(t, err, ErrExpiredToken)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-1",
		"role":    "superuser",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := badRole.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = service.ValidateToken(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestService_ExtractTokenFromHeader(t *testing.T) {
	service := NewService("secret", time.Hour)

	tests := []struct {
		name     string
		header   string
		expected string
		wantErr  bool
	}{
		{"valid bearer token", "Bearer valid-token", "valid-token", false},
		{"empty header", "", "", true},
		{"missing bearer prefix", "valid-token", "", true},
		{"wrong prefix", "Basic valid-token", "", true},
		{"empty token", "Bearer ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := service.ExtractTokenFromHeader(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, token)
		})
	}
}

func TestService_ValidatePassword(t *testing.T) {
	service := NewService("secret", time.Hour)
	assert.NoError(t, service.ValidatePassword("long-enough"))
	assert.Error(t, service.ValidatePassword("short"))
}
