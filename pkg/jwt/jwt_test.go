package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "test-access-secret-key-for-testing-purposes"
	testRefreshSecret = "test-refresh-secret-key-for-testing-purposes"
)

func newTestService() *Service {
	return NewService(testAccessSecret, testRefreshSecret, time.Hour, 24*time.Hour)
}

func TestNewService(t *testing.T) {
	service := newTestService()

	assert.NotNil(t, service)
	assert.Equal(t, time.Hour, service.AccessTokenExpiry())
	assert.Equal(t, 24*time.Hour, service.RefreshTokenExpiry())
}

func TestGenerateAccessToken(t *testing.T) {
	service := newTestService()
	userID := uuid.NewString()
	roles := []string{"resident", "owner"}

	token, err := service.GenerateAccessToken(userID, "john@example.com", roles, "B-203")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "john@example.com", claims.Email)
	assert.Equal(t, roles, claims.Roles)
	assert.Equal(t, "B-203", claims.FlatNumber)
	assert.Equal(t, AccessToken, claims.TokenType)
	assert.True(t, claims.HasRole("owner"))
	assert.False(t, claims.HasRole("admin"))
}

func TestGenerateRefreshToken(t *testing.T) {
	service := newTestService()
	userID := uuid.NewString()

	token, err := service.GenerateRefreshToken(userID, "john@example.com")
	require.NoError(t, err)

	claims, err := service.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, RefreshToken, claims.TokenType)
	assert.NotEmpty(t, claims.ID)
}

func TestRefreshTokensAreDistinct(t *testing.T) {
	service := newTestService()
	userID := uuid.NewString()

	first, err := service.GenerateRefreshToken(userID, "a@b.com")
	require.NoError(t, err)
	second, err := service.GenerateRefreshToken(userID, "a@b.com")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestValidateAccessToken(t *testing.T) {
	service := newTestService()

	token, err := service.GenerateAccessToken(uuid.NewString(), "admin@society.com", []string{"admin"}, "")
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	require.NoError(t, err)

	_, err = service.ValidateAccessToken("invalid.token.here")
	assert.Error(t, err)

	wrongService := NewService("wrong-secret", testRefreshSecret, time.Hour, 24*time.Hour)
	_, err = wrongService.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestTokenTypeMismatch(t *testing.T) {
	// Same secret for both so only the type check can reject
	service := NewService(testAccessSecret, testAccessSecret, time.Hour, 24*time.Hour)
	userID := uuid.NewString()

	accessToken, err := service.GenerateAccessToken(userID, "a@b.com", []string{"admin"}, "")
	require.NoError(t, err)
	_, err = service.ValidateRefreshToken(accessToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token type")

	refreshToken, err := service.GenerateRefreshToken(userID, "a@b.com")
	require.NoError(t, err)
	_, err = service.ValidateAccessToken(refreshToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token type")
}

func TestExpiredToken(t *testing.T) {
	service := NewService(testAccessSecret, testRefreshSecret, -time.Minute, -time.Minute)

	token, err := service.GenerateAccessToken(uuid.NewString(), "a@b.com", []string{"admin"}, "")
	require.NoError(t, err)

	_, err = service.ValidateAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestGetTokenExpiry(t *testing.T) {
	service := newTestService()

	token, err := service.GenerateAccessToken(uuid.NewString(), "a@b.com", nil, "")
	require.NoError(t, err)

	expiry, err := service.GetTokenExpiry(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiry, 5*time.Second)

	_, err = service.GetTokenExpiry("invalid.token.here")
	assert.Error(t, err)
}

func TestTokenSigningMethodAndIssuer(t *testing.T) {
	service := newTestService()
	userID := uuid.NewString()

	token, err := service.GenerateAccessToken(userID, "a@b.com", []string{"resident"}, "C-401")
	require.NoError(t, err)

	parsedToken, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(testAccessSecret), nil
	})
	require.NoError(t, err)

	_, ok := parsedToken.Method.(*jwt.SigningMethodHMAC)
	assert.True(t, ok, "Token should use HMAC signing method")

	claims := parsedToken.Claims.(*Claims)
	assert.Equal(t, "society-gate", claims.Issuer)
	assert.Equal(t, userID, claims.Subject)
}

func TestRejectsForeignIssuer(t *testing.T) {
	claims := Claims{
		UserID:    uuid.NewString(),
		TokenType: AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	_, err = newTestService().ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestConcurrentTokenGeneration(t *testing.T) {
	service := newTestService()

	done := make(chan bool)
	errors := make(chan error, 100)

	for i := 0; i < 100; i++ {
		go func() {
			token, err := service.GenerateAccessToken(uuid.NewString(), "a@b.com", []string{"resident"}, "A-101")
			if err != nil {
				errors <- err
				done <- true
				return
			}

			if _, err := service.ValidateAccessToken(token); err != nil {
				errors <- err
			}
			done <- true
		}()
	}

	for i := 0; i < 100; i++ {
		<-done
	}

	close(errors)
	assert.Empty(t, errors)
}
