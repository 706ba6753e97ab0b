package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/trainhub/internal/auth"
)

const testSecret = "test-secret-key-very-long-and-secure"

func TestJWT_IssueAndValidate(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	tests := []struct {
		name      string
		issue     func(string, string, uuid.UUID, string, time.Duration) (string, error)
		role      string
		tokenType string
	}{
		{name: "access token", issue: auth.IssueAccessToken, role: "admin", tokenType: "access"},
		{name: "refresh token", issue: auth.IssueRefreshToken, role: "coach", tokenType: "refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := tt.issue(testSecret, "org-xyz", userID, tt.role, 10*time.Minute)
			require.NoError(t, err)

			claims, err := auth.ValidateToken(testSecret, token)
			require.NoError(t, err)

			assert.Equal(t, "org-xyz", claims.TenantID)
			assert.Equal(t, userID.String(), claims.UserID)
			assert.Equal(t, tt.role, claims.Role)
			assert.Equal(t, tt.tokenType, claims.TokenType)
			assert.Equal(t, "trainhub", claims.Issuer)
			assert.NotNil(t, claims.ExpiresAt)
		})
	}
}

func TestJWT_Rejected(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	expired, err := auth.IssueAccessToken(testSecret, "org-xyz", userID, "coach", -time.Second)
	require.NoError(t, err)

	foreignIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: "org-xyz",
		UserID:   userID.String(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noTenant, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "trainhub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: userID.String(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{name: "expired", secret: testSecret, token: expired},
		{name: "wrong secret", secret: "wrong-secret", token: expired},
		{name: "foreign issuer", secret: testSecret, token: foreignIssuer},
		{name: "missing tenant", secret: testSecret, token: noTenant},
		{name: "malformed", secret: testSecret, token: "not.a.valid.jwt.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := auth.ValidateToken(tt.secret, tt.token)
			require.Error(t, err)
			assert.Nil(t, claims)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}

func TestJWT_EmptyTenantNotIssued(t *testing.T) {
	t.Parallel()

	_, err := auth.IssueAccessToken(testSecret, "", uuid.New(), "coach", time.Minute)
	assert.Error(t, err)
}
