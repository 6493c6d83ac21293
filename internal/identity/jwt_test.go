package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, c claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(sub string) claims {
	now := time.Now()
	return claims{
		Email: "Owner@Example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://id.example.com",
			Audience:  jwt.ClaimStrings{"authenticated"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func TestJWTResolverResolvesSubject(t *testing.T) {
	resolver, err := NewJWTResolver(testSecret, "https://id.example.com", "authenticated", 0)
	require.NoError(t, err)

	userID := uuid.New()
	id, err := resolver.Resolve(context.Background(), signToken(t, testSecret, validClaims(userID.String())))
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
	assert.Equal(t, "owner@example.com", id.Email)
}

func TestJWTResolverRejects(t *testing.T) {
	resolver, err := NewJWTResolver(testSecret, "https://id.example.com", "authenticated", 0)
	require.NoError(t, err)

	expired := validClaims(uuid.NewString())
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	wrongAudience := validClaims(uuid.NewString())
	wrongAudience.Audience = jwt.ClaimStrings{"anon"}

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{name: "empty", token: "  ", want: ErrMissingToken},
		{name: "garbage", token: "not-a-jwt", want: ErrInvalidToken},
		{name: "wrong_secret", token: signToken(t, "other", validClaims(uuid.NewString())), want: ErrInvalidToken},
		{name: "expired", token: signToken(t, testSecret, expired), want: ErrInvalidToken},
		{name: "wrong_audience", token: signToken(t, testSecret, wrongAudience), want: ErrInvalidToken},
		{name: "non_uuid_subject", token: signToken(t, testSecret, validClaims("user-1")), want: ErrInvalidToken},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), tc.token)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestNewJWTResolverRequiresSecret(t *testing.T) {
	_, err := NewJWTResolver(" ", "", "", 0)
	assert.Error(t, err)
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id := &Identity{UserID: uuid.New()}
	got, ok := FromContext(WithIdentity(context.Background(), id))
	require.True(t, ok)
	assert.Equal(t, id.UserID, got.UserID)
}
