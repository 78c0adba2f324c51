package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndParse(t *testing.T) {
	SetSecret("unit-secret", time.Minute)

	tok, err := GenerateJWT("user-a", "messaging_service")
	require.NoError(t, err)

	claims, err := ParseJWT(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-a", claims.UserID)
	assert.Equal(t, "messaging_service", claims.Issuer)

	claims, err = ParseBearer("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "user-a", claims.UserID)
}

func TestParseRejects(t *testing.T) {
	SetSecret("unit-secret", time.Minute)

	_, err := ParseBearer("Token abc")
	assert.ErrorIs(t, err, ErrMissingBearer)

	_, err = ParseJWT("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// signed with another key
	other := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user-a"})
	s, err := other.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = ParseJWT(s)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// expired
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: "user-a",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	s, err = expired.SignedString([]byte("unit-secret"))
	require.NoError(t, err)
	_, err = ParseJWT(s)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = GenerateJWT("", "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
