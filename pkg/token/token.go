package token

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims structure for custom claims in JWT
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

var (
	// ErrInvalidToken token cannot be trusted
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingBearer authorization header is not a bearer token
	ErrMissingBearer = errors.New("invalid or missing bearer token")
)

const bearerPrefix = "Bearer "

// Secret Key for JWT signing and validation
var (
	mu              sync.RWMutex
	jwtSecret       = []byte("secure_secret_key")
	tokenExpiration = 60 * time.Minute
)

// SetSecret replace signing key and lifetime, called once from main with the auth config
func SetSecret(secret string, expiration time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if secret != "" {
		jwtSecret = []byte(secret)
	}
	if expiration > 0 {
		tokenExpiration = expiration
	}
}

func secret() ([]byte, time.Duration) {
	mu.RLock()
	defer mu.RUnlock()
	return jwtSecret, tokenExpiration
}

// GenerateJWT generates a JWT token
func GenerateJWT(userID, issuer string) (string, error) {
	if userID == "" {
		return "", ErrInvalidToken
	}
	key, expiration := secret()
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// ParseJWT parses a JWT and extracts the Claims; expired tokens fail
func ParseJWT(tokenStr string) (*Claims, error) {
	key, _ := secret()
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Check if the signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseBearer parse "Bearer <jwt>" from an Authorization header
func ParseBearer(header string) (*Claims, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, ErrMissingBearer
	}
	return ParseJWT(strings.TrimSpace(header[len(bearerPrefix):]))
}
