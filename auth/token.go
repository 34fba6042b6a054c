package auth

import (
	"fmt"
	"hive-chat/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "hive-chat"

// Claims identifies the user a token was issued to.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 tokens.
// With an empty secret, authentication is disabled and every check passes.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

func (m *TokenManager) Enabled() bool {
	return m != nil && len(m.secret) > 0
}

// GenerateToken creates a signed token for userID.
func (m *TokenManager) GenerateToken(userID string) (string, error) {
	if !m.Enabled() {
		return "", fmt.Errorf("%w: no signing secret configured", errors.ErrUnauthenticated)
	}
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// ValidateToken checks signature, issuer and expiration.
func (m *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrUnauthenticated, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("%w: %w", errors.ErrUnauthenticated, jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}
