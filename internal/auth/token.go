// Package auth issues and verifies the JWT access tokens used by the API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Issuer is the iss claim of every token.
	Issuer = "recipebox-api"
	// Audience is the aud claim of every token.
	Audience = "recipebox-client"
	// TokenTTL is how long an access token stays valid.
	TokenTTL = 7 * 24 * time.Hour
	// SessionCookie carries the token for server-rendered pages.
	SessionCookie = "rb_session"
)

// ErrRevoked is returned for tokens whose jti has been blacklisted.
var ErrRevoked = errors.New("token has been revoked")

// Claims are the registered claims plus the user's email.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for the user and returns it with its claims.
func IssueToken(secret, userID, email string, now time.Time) (string, *Claims, error) {
	if secret == "" {
		return "", nil, fmt.Errorf("JWT secret not configured")
	}
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        generateJTI(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseToken verifies signature, issuer, audience and expiry.
func ParseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// BlacklistKey is the Redis key marking a revoked jti.
func BlacklistKey(jti string) string {
	return "jwt:blacklist:" + jti
}

// Revoke blacklists the token's jti until the token would have expired anyway.
func Revoke(ctx context.Context, rdb *redis.Client, claims *Claims) error {
	if rdb == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return rdb.Set(ctx, BlacklistKey(claims.ID), "1", ttl).Err()
}

// IsRevoked reports whether the jti is blacklisted. A nil client means no
// blacklist is configured.
func IsRevoked(ctx context.Context, rdb *redis.Client, jti string) (bool, error) {
	if rdb == nil || jti == "" {
		return false, nil
	}
	n, err := rdb.Exists(ctx, BlacklistKey(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func generateJTI(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.Unix(), uuid.NewString()[:8])
}
