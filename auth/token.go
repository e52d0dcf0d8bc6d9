package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const bearerPrefix = "Bearer "

// Claims is the Bearer token payload: subject is the user id.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenSecret returns the token secret, JWT_SECRET, or the session secret.
func TokenSecret() string {
	mu.RLock()
	s := jwtSecret
	mu.RUnlock()
	if s != "" {
		return s
	}
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return s
	}
	return Secret()
}

// IssueToken signs an HS256 token for id valid for ttl.
func IssueToken(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: id.Name,
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TokenSecret()))
}

// ParseToken validates an HS256 token and returns the identity it carries.
func ParseToken(raw string) (Identity, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	var claims Claims
	token, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(TokenSecret()), nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return Identity{}, errors.New("invalid token")
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || uid == 0 {
		return Identity{}, errors.New("token subject is not a user id")
	}
	return Identity{UserID: uint(uid), Name: claims.Name, Role: claims.Role}, nil
}
