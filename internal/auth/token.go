// Package auth issues and validates the JWT-signed operator tokens
// used to authorize OperatorOverride events (spec.md §9 resolution:
// OVERRIDE is a JWT-signed event accepted only in HOLD). Adapted
// directly from the teacher's auth.Claims/GenerateJWT/ValidateToken
// trio, generalized from trading-account roles to operator roles.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Operator is an authenticated human permitted to issue overrides.
type Operator struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
}

// Claims is the JWT payload carried by an operator's session token.
type Claims struct {
	OperatorID string `json:"operator_id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken issues a session token for op, signed with secret and
// valid for expiry.
func GenerateToken(op Operator, secret []byte, expiry time.Duration) (string, error) {
	claims := &Claims{
		OperatorID: op.ID,
		Username:   op.Username,
		Role:       op.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "payment-orchestrator",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken verifies tokenString's signature and expiry and
// returns its claims.
func ValidateToken(tokenString string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
