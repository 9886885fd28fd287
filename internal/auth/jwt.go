package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zooconnect/ambassador-chat/internal/model/identity"
)

// Claims mirrors the token payload the external credential system issues.
type Claims struct {
	UserID     string   `json:"user_id"`
	Role       string   `json:"role"`
	GuardianOf []string `json:"guardian_of,omitempty"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 tokens against a shared secret.
type JWTValidator struct {
	secret []byte
}

// NewJWTValidator builds a validator for the given signing secret.
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

// Validate parses and verifies the token and maps its claims to an Identity.
func (v *JWTValidator) Validate(tokenString string) (identity.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return identity.Identity{}, ErrInvalidToken
	}

	role := identity.Role(claims.Role)
	if !role.Valid() {
		return identity.Identity{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	id := identity.Identity{UserID: claims.UserID, Role: role}
	if role == identity.RoleParent {
		id.GuardianOf = claims.GuardianOf
	}
	return id, nil
}

// NewToken signs a token for the given identity. Used by tests and local
// tooling; production tokens come from the external credential system.
func NewToken(secret string, id identity.Identity, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:     id.UserID,
		Role:       string(id.Role),
		GuardianOf: id.GuardianOf,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
