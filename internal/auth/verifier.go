package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kickin-server/internal/domain"
)

// Identity is the result of a successful handshake token verification.
type Identity struct {
	UserID   string
	IssuedAt time.Time
}

// TokenVerifier validates a bearer token presented during the connection
// handshake and returns the identity it carries.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// JWTVerifier verifies HS256-signed tokens with a shared secret. The
// `sub` claim carries the user id and `exp` is mandatory.
type JWTVerifier struct {
	key []byte
}

// NewJWTVerifier creates a verifier for the given shared secret.
func NewJWTVerifier(key string) (*JWTVerifier, error) {
	if key == "" {
		return nil, fmt.Errorf("jwt key must not be empty")
	}
	return &JWTVerifier{key: []byte(key)}, nil
}

// Verify parses and validates the token.
func (v *JWTVerifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return v.key, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Identity{}, domain.ErrAuthFailed
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, domain.ErrAuthFailed
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, domain.ErrAuthFailed
	}

	id := Identity{UserID: sub}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		id.IssuedAt = iat.Time
	}
	return id, nil
}

// Sign mints a token for the given user id, valid for the given
// lifetime. Used by the token-gen utility and tests; the production
// handshake only verifies.
func (v *JWTVerifier) Sign(userID string, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(lifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.key)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
