package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kickin-server/internal/domain"
)

func TestVerifyRoundTrip(t *testing.T) {
	v, err := NewJWTVerifier("test-secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	token, err := v.Sign("user-42", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "user-42" {
		t.Fatalf("user id = %q, want user-42", id.UserID)
	}
	if id.IssuedAt.IsZero() {
		t.Fatalf("issued at not populated")
	}
}

func TestVerifyRejects(t *testing.T) {
	v, err := NewJWTVerifier("test-secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	other, err := NewJWTVerifier("other-secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	expired, err := v.Sign("user-42", -time.Minute)
	if err != nil {
		t.Fatalf("sign expired: %v", err)
	}
	wrongKey, err := other.Sign("user-42", time.Hour)
	if err != nil {
		t.Fatalf("sign wrong key: %v", err)
	}

	// Valid signature but no exp claim.
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-42",
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign no exp: %v", err)
	}

	// Valid signature and exp but no subject.
	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign no sub: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"expired", expired},
		{"wrong key", wrongKey},
		{"missing exp", noExp},
		{"missing sub", noSub},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			if !errors.Is(err, domain.ErrAuthFailed) {
				t.Fatalf("err = %v, want ErrAuthFailed", err)
			}
		})
	}
}

func TestNewJWTVerifierEmptyKey(t *testing.T) {
	if _, err := NewJWTVerifier(""); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
