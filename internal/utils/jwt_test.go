package utils

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()
	tok, err := NewAccessToken("secret", "user-1", "tutor", 5)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	claims, err := ParseAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != "tutor" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseAccessToken_Rejects(t *testing.T) {
	t.Parallel()
	good, _ := NewAccessToken("secret", "user-1", "student", 5)
	expired, _ := NewAccessToken("secret", "user-1", "student", -1)
	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "student", "exp": 4102444800}).SignedString([]byte("secret"))

	cases := map[string]struct{ secret, raw string }{
		"wrong secret": {"other", good.Token},
		"expired":      {"secret", expired.Token},
		"missing sub":  {"secret", noSub},
		"garbage":      {"secret", "not.a.jwt"},
	}
	for name, tc := range cases {
		if _, err := ParseAccessToken(tc.secret, tc.raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestRefreshToken_HashIsStable(t *testing.T) {
	t.Parallel()
	rt, err := NewRefreshToken(7)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if len(rt.Raw) != 96 {
		t.Fatalf("expected 96 hex chars, got %d", len(rt.Raw))
	}
	if HashRefreshRaw(rt.Raw) != HashRefreshRaw(rt.Raw) || HashRefreshRaw(rt.Raw) == rt.Raw {
		t.Fatal("hash must be deterministic and differ from the raw token")
	}
}

func TestPassword_HashAndVerify(t *testing.T) {
	t.Parallel()
	hash, err := HashPassword("correct horse", 4)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !VerifyPassword(hash, "correct horse") || VerifyPassword(hash, "wrong") {
		t.Fatal("password verification mismatch")
	}
}
