package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewToken("secret", time.Minute, ClaimLogin, "user-1")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", token, ClaimLogin)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.Subject != "user-1" || claims.ClaimType != ClaimLogin {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil || claims.ID == "" {
		t.Fatalf("expected exp, iat and jti to be set")
	}
}

func TestTokensAreUnique(t *testing.T) {
	first, err := NewToken("secret", time.Minute, ClaimLogin, "user-1")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	second, err := NewToken("secret", time.Minute, ClaimLogin, "user-1")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens")
	}
}

func TestParseTokenRejects(t *testing.T) {
	token, err := NewToken("secret", time.Minute, ClaimRefresh, "user-1")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", token, ClaimLogin); !errors.Is(err, ErrClaimType) {
		t.Fatalf("expected claim type error, got %v", err)
	}
	if _, err := ParseToken("secret", token, ""); err != nil {
		t.Fatalf("expected any claim type to be accepted, got %v", err)
	}
	if _, err := ParseToken("other", token, ""); err == nil {
		t.Fatalf("expected signature error")
	}

	expired, err := NewToken("secret", -time.Minute, ClaimLogin, "user-1")
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", expired, ClaimLogin); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
	if _, err := ParseToken("secret", "not-a-token", ""); err == nil {
		t.Fatalf("expected malformed token to be rejected")
	}
}
