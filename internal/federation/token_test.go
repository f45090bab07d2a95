package federation

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestHMACTokenSource_MintsVerifiableToken(t *testing.T) {
	src := NewHMACTokenSource(testKey, "access-core", time.Hour)

	raw, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			t.Fatalf("unexpected signing method %v", tok.Method.Alg())
		}
		return testKey, nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("token did not verify: %v", err)
	}

	if claims.Subject != "service" {
		t.Errorf("expected subject 'service', got %q", claims.Subject)
	}
	if claims.Issuer != "access-core" {
		t.Errorf("expected issuer 'access-core', got %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("expected a jti claim")
	}

	validity := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if validity != time.Hour {
		t.Errorf("expected 1h validity, got %s", validity)
	}
}

func TestHMACTokenSource_CachesUntilExpiry(t *testing.T) {
	src := NewHMACTokenSource(testKey, "access-core", time.Hour)

	first, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Error("expected the cached token on the second call")
	}
}

func TestHMACTokenSource_RejectsWrongKey(t *testing.T) {
	src := NewHMACTokenSource(testKey, "access-core", time.Hour)

	raw, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = jwt.Parse(raw, func(tok *jwt.Token) (interface{}, error) {
		return []byte("another-key-another-key-another!"), nil
	})
	if err == nil {
		t.Error("expected verification failure with the wrong key")
	}
}
