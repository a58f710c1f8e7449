package auth

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestClientAssertionStrategy_MintsSignedAssertion(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	strategy := NewClientAssertionStrategy(ClientAssertionStrategyConfig{
		Issuer:       "team-identity",
		Subject:      "com.example.signin",
		Audience:     "https://appleid.apple.com",
		Secret:       "assertion-signing-secret",
		KeyID:        "KEY123",
		AssertionTTL: time.Hour,
		Now:          func() time.Time { return now },
	})

	req, _ := http.NewRequest(http.MethodPost, "https://appleid.apple.com/auth/token", nil)
	if err := strategy.Authorize(context.Background(), req); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		t.Fatalf("expected bearer assertion, got %q", header)
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	parsed, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		return []byte("assertion-signing-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parse assertion: %v", err)
	}
	if kid, _ := parsed.Header["kid"].(string); kid != "KEY123" {
		t.Fatalf("unexpected kid %v", parsed.Header["kid"])
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if claims["iss"] != "team-identity" || claims["sub"] != "com.example.signin" {
		t.Fatalf("unexpected claims %v", claims)
	}
	if claims["aud"] != "https://appleid.apple.com" {
		t.Fatalf("unexpected audience %v", claims["aud"])
	}
	if exp, _ := claims["exp"].(float64); int64(exp) != now.Add(time.Hour).Unix() {
		t.Fatalf("unexpected expiry %v", claims["exp"])
	}
}

func TestClientAssertionStrategy_CachesUntilRenewWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	strategy := NewClientAssertionStrategy(ClientAssertionStrategyConfig{
		Issuer:       "team-identity",
		Audience:     "https://appleid.apple.com",
		Secret:       "assertion-signing-secret",
		AssertionTTL: 10 * time.Minute,
		RenewBefore:  time.Minute,
		Now:          func() time.Time { return now },
	})
	ctx := context.Background()

	first, _ := http.NewRequest(http.MethodPost, "https://appleid.apple.com/auth/token", nil)
	if err := strategy.Authorize(ctx, first); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	second, _ := http.NewRequest(http.MethodPost, "https://appleid.apple.com/auth/revoke", nil)
	if err := strategy.Authorize(ctx, second); err != nil {
		t.Fatalf("authorize cached: %v", err)
	}
	if first.Header.Get("Authorization") != second.Header.Get("Authorization") {
		t.Fatalf("expected cached assertion reuse")
	}

	now = now.Add(9*time.Minute + 30*time.Second)
	third, _ := http.NewRequest(http.MethodPost, "https://appleid.apple.com/auth/token", nil)
	if err := strategy.Authorize(ctx, third); err != nil {
		t.Fatalf("authorize renewed: %v", err)
	}
	if third.Header.Get("Authorization") == first.Header.Get("Authorization") {
		t.Fatalf("expected fresh assertion inside renew window")
	}

	// Subject falls back to the issuer when unset.
	raw := strings.TrimPrefix(third.Header.Get("Authorization"), "Bearer ")
	parsed, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		return []byte("assertion-signing-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithTimeFunc(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("parse renewed assertion: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != "team-identity" {
		t.Fatalf("expected issuer fallback subject, got %v", claims["sub"])
	}
}

func TestClientAssertionStrategy_RequiresIssuerAudienceSecret(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "https://appleid.apple.com/auth/token", nil)

	missing := NewClientAssertionStrategy(ClientAssertionStrategyConfig{Audience: "aud", Secret: "secret"})
	if err := missing.Authorize(context.Background(), req); err == nil {
		t.Fatalf("expected missing issuer rejection")
	}

	unsigned := NewClientAssertionStrategy(ClientAssertionStrategyConfig{Issuer: "iss", Audience: "aud"})
	if err := unsigned.Authorize(context.Background(), req); err == nil {
		t.Fatalf("expected missing secret rejection")
	}
}
