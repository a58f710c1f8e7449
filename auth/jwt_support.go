package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// clientAssertionClaims builds the registered claim set for a signed
// client assertion. Providers reject assertions without exp, so the
// caller always supplies a lifetime.
func clientAssertionClaims(issuer, subject, audience string, issuedAt time.Time, lifetime time.Duration) jwt.MapClaims {
	expiresAt := issuedAt.Add(lifetime)
	return jwt.MapClaims{
		"iss": issuer,
		"sub": subject,
		"aud": audience,
		"iat": issuedAt.Unix(),
		"exp": expiresAt.Unix(),
	}
}

func signClientAssertion(keyID string, secret string, claims jwt.MapClaims) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("auth: assertion signing secret is required")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if keyID = strings.TrimSpace(keyID); keyID != "" {
		token.Header["kid"] = keyID
	}
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign client assertion: %w", err)
	}
	return signed, nil
}
