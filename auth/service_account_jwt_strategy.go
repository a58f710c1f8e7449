package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

type ClientAssertionStrategyConfig struct {
	Issuer   string
	Subject  string
	Audience string
	Secret   string
	KeyID    string
	// AssertionTTL bounds the assertion lifetime. Providers commonly cap
	// it, Apple at six months, most others at an hour.
	AssertionTTL time.Duration
	RenewBefore  time.Duration
	Now          func() time.Time
}

// ClientAssertionStrategy mints a signed JWT client assertion and sends
// it as the bearer credential. This is the Apple-style client secret:
// the provider hands out a signing key instead of a static secret and
// the service signs short-lived assertions with it.
type ClientAssertionStrategy struct {
	config ClientAssertionStrategyConfig

	mu        sync.Mutex
	assertion string
	expiresAt time.Time
}

func NewClientAssertionStrategy(cfg ClientAssertionStrategyConfig) *ClientAssertionStrategy {
	assertionTTL := cfg.AssertionTTL
	if assertionTTL <= 0 {
		assertionTTL = time.Hour
	}
	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = 2 * time.Minute
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ClientAssertionStrategy{
		config: ClientAssertionStrategyConfig{
			Issuer:       strings.TrimSpace(cfg.Issuer),
			Subject:      strings.TrimSpace(cfg.Subject),
			Audience:     strings.TrimSpace(cfg.Audience),
			Secret:       strings.TrimSpace(cfg.Secret),
			KeyID:        strings.TrimSpace(cfg.KeyID),
			AssertionTTL: assertionTTL,
			RenewBefore:  renewBefore,
			Now:          now,
		},
	}
}

func (*ClientAssertionStrategy) Kind() string { return KindClientAssertion }

func (s *ClientAssertionStrategy) Authorize(_ context.Context, req *http.Request) error {
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}
	assertion, err := s.currentAssertion()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+assertion)
	return nil
}

func (s *ClientAssertionStrategy) currentAssertion() (string, error) {
	if s == nil {
		return "", fmt.Errorf("auth: client assertion strategy is not configured")
	}
	if s.config.Issuer == "" || s.config.Audience == "" {
		return "", fmt.Errorf("auth: client assertion requires issuer and audience")
	}
	subject := firstNonEmpty(s.config.Subject, s.config.Issuer)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Now().UTC()
	if s.assertion != "" && s.expiresAt.After(now.Add(s.config.RenewBefore)) {
		return s.assertion, nil
	}

	claims := clientAssertionClaims(s.config.Issuer, subject, s.config.Audience, now, s.config.AssertionTTL)
	signed, err := signClientAssertion(s.config.KeyID, s.config.Secret, claims)
	if err != nil {
		return "", err
	}
	s.assertion = signed
	s.expiresAt = now.Add(s.config.AssertionTTL)
	return signed, nil
}

var _ Strategy = (*ClientAssertionStrategy)(nil)
