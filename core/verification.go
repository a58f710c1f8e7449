package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const verifiedFlagSuffix = ":verified"

// VerificationFlags tracks short-lived email verification outcomes in the
// session cache. The flag is written when a verification code checks out
// and consumed exactly once by the registration path.
type VerificationFlags struct {
	cache SessionCache
	ttl   time.Duration
}

func NewVerificationFlags(cache SessionCache, ttl time.Duration) (*VerificationFlags, error) {
	if cache == nil {
		return nil, fmt.Errorf("core: session cache is required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &VerificationFlags{cache: cache, ttl: ttl}, nil
}

func verifiedFlagKey(email string) string {
	return email + verifiedFlagSuffix
}

// MarkVerified records that the email passed verification. The flag
// expires on its own; registration must happen within the TTL.
func (f *VerificationFlags) MarkVerified(ctx context.Context, email string) error {
	if f == nil || f.cache == nil {
		return fmt.Errorf("core: verification flags are not configured")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("core: email is required")
	}
	return f.cache.Set(ctx, verifiedFlagKey(email), "true", f.ttl)
}

// Check reports whether the email carries a live verification flag
// without touching it. Registration checks at entry and consumes only
// after the account lands, so a failed attempt does not burn the flag.
func (f *VerificationFlags) Check(ctx context.Context, email string) (bool, error) {
	if f == nil || f.cache == nil {
		return false, fmt.Errorf("core: verification flags are not configured")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}

	value, found, err := f.cache.Get(ctx, verifiedFlagKey(email))
	if err != nil {
		return false, fmt.Errorf("core: read verification flag: %w", err)
	}
	return found && value == "true", nil
}

// Consume reports whether the email carries a live verification flag and
// removes it, so a single verification admits a single registration.
func (f *VerificationFlags) Consume(ctx context.Context, email string) (bool, error) {
	live, err := f.Check(ctx, email)
	if err != nil || !live {
		return false, err
	}
	if _, err := f.cache.Delete(ctx, verifiedFlagKey(email)); err != nil {
		return false, fmt.Errorf("core: consume verification flag: %w", err)
	}
	return true, nil
}
