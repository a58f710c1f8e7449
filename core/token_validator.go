package core

import (
	"context"
	"fmt"
	"strings"
)

// TokenValidator classifies an incoming token string and dispatches to
// local JWT verification or a social session lookup. It is stateless per
// call and always returns a code, never an error.
type TokenValidator struct {
	codec    *TokenCodec
	sessions *SessionManager
}

func NewTokenValidator(codec *TokenCodec, sessions *SessionManager) (*TokenValidator, error) {
	if codec == nil {
		return nil, fmt.Errorf("core: token codec is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("core: session manager is required")
	}
	return &TokenValidator{codec: codec, sessions: sessions}, nil
}

// Validate resolves a token to one of the four stable codes: 0 for a
// missing token, 1 valid, 2 expired or not found, 3 invalid or mismatched.
// The class picks which cache bucket backs the social lookup.
func (v *TokenValidator) Validate(ctx context.Context, class TokenClass, token string) ValidationCode {
	if v == nil || v.codec == nil {
		return ValidationMismatch
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ValidationMissing
	}

	provider, opaque, social := SplitSocialToken(token)
	if !social {
		_, outcome := v.codec.Verify(token)
		return outcome.Code()
	}

	cacheKey := CacheKeyFor(provider.CacheNamespace(), opaque)
	var (
		stored string
		found  bool
		err    error
	)
	switch class {
	case TokenClassRefresh:
		stored, found, err = v.sessions.Refresh(ctx, cacheKey)
	default:
		stored, found, err = v.sessions.Access(ctx, cacheKey)
	}
	if err != nil || !found {
		return ValidationExpired
	}
	if stored == opaque {
		return ValidationValid
	}
	return ValidationMismatch
}

// SocialWireToken composes the wire form of a social token:
// "<provider>:<opaque>" with the provider in lower case.
func SocialWireToken(provider Provider, opaque string) string {
	return provider.WireName() + ":" + opaque
}

// SplitSocialToken splits a composite "<provider>:<opaque>" token. The bool
// reports whether the first segment named a supported provider; tokens
// without a separator, or with an unknown prefix, are treated as local.
func SplitSocialToken(token string) (Provider, string, bool) {
	head, tail, ok := strings.Cut(token, ":")
	if !ok {
		return "", "", false
	}
	provider, supported := ParseProvider(head)
	if !supported {
		return "", "", false
	}
	return provider, tail, true
}
