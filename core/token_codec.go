package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is what Verify recovers from a valid local session token.
type TokenClaims struct {
	UID      int64
	UserID   string
	UserName string
	Role     Role
}

func (c TokenClaims) User() LocalUser {
	return LocalUser{
		UID:      c.UID,
		UserID:   c.UserID,
		UserName: c.UserName,
		Role:     c.Role,
	}
}

type sessionClaims struct {
	jwt.RegisteredClaims
	UID      int64  `json:"uid"`
	Role     string `json:"role"`
	UserName string `json:"userName"`
}

type TokenCodecOption func(*TokenCodec)

func WithCodecClock(now func() time.Time) TokenCodecOption {
	return func(c *TokenCodec) {
		if c == nil || now == nil {
			return
		}
		c.now = now
	}
}

// TokenCodec mints and verifies signed session tokens for local accounts.
// It is a pure function of token plus signing key: no store or network
// access, and Verify never returns an error past its boundary.
type TokenCodec struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewTokenCodec(key []byte, issuer string, opts ...TokenCodecOption) (*TokenCodec, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("core: token signing key is required")
	}
	codec := &TokenCodec{
		key:    append([]byte(nil), key...),
		issuer: strings.TrimSpace(issuer),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(codec)
		}
	}
	return codec, nil
}

// Issue signs a token with subject = local user id and claims uid, role and
// userName, expiring after ttl.
func (c *TokenCodec) Issue(user LocalUser, ttl time.Duration) (string, error) {
	if c == nil || len(c.key) == 0 {
		return "", fmt.Errorf("core: token codec is not configured")
	}
	if strings.TrimSpace(user.UserID) == "" {
		return "", fmt.Errorf("core: user id is required to issue a token")
	}

	now := c.now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      user.UID,
		Role:     string(user.Role),
		UserName: user.UserName,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("core: sign session token: %w", err)
	}
	return signed, nil
}

// Verify classifies a token as Valid, Expired, or Invalid. Expired is
// reported iff the signature checks out and only the expiry has elapsed;
// every other failure (bad signature, malformed structure, claim
// extraction) is Invalid.
func (c *TokenCodec) Verify(token string) (TokenClaims, VerifyOutcome) {
	if c == nil || len(c.key) == 0 {
		return TokenClaims{}, VerifyInvalid
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenClaims{}, VerifyInvalid
	}

	parsed := sessionClaims{}
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return TokenClaims{}, VerifyExpired
		}
		return TokenClaims{}, VerifyInvalid
	}

	return claimsFromSession(parsed), VerifyValid
}

// Details extracts the principal encoded in a token without enforcing
// expiry, for paths that already validated the token or that tear down
// sessions (logout, account deletion).
func (c *TokenCodec) Details(token string) (LocalUser, error) {
	if c == nil || len(c.key) == 0 {
		return LocalUser{}, fmt.Errorf("core: token codec is not configured")
	}

	parsed := sessionClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &parsed, func(*jwt.Token) (any, error) {
		return c.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return LocalUser{}, fmt.Errorf("core: decode session token: %w", err)
	}
	return claimsFromSession(parsed).User(), nil
}

func claimsFromSession(parsed sessionClaims) TokenClaims {
	return TokenClaims{
		UID:      parsed.UID,
		UserID:   parsed.Subject,
		UserName: parsed.UserName,
		Role:     Role(parsed.Role),
	}
}
