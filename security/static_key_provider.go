package security

import (
	"bytes"
	"context"
	"crypto/sha512"
	"fmt"
	"strings"

	"github.com/goliatone/go-identity/core"
)

type Option func(*StaticKeyProvider)

// StaticKeyProvider serves a fixed HMAC signing key from in-process key
// material. Material that is not already a usable HMAC key size is derived
// through SHA-512 so short passphrases still produce a full-width key.
type StaticKeyProvider struct {
	key     []byte
	keyID   string
	version int
}

func WithKeyID(id string) Option {
	return func(provider *StaticKeyProvider) {
		trimmed := strings.TrimSpace(id)
		if trimmed != "" {
			provider.keyID = trimmed
		}
	}
}

func WithVersion(version int) Option {
	return func(provider *StaticKeyProvider) {
		if version > 0 {
			provider.version = version
		}
	}
}

func NewStaticKeyProvider(keyMaterial []byte, opts ...Option) (*StaticKeyProvider, error) {
	key := bytes.TrimSpace(keyMaterial)
	if len(key) == 0 {
		return nil, fmt.Errorf("security: key material is required")
	}
	provider := &StaticKeyProvider{
		key:     normalizeKey(key),
		keyID:   "app-key",
		version: 1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	return provider, nil
}

func NewStaticKeyProviderFromString(key string, opts ...Option) (*StaticKeyProvider, error) {
	return NewStaticKeyProvider([]byte(key), opts...)
}

func (p *StaticKeyProvider) SigningKey(_ context.Context) ([]byte, error) {
	if p == nil || len(p.key) == 0 {
		return nil, fmt.Errorf("security: key provider is not configured")
	}
	key := make([]byte, len(p.key))
	copy(key, p.key)
	return key, nil
}

func (p *StaticKeyProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.keyID
}

func (p *StaticKeyProvider) Version() int {
	if p == nil {
		return 0
	}
	return p.version
}

func (p *StaticKeyProvider) Metadata() (string, int) {
	return p.KeyID(), p.Version()
}

func normalizeKey(value []byte) []byte {
	if len(value) == 32 || len(value) == 48 || len(value) == 64 {
		key := make([]byte, len(value))
		copy(key, value)
		return key
	}
	sum := sha512.Sum512(value)
	key := make([]byte, len(sum))
	copy(key, sum[:])
	return key
}

var _ core.SigningKeyProvider = (*StaticKeyProvider)(nil)
