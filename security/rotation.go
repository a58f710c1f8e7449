package security

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/goliatone/go-identity/core"
)

// KeyRotationWindow gates when a key version is allowed to sign.
type KeyRotationWindow struct {
	NotBefore time.Time
	NotAfter  time.Time
}

func (w KeyRotationWindow) Allows(at time.Time) bool {
	ts := at.UTC()
	if !w.NotBefore.IsZero() && ts.Before(w.NotBefore.UTC()) {
		return false
	}
	if !w.NotAfter.IsZero() && ts.After(w.NotAfter.UTC()) {
		return false
	}
	return true
}

type RotatingKey struct {
	Version int
	Key     []byte
	Window  KeyRotationWindow
}

// RotatingKeyProvider serves the highest-versioned key whose rotation
// window covers the current time. Keys outside their window are skipped so
// a scheduled cutover needs no process restart.
type RotatingKeyProvider struct {
	keys []RotatingKey
	now  func() time.Time
}

func NewRotatingKeyProvider(keys []RotatingKey, now func() time.Time) (*RotatingKeyProvider, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("security: at least one rotating key is required")
	}
	sorted := make([]RotatingKey, 0, len(keys))
	for _, key := range keys {
		if key.Version <= 0 {
			return nil, fmt.Errorf("security: rotating key version must be positive")
		}
		if len(key.Key) == 0 {
			return nil, fmt.Errorf("security: rotating key %d has no key material", key.Version)
		}
		material := make([]byte, len(key.Key))
		copy(material, key.Key)
		key.Key = material
		sorted = append(sorted, key)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version > sorted[j].Version })
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RotatingKeyProvider{keys: sorted, now: now}, nil
}

func (p *RotatingKeyProvider) SigningKey(_ context.Context) ([]byte, error) {
	if p == nil || len(p.keys) == 0 {
		return nil, fmt.Errorf("security: key provider is not configured")
	}
	at := p.now()
	for _, candidate := range p.keys {
		if !candidate.Window.Allows(at) {
			continue
		}
		key := make([]byte, len(candidate.Key))
		copy(key, candidate.Key)
		return key, nil
	}
	return nil, fmt.Errorf("security: no rotating key is active at %s", at.UTC().Format(time.RFC3339))
}

func (p *RotatingKeyProvider) Metadata() (string, int) {
	if p == nil || len(p.keys) == 0 {
		return "", 0
	}
	at := p.now()
	for _, candidate := range p.keys {
		if candidate.Window.Allows(at) {
			return "rotating-key", candidate.Version
		}
	}
	return "", 0
}

var _ core.SigningKeyProvider = (*RotatingKeyProvider)(nil)
