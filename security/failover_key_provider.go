package security

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-identity/core"
)

type KeyProviderFailurePolicy string

const (
	KeyProviderFailurePolicyStrict   KeyProviderFailurePolicy = "strict_fail"
	KeyProviderFailurePolicyFallback KeyProviderFailurePolicy = "fallback_allowed"
)

type KeyProviderDiagnostic struct {
	OccurredAt time.Time
	Policy     KeyProviderFailurePolicy
	Outcome    string
	Primary    string
	Fallback   string
	Error      string
}

type KeyProviderDiagnosticHook func(event KeyProviderDiagnostic)

type FailoverOption func(*FailoverKeyProvider)

type providerMetadataPair struct {
	KeyID   string
	Version int
}

// FailoverKeyProvider resolves the signing key from a primary source and,
// under the fallback policy, from a secondary source when the primary
// fails. Validation against tokens signed by the fallback key stays
// possible while the primary source is down.
type FailoverKeyProvider struct {
	primary        core.SigningKeyProvider
	fallback       core.SigningKeyProvider
	policy         KeyProviderFailurePolicy
	diagnosticHook KeyProviderDiagnosticHook
	now            func() time.Time

	mu             sync.RWMutex
	lastResolution providerMetadataPair
}

func NewFailoverKeyProvider(primary core.SigningKeyProvider, opts ...FailoverOption) (*FailoverKeyProvider, error) {
	if primary == nil {
		return nil, fmt.Errorf("security: primary key provider is required")
	}
	provider := &FailoverKeyProvider{
		primary: primary,
		policy:  KeyProviderFailurePolicyStrict,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(provider)
	}
	provider.policy = normalizeFailurePolicy(provider.policy)
	if provider.policy == KeyProviderFailurePolicyFallback && provider.fallback == nil {
		return nil, fmt.Errorf("security: fallback policy requires a configured fallback key provider")
	}
	if provider.now == nil {
		provider.now = func() time.Time { return time.Now().UTC() }
	}
	provider.recordMetadata(provider.primary)
	return provider, nil
}

func WithFallbackKeyProvider(provider core.SigningKeyProvider) FailoverOption {
	return func(f *FailoverKeyProvider) {
		if f == nil {
			return
		}
		f.fallback = provider
	}
}

func WithKeyProviderFailurePolicy(policy KeyProviderFailurePolicy) FailoverOption {
	return func(f *FailoverKeyProvider) {
		if f == nil {
			return
		}
		f.policy = normalizeFailurePolicy(policy)
	}
}

func WithKeyProviderDiagnostics(hook KeyProviderDiagnosticHook) FailoverOption {
	return func(f *FailoverKeyProvider) {
		if f == nil {
			return
		}
		f.diagnosticHook = hook
	}
}

func WithFailoverClock(now func() time.Time) FailoverOption {
	return func(f *FailoverKeyProvider) {
		if f == nil {
			return
		}
		f.now = now
	}
}

func (p *FailoverKeyProvider) SigningKey(ctx context.Context) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("security: key provider is nil")
	}
	key, err := p.primary.SigningKey(ctx)
	if err == nil && len(key) > 0 {
		p.recordMetadata(p.primary)
		return key, nil
	}
	if err == nil {
		err = fmt.Errorf("security: primary key provider returned empty key")
	}
	p.emit("primary_failed", err)
	if p.policy == KeyProviderFailurePolicyStrict || p.fallback == nil {
		return nil, fmt.Errorf("security: primary key resolution failed with %s policy: %w", p.policy, err)
	}
	fallbackKey, fallbackErr := p.fallback.SigningKey(ctx)
	if fallbackErr != nil {
		p.emit("fallback_failed", fallbackErr)
		return nil, fmt.Errorf("security: primary key resolution failed: %v; fallback failed: %w", err, fallbackErr)
	}
	p.recordMetadata(p.fallback)
	p.emit("fallback_succeeded", err)
	return fallbackKey, nil
}

func (p *FailoverKeyProvider) Metadata() (string, int) {
	if p == nil {
		return "", 0
	}
	p.mu.RLock()
	last := p.lastResolution
	p.mu.RUnlock()
	if strings.TrimSpace(last.KeyID) != "" && last.Version > 0 {
		return last.KeyID, last.Version
	}
	if keyID, version, ok := readProviderMetadata(p.primary); ok {
		return keyID, version
	}
	if keyID, version, ok := readProviderMetadata(p.fallback); ok {
		return keyID, version
	}
	return "", 0
}

func (p *FailoverKeyProvider) emit(outcome string, err error) {
	if p == nil || p.diagnosticHook == nil {
		return
	}
	now := p.now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	p.diagnosticHook(KeyProviderDiagnostic{
		OccurredAt: now().UTC(),
		Policy:     p.policy,
		Outcome:    outcome,
		Primary:    describeKeyProvider(p.primary),
		Fallback:   describeKeyProvider(p.fallback),
		Error:      msg,
	})
}

func (p *FailoverKeyProvider) recordMetadata(provider core.SigningKeyProvider) {
	if p == nil {
		return
	}
	keyID, version, ok := readProviderMetadata(provider)
	if !ok {
		return
	}
	p.mu.Lock()
	p.lastResolution = providerMetadataPair{KeyID: keyID, Version: version}
	p.mu.Unlock()
}

func normalizeFailurePolicy(policy KeyProviderFailurePolicy) KeyProviderFailurePolicy {
	normalized := KeyProviderFailurePolicy(strings.ToLower(strings.TrimSpace(string(policy))))
	switch normalized {
	case KeyProviderFailurePolicyFallback:
		return KeyProviderFailurePolicyFallback
	default:
		return KeyProviderFailurePolicyStrict
	}
}

func readProviderMetadata(provider core.SigningKeyProvider) (string, int, bool) {
	if provider == nil {
		return "", 0, false
	}
	metadataProvider, ok := provider.(interface{ Metadata() (string, int) })
	if !ok {
		return "", 0, false
	}
	keyID, version := metadataProvider.Metadata()
	keyID = strings.TrimSpace(keyID)
	if keyID == "" || version <= 0 {
		return "", 0, false
	}
	return keyID, version, true
}

func describeKeyProvider(provider core.SigningKeyProvider) string {
	if provider == nil {
		return ""
	}
	label := reflect.TypeOf(provider).String()
	if keyID, version, ok := readProviderMetadata(provider); ok {
		return fmt.Sprintf("%s(%s:%d)", label, keyID, version)
	}
	return label
}

var _ core.SigningKeyProvider = (*FailoverKeyProvider)(nil)
