package security

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"
)

type stubKeyProvider struct {
	key     []byte
	err     error
	keyID   string
	version int
	calls   int
}

func (s *stubKeyProvider) SigningKey(_ context.Context) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.key, nil
}

func (s *stubKeyProvider) Metadata() (string, int) {
	return s.keyID, s.version
}

func TestFailoverKeyProvider_PrimarySucceeds(t *testing.T) {
	primary := &stubKeyProvider{key: []byte("primary-key"), keyID: "primary", version: 1}
	fallback := &stubKeyProvider{key: []byte("fallback-key"), keyID: "fallback", version: 1}

	provider, err := NewFailoverKeyProvider(primary,
		WithFallbackKeyProvider(fallback),
		WithKeyProviderFailurePolicy(KeyProviderFailurePolicyFallback),
	)
	if err != nil {
		t.Fatalf("new failover key provider: %v", err)
	}

	key, err := provider.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("signing key: %v", err)
	}
	if !bytes.Equal(key, []byte("primary-key")) {
		t.Fatalf("expected primary key, got %q", key)
	}
	if fallback.calls != 0 {
		t.Fatalf("expected fallback untouched, got %d calls", fallback.calls)
	}

	keyID, version := provider.Metadata()
	if keyID != "primary" || version != 1 {
		t.Fatalf("unexpected metadata %q %d", keyID, version)
	}
}

func TestFailoverKeyProvider_FallbackPolicyUsesSecondary(t *testing.T) {
	primary := &stubKeyProvider{err: fmt.Errorf("key service unavailable"), keyID: "primary", version: 1}
	fallback := &stubKeyProvider{key: []byte("fallback-key"), keyID: "fallback", version: 2}

	var events []KeyProviderDiagnostic
	provider, err := NewFailoverKeyProvider(primary,
		WithFallbackKeyProvider(fallback),
		WithKeyProviderFailurePolicy(KeyProviderFailurePolicyFallback),
		WithKeyProviderDiagnostics(func(event KeyProviderDiagnostic) {
			events = append(events, event)
		}),
		WithFailoverClock(func() time.Time {
			return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
		}),
	)
	if err != nil {
		t.Fatalf("new failover key provider: %v", err)
	}

	key, err := provider.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("signing key: %v", err)
	}
	if !bytes.Equal(key, []byte("fallback-key")) {
		t.Fatalf("expected fallback key, got %q", key)
	}

	if len(events) != 2 {
		t.Fatalf("expected primary_failed and fallback_succeeded events, got %d", len(events))
	}
	if events[0].Outcome != "primary_failed" || events[1].Outcome != "fallback_succeeded" {
		t.Fatalf("unexpected outcomes %q %q", events[0].Outcome, events[1].Outcome)
	}
	if events[0].OccurredAt.Hour() != 12 {
		t.Fatalf("expected injected clock on diagnostics, got %v", events[0].OccurredAt)
	}

	keyID, version := provider.Metadata()
	if keyID != "fallback" || version != 2 {
		t.Fatalf("expected fallback metadata after failover, got %q %d", keyID, version)
	}
}

func TestFailoverKeyProvider_StrictPolicyFails(t *testing.T) {
	primary := &stubKeyProvider{err: fmt.Errorf("key service unavailable")}
	fallback := &stubKeyProvider{key: []byte("fallback-key")}

	provider, err := NewFailoverKeyProvider(primary, WithFallbackKeyProvider(fallback))
	if err != nil {
		t.Fatalf("new failover key provider: %v", err)
	}

	if _, err := provider.SigningKey(context.Background()); err == nil {
		t.Fatalf("expected strict policy failure")
	}
	if fallback.calls != 0 {
		t.Fatalf("expected fallback untouched under strict policy")
	}
}

func TestFailoverKeyProvider_FallbackPolicyRequiresFallback(t *testing.T) {
	primary := &stubKeyProvider{key: []byte("primary-key")}
	_, err := NewFailoverKeyProvider(primary,
		WithKeyProviderFailurePolicy(KeyProviderFailurePolicyFallback),
	)
	if err == nil {
		t.Fatalf("expected configuration error without fallback provider")
	}
}

func TestRotatingKeyProvider_SelectsActiveVersion(t *testing.T) {
	cutover := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	clock := time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)

	provider, err := NewRotatingKeyProvider([]RotatingKey{
		{Version: 1, Key: []byte("old-key"), Window: KeyRotationWindow{NotAfter: cutover}},
		{Version: 2, Key: []byte("new-key"), Window: KeyRotationWindow{NotBefore: cutover}},
	}, func() time.Time { return clock })
	if err != nil {
		t.Fatalf("new rotating key provider: %v", err)
	}

	key, err := provider.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("signing key: %v", err)
	}
	if !bytes.Equal(key, []byte("old-key")) {
		t.Fatalf("expected pre-cutover key, got %q", key)
	}

	clock = cutover.Add(time.Hour)
	key, err = provider.SigningKey(context.Background())
	if err != nil {
		t.Fatalf("signing key after cutover: %v", err)
	}
	if !bytes.Equal(key, []byte("new-key")) {
		t.Fatalf("expected post-cutover key, got %q", key)
	}

	keyID, version := provider.Metadata()
	if keyID != "rotating-key" || version != 2 {
		t.Fatalf("unexpected metadata %q %d", keyID, version)
	}
}

func TestRotatingKeyProvider_NoActiveKeyErrors(t *testing.T) {
	past := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	provider, err := NewRotatingKeyProvider([]RotatingKey{
		{Version: 1, Key: []byte("expired"), Window: KeyRotationWindow{NotAfter: past}},
	}, nil)
	if err != nil {
		t.Fatalf("new rotating key provider: %v", err)
	}

	if _, err := provider.SigningKey(context.Background()); err == nil {
		t.Fatalf("expected error when no key window is active")
	}
}
