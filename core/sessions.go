package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDurablePersist marks a session write that reached the cache but not
// the durable store. Callers that report partial success branch on it.
var ErrDurablePersist = errors.New("core: durable session persist failed")

const (
	accessTokenSuffix  = ":accessToken"
	refreshTokenSuffix = ":refreshToken"

	// LocalCacheNamespace prefixes cache keys for locally-registered
	// accounts; social keys use the provider name instead.
	LocalCacheNamespace = "USER"
)

func AccessCacheKey(key string) string {
	return key + accessTokenSuffix
}

func RefreshCacheKey(key string) string {
	return key + refreshTokenSuffix
}

// CacheKeyFor builds the namespaced session key, e.g. "USER:jane" or
// "KAKAO:12345".
func CacheKeyFor(namespace string, id string) string {
	return namespace + ":" + id
}

type SessionManagerOption func(*SessionManager)

func WithSessionTTLs(access time.Duration, refresh time.Duration) SessionManagerOption {
	return func(m *SessionManager) {
		if m == nil {
			return
		}
		if access > 0 {
			m.accessTTL = access
		}
		if refresh > 0 {
			m.refreshTTL = refresh
		}
	}
}

func WithSessionLogger(logger Logger) SessionManagerOption {
	return func(m *SessionManager) {
		if m == nil || logger == nil {
			return
		}
		m.logger = logger
	}
}

// SessionManager keeps the dual-backed session store consistent: a TTL
// cache for fast-path reads and a durable table as the source of truth.
type SessionManager struct {
	cache      SessionCache
	store      SessionTokenStore
	logger     Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewSessionManager(cache SessionCache, store SessionTokenStore, opts ...SessionManagerOption) (*SessionManager, error) {
	if cache == nil {
		return nil, fmt.Errorf("core: session cache is required")
	}
	if store == nil {
		return nil, fmt.Errorf("core: session token store is required")
	}
	m := &SessionManager{
		cache:      cache,
		store:      store,
		accessTTL:  2 * time.Hour,
		refreshTTL: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Put writes the token pair to the cache under the namespaced key and
// upserts the durable row for the principal. Both writes are attempted;
// when the durable write fails after the cache write succeeded the error
// is reported without rolling the cache back; cache entries self-expire,
// which bounds the inconsistency window.
func (m *SessionManager) Put(ctx context.Context, ref PrincipalRef, cacheKey string, accessToken string, refreshToken string) error {
	if m == nil || m.cache == nil || m.store == nil {
		return fmt.Errorf("core: session manager is not configured")
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	cacheKey = strings.TrimSpace(cacheKey)
	if cacheKey == "" {
		return fmt.Errorf("core: session cache key is required")
	}

	if err := m.cache.Set(ctx, AccessCacheKey(cacheKey), accessToken, m.accessTTL); err != nil {
		return fmt.Errorf("core: cache access token: %w", err)
	}
	if err := m.cache.Set(ctx, RefreshCacheKey(cacheKey), refreshToken, m.refreshTTL); err != nil {
		return fmt.Errorf("core: cache refresh token: %w", err)
	}

	if err := m.store.Upsert(ctx, ref, accessToken, refreshToken); err != nil {
		m.logWarn(ctx, "durable session write failed after cache write", map[string]any{
			"principal_kind": string(ref.Kind),
			"principal_uid":  ref.UID,
			"error":          err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrDurablePersist, err)
	}
	return nil
}

// PutSocial records a social session. The cache entries are keyed by the
// opaque provider tokens themselves, one bucket per class, holding the
// opaque value; the durable row stores the composite wire tokens so that
// teardown can recover both halves from the principal.
func (m *SessionManager) PutSocial(ctx context.Context, ref PrincipalRef, provider Provider, accessOpaque string, refreshOpaque string) error {
	if m == nil || m.cache == nil || m.store == nil {
		return fmt.Errorf("core: session manager is not configured")
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	if !provider.Valid() {
		return fmt.Errorf("core: provider %q is not supported", provider)
	}
	accessOpaque = strings.TrimSpace(accessOpaque)
	refreshOpaque = strings.TrimSpace(refreshOpaque)
	if accessOpaque == "" || refreshOpaque == "" {
		return fmt.Errorf("core: provider tokens are required")
	}

	// The durable row names the opaque values of any session previously
	// recorded for this principal. Their buckets have to go before the new
	// pair is written, or the replaced tokens would keep validating until
	// the cache TTL runs out.
	current, found, err := m.store.FindByPrincipal(ctx, ref)
	if err != nil {
		return fmt.Errorf("core: read current session: %w", err)
	}
	if found {
		if err := m.evictReplacedToken(ctx, AccessCacheKey, current.AccessToken, accessOpaque); err != nil {
			return err
		}
		if err := m.evictReplacedToken(ctx, RefreshCacheKey, current.RefreshToken, refreshOpaque); err != nil {
			return err
		}
	}

	ns := provider.CacheNamespace()
	if err := m.cache.Set(ctx, AccessCacheKey(CacheKeyFor(ns, accessOpaque)), accessOpaque, m.accessTTL); err != nil {
		return fmt.Errorf("core: cache access token: %w", err)
	}
	if err := m.cache.Set(ctx, RefreshCacheKey(CacheKeyFor(ns, refreshOpaque)), refreshOpaque, m.refreshTTL); err != nil {
		return fmt.Errorf("core: cache refresh token: %w", err)
	}

	if err := m.store.Upsert(ctx, ref, SocialWireToken(provider, accessOpaque), SocialWireToken(provider, refreshOpaque)); err != nil {
		m.logWarn(ctx, "durable session write failed after cache write", map[string]any{
			"principal_kind": string(ref.Kind),
			"principal_uid":  ref.UID,
			"provider":       string(provider),
			"error":          err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrDurablePersist, err)
	}
	return nil
}

// evictReplacedToken drops the cache bucket for a superseded social wire
// token. Local wire forms and a token that carries over unchanged are
// left alone.
func (m *SessionManager) evictReplacedToken(ctx context.Context, bucketKey func(string) string, wireToken string, keepOpaque string) error {
	provider, opaque, social := SplitSocialToken(wireToken)
	if !social || opaque == "" || opaque == keepOpaque {
		return nil
	}
	if _, err := m.cache.Delete(ctx, bucketKey(CacheKeyFor(provider.CacheNamespace(), opaque))); err != nil {
		return fmt.Errorf("core: evict replaced session token: %w", err)
	}
	return nil
}

// DeleteSocial removes both class buckets for a social session plus the
// durable row. Missing cache entries and a zero-row durable delete are
// clean no-ops.
func (m *SessionManager) DeleteSocial(ctx context.Context, ref PrincipalRef, provider Provider, accessOpaque string, refreshOpaque string) (bool, error) {
	if m == nil || m.cache == nil || m.store == nil {
		return false, fmt.Errorf("core: session manager is not configured")
	}
	if err := ref.Validate(); err != nil {
		return false, err
	}

	ns := provider.CacheNamespace()
	if accessOpaque != "" {
		if _, err := m.cache.Delete(ctx, AccessCacheKey(CacheKeyFor(ns, accessOpaque))); err != nil {
			return false, fmt.Errorf("core: delete cached access token: %w", err)
		}
	}
	if refreshOpaque != "" {
		if _, err := m.cache.Delete(ctx, RefreshCacheKey(CacheKeyFor(ns, refreshOpaque))); err != nil {
			return false, fmt.Errorf("core: delete cached refresh token: %w", err)
		}
	}

	if _, err := m.store.DeleteByPrincipal(ctx, ref); err != nil {
		return false, fmt.Errorf("core: delete durable session: %w", err)
	}
	return true, nil
}

func (m *SessionManager) Access(ctx context.Context, cacheKey string) (string, bool, error) {
	if m == nil || m.cache == nil {
		return "", false, fmt.Errorf("core: session manager is not configured")
	}
	return m.cache.Get(ctx, AccessCacheKey(cacheKey))
}

func (m *SessionManager) Refresh(ctx context.Context, cacheKey string) (string, bool, error) {
	if m == nil || m.cache == nil {
		return "", false, fmt.Errorf("core: session manager is not configured")
	}
	return m.cache.Get(ctx, RefreshCacheKey(cacheKey))
}

// Delete removes both cache entries and the durable row. The combination
// succeeds only when every delete completed; a durable delete that matched
// zero rows is a clean no-op so that repeated logouts stay idempotent.
func (m *SessionManager) Delete(ctx context.Context, ref PrincipalRef, cacheKey string) (bool, error) {
	if m == nil || m.cache == nil || m.store == nil {
		return false, fmt.Errorf("core: session manager is not configured")
	}
	if err := ref.Validate(); err != nil {
		return false, err
	}

	if _, err := m.cache.Delete(ctx, AccessCacheKey(cacheKey)); err != nil {
		return false, fmt.Errorf("core: delete cached access token: %w", err)
	}
	if _, err := m.cache.Delete(ctx, RefreshCacheKey(cacheKey)); err != nil {
		return false, fmt.Errorf("core: delete cached refresh token: %w", err)
	}

	if _, err := m.store.DeleteByPrincipal(ctx, ref); err != nil {
		return false, fmt.Errorf("core: delete durable session: %w", err)
	}
	return true, nil
}

func (m *SessionManager) logWarn(ctx context.Context, message string, fields map[string]any) {
	if m == nil || m.logger == nil {
		return
	}
	logger := m.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	logger.Warn(message)
}
