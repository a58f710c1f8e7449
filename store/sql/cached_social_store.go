package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-identity/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const socialIdentityCacheKeyPrefix = "go-identity::social_identity::v1"

var errSocialIdentityCacheMiss = errors.New("sqlstore: social identity not found")

// CachedSocialIdentityStore fronts a SocialStore with read-through caching.
// Reconciliation hits the lookup key on every OAuth login, so the three read
// paths cache per key and every mutation invalidates the affected keys.
type CachedSocialIdentityStore struct {
	base  core.SocialStore
	cache repositorycache.CacheService
}

func NewCachedSocialIdentityStore(
	base core.SocialStore,
	cacheService repositorycache.CacheService,
) (*CachedSocialIdentityStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base social identity store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: social identity cache service is required")
	}
	return &CachedSocialIdentityStore{base: base, cache: cacheService}, nil
}

// SocialIdentityCacheKey returns the deterministic cache key contract for
// social identity reads: go-identity::social_identity::v1::<field>::<value>
// with the value URL-path escaped.
func SocialIdentityCacheKey(field string, value string) string {
	return strings.Join([]string{
		socialIdentityCacheKeyPrefix,
		field,
		url.PathEscape(strings.TrimSpace(value)),
	}, "::")
}

func (s *CachedSocialIdentityStore) FindByUserName(ctx context.Context, userName string) (core.SocialIdentity, bool, error) {
	return s.cachedFind(ctx, SocialIdentityCacheKey("user_name", userName), func(ctx context.Context) (core.SocialIdentity, bool, error) {
		return s.base.FindByUserName(ctx, userName)
	})
}

func (s *CachedSocialIdentityStore) FindByExternalID(ctx context.Context, externalID string) (core.SocialIdentity, bool, error) {
	return s.cachedFind(ctx, SocialIdentityCacheKey("external_id", externalID), func(ctx context.Context) (core.SocialIdentity, bool, error) {
		return s.base.FindByExternalID(ctx, externalID)
	})
}

func (s *CachedSocialIdentityStore) FindByUID(ctx context.Context, uid int64) (core.SocialIdentity, bool, error) {
	return s.cachedFind(ctx, SocialIdentityCacheKey("uid", strconv.FormatInt(uid, 10)), func(ctx context.Context) (core.SocialIdentity, bool, error) {
		return s.base.FindByUID(ctx, uid)
	})
}

func (s *CachedSocialIdentityStore) CreateIfAbsent(ctx context.Context, identity core.SocialIdentity) (core.SocialIdentity, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: cached social identity store is not configured")
	}
	created, ok, err := s.base.CreateIfAbsent(ctx, identity)
	if err != nil {
		return core.SocialIdentity{}, false, err
	}
	if ok {
		if err := s.invalidate(ctx, created); err != nil {
			return core.SocialIdentity{}, false, err
		}
	}
	return created, ok, nil
}

func (s *CachedSocialIdentityStore) Reactivate(ctx context.Context, externalID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached social identity store is not configured")
	}
	current, found, err := s.base.FindByExternalID(ctx, externalID)
	if err != nil {
		return err
	}
	if err := s.base.Reactivate(ctx, externalID); err != nil {
		return err
	}
	if found {
		return s.invalidate(ctx, current)
	}
	return nil
}

func (s *CachedSocialIdentityStore) SoftDelete(ctx context.Context, externalID string) (int64, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return 0, fmt.Errorf("sqlstore: cached social identity store is not configured")
	}
	current, found, err := s.base.FindByExternalID(ctx, externalID)
	if err != nil {
		return 0, err
	}
	affected, err := s.base.SoftDelete(ctx, externalID)
	if err != nil {
		return 0, err
	}
	if found {
		if err := s.invalidate(ctx, current); err != nil {
			return 0, err
		}
	}
	return affected, nil
}

func (s *CachedSocialIdentityStore) cachedFind(
	ctx context.Context,
	cacheKey string,
	fetch func(ctx context.Context) (core.SocialIdentity, bool, error),
) (core.SocialIdentity, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: cached social identity store is not configured")
	}

	identity, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.SocialIdentity, error) {
		fetched, found, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return core.SocialIdentity{}, fetchErr
		}
		if !found {
			return core.SocialIdentity{}, errSocialIdentityCacheMiss
		}
		return fetched, nil
	})
	if err != nil {
		if errors.Is(err, errSocialIdentityCacheMiss) {
			return core.SocialIdentity{}, false, nil
		}
		return core.SocialIdentity{}, false, err
	}
	return identity, true, nil
}

func (s *CachedSocialIdentityStore) invalidate(ctx context.Context, identity core.SocialIdentity) error {
	keys := []string{
		SocialIdentityCacheKey("user_name", identity.UserName),
		SocialIdentityCacheKey("external_id", identity.ExternalID),
		SocialIdentityCacheKey("uid", strconv.FormatInt(identity.UID, 10)),
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

var _ core.SocialStore = (*CachedSocialIdentityStore)(nil)
