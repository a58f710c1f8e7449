package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestSessionManager_PutWritesBothBackends(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySessionCache()
	store := newMemSessionTokenStore()
	manager, err := NewSessionManager(cache, store)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}

	ref := PrincipalRef{Kind: PrincipalLocal, UID: 3}
	if err := manager.Put(ctx, ref, "USER:jane", "access-1", "refresh-1"); err != nil {
		t.Fatalf("put: %v", err)
	}

	if value, found, _ := cache.Get(ctx, "USER:jane:accessToken"); !found || value != "access-1" {
		t.Fatalf("expected cached access token, got %q found=%v", value, found)
	}
	if value, found, _ := cache.Get(ctx, "USER:jane:refreshToken"); !found || value != "refresh-1" {
		t.Fatalf("expected cached refresh token, got %q found=%v", value, found)
	}
	session, found, _ := store.FindByPrincipal(ctx, ref)
	if !found || session.AccessToken != "access-1" || session.RefreshToken != "refresh-1" {
		t.Fatalf("expected durable row, got %+v found=%v", session, found)
	}
}

func TestSessionManager_DurableFailureIsReportedAfterCacheWrite(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySessionCache()
	store := newMemSessionTokenStore()
	store.upsertErr = fmt.Errorf("disk full")
	manager, err := NewSessionManager(cache, store)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}

	ref := PrincipalRef{Kind: PrincipalLocal, UID: 3}
	putErr := manager.Put(ctx, ref, "USER:jane", "access-1", "refresh-1")
	if putErr == nil {
		t.Fatalf("expected error from durable write")
	}
	if !errors.Is(putErr, ErrDurablePersist) {
		t.Fatalf("expected ErrDurablePersist, got %v", putErr)
	}
	// The cache write stands; the entry expires on its own.
	if _, found, _ := cache.Get(ctx, "USER:jane:accessToken"); !found {
		t.Fatalf("expected cache entry to survive durable failure")
	}
}

func TestSessionManager_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySessionCache()
	store := newMemSessionTokenStore()
	manager, err := NewSessionManager(cache, store)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}

	ref := PrincipalRef{Kind: PrincipalLocal, UID: 3}
	if err := manager.Put(ctx, ref, "USER:jane", "access-1", "refresh-1"); err != nil {
		t.Fatalf("put: %v", err)
	}

	if ok, err := manager.Delete(ctx, ref, "USER:jane"); err != nil || !ok {
		t.Fatalf("first delete: ok=%v err=%v", ok, err)
	}
	if ok, err := manager.Delete(ctx, ref, "USER:jane"); err != nil || !ok {
		t.Fatalf("second delete should be a clean no-op: ok=%v err=%v", ok, err)
	}

	if _, found, _ := cache.Get(ctx, "USER:jane:accessToken"); found {
		t.Fatalf("expected cache entry gone")
	}
	if _, found, _ := store.FindByPrincipal(ctx, ref); found {
		t.Fatalf("expected durable row gone")
	}
}

func TestSessionManager_PutSocialKeysBucketsByOpaqueToken(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySessionCache()
	store := newMemSessionTokenStore()
	manager, err := NewSessionManager(cache, store)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}

	ref := PrincipalRef{Kind: PrincipalSocial, UID: 9}
	if err := manager.PutSocial(ctx, ref, ProviderKakao, "acc-1", "ref-1"); err != nil {
		t.Fatalf("put social: %v", err)
	}

	if value, found, _ := cache.Get(ctx, "KAKAO:acc-1:accessToken"); !found || value != "acc-1" {
		t.Fatalf("expected access bucket keyed by opaque token, got %q found=%v", value, found)
	}
	if value, found, _ := cache.Get(ctx, "KAKAO:ref-1:refreshToken"); !found || value != "ref-1" {
		t.Fatalf("expected refresh bucket keyed by opaque token, got %q found=%v", value, found)
	}

	session, found, _ := store.FindByPrincipal(ctx, ref)
	if !found {
		t.Fatalf("expected durable row")
	}
	if session.AccessToken != "kakao:acc-1" || session.RefreshToken != "kakao:ref-1" {
		t.Fatalf("expected composite wire tokens in durable row, got %+v", session)
	}
}

func TestSessionManager_PutSocialEvictsReplacedBuckets(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySessionCache()
	store := newMemSessionTokenStore()
	manager, err := NewSessionManager(cache, store)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}

	ref := PrincipalRef{Kind: PrincipalSocial, UID: 9}
	if err := manager.PutSocial(ctx, ref, ProviderKakao, "acc-1", "ref-1"); err != nil {
		t.Fatalf("put social: %v", err)
	}
	if err := manager.PutSocial(ctx, ref, ProviderKakao, "acc-2", "ref-2"); err != nil {
		t.Fatalf("replace social: %v", err)
	}

	if _, found, _ := cache.Get(ctx, "KAKAO:acc-1:accessToken"); found {
		t.Fatalf("expected replaced access bucket gone")
	}
	if _, found, _ := cache.Get(ctx, "KAKAO:ref-1:refreshToken"); found {
		t.Fatalf("expected replaced refresh bucket gone")
	}
	if value, found, _ := cache.Get(ctx, "KAKAO:acc-2:accessToken"); !found || value != "acc-2" {
		t.Fatalf("expected new access bucket, got %q found=%v", value, found)
	}

	session, found, _ := store.FindByPrincipal(ctx, ref)
	if !found || session.AccessToken != "kakao:acc-2" || session.RefreshToken != "kakao:ref-2" {
		t.Fatalf("expected durable row to follow replacement, got %+v found=%v", session, found)
	}
}

func TestSessionManager_PutSocialKeepsUnchangedBucket(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySessionCache()
	store := newMemSessionTokenStore()
	manager, err := NewSessionManager(cache, store)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}

	ref := PrincipalRef{Kind: PrincipalSocial, UID: 9}
	if err := manager.PutSocial(ctx, ref, ProviderNaver, "acc-1", "ref-1"); err != nil {
		t.Fatalf("put social: %v", err)
	}
	// Only the access half rotates; the refresh bucket carries over.
	if err := manager.PutSocial(ctx, ref, ProviderNaver, "acc-2", "ref-1"); err != nil {
		t.Fatalf("replace social: %v", err)
	}

	if _, found, _ := cache.Get(ctx, "NAVER:acc-1:accessToken"); found {
		t.Fatalf("expected rotated access bucket gone")
	}
	if value, found, _ := cache.Get(ctx, "NAVER:ref-1:refreshToken"); !found || value != "ref-1" {
		t.Fatalf("expected unchanged refresh bucket to survive, got %q found=%v", value, found)
	}
}

func TestSessionManager_DeleteSocialRemovesBothBuckets(t *testing.T) {
	ctx := context.Background()
	cache := NewMemorySessionCache()
	store := newMemSessionTokenStore()
	manager, err := NewSessionManager(cache, store)
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}

	ref := PrincipalRef{Kind: PrincipalSocial, UID: 9}
	if err := manager.PutSocial(ctx, ref, ProviderNaver, "acc-1", "ref-1"); err != nil {
		t.Fatalf("put social: %v", err)
	}
	if ok, err := manager.DeleteSocial(ctx, ref, ProviderNaver, "acc-1", "ref-1"); err != nil || !ok {
		t.Fatalf("delete social: ok=%v err=%v", ok, err)
	}

	if _, found, _ := cache.Get(ctx, "NAVER:acc-1:accessToken"); found {
		t.Fatalf("expected access bucket gone")
	}
	if _, found, _ := cache.Get(ctx, "NAVER:ref-1:refreshToken"); found {
		t.Fatalf("expected refresh bucket gone")
	}
	if _, found, _ := store.FindByPrincipal(ctx, ref); found {
		t.Fatalf("expected durable row gone")
	}
}
