package core

import (
	"context"
	"testing"
)

func TestSocialReconciler_CreatesIdentityOnFirstLogin(t *testing.T) {
	ctx := context.Background()
	store := newMemSocialStore()
	reconciler, err := NewSocialReconciler(store)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	result, err := reconciler.Reconcile(ctx, "google", OAuthCallback{
		ExternalID: "g1",
		Name:       "Jane",
		Email:      "j@x.com",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Outcome != ReconcileCreated {
		t.Fatalf("expected created, got %v (%s)", result.Outcome, result.Reason)
	}
	if result.Identity.Provider != ProviderGoogle {
		t.Fatalf("expected google identity, got %v", result.Identity.Provider)
	}
	if result.Identity.Email != "j@x.com" {
		t.Fatalf("expected email carried for google, got %q", result.Identity.Email)
	}
	if result.Identity.Role != RoleUser {
		t.Fatalf("expected default role, got %v", result.Identity.Role)
	}
	if result.Identity.UID == 0 {
		t.Fatalf("expected assigned uid")
	}
}

func TestSocialReconciler_ProviderFieldGrants(t *testing.T) {
	ctx := context.Background()
	store := newMemSocialStore()
	reconciler, err := NewSocialReconciler(store)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	naver, err := reconciler.Reconcile(ctx, "naver", OAuthCallback{
		ExternalID: "n1",
		Name:       "Kim",
		Email:      "ignored@x.com",
		Mobile:     "010-1234",
	})
	if err != nil {
		t.Fatalf("reconcile naver: %v", err)
	}
	if naver.Identity.Email != "" || naver.Identity.Phone != "010-1234" {
		t.Fatalf("naver grants phone only, got email=%q phone=%q", naver.Identity.Email, naver.Identity.Phone)
	}

	kakao, err := reconciler.Reconcile(ctx, "kakao", OAuthCallback{
		ExternalID: "k1",
		Nickname:   "Park",
		Email:      "ignored@x.com",
		Mobile:     "010-5678",
	})
	if err != nil {
		t.Fatalf("reconcile kakao: %v", err)
	}
	if kakao.Identity.Email != "" || kakao.Identity.Phone != "" {
		t.Fatalf("kakao grants neither field, got email=%q phone=%q", kakao.Identity.Email, kakao.Identity.Phone)
	}
	if kakao.Identity.UserName != "Park" {
		t.Fatalf("kakao keys on nickname, got %q", kakao.Identity.UserName)
	}
}

func TestSocialReconciler_UnsupportedProviderRejectedBeforeStore(t *testing.T) {
	ctx := context.Background()
	reconciler, err := NewSocialReconciler(newMemSocialStore())
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	result, err := reconciler.Reconcile(ctx, "github", OAuthCallback{Name: "Jane"})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Outcome != ReconcileRejected || result.Reason != RejectionForbiddenToken {
		t.Fatalf("expected ForbiddenToken rejection, got %v (%s)", result.Outcome, result.Reason)
	}
}

func TestSocialReconciler_EmptyLookupKeyRejected(t *testing.T) {
	ctx := context.Background()
	reconciler, err := NewSocialReconciler(newMemSocialStore())
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	result, err := reconciler.Reconcile(ctx, "kakao", OAuthCallback{ExternalID: "k1"})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Outcome != ReconcileRejected || result.Reason != RejectionForbidden {
		t.Fatalf("expected Forbidden rejection, got %v (%s)", result.Outcome, result.Reason)
	}
}

func TestSocialReconciler_ProviderMismatchReportsExistingProvider(t *testing.T) {
	ctx := context.Background()
	store := newMemSocialStore()
	store.put(SocialIdentity{
		ExternalID: "n1",
		UserName:   "Jane",
		Provider:   ProviderNaver,
		Role:       RoleUser,
		Status:     IdentityActive,
	})
	reconciler, err := NewSocialReconciler(store)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	result, err := reconciler.Reconcile(ctx, "google", OAuthCallback{
		ExternalID: "g1",
		Name:       "Jane",
		Email:      "j@x.com",
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Outcome != ReconcileRejected || result.Reason != RejectionAlreadyExists {
		t.Fatalf("expected AlreadyExists rejection, got %v (%s)", result.Outcome, result.Reason)
	}
	// The rejection names the provider that already owns the record.
	if result.Identity.Provider != ProviderNaver {
		t.Fatalf("expected existing NAVER provider reported, got %v", result.Identity.Provider)
	}
}

func TestSocialReconciler_ReactivatesSoftDeletedIdentity(t *testing.T) {
	ctx := context.Background()
	store := newMemSocialStore()
	store.put(SocialIdentity{
		ExternalID: "k1",
		UserName:   "Park",
		Provider:   ProviderKakao,
		Role:       RoleUser,
		Status:     IdentityDeleted,
	})
	reconciler, err := NewSocialReconciler(store)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	result, err := reconciler.Reconcile(ctx, "kakao", OAuthCallback{ExternalID: "k1", Nickname: "Park"})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Outcome != ReconcileLoggedIn {
		t.Fatalf("expected logged in, got %v (%s)", result.Outcome, result.Reason)
	}
	if result.Identity.Status != IdentityActive {
		t.Fatalf("expected reactivated identity, got status %v", result.Identity.Status)
	}

	stored, found, _ := store.FindByExternalID(ctx, "k1")
	if !found || stored.Status != IdentityActive {
		t.Fatalf("expected store reactivated, got %+v found=%v", stored, found)
	}
}

func TestSocialReconciler_LostInsertRaceRejected(t *testing.T) {
	ctx := context.Background()
	store := &racingSocialStore{memSocialStore: newMemSocialStore()}
	reconciler, err := NewSocialReconciler(store)
	if err != nil {
		t.Fatalf("new reconciler: %v", err)
	}

	result, err := reconciler.Reconcile(ctx, "google", OAuthCallback{ExternalID: "g1", Name: "Jane"})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Outcome != ReconcileRejected || result.Reason != RejectionForbidden {
		t.Fatalf("expected Forbidden on lost insert race, got %v (%s)", result.Outcome, result.Reason)
	}
}

// racingSocialStore simulates a concurrent first-login winning the insert
// between the lookup and the create.
type racingSocialStore struct {
	*memSocialStore
}

func (s *racingSocialStore) CreateIfAbsent(ctx context.Context, identity SocialIdentity) (SocialIdentity, bool, error) {
	s.put(SocialIdentity{
		ExternalID: "rival",
		UserName:   identity.UserName,
		Provider:   identity.Provider,
		Role:       RoleUser,
		Status:     IdentityActive,
	})
	return s.memSocialStore.CreateIfAbsent(ctx, identity)
}
