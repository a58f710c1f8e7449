package core

import (
	"context"
	"fmt"
	"strings"
)

// providerMapping describes how one OAuth provider's callback payload maps
// onto a SocialIdentity: which payload field keys the lookup and which
// optional fields the provider actually grants.
type providerMapping struct {
	lookupKey func(OAuthCallback) string
	email     func(OAuthCallback) string
	phone     func(OAuthCallback) string
}

// The lookup key is the provider display name for Naver and Google and the
// nickname for Kakao, the strongest identifier each integration grants.
// Name collisions across provider accounts are indistinguishable at this
// layer; the key is preserved for compatibility.
var providerMappings = map[Provider]providerMapping{
	ProviderNaver: {
		lookupKey: func(cb OAuthCallback) string { return cb.Name },
		email:     func(OAuthCallback) string { return "" },
		phone:     func(cb OAuthCallback) string { return cb.Mobile },
	},
	ProviderGoogle: {
		lookupKey: func(cb OAuthCallback) string { return cb.Name },
		email:     func(cb OAuthCallback) string { return cb.Email },
		phone:     func(OAuthCallback) string { return "" },
	},
	ProviderKakao: {
		lookupKey: func(cb OAuthCallback) string { return cb.Nickname },
		email:     func(OAuthCallback) string { return "" },
		phone:     func(OAuthCallback) string { return "" },
	},
}

// ReconcileResult reports how a callback payload was unified with the
// internal identity model. Rejected outcomes carry the reason string and,
// for AlreadyExists, the provider of the record that won.
type ReconcileResult struct {
	Outcome  ReconcileOutcome
	Identity SocialIdentity
	Reason   string
}

// SocialReconciler finds-or-creates the local identity behind an OAuth
// callback, refuses provider mismatches, and reactivates soft-deleted
// identities on a matching login.
type SocialReconciler struct {
	store SocialStore
}

func NewSocialReconciler(store SocialStore) (*SocialReconciler, error) {
	if store == nil {
		return nil, fmt.Errorf("core: social store is required")
	}
	return &SocialReconciler{store: store}, nil
}

// Reconcile unifies the provider callback with the identity store. An
// unsupported provider name is rejected before any store access. Store
// errors are returned as errors; business refusals come back as a Rejected
// outcome with a reason.
func (r *SocialReconciler) Reconcile(ctx context.Context, providerName string, callback OAuthCallback) (ReconcileResult, error) {
	if r == nil || r.store == nil {
		return ReconcileResult{}, fmt.Errorf("core: social reconciler is not configured")
	}

	provider, supported := ParseProvider(providerName)
	if !supported {
		return ReconcileResult{Outcome: ReconcileRejected, Reason: RejectionForbiddenToken}, nil
	}

	mapping := providerMappings[provider]
	lookupKey := strings.TrimSpace(mapping.lookupKey(callback))
	if lookupKey == "" {
		return ReconcileResult{Outcome: ReconcileRejected, Reason: RejectionForbidden}, nil
	}

	existing, found, err := r.store.FindByUserName(ctx, lookupKey)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("core: look up social identity: %w", err)
	}

	if !found {
		candidate := SocialIdentity{
			ExternalID: strings.TrimSpace(callback.ExternalID),
			UserName:   lookupKey,
			Email:      strings.TrimSpace(mapping.email(callback)),
			Phone:      strings.TrimSpace(mapping.phone(callback)),
			Provider:   provider,
			Role:       RoleUser,
			Status:     IdentityActive,
		}
		created, inserted, createErr := r.store.CreateIfAbsent(ctx, candidate)
		if createErr != nil {
			return ReconcileResult{}, fmt.Errorf("core: create social identity: %w", createErr)
		}
		if !inserted {
			// A concurrent first-login won the insert race; refuse
			// rather than produce a second identity.
			return ReconcileResult{Outcome: ReconcileRejected, Reason: RejectionForbidden}, nil
		}
		return ReconcileResult{Outcome: ReconcileCreated, Identity: created}, nil
	}

	if existing.Provider != provider {
		// The lookup key collided with an account from another
		// provider. Login is refused instead of silently merging; the
		// rejection reports the existing record's provider.
		return ReconcileResult{
			Outcome:  ReconcileRejected,
			Identity: existing,
			Reason:   RejectionAlreadyExists,
		}, nil
	}

	if existing.Status == IdentityDeleted {
		if err := r.store.Reactivate(ctx, existing.ExternalID); err != nil {
			return ReconcileResult{}, fmt.Errorf("core: reactivate social identity: %w", err)
		}
		existing.Status = IdentityActive
	}

	return ReconcileResult{Outcome: ReconcileLoggedIn, Identity: existing}, nil
}
