package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// SessionCache is the fast, TTL-bearing side of the session store. Values
// self-expire; entries are advisory and the durable store stays
// authoritative after a miss or mismatch.
type SessionCache interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Get returns the value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Delete reports whether an entry existed. Deleting an absent key is
	// not an error.
	Delete(ctx context.Context, key string) (bool, error)
}

// SessionTokenStore is the durable side of the session store, keyed by
// (principal kind, principal uid).
type SessionTokenStore interface {
	// Upsert updates the existing row for the principal or inserts a new
	// one, never both.
	Upsert(ctx context.Context, ref PrincipalRef, accessToken string, refreshToken string) error
	FindByPrincipal(ctx context.Context, ref PrincipalRef) (Session, bool, error)
	// FindByToken matches a row whose access or refresh token equals the
	// given value, for teardown paths that only hold the presented token.
	FindByToken(ctx context.Context, token string) (Session, bool, error)
	// DeleteByPrincipal returns the number of rows removed. Zero rows is a
	// clean no-op for idempotent logout retries, distinct from an error.
	DeleteByPrincipal(ctx context.Context, ref PrincipalRef) (int64, error)
}

type UserStore interface {
	FindByUserID(ctx context.Context, userID string) (LocalUser, bool, error)
	FindByUID(ctx context.Context, uid int64) (LocalUser, bool, error)
	// Create persists the user and returns it with the assigned uid.
	Create(ctx context.Context, user LocalUser, passwordHash string) (LocalUser, error)
	PasswordHash(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) (int64, error)
	Managers(ctx context.Context) ([]LocalUser, error)
}

type SocialStore interface {
	FindByUserName(ctx context.Context, userName string) (SocialIdentity, bool, error)
	FindByExternalID(ctx context.Context, externalID string) (SocialIdentity, bool, error)
	FindByUID(ctx context.Context, uid int64) (SocialIdentity, bool, error)
	// CreateIfAbsent inserts the identity unless the unique lookup key is
	// already taken. The bool reports whether a row was created; a losing
	// concurrent insert returns false rather than a duplicate identity.
	CreateIfAbsent(ctx context.Context, identity SocialIdentity) (SocialIdentity, bool, error)
	Reactivate(ctx context.Context, externalID string) error
	SoftDelete(ctx context.Context, externalID string) (int64, error)
}

// ProfileStore reads and writes the profile/address pair the compensation
// coordinator snapshots and restores.
type ProfileStore interface {
	ReadCurrent(ctx context.Context, ref PrincipalRef) (ProfileSnapshot, error)
	ApplyUpdate(ctx context.Context, ref PrincipalRef, profile Profile, address Address) error
	UpdateAddress(ctx context.Context, ref PrincipalRef, address Address) error
	// Restore overwrites the durable profile and address with the
	// pre-image captured in the snapshot.
	Restore(ctx context.Context, snapshot ProfileSnapshot) error
}

// EnrichmentClient calls the external allergy/AI service. It is treated as
// opaque, possibly slow, and possibly failing; a timeout counts as failure
// for compensation purposes.
type EnrichmentClient interface {
	Notify(ctx context.Context, payload AllergyPayload) error
}

// LoginThrottle gates repeated credential attempts per user id. A nil
// throttle disables gating; failures past the policy's grace window
// surface as rate-limit errors before the password is even checked.
type LoginThrottle interface {
	// CheckAttempt rejects the attempt while the subject is throttled.
	CheckAttempt(ctx context.Context, subject string) error
	RecordFailure(ctx context.Context, subject string) error
	RecordSuccess(ctx context.Context, subject string) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash string, password string) error
}

// SigningKeyProvider resolves the symmetric key material the token codec
// signs with. Configuration of the key is out of band.
type SigningKeyProvider interface {
	SigningKey(ctx context.Context) ([]byte, error)
}

// IdentityService is the operation surface the command and query layers
// build on.
type IdentityService interface {
	Login(ctx context.Context, userID string, password string) (LoginResult, error)
	Join(ctx context.Context, req JoinRequest) (JoinResult, error)
	OAuthLogin(ctx context.Context, providerName string, callback OAuthCallback) (OAuthLoginResult, error)
	RefreshSession(ctx context.Context, refreshToken string) (RefreshResult, error)
	UpdateSocialTokens(ctx context.Context, ref PrincipalRef, accessToken string, refreshToken string) (int, error)
	ValidateToken(ctx context.Context, token string) ValidationCode
	Logout(ctx context.Context, token string) (bool, error)
	DeleteAccount(ctx context.Context, token string) (bool, error)
	UserInfo(ctx context.Context, token string) (UserInfo, error)
	UserProfile(ctx context.Context, token string) (ProfileView, error)
	UpdateProfile(ctx context.Context, token string, req UpdateProfileRequest) error
	UpdateAddress(ctx context.Context, token string, req UpdateAddressRequest) error
	Managers(ctx context.Context) ([]LocalUser, error)
	VerifyEmail(ctx context.Context, email string) error
}

type StoreProvider interface {
	UserStore() UserStore
	SocialStore() SocialStore
	SessionTokenStore() SessionTokenStore
	ProfileStore() ProfileStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}
