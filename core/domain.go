package core

import (
	"fmt"
	"strings"
	"time"
)

type Provider string

const (
	ProviderNaver  Provider = "NAVER"
	ProviderKakao  Provider = "KAKAO"
	ProviderGoogle Provider = "GOOGLE"
)

// ParseProvider maps the lower-case wire form ("naver", "kakao", "google")
// to its Provider tag. The bool reports whether the value named a supported
// provider.
func ParseProvider(value string) (Provider, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "naver":
		return ProviderNaver, true
	case "kakao":
		return ProviderKakao, true
	case "google":
		return ProviderGoogle, true
	default:
		return "", false
	}
}

// WireName is the lower-case form used inside composite token strings.
func (p Provider) WireName() string {
	return strings.ToLower(string(p))
}

// CacheNamespace is the upper-case form used as the cache-key prefix.
func (p Provider) CacheNamespace() string {
	return string(p)
}

func (p Provider) Valid() bool {
	switch p {
	case ProviderNaver, ProviderKakao, ProviderGoogle:
		return true
	default:
		return false
	}
}

type Role string

const (
	RoleUser    Role = "ROLE_USER"
	RoleManager Role = "ROLE_MANAGER"
)

type PrincipalKind string

const (
	PrincipalLocal  PrincipalKind = "user"
	PrincipalSocial PrincipalKind = "social"
)

type IdentityStatus string

const (
	IdentityActive  IdentityStatus = "active"
	IdentityDeleted IdentityStatus = "deleted"
)

// PrincipalRef identifies a persisted principal for session bookkeeping.
// UID zero means the principal has not been persisted yet.
type PrincipalRef struct {
	Kind PrincipalKind
	UID  int64
}

func (r PrincipalRef) Validate() error {
	switch r.Kind {
	case PrincipalLocal, PrincipalSocial:
	default:
		return fmt.Errorf("core: principal kind %q is not supported", r.Kind)
	}
	if r.UID <= 0 {
		return fmt.Errorf("core: principal uid is required")
	}
	return nil
}

// LocalUser is a locally-registered account.
type LocalUser struct {
	UID       int64
	UserID    string
	UserName  string
	Email     string
	Phone     string
	Role      Role
	CreatedAt time.Time
}

func (u LocalUser) Ref() PrincipalRef {
	return PrincipalRef{Kind: PrincipalLocal, UID: u.UID}
}

// SocialIdentity is a principal backed by an external OAuth provider.
// ExternalID is the provider-issued account id; UserName is the display
// name (or nickname for Kakao) used as the reconciliation lookup key.
type SocialIdentity struct {
	UID        int64
	ExternalID string
	UserName   string
	Email      string
	Phone      string
	Provider   Provider
	Role       Role
	Status     IdentityStatus
	CreatedAt  time.Time
}

func (s SocialIdentity) Ref() PrincipalRef {
	return PrincipalRef{Kind: PrincipalSocial, UID: s.UID}
}

// Session is the (accessToken, refreshToken) pair bound to a principal.
// At most one live Session exists per principal in the durable store.
type Session struct {
	Principal    PrincipalRef
	AccessToken  string
	RefreshToken string
	UpdatedAt    time.Time
}

type Profile struct {
	UserName string
	Email    string
	EmailYN  string
	Phone    string
	PhoneYN  string
}

type Address struct {
	MainAddress string
	MainLat     float64
	MainLan     float64
	SubAddress1 string
	Sub1Lat     float64
	Sub1Lan     float64
	SubAddress2 string
	Sub2Lat     float64
	Sub2Lan     float64
}

// ProfileSnapshot is the pre-mutation copy of a principal's profile and
// address, held in the cache while an enrichment notification is in flight.
type ProfileSnapshot struct {
	Principal PrincipalRef `json:"principal"`
	Profile   Profile      `json:"profile"`
	Address   Address      `json:"address"`
}

// OAuthCallback carries the fields an upstream OAuth exchange produced:
// the provider account id, display name (nickname for Kakao), optional
// email/phone, and the provider-issued token pair. The token strings are
// composite "<provider>:<opaque>" values.
type OAuthCallback struct {
	ExternalID   string
	Name         string
	Nickname     string
	Email        string
	Mobile       string
	AccessToken  string
	RefreshToken string
}

type TokenClass string

const (
	TokenClassAccess  TokenClass = "accessToken"
	TokenClassRefresh TokenClass = "refreshToken"
)

// ValidationCode is the stable 4-valued result of token validation.
// It is returned, never raised: callers branch on the code.
type ValidationCode int

const (
	ValidationMissing  ValidationCode = 0
	ValidationValid    ValidationCode = 1
	ValidationExpired  ValidationCode = 2
	ValidationMismatch ValidationCode = 3
)

type VerifyOutcome int

const (
	VerifyValid VerifyOutcome = iota
	VerifyExpired
	VerifyInvalid
)

func (o VerifyOutcome) Code() ValidationCode {
	switch o {
	case VerifyValid:
		return ValidationValid
	case VerifyExpired:
		return ValidationExpired
	default:
		return ValidationMismatch
	}
}

type ReconcileOutcome string

const (
	ReconcileLoggedIn ReconcileOutcome = "logged_in"
	ReconcileCreated  ReconcileOutcome = "created"
	ReconcileRejected ReconcileOutcome = "rejected"
)

// Rejection reasons reproduced verbatim from the service's response contract.
const (
	RejectionForbiddenToken = "ForbiddenToken"
	RejectionForbidden      = "Forbidden"
	RejectionAlreadyExists  = "AlreadyExists"
)

type LoginResult struct {
	LoggedIn     bool
	AccessToken  string
	RefreshToken string
	UserID       string
	UserName     string
}

type OAuthLoginResult struct {
	LoggedIn     bool
	Message      string
	Provider     Provider
	UserName     string
	Email        string
	Mobile       string
	Role         Role
	AccessToken  string
	RefreshToken string
}

type RefreshResult struct {
	Status       ValidationCode
	AccessToken  string
	RefreshToken string
}

type JoinRequest struct {
	UserID    string
	Password  string
	UserName  string
	Email     string
	EmailYN   string
	Phone     string
	PhoneYN   string
	Address   Address
	Allergies []string
}

type JoinResult struct {
	Success bool
	Message string
	UserUID int64
}

type UserInfo struct {
	UID      int64
	Kind     PrincipalKind
	UserID   string
	UserName string
	Role     Role
}

type ProfileView struct {
	UID       int64
	Kind      PrincipalKind
	UserID    string
	Profile   Profile
	Provider  Provider
	Role      Role
	CreatedAt time.Time
	Address   Address
}

type UpdateProfileRequest struct {
	UID       int64
	Profile   Profile
	Address   Address
	Allergies []string
}

type UpdateAddressRequest struct {
	Address Address
}

// AllergyPayload is the request body for the external enrichment service.
// Exactly one of UserUID/SocialUID is set, matching the principal kind.
type AllergyPayload struct {
	UserUID   int64    `json:"userUid,omitempty"`
	SocialUID int64    `json:"socialUid,omitempty"`
	Allergies []string `json:"allergies"`
}

func (p AllergyPayload) Empty() bool {
	return len(p.Allergies) == 0
}
