package identity

import "github.com/goliatone/go-identity/core"

type Config = core.Config

type TokenConfig = core.TokenConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type SessionCache = core.SessionCache
type SessionTokenStore = core.SessionTokenStore
type UserStore = core.UserStore
type SocialStore = core.SocialStore
type ProfileStore = core.ProfileStore
type EnrichmentClient = core.EnrichmentClient
type PasswordHasher = core.PasswordHasher
type LoginThrottle = core.LoginThrottle
type SigningKeyProvider = core.SigningKeyProvider

type Provider = core.Provider
type PrincipalRef = core.PrincipalRef
type LocalUser = core.LocalUser
type SocialIdentity = core.SocialIdentity
type Session = core.Session
type OAuthCallback = core.OAuthCallback
type ValidationCode = core.ValidationCode

type JoinRequest = core.JoinRequest
type UpdateProfileRequest = core.UpdateProfileRequest
type UpdateAddressRequest = core.UpdateAddressRequest

type LoginResult = core.LoginResult
type JoinResult = core.JoinResult
type OAuthLoginResult = core.OAuthLoginResult
type RefreshResult = core.RefreshResult
type UserInfo = core.UserInfo
type ProfileView = core.ProfileView

var (
	WithLogger             = core.WithLogger
	WithLoggerProvider     = core.WithLoggerProvider
	WithMetricsRecorder    = core.WithMetricsRecorder
	WithErrorFactory       = core.WithErrorFactory
	WithErrorMapper        = core.WithErrorMapper
	WithSigningKeyProvider = core.WithSigningKeyProvider
	WithPersistenceClient  = core.WithPersistenceClient
	WithRepositoryFactory  = core.WithRepositoryFactory
	WithConfigProvider     = core.WithConfigProvider
	WithOptionsResolver    = core.WithOptionsResolver
	WithSessionCache       = core.WithSessionCache
	WithUserStore          = core.WithUserStore
	WithSocialStore        = core.WithSocialStore
	WithSessionTokenStore  = core.WithSessionTokenStore
	WithProfileStore       = core.WithProfileStore
	WithEnrichmentClient   = core.WithEnrichmentClient
	WithPasswordHasher     = core.WithPasswordHasher
	WithLoginThrottle      = core.WithLoginThrottle
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
