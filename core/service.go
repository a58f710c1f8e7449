package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Status values for the social token update path. The non-zero failure
// value is part of the response contract and is data, not an error.
const (
	SocialTokenUpdateOK           = 1
	SocialTokenUpdateStoreFailure = 4
)

// Service wires the credential codec, session store, token validator,
// identity reconciler, and compensation coordinator behind one facade.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	cache             SessionCache
	users             UserStore
	socials           SocialStore
	sessionTokens     SessionTokenStore
	profiles          ProfileStore
	enrichment        EnrichmentClient
	hasher            PasswordHasher
	throttle          LoginThrottle
	codec             *TokenCodec
	sessions          *SessionManager
	validator         *TokenValidator
	reconciler        *SocialReconciler
	saga              *ProfileSaga
	verification      *VerificationFlags
	now               func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	SessionCache      SessionCache
	UserStore         UserStore
	SocialStore       SocialStore
	SessionTokenStore SessionTokenStore
	ProfileStore      ProfileStore
	EnrichmentClient  EnrichmentClient
	PasswordHasher    PasswordHasher
	LoginThrottle     LoginThrottle
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("identity", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("identity"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.passwordHasher == nil {
		builder.passwordHasher = BcryptHasher{}
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil {
		var stores StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			stores = built
		} else if provided, ok := builder.repositoryFactory.(StoreProvider); ok {
			stores = provided
		}
		if stores != nil {
			if builder.userStore == nil {
				builder.userStore = stores.UserStore()
			}
			if builder.socialStore == nil {
				builder.socialStore = stores.SocialStore()
			}
			if builder.sessionTokenStore == nil {
				builder.sessionTokenStore = stores.SessionTokenStore()
			}
			if builder.profileStore == nil {
				builder.profileStore = stores.ProfileStore()
			}
		}
	}

	if builder.sessionCache == nil {
		builder.sessionCache = NewMemorySessionCache()
	}

	signingKey, err := resolveSigningKey(builder.signingKeyProvider, finalConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	codec, err := NewTokenCodec(signingKey, finalConfig.Tokens.Issuer, WithCodecClock(builder.clock))
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	svc := &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		cache:             builder.sessionCache,
		users:             builder.userStore,
		socials:           builder.socialStore,
		sessionTokens:     builder.sessionTokenStore,
		profiles:          builder.profileStore,
		enrichment:        builder.enrichmentClient,
		hasher:            builder.passwordHasher,
		throttle:          builder.loginThrottle,
		codec:             codec,
		now:               builder.clock,
	}

	if svc.sessionTokens != nil {
		sessions, sessErr := NewSessionManager(svc.cache, svc.sessionTokens,
			WithSessionTTLs(finalConfig.Sessions.AccessCacheTTL, finalConfig.Sessions.RefreshCacheTTL),
			WithSessionLogger(logger),
		)
		if sessErr != nil {
			return nil, mapBuildError(builder.errorMapper, sessErr)
		}
		svc.sessions = sessions

		validator, valErr := NewTokenValidator(codec, sessions)
		if valErr != nil {
			return nil, mapBuildError(builder.errorMapper, valErr)
		}
		svc.validator = validator
	}

	if svc.socials != nil {
		reconciler, recErr := NewSocialReconciler(svc.socials)
		if recErr != nil {
			return nil, mapBuildError(builder.errorMapper, recErr)
		}
		svc.reconciler = reconciler
	}

	if svc.profiles != nil {
		saga, sagaErr := NewProfileSaga(svc.cache, svc.profiles,
			WithSnapshotTTL(finalConfig.Snapshots.TTL),
			WithSagaLogger(logger),
		)
		if sagaErr != nil {
			return nil, mapBuildError(builder.errorMapper, sagaErr)
		}
		svc.saga = saga
	}

	verification, verErr := NewVerificationFlags(svc.cache, finalConfig.Verification.FlagTTL)
	if verErr != nil {
		return nil, mapBuildError(builder.errorMapper, verErr)
	}
	svc.verification = verification

	return svc, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func resolveSigningKey(provider SigningKeyProvider, cfg Config) ([]byte, error) {
	if provider != nil {
		key, err := provider.SigningKey(context.Background())
		if err != nil {
			return nil, fmt.Errorf("core: resolve signing key: %w", err)
		}
		if len(key) > 0 {
			return key, nil
		}
	}
	configured := strings.TrimSpace(cfg.Tokens.SigningKey)
	if configured == "" {
		return nil, fmt.Errorf("core: tokens.signing_key is required")
	}
	if decoded, err := base64.StdEncoding.DecodeString(configured); err == nil && len(decoded) > 0 {
		return decoded, nil
	}
	return []byte(configured), nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		SessionCache:      s.cache,
		UserStore:         s.users,
		SocialStore:       s.socials,
		SessionTokenStore: s.sessionTokens,
		ProfileStore:      s.profiles,
		EnrichmentClient:  s.enrichment,
		PasswordHasher:    s.hasher,
		LoginThrottle:     s.throttle,
	}
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// Login authenticates a local account and mints a fresh session. A missing
// account and a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, userID string, password string) (result LoginResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"principal_kind": string(PrincipalLocal)}
	defer func() { s.observeOperation(ctx, startedAt, "login", err, fields) }()

	if s == nil || s.users == nil || s.codec == nil || s.sessions == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for login"))
		return LoginResult{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || password == "" {
		err = s.mapError(fmt.Errorf("core: user id and password are required"))
		return LoginResult{}, err
	}
	fields["user_id"] = userID

	if s.throttle != nil {
		if throttleErr := s.throttle.CheckAttempt(ctx, userID); throttleErr != nil {
			err = s.mapError(throttleErr)
			return LoginResult{}, err
		}
	}

	user, found, lookupErr := s.users.FindByUserID(ctx, userID)
	if lookupErr != nil {
		err = s.mapError(fmt.Errorf("core: user store lookup: %w", lookupErr))
		return LoginResult{}, err
	}
	if !found {
		s.recordLoginFailure(ctx, userID)
		err = s.mapError(newAuthError("invalid credentials", goerrors.CategoryAuth, AuthErrorUnauthorized))
		return LoginResult{}, err
	}

	hash, hashErr := s.users.PasswordHash(ctx, userID)
	if hashErr != nil {
		err = s.mapError(fmt.Errorf("core: user store lookup: %w", hashErr))
		return LoginResult{}, err
	}
	if compareErr := s.hasher.Compare(hash, password); compareErr != nil {
		s.recordLoginFailure(ctx, userID)
		err = s.mapError(newAuthError("invalid credentials", goerrors.CategoryAuth, AuthErrorUnauthorized))
		return LoginResult{}, err
	}
	if s.throttle != nil {
		if recordErr := s.throttle.RecordSuccess(ctx, userID); recordErr != nil {
			s.logWithLevel(ctx, "warn", "login throttle reset failed", map[string]any{
				"user_id": userID,
				"error":   recordErr.Error(),
			})
		}
	}

	accessToken, issueErr := s.codec.Issue(user, s.config.Tokens.AccessTTL)
	if issueErr != nil {
		err = s.mapError(issueErr)
		return LoginResult{}, err
	}
	refreshToken, issueErr := s.codec.Issue(user, s.config.Tokens.RefreshTTL)
	if issueErr != nil {
		err = s.mapError(issueErr)
		return LoginResult{}, err
	}

	if putErr := s.sessions.Put(ctx, user.Ref(), CacheKeyFor(LocalCacheNamespace, user.UserID), accessToken, refreshToken); putErr != nil {
		err = s.mapError(putErr)
		return LoginResult{}, err
	}

	return LoginResult{
		LoggedIn:     true,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       user.UserID,
		UserName:     user.UserName,
	}, nil
}

func (s *Service) recordLoginFailure(ctx context.Context, userID string) {
	if s == nil || s.throttle == nil {
		return
	}
	if err := s.throttle.RecordFailure(ctx, userID); err != nil {
		s.logWithLevel(ctx, "warn", "login throttle record failed", map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
	}
}

// Join registers a local account. The email must carry a live verification
// flag, which is consumed here so one verification admits one signup.
func (s *Service) Join(ctx context.Context, req JoinRequest) (result JoinResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"principal_kind": string(PrincipalLocal)}
	defer func() { s.observeOperation(ctx, startedAt, "join", err, fields) }()

	if s == nil || s.users == nil || s.verification == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for join"))
		return JoinResult{}, err
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.UserName = strings.TrimSpace(req.UserName)
	req.Email = strings.TrimSpace(req.Email)
	if req.UserID == "" || req.Password == "" || req.UserName == "" || req.Email == "" {
		err = s.mapError(fmt.Errorf("core: user id, password, user name and email are required"))
		return JoinResult{}, err
	}
	fields["user_id"] = req.UserID

	// Check only; the flag is consumed after the account lands so a failed
	// join leaves it available for the retry.
	verified, verifyErr := s.verification.Check(ctx, req.Email)
	if verifyErr != nil {
		err = s.mapError(verifyErr)
		return JoinResult{}, err
	}
	if !verified {
		err = s.mapError(newAuthError("email verification is required", goerrors.CategoryAuthz, AuthErrorEmailNotVerified))
		return JoinResult{}, err
	}

	if _, exists, lookupErr := s.users.FindByUserID(ctx, req.UserID); lookupErr != nil {
		err = s.mapError(fmt.Errorf("core: user store lookup: %w", lookupErr))
		return JoinResult{}, err
	} else if exists {
		err = s.mapError(newAuthError("user id already in use", goerrors.CategoryConflict, AuthErrorAlreadyExists))
		return JoinResult{}, err
	}

	hash, hashErr := s.hasher.Hash(req.Password)
	if hashErr != nil {
		err = s.mapError(hashErr)
		return JoinResult{}, err
	}

	created, createErr := s.users.Create(ctx, LocalUser{
		UserID:   req.UserID,
		UserName: req.UserName,
		Email:    req.Email,
		Phone:    strings.TrimSpace(req.Phone),
		Role:     RoleUser,
	}, hash)
	if createErr != nil {
		err = s.mapError(fmt.Errorf("core: user store insert: %w", createErr))
		return JoinResult{}, err
	}
	if created.UID == 0 {
		err = s.mapError(fmt.Errorf("core: user insert returned no uid"))
		return JoinResult{}, err
	}
	fields["principal_uid"] = created.UID

	if s.profiles != nil {
		profile := Profile{
			UserName: created.UserName,
			Email:    created.Email,
			EmailYN:  req.EmailYN,
			Phone:    created.Phone,
			PhoneYN:  req.PhoneYN,
		}
		if profileErr := s.profiles.ApplyUpdate(ctx, created.Ref(), profile, req.Address); profileErr != nil {
			err = s.mapError(fmt.Errorf("core: profile store insert: %w", profileErr))
			return JoinResult{}, err
		}
	}

	if _, consumeErr := s.verification.Consume(ctx, req.Email); consumeErr != nil {
		// The account exists; the leftover flag expires on its own.
		s.logWithLevel(ctx, "warn", "verification flag consume failed after join", map[string]any{
			"principal_uid": created.UID,
			"error":         consumeErr.Error(),
		})
	}

	if len(req.Allergies) > 0 && s.enrichment != nil {
		payload := AllergyPayload{UserUID: created.UID, Allergies: req.Allergies}
		if notifyErr := s.notifyEnrichment(ctx, payload); notifyErr != nil {
			s.logWithLevel(ctx, "warn", "enrichment notify failed during join", map[string]any{
				"principal_uid": created.UID,
				"error":         notifyErr.Error(),
			})
		}
	}

	return JoinResult{Success: true, Message: "joined", UserUID: created.UID}, nil
}

// OAuthLogin reconciles the provider callback with the identity store and,
// on acceptance, issues a social session backed by the provider's tokens.
// Rejections come back as a non-logged-in result, not an error.
func (s *Service) OAuthLogin(ctx context.Context, providerName string, callback OAuthCallback) (result OAuthLoginResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"principal_kind": string(PrincipalSocial),
		"provider":       strings.ToUpper(strings.TrimSpace(providerName)),
	}
	defer func() { s.observeOperation(ctx, startedAt, "oauth_login", err, fields) }()

	if s == nil || s.reconciler == nil || s.sessions == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for oauth login"))
		return OAuthLoginResult{}, err
	}

	reconciled, recErr := s.reconciler.Reconcile(ctx, providerName, callback)
	if recErr != nil {
		err = s.mapError(recErr)
		return OAuthLoginResult{}, err
	}

	if reconciled.Outcome == ReconcileRejected {
		fields["rejection"] = reconciled.Reason
		result = OAuthLoginResult{
			LoggedIn: false,
			Message:  reconciled.Reason,
		}
		if reconciled.Reason == RejectionAlreadyExists {
			// The provider reported back is the EXISTING record's, so the
			// caller learns which account already owns the name.
			result.Provider = reconciled.Identity.Provider
			result.UserName = reconciled.Identity.UserName
		}
		return result, nil
	}

	identity := reconciled.Identity
	fields["principal_uid"] = identity.UID

	accessOpaque := opaqueSegment(callback.AccessToken)
	refreshOpaque := opaqueSegment(callback.RefreshToken)
	if putErr := s.sessions.PutSocial(ctx, identity.Ref(), identity.Provider, accessOpaque, refreshOpaque); putErr != nil {
		err = s.mapError(putErr)
		return OAuthLoginResult{}, err
	}

	return OAuthLoginResult{
		LoggedIn:     true,
		Message:      string(reconciled.Outcome),
		Provider:     identity.Provider,
		UserName:     identity.UserName,
		Email:        identity.Email,
		Mobile:       identity.Phone,
		Role:         identity.Role,
		AccessToken:  SocialWireToken(identity.Provider, accessOpaque),
		RefreshToken: SocialWireToken(identity.Provider, refreshOpaque),
	}, nil
}

// opaqueSegment strips an already-composite token down to its opaque part;
// a raw provider token passes through unchanged.
func opaqueSegment(token string) string {
	token = strings.TrimSpace(token)
	if _, opaque, ok := SplitSocialToken(token); ok {
		return opaque
	}
	return token
}

// RefreshSession exchanges a refresh token for a live session. Local
// refresh tokens mint a fresh pair; social refresh tokens replay the
// durable pair. Any validation code other than valid passes through in the
// result status.
func (s *Service) RefreshSession(ctx context.Context, refreshToken string) (result RefreshResult, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"token_class": string(TokenClassRefresh)}
	defer func() { s.observeOperation(ctx, startedAt, "refresh_session", err, fields) }()

	if s == nil || s.validator == nil || s.codec == nil || s.sessions == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for refresh"))
		return RefreshResult{}, err
	}

	code := s.validator.Validate(ctx, TokenClassRefresh, refreshToken)
	fields["validation_code"] = int(code)
	if code != ValidationValid {
		return RefreshResult{Status: code}, nil
	}

	if _, _, social := SplitSocialToken(strings.TrimSpace(refreshToken)); social {
		session, found, findErr := s.sessionTokens.FindByToken(ctx, strings.TrimSpace(refreshToken))
		if findErr != nil {
			err = s.mapError(fmt.Errorf("core: session store lookup: %w", findErr))
			return RefreshResult{}, err
		}
		if !found {
			return RefreshResult{Status: ValidationExpired}, nil
		}
		return RefreshResult{
			Status:       ValidationValid,
			AccessToken:  session.AccessToken,
			RefreshToken: session.RefreshToken,
		}, nil
	}

	user, detailsErr := s.codec.Details(refreshToken)
	if detailsErr != nil {
		err = s.mapError(detailsErr)
		return RefreshResult{}, err
	}
	fields["user_id"] = user.UserID

	newAccess, issueErr := s.codec.Issue(user, s.config.Tokens.AccessTTL)
	if issueErr != nil {
		err = s.mapError(issueErr)
		return RefreshResult{}, err
	}
	newRefresh, issueErr := s.codec.Issue(user, s.config.Tokens.RefreshTTL)
	if issueErr != nil {
		err = s.mapError(issueErr)
		return RefreshResult{}, err
	}
	if putErr := s.sessions.Put(ctx, user.Ref(), CacheKeyFor(LocalCacheNamespace, user.UserID), newAccess, newRefresh); putErr != nil {
		err = s.mapError(putErr)
		return RefreshResult{}, err
	}

	return RefreshResult{
		Status:       ValidationValid,
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
	}, nil
}

// UpdateSocialTokens replaces the cached and durable tokens for a social
// principal. Durable failure after a cache write is reported through the
// status value, matching the response contract.
func (s *Service) UpdateSocialTokens(ctx context.Context, ref PrincipalRef, accessToken string, refreshToken string) (status int, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"principal_kind": string(ref.Kind),
		"principal_uid":  ref.UID,
	}
	defer func() { s.observeOperation(ctx, startedAt, "update_social_tokens", err, fields) }()

	if s == nil || s.sessions == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for token update"))
		return 0, err
	}

	accessProvider, accessOpaque, accessOK := SplitSocialToken(strings.TrimSpace(accessToken))
	refreshProvider, refreshOpaque, refreshOK := SplitSocialToken(strings.TrimSpace(refreshToken))
	if !accessOK || !refreshOK || accessProvider != refreshProvider {
		err = s.mapError(fmt.Errorf("core: matching social tokens are required"))
		return 0, err
	}
	fields["provider"] = string(accessProvider)

	if putErr := s.sessions.PutSocial(ctx, ref, accessProvider, accessOpaque, refreshOpaque); putErr != nil {
		if errors.Is(putErr, ErrDurablePersist) {
			fields["durable_error"] = putErr.Error()
			return SocialTokenUpdateStoreFailure, nil
		}
		err = s.mapError(putErr)
		return 0, err
	}
	return SocialTokenUpdateOK, nil
}

// ValidateToken classifies and checks a token as an access credential,
// returning the stable validation code. It never errors.
func (s *Service) ValidateToken(ctx context.Context, token string) ValidationCode {
	if s == nil || s.validator == nil {
		return ValidationMismatch
	}
	return s.validator.Validate(ctx, TokenClassAccess, token)
}

// Logout tears down the session behind the presented token. Repeated
// logouts with the same token succeed; there is nothing left to remove.
func (s *Service) Logout(ctx context.Context, token string) (ok bool, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() { s.observeOperation(ctx, startedAt, "logout", err, fields) }()

	if s == nil || s.sessions == nil || s.codec == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for logout"))
		return false, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		err = s.mapError(fmt.Errorf("core: token is required"))
		return false, err
	}

	if provider, opaque, social := SplitSocialToken(token); social {
		fields["principal_kind"] = string(PrincipalSocial)
		fields["provider"] = string(provider)

		session, found, findErr := s.sessionTokens.FindByToken(ctx, token)
		if findErr != nil {
			err = s.mapError(fmt.Errorf("core: session store lookup: %w", findErr))
			return false, err
		}
		if !found {
			// No durable row: clear whatever cache entries the presented
			// token maps to and treat the logout as already done.
			base := CacheKeyFor(provider.CacheNamespace(), opaque)
			if _, delErr := s.cache.Delete(ctx, AccessCacheKey(base)); delErr != nil {
				err = s.mapError(delErr)
				return false, err
			}
			if _, delErr := s.cache.Delete(ctx, RefreshCacheKey(base)); delErr != nil {
				err = s.mapError(delErr)
				return false, err
			}
			return true, nil
		}
		fields["principal_uid"] = session.Principal.UID

		if _, delErr := s.sessions.DeleteSocial(ctx, session.Principal, provider,
			opaqueSegment(session.AccessToken), opaqueSegment(session.RefreshToken)); delErr != nil {
			err = s.mapError(delErr)
			return false, err
		}
		return true, nil
	}

	fields["principal_kind"] = string(PrincipalLocal)
	user, detailsErr := s.codec.Details(token)
	if detailsErr != nil {
		err = s.mapError(newAuthError("token is not valid", goerrors.CategoryAuth, AuthErrorUnauthorized))
		return false, err
	}
	fields["user_id"] = user.UserID
	fields["principal_uid"] = user.UID

	if _, delErr := s.sessions.Delete(ctx, user.Ref(), CacheKeyFor(LocalCacheNamespace, user.UserID)); delErr != nil {
		err = s.mapError(delErr)
		return false, err
	}
	return true, nil
}

// DeleteAccount tears down the session and removes the account: hard
// delete for local users, soft delete for social identities so a later
// OAuth login can reactivate them.
func (s *Service) DeleteAccount(ctx context.Context, token string) (ok bool, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() { s.observeOperation(ctx, startedAt, "delete_account", err, fields) }()

	if s == nil || s.sessions == nil || s.codec == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for account deletion"))
		return false, err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		err = s.mapError(fmt.Errorf("core: token is required"))
		return false, err
	}

	if provider, _, social := SplitSocialToken(token); social {
		fields["principal_kind"] = string(PrincipalSocial)
		fields["provider"] = string(provider)
		if s.socials == nil {
			err = s.mapError(fmt.Errorf("core: social store is required"))
			return false, err
		}

		session, found, findErr := s.sessionTokens.FindByToken(ctx, token)
		if findErr != nil {
			err = s.mapError(fmt.Errorf("core: session store lookup: %w", findErr))
			return false, err
		}
		if !found {
			err = s.mapError(newAuthError("session not found for token", goerrors.CategoryAuth, AuthErrorUnauthorized))
			return false, err
		}
		fields["principal_uid"] = session.Principal.UID

		identity, identityFound, identityErr := s.socials.FindByUID(ctx, session.Principal.UID)
		if identityErr != nil {
			err = s.mapError(fmt.Errorf("core: social store lookup: %w", identityErr))
			return false, err
		}
		if !identityFound {
			err = s.mapError(newAuthError("social identity not found", goerrors.CategoryAuth, AuthErrorUnauthorized))
			return false, err
		}

		if _, delErr := s.sessions.DeleteSocial(ctx, session.Principal, provider,
			opaqueSegment(session.AccessToken), opaqueSegment(session.RefreshToken)); delErr != nil {
			err = s.mapError(delErr)
			return false, err
		}
		if _, softErr := s.socials.SoftDelete(ctx, identity.ExternalID); softErr != nil {
			err = s.mapError(fmt.Errorf("core: social store delete: %w", softErr))
			return false, err
		}
		return true, nil
	}

	fields["principal_kind"] = string(PrincipalLocal)
	if s.users == nil {
		err = s.mapError(fmt.Errorf("core: user store is required"))
		return false, err
	}
	user, detailsErr := s.codec.Details(token)
	if detailsErr != nil {
		err = s.mapError(newAuthError("token is not valid", goerrors.CategoryAuth, AuthErrorUnauthorized))
		return false, err
	}
	fields["user_id"] = user.UserID
	fields["principal_uid"] = user.UID

	if _, delErr := s.sessions.Delete(ctx, user.Ref(), CacheKeyFor(LocalCacheNamespace, user.UserID)); delErr != nil {
		err = s.mapError(delErr)
		return false, err
	}
	if _, delErr := s.users.Delete(ctx, user.UserID); delErr != nil {
		err = s.mapError(fmt.Errorf("core: user store delete: %w", delErr))
		return false, err
	}
	return true, nil
}

type resolvedPrincipal struct {
	ref    PrincipalRef
	user   LocalUser
	social SocialIdentity
}

// resolvePrincipal authenticates a presented access token and resolves the
// principal behind it. Every profile-facing operation goes through here, so
// the caller always passes an explicit credential rather than relying on
// ambient request state.
func (s *Service) resolvePrincipal(ctx context.Context, token string) (resolvedPrincipal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return resolvedPrincipal{}, newAuthError("token is required", goerrors.CategoryAuth, AuthErrorUnauthorized)
	}

	if _, _, social := SplitSocialToken(token); social {
		if s.validator == nil || s.sessionTokens == nil || s.socials == nil {
			return resolvedPrincipal{}, fmt.Errorf("core: service is not configured for social principals")
		}
		if code := s.validator.Validate(ctx, TokenClassAccess, token); code != ValidationValid {
			return resolvedPrincipal{}, newAuthError("token is not valid", goerrors.CategoryAuth, AuthErrorUnauthorized)
		}
		session, found, err := s.sessionTokens.FindByToken(ctx, token)
		if err != nil {
			return resolvedPrincipal{}, fmt.Errorf("core: session store lookup: %w", err)
		}
		if !found {
			return resolvedPrincipal{}, newAuthError("session not found for token", goerrors.CategoryAuth, AuthErrorUnauthorized)
		}
		identity, found, err := s.socials.FindByUID(ctx, session.Principal.UID)
		if err != nil {
			return resolvedPrincipal{}, fmt.Errorf("core: social store lookup: %w", err)
		}
		if !found {
			return resolvedPrincipal{}, newAuthError("social identity not found", goerrors.CategoryAuth, AuthErrorUnauthorized)
		}
		return resolvedPrincipal{ref: identity.Ref(), social: identity}, nil
	}

	if s.codec == nil {
		return resolvedPrincipal{}, fmt.Errorf("core: token codec is required")
	}
	claims, outcome := s.codec.Verify(token)
	if outcome != VerifyValid {
		return resolvedPrincipal{}, newAuthError("token is not valid", goerrors.CategoryAuth, AuthErrorUnauthorized)
	}
	user := claims.User()
	return resolvedPrincipal{ref: user.Ref(), user: user}, nil
}

// UserInfo returns the principal summary behind an access token.
func (s *Service) UserInfo(ctx context.Context, token string) (info UserInfo, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() { s.observeOperation(ctx, startedAt, "user_info", err, fields) }()

	if s == nil {
		return UserInfo{}, fmt.Errorf("core: service is not configured")
	}
	principal, resolveErr := s.resolvePrincipal(ctx, token)
	if resolveErr != nil {
		err = s.mapError(resolveErr)
		return UserInfo{}, err
	}
	fields["principal_kind"] = string(principal.ref.Kind)
	fields["principal_uid"] = principal.ref.UID

	if principal.ref.Kind == PrincipalSocial {
		return UserInfo{
			UID:      principal.social.UID,
			Kind:     PrincipalSocial,
			UserID:   principal.social.ExternalID,
			UserName: principal.social.UserName,
			Role:     principal.social.Role,
		}, nil
	}
	return UserInfo{
		UID:      principal.user.UID,
		Kind:     PrincipalLocal,
		UserID:   principal.user.UserID,
		UserName: principal.user.UserName,
		Role:     principal.user.Role,
	}, nil
}

// UserProfile reads the full profile and address view for the principal.
func (s *Service) UserProfile(ctx context.Context, token string) (view ProfileView, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() { s.observeOperation(ctx, startedAt, "user_profile", err, fields) }()

	if s == nil || s.profiles == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for profiles"))
		return ProfileView{}, err
	}
	principal, resolveErr := s.resolvePrincipal(ctx, token)
	if resolveErr != nil {
		err = s.mapError(resolveErr)
		return ProfileView{}, err
	}
	fields["principal_kind"] = string(principal.ref.Kind)
	fields["principal_uid"] = principal.ref.UID

	snapshot, readErr := s.profiles.ReadCurrent(ctx, principal.ref)
	if readErr != nil {
		err = s.mapError(fmt.Errorf("core: profile store read: %w", readErr))
		return ProfileView{}, err
	}

	view = ProfileView{
		UID:     principal.ref.UID,
		Kind:    principal.ref.Kind,
		Profile: snapshot.Profile,
		Address: snapshot.Address,
	}
	if principal.ref.Kind == PrincipalSocial {
		view.UserID = principal.social.ExternalID
		view.Provider = principal.social.Provider
		view.Role = principal.social.Role
		view.CreatedAt = principal.social.CreatedAt
	} else {
		view.UserID = principal.user.UserID
		view.Role = principal.user.Role
		view.CreatedAt = principal.user.CreatedAt
	}
	return view, nil
}

// UpdateProfile mutates the profile and address, and when the request
// carries allergy data, runs the change under the compensation coordinator
// so a failed enrichment call does not leave the stores diverged.
func (s *Service) UpdateProfile(ctx context.Context, token string, req UpdateProfileRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() { s.observeOperation(ctx, startedAt, "update_profile", err, fields) }()

	if s == nil || s.saga == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for profile updates"))
		return err
	}
	principal, resolveErr := s.resolvePrincipal(ctx, token)
	if resolveErr != nil {
		err = s.mapError(resolveErr)
		return err
	}
	fields["principal_kind"] = string(principal.ref.Kind)
	fields["principal_uid"] = principal.ref.UID

	payload := AllergyPayload{Allergies: req.Allergies}
	if principal.ref.Kind == PrincipalSocial {
		payload.SocialUID = principal.ref.UID
	} else {
		payload.UserUID = principal.ref.UID
	}

	var notify NotifyFunc
	if s.enrichment != nil {
		notify = func(notifyCtx context.Context) error {
			return s.notifyEnrichment(notifyCtx, payload)
		}
	}

	if sagaErr := s.saga.MutateThenNotify(ctx, principal.ref, req.Profile, req.Address, payload, notify); sagaErr != nil {
		err = s.mapError(sagaErr)
		return err
	}
	return nil
}

// UpdateAddress replaces the principal's address without touching profile
// fields or the enrichment service.
func (s *Service) UpdateAddress(ctx context.Context, token string, req UpdateAddressRequest) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() { s.observeOperation(ctx, startedAt, "update_address", err, fields) }()

	if s == nil || s.profiles == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for address updates"))
		return err
	}
	principal, resolveErr := s.resolvePrincipal(ctx, token)
	if resolveErr != nil {
		err = s.mapError(resolveErr)
		return err
	}
	fields["principal_kind"] = string(principal.ref.Kind)
	fields["principal_uid"] = principal.ref.UID

	if updateErr := s.profiles.UpdateAddress(ctx, principal.ref, req.Address); updateErr != nil {
		err = s.mapError(fmt.Errorf("core: address store update: %w", updateErr))
		return err
	}
	return nil
}

// Managers lists local accounts holding the manager role.
func (s *Service) Managers(ctx context.Context) (managers []LocalUser, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() { s.observeOperation(ctx, startedAt, "managers", err, fields) }()

	if s == nil || s.users == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for manager lookup"))
		return nil, err
	}
	managers, listErr := s.users.Managers(ctx)
	if listErr != nil {
		err = s.mapError(fmt.Errorf("core: user store lookup: %w", listErr))
		return nil, err
	}
	fields["count"] = len(managers)
	return managers, nil
}

// VerifyEmail records that the email passed out-of-band verification,
// opening a bounded window during which a signup with that email succeeds.
func (s *Service) VerifyEmail(ctx context.Context, email string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() { s.observeOperation(ctx, startedAt, "verify_email", err, fields) }()

	if s == nil || s.verification == nil {
		err = s.mapError(fmt.Errorf("core: service is not configured for verification"))
		return err
	}
	if markErr := s.verification.MarkVerified(ctx, email); markErr != nil {
		err = s.mapError(markErr)
		return err
	}
	return nil
}

func (s *Service) notifyEnrichment(ctx context.Context, payload AllergyPayload) error {
	if s == nil || s.enrichment == nil {
		return nil
	}
	timeout := s.config.Enrichment.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	notifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.enrichment.Notify(notifyCtx, payload)
}
