package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig      Config
	logger             Logger
	loggerProvider     LoggerProvider
	metricsRecorder    MetricsRecorder
	errorFactory       ErrorFactory
	errorMapper        ErrorMapper
	signingKeyProvider SigningKeyProvider
	persistenceClient  any
	repositoryFactory  any
	configProvider     ConfigProvider
	optionsResolver    OptionsResolver
	sessionCache       SessionCache
	userStore          UserStore
	socialStore        SocialStore
	sessionTokenStore  SessionTokenStore
	profileStore       ProfileStore
	enrichmentClient   EnrichmentClient
	passwordHasher     PasswordHasher
	loginThrottle      LoginThrottle
	clock              func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithSigningKeyProvider(provider SigningKeyProvider) Option {
	return func(b *serviceBuilder) {
		b.signingKeyProvider = provider
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithSessionCache(cache SessionCache) Option {
	return func(b *serviceBuilder) {
		b.sessionCache = cache
	}
}

func WithUserStore(store UserStore) Option {
	return func(b *serviceBuilder) {
		b.userStore = store
	}
}

func WithSocialStore(store SocialStore) Option {
	return func(b *serviceBuilder) {
		b.socialStore = store
	}
}

func WithSessionTokenStore(store SessionTokenStore) Option {
	return func(b *serviceBuilder) {
		b.sessionTokenStore = store
	}
}

func WithProfileStore(store ProfileStore) Option {
	return func(b *serviceBuilder) {
		b.profileStore = store
	}
}

func WithEnrichmentClient(client EnrichmentClient) Option {
	return func(b *serviceBuilder) {
		b.enrichmentClient = client
	}
}

func WithPasswordHasher(hasher PasswordHasher) Option {
	return func(b *serviceBuilder) {
		b.passwordHasher = hasher
	}
}

func WithLoginThrottle(throttle LoginThrottle) Option {
	return func(b *serviceBuilder) {
		b.loginThrottle = throttle
	}
}

// WithClock overrides the service clock for token issuance and expiry
// checks. Test hook.
func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("identity", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		passwordHasher:  BcryptHasher{},
		clock:           func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return authErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	tokens := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Tokens.Issuer) != "" {
		tokens["issuer"] = cfg.Tokens.Issuer
	}
	if includeZero || strings.TrimSpace(cfg.Tokens.SigningKey) != "" {
		tokens["signing_key"] = cfg.Tokens.SigningKey
	}
	if includeZero || cfg.Tokens.AccessTTL > 0 {
		tokens["access_ttl"] = cfg.Tokens.AccessTTL
	}
	if includeZero || cfg.Tokens.RefreshTTL > 0 {
		tokens["refresh_ttl"] = cfg.Tokens.RefreshTTL
	}
	if len(tokens) > 0 {
		layer["tokens"] = tokens
	}

	sessions := map[string]any{}
	if includeZero || cfg.Sessions.AccessCacheTTL > 0 {
		sessions["access_cache_ttl"] = cfg.Sessions.AccessCacheTTL
	}
	if includeZero || cfg.Sessions.RefreshCacheTTL > 0 {
		sessions["refresh_cache_ttl"] = cfg.Sessions.RefreshCacheTTL
	}
	if len(sessions) > 0 {
		layer["sessions"] = sessions
	}

	if includeZero || cfg.Verification.FlagTTL > 0 {
		layer["verification"] = map[string]any{
			"flag_ttl": cfg.Verification.FlagTTL,
		}
	}
	if includeZero || cfg.Snapshots.TTL > 0 {
		layer["snapshots"] = map[string]any{
			"ttl": cfg.Snapshots.TTL,
		}
	}

	enrichment := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Enrichment.Endpoint) != "" {
		enrichment["endpoint"] = cfg.Enrichment.Endpoint
	}
	if includeZero || cfg.Enrichment.Timeout > 0 {
		enrichment["timeout"] = cfg.Enrichment.Timeout
	}
	if len(enrichment) > 0 {
		layer["enrichment"] = enrichment
	}

	return layer
}
