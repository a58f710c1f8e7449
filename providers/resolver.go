package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/core"
)

const (
	defaultRequestTimeout   = 10 * time.Second
	maxProfileResponseBytes = 1 << 20 // 1 MiB
	naverUserInfoURL        = "https://openapi.naver.com/v1/nid/me"
	kakaoUserInfoURL        = "https://kapi.kakao.com/v2/user/me"
	googleUserInfoURL       = "https://openidconnect.googleapis.com/v1/userinfo"
)

var ErrProfileNotFound = errors.New("providers: profile not found")

type ProfileNotFoundError struct {
	Cause error
}

func (e *ProfileNotFoundError) Error() string {
	if e == nil || e.Cause == nil {
		return ErrProfileNotFound.Error()
	}
	return ErrProfileNotFound.Error() + ": " + e.Cause.Error()
}

func (e *ProfileNotFoundError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Cause == nil {
		return ErrProfileNotFound
	}
	return errors.Join(ErrProfileNotFound, e.Cause)
}

func (e *ProfileNotFoundError) ToAuthError() *goerrors.Error {
	message := ErrProfileNotFound.Error()
	if e != nil && e.Cause != nil {
		message = e.Error()
	}
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.AuthErrorUnauthorized)
}

func profileNotFound(cause error) error {
	return &ProfileNotFoundError{Cause: cause}
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProfileNormalizer maps a provider userinfo payload onto the neutral
// callback shape the reconciler consumes.
type ProfileNormalizer func(payload map[string]any) core.OAuthCallback

type EndpointConfig struct {
	URL        string
	Normalizer ProfileNormalizer
}

type Config struct {
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration
	// Endpoints overrides the built-in userinfo endpoint per provider,
	// mainly for tests pointed at local servers.
	Endpoints map[core.Provider]EndpointConfig
}

// Resolver fetches the account profile behind a provider access token and
// normalizes it into a core.OAuthCallback.
type Resolver struct {
	httpClient     HTTPDoer
	requestTimeout time.Duration
	endpoints      map[core.Provider]EndpointConfig
}

func NewResolver(cfg Config) *Resolver {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	endpoints := defaultEndpointConfigs()
	for provider, value := range cfg.Endpoints {
		if !provider.Valid() {
			continue
		}
		current := endpoints[provider]
		if url := strings.TrimSpace(value.URL); url != "" {
			current.URL = url
		}
		if value.Normalizer != nil {
			current.Normalizer = value.Normalizer
		}
		endpoints[provider] = current
	}

	return &Resolver{
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		endpoints:      endpoints,
	}
}

func DefaultResolver() *Resolver {
	return NewResolver(Config{})
}

// Resolve fetches the profile for the given provider tokens. The returned
// callback carries the provider tokens so callers can hand it straight to
// the login reconciler.
func (r *Resolver) Resolve(ctx context.Context, provider core.Provider, accessToken string, refreshToken string) (core.OAuthCallback, error) {
	if r == nil {
		return core.OAuthCallback{}, profileNotFound(nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !provider.Valid() {
		return core.OAuthCallback{}, profileNotFound(fmt.Errorf("providers: unknown provider %q", provider))
	}

	endpoint, ok := r.endpoints[provider]
	if !ok || strings.TrimSpace(endpoint.URL) == "" || endpoint.Normalizer == nil {
		return core.OAuthCallback{}, profileNotFound(fmt.Errorf("providers: no userinfo endpoint for %q", provider))
	}

	payload, err := r.fetchUserInfo(ctx, endpoint.URL, strings.TrimSpace(accessToken))
	if err != nil {
		return core.OAuthCallback{}, profileNotFound(err)
	}

	callback := endpoint.Normalizer(payload)
	if strings.TrimSpace(callback.ExternalID) == "" {
		return core.OAuthCallback{}, profileNotFound(fmt.Errorf("providers: payload is missing account id"))
	}
	callback.AccessToken = strings.TrimSpace(accessToken)
	callback.RefreshToken = strings.TrimSpace(refreshToken)
	return callback, nil
}

func defaultEndpointConfigs() map[core.Provider]EndpointConfig {
	return map[core.Provider]EndpointConfig{
		core.ProviderNaver: {
			URL:        naverUserInfoURL,
			Normalizer: normalizeNaverProfile,
		},
		core.ProviderKakao: {
			URL:        kakaoUserInfoURL,
			Normalizer: normalizeKakaoProfile,
		},
		core.ProviderGoogle: {
			URL:        googleUserInfoURL,
			Normalizer: normalizeGoogleProfile,
		},
	}
}

func (r *Resolver) fetchUserInfo(ctx context.Context, endpoint string, accessToken string) (map[string]any, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("providers: access token is required")
	}
	requestCtx := ctx
	cancel := func() {}
	if r.requestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, r.requestTimeout)
	}
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, readErr := io.ReadAll(io.LimitReader(res.Body, maxProfileResponseBytes+1))
	if readErr != nil {
		return nil, fmt.Errorf("providers: read profile response: %w", readErr)
	}
	if int64(len(body)) > maxProfileResponseBytes {
		return nil, fmt.Errorf("providers: profile response exceeds %d bytes", maxProfileResponseBytes)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("providers: profile endpoint returned status %d", res.StatusCode)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("providers: decode profile response: %w", err)
	}
	return payload, nil
}

// Naver wraps the account under a "response" envelope alongside a result
// code. https://openapi.naver.com/v1/nid/me
func normalizeNaverProfile(payload map[string]any) core.OAuthCallback {
	account, _ := payload["response"].(map[string]any)
	if account == nil {
		account = payload
	}
	return core.OAuthCallback{
		ExternalID: readString(account["id"]),
		Name:       readString(account["name"]),
		Nickname:   readString(account["nickname"]),
		Email:      readString(account["email"]),
		Mobile:     readString(account["mobile"]),
	}
}

// Kakao keys the account id at the top level and nests contact details
// under kakao_account. The nickname lives in the profile block, with a
// legacy fallback under properties.
func normalizeKakaoProfile(payload map[string]any) core.OAuthCallback {
	callback := core.OAuthCallback{
		ExternalID: readString(payload["id"]),
	}
	if account, ok := payload["kakao_account"].(map[string]any); ok {
		callback.Email = readString(account["email"])
		callback.Mobile = readString(account["phone_number"])
		if profile, ok := account["profile"].(map[string]any); ok {
			callback.Nickname = readString(profile["nickname"])
		}
		callback.Name = readString(account["name"])
	}
	if callback.Nickname == "" {
		if properties, ok := payload["properties"].(map[string]any); ok {
			callback.Nickname = readString(properties["nickname"])
		}
	}
	return callback
}

// Google userinfo is flat OIDC claims.
func normalizeGoogleProfile(payload map[string]any) core.OAuthCallback {
	name := readString(payload["name"])
	if name == "" {
		name = strings.TrimSpace(strings.Join(
			[]string{readString(payload["given_name"]), readString(payload["family_name"])},
			" ",
		))
	}
	return core.OAuthCallback{
		ExternalID: readString(payload["sub"]),
		Name:       name,
		Nickname:   name,
		Email:      readString(payload["email"]),
	}
}

func readString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	case json.Number:
		return strings.TrimSpace(typed.String())
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatInt(int64(typed), 10)
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}
