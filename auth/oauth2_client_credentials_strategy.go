package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxTokenResponseBytes = 1 << 20

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientCredentialsStrategyConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	HTTPClient   HTTPDoer
	// RenewBefore re-mints the token this long before its expiry, so a
	// request never goes out with a token about to lapse mid-flight.
	RenewBefore time.Duration
	Now         func() time.Time
}

// ClientCredentialsStrategy performs the OAuth2 client_credentials grant
// against the provider token endpoint and caches the bearer token until
// it nears expiry. Provider admin APIs (bulk unlink, token revocation)
// authenticate this way.
type ClientCredentialsStrategy struct {
	config ClientCredentialsStrategyConfig

	mu        sync.Mutex
	token     string
	tokenType string
	expiresAt time.Time
}

func NewClientCredentialsStrategy(cfg ClientCredentialsStrategyConfig) *ClientCredentialsStrategy {
	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = 2 * time.Minute
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &ClientCredentialsStrategy{
		config: ClientCredentialsStrategyConfig{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			TokenURL:     strings.TrimSpace(cfg.TokenURL),
			Scopes:       normalizeScopes(cfg.Scopes),
			HTTPClient:   httpClient,
			RenewBefore:  renewBefore,
			Now:          now,
		},
	}
}

func (*ClientCredentialsStrategy) Kind() string { return KindClientCredentials }

func (s *ClientCredentialsStrategy) Authorize(ctx context.Context, req *http.Request) error {
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}
	tokenType, token, err := s.currentToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", tokenType+" "+token)
	return nil
}

func (s *ClientCredentialsStrategy) currentToken(ctx context.Context) (string, string, error) {
	if s == nil || s.config.ClientID == "" || s.config.ClientSecret == "" || s.config.TokenURL == "" {
		return "", "", fmt.Errorf("auth: client credentials strategy requires client id, secret, and token url")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.config.Now().UTC()
	if s.token != "" && s.expiresAt.After(now.Add(s.config.RenewBefore)) {
		return s.tokenType, s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.config.ClientID)
	form.Set("client_secret", s.config.ClientSecret)
	if len(s.config.Scopes) > 0 {
		form.Set("scope", strings.Join(s.config.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", fmt.Errorf("auth: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := s.config.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("auth: token request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxTokenResponseBytes))
	if err != nil {
		return "", "", fmt.Errorf("auth: read token response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", "", fmt.Errorf("auth: token endpoint returned status %d", res.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", fmt.Errorf("auth: decode token response: %w", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", "", fmt.Errorf("auth: token endpoint returned no access token")
	}

	tokenType := strings.TrimSpace(payload.TokenType)
	if tokenType == "" {
		tokenType = "Bearer"
	}
	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}

	s.token = strings.TrimSpace(payload.AccessToken)
	s.tokenType = tokenType
	s.expiresAt = now.Add(time.Duration(expiresIn) * time.Second)
	return s.tokenType, s.token, nil
}

var _ Strategy = (*ClientCredentialsStrategy)(nil)
