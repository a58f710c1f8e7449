package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// Every strategy must stamp a credential onto a plain request and reject
// a nil one, so callers can treat them interchangeably.
func TestStrategyConformance(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":600}`))
	}))
	defer tokenServer.Close()

	now := time.Unix(1_700_000_000, 0).UTC()
	cases := []struct {
		kind     string
		strategy Strategy
	}{
		{KindAPIKey, NewAPIKeyStrategy(APIKeyStrategyConfig{Key: "key"})},
		{KindHMAC, NewHMACStrategy(HMACStrategyConfig{Secret: "secret", Now: func() time.Time { return now }})},
		{KindBasic, NewBasicStrategy(BasicStrategyConfig{Username: "user", Password: "pass"})},
		{KindClientCredentials, NewClientCredentialsStrategy(ClientCredentialsStrategyConfig{
			ClientID:     "id",
			ClientSecret: "secret",
			TokenURL:     tokenServer.URL,
			HTTPClient:   tokenServer.Client(),
		})},
		{KindClientAssertion, NewClientAssertionStrategy(ClientAssertionStrategyConfig{
			Issuer:   "iss",
			Audience: "aud",
			Secret:   "secret",
			Now:      func() time.Time { return now },
		})},
		{KindSigV4, NewSigV4Strategy(SigV4StrategyConfig{
			AccessKeyID:     "AKIDEXAMPLE",
			SecretAccessKey: "secret",
			Region:          "us-east-1",
			Service:         "execute-api",
			Now:             func() time.Time { return now },
		})},
	}

	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			if got := tc.strategy.Kind(); got != tc.kind {
				t.Fatalf("unexpected kind %q", got)
			}

			req, err := http.NewRequest(http.MethodGet, "https://api.example.com/v1/resource", nil)
			if err != nil {
				t.Fatalf("build request: %v", err)
			}
			before := len(req.Header)
			beforeQuery := req.URL.RawQuery
			if err := tc.strategy.Authorize(context.Background(), req); err != nil {
				t.Fatalf("authorize: %v", err)
			}
			if len(req.Header) == before && req.URL.RawQuery == beforeQuery {
				t.Fatalf("expected strategy to stamp a credential")
			}

			if err := tc.strategy.Authorize(context.Background(), nil); err == nil {
				t.Fatalf("expected nil request rejection")
			}
		})
	}
}
