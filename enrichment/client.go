// Package enrichment calls the external allergy analysis service. The caller
// treats the service as opaque and possibly failing; compensation for failed
// notifications lives with the profile coordinator, not here.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-identity/core"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxResponseBytes      = 1 << 20 // 1 MiB
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestAuthorizer stamps outbound credentials onto the request. The
// strategies in the auth package satisfy it.
type RequestAuthorizer interface {
	Authorize(ctx context.Context, req *http.Request) error
}

type Config struct {
	// Endpoint receives the allergy payload as a JSON POST.
	Endpoint       string
	HTTPClient     HTTPDoer
	Authorizer     RequestAuthorizer
	RequestTimeout time.Duration
}

type Client struct {
	endpoint       string
	httpClient     HTTPDoer
	authorizer     RequestAuthorizer
	requestTimeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("enrichment: endpoint is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &Client{
		endpoint:       endpoint,
		httpClient:     httpClient,
		authorizer:     cfg.Authorizer,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *Client) Notify(ctx context.Context, payload core.AllergyPayload) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("enrichment: client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("enrichment: encode payload: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.authorizer != nil {
		if err := c.authorizer.Authorize(requestCtx, req); err != nil {
			return fmt.Errorf("enrichment: authorize request: %w", err)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	// Drain a bounded amount so keep-alive connections can be reused.
	if _, err := io.Copy(io.Discard, io.LimitReader(res.Body, maxResponseBytes)); err != nil {
		return fmt.Errorf("enrichment: read response: %w", err)
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("enrichment: endpoint returned status %d", res.StatusCode)
	}
	return nil
}

var _ core.EnrichmentClient = (*Client)(nil)
