package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAPIKeyHeader = "X-API-Key"
	defaultHMACHeader   = "X-Signature"
	defaultTimeHeader   = "X-Timestamp"
	defaultKeyIDHeader  = "X-Key-Id"
)

type APIKeyStrategyConfig struct {
	Key        string
	Header     string
	Prefix     string
	QueryParam string
}

// APIKeyStrategy attaches a static key, either as a header (optionally
// prefixed, "Bearer"/"token" style) or as a query parameter.
type APIKeyStrategy struct {
	config APIKeyStrategyConfig
}

func NewAPIKeyStrategy(cfg APIKeyStrategyConfig) *APIKeyStrategy {
	header := strings.TrimSpace(cfg.Header)
	if header == "" && strings.TrimSpace(cfg.QueryParam) == "" {
		header = defaultAPIKeyHeader
	}
	return &APIKeyStrategy{
		config: APIKeyStrategyConfig{
			Key:        strings.TrimSpace(cfg.Key),
			Header:     header,
			Prefix:     strings.TrimSpace(cfg.Prefix),
			QueryParam: strings.TrimSpace(cfg.QueryParam),
		},
	}
}

func (*APIKeyStrategy) Kind() string { return KindAPIKey }

func (s *APIKeyStrategy) Authorize(_ context.Context, req *http.Request) error {
	if s == nil || s.config.Key == "" {
		return fmt.Errorf("auth: api key strategy requires a key")
	}
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}
	if s.config.QueryParam != "" {
		query := req.URL.Query()
		query.Set(s.config.QueryParam, s.config.Key)
		req.URL.RawQuery = query.Encode()
		return nil
	}
	value := s.config.Key
	if s.config.Prefix != "" {
		value = s.config.Prefix + " " + value
	}
	req.Header.Set(s.config.Header, value)
	return nil
}

type HMACStrategyConfig struct {
	Secret          string
	KeyID           string
	SignatureHeader string
	TimestampHeader string
	Now             func() time.Time
}

// HMACStrategy signs the request method, path, unix timestamp, and body
// digest with HMAC-SHA256. The receiver recomputes the signature and
// rejects stale timestamps, which gives replay protection the plain API
// key lacks.
type HMACStrategy struct {
	config HMACStrategyConfig
}

func NewHMACStrategy(cfg HMACStrategyConfig) *HMACStrategy {
	signatureHeader := strings.TrimSpace(cfg.SignatureHeader)
	if signatureHeader == "" {
		signatureHeader = defaultHMACHeader
	}
	timestampHeader := strings.TrimSpace(cfg.TimestampHeader)
	if timestampHeader == "" {
		timestampHeader = defaultTimeHeader
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &HMACStrategy{
		config: HMACStrategyConfig{
			Secret:          strings.TrimSpace(cfg.Secret),
			KeyID:           strings.TrimSpace(cfg.KeyID),
			SignatureHeader: signatureHeader,
			TimestampHeader: timestampHeader,
			Now:             now,
		},
	}
}

func (*HMACStrategy) Kind() string { return KindHMAC }

func (s *HMACStrategy) Authorize(_ context.Context, req *http.Request) error {
	if s == nil || s.config.Secret == "" {
		return fmt.Errorf("auth: hmac strategy requires a secret")
	}
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}

	bodyDigest, err := requestBodyDigest(req)
	if err != nil {
		return err
	}
	timestamp := strconv.FormatInt(s.config.Now().UTC().Unix(), 10)
	canonical := strings.Join([]string{
		req.Method,
		req.URL.EscapedPath(),
		timestamp,
		bodyDigest,
	}, "\n")

	mac := hmac.New(sha256.New, []byte(s.config.Secret))
	_, _ = mac.Write([]byte(canonical))

	req.Header.Set(s.config.TimestampHeader, timestamp)
	req.Header.Set(s.config.SignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	if s.config.KeyID != "" {
		req.Header.Set(defaultKeyIDHeader, s.config.KeyID)
	}
	return nil
}

// requestBodyDigest hashes the request body and restores it via GetBody
// so the transport can still send it.
func requestBodyDigest(req *http.Request) (string, error) {
	if req.Body == nil {
		return hex.EncodeToString(emptySHA256[:]), nil
	}
	if req.GetBody == nil {
		return "", fmt.Errorf("auth: request body must be replayable to sign")
	}
	body, err := req.GetBody()
	if err != nil {
		return "", fmt.Errorf("auth: reopen request body: %w", err)
	}
	defer func() { _ = body.Close() }()

	hash := sha256.New()
	if _, err := io.Copy(hash, body); err != nil {
		return "", fmt.Errorf("auth: digest request body: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

var emptySHA256 = sha256.Sum256(nil)

var (
	_ Strategy = (*APIKeyStrategy)(nil)
	_ Strategy = (*HMACStrategy)(nil)
)
