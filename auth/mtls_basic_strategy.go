package auth

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

type BasicStrategyConfig struct {
	Username string
	Password string
}

// BasicStrategy sets HTTP basic credentials. Internal services behind a
// gateway that strips and re-issues auth still use this.
type BasicStrategy struct {
	config BasicStrategyConfig
}

func NewBasicStrategy(cfg BasicStrategyConfig) *BasicStrategy {
	return &BasicStrategy{
		config: BasicStrategyConfig{
			Username: strings.TrimSpace(cfg.Username),
			Password: cfg.Password,
		},
	}
}

func (*BasicStrategy) Kind() string { return KindBasic }

func (s *BasicStrategy) Authorize(_ context.Context, req *http.Request) error {
	if s == nil || s.config.Username == "" || s.config.Password == "" {
		return fmt.Errorf("auth: basic strategy requires username and password")
	}
	if req == nil {
		return fmt.Errorf("auth: request is required")
	}
	req.SetBasicAuth(s.config.Username, s.config.Password)
	return nil
}

type MutualTLSConfig struct {
	CertFile string
	KeyFile  string
	// CAFile pins the peer CA. Empty falls back to the system pool.
	CAFile  string
	Timeout time.Duration
}

// NewMutualTLSClient builds an HTTP client presenting a client
// certificate. Pair it with a Strategy when the peer wants both a
// transport identity and a request credential.
func NewMutualTLSClient(cfg MutualTLSConfig) (*http.Client, error) {
	certFile := strings.TrimSpace(cfg.CertFile)
	keyFile := strings.TrimSpace(cfg.KeyFile)
	if certFile == "" || keyFile == "" {
		return nil, fmt.Errorf("auth: mutual tls requires certificate and key files")
	}
	certificate, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("auth: load client certificate: %w", err)
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{certificate},
		MinVersion:   tls.VersionTLS12,
	}
	if caFile := strings.TrimSpace(cfg.CAFile); caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("auth: read ca bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("auth: ca bundle contains no certificates")
		}
		tlsConfig.RootCAs = pool
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}

var _ Strategy = (*BasicStrategy)(nil)
