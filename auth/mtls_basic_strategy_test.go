package auth

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"testing"
)

func TestBasicStrategy_SetsCredentials(t *testing.T) {
	strategy := NewBasicStrategy(BasicStrategyConfig{Username: "svc-identity", Password: "p@ss word"})
	req, _ := http.NewRequest(http.MethodGet, "https://internal.example.com/v1/health", nil)
	if err := strategy.Authorize(context.Background(), req); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Basic ") {
		t.Fatalf("expected basic header, got %q", header)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	if err != nil {
		t.Fatalf("decode credentials: %v", err)
	}
	if string(decoded) != "svc-identity:p@ss word" {
		t.Fatalf("unexpected credentials %q", decoded)
	}

	username, password, ok := req.BasicAuth()
	if !ok || username != "svc-identity" || password != "p@ss word" {
		t.Fatalf("unexpected parsed credentials %q %q %v", username, password, ok)
	}
}

func TestBasicStrategy_RequiresBothParts(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://internal.example.com/v1/health", nil)
	if err := NewBasicStrategy(BasicStrategyConfig{Username: "svc"}).Authorize(context.Background(), req); err == nil {
		t.Fatalf("expected missing password rejection")
	}
	if err := NewBasicStrategy(BasicStrategyConfig{Password: "secret"}).Authorize(context.Background(), req); err == nil {
		t.Fatalf("expected missing username rejection")
	}
}

func TestNewMutualTLSClient_RejectsMissingMaterial(t *testing.T) {
	if _, err := NewMutualTLSClient(MutualTLSConfig{}); err == nil {
		t.Fatalf("expected missing certificate rejection")
	}
	if _, err := NewMutualTLSClient(MutualTLSConfig{CertFile: "does-not-exist.pem", KeyFile: "does-not-exist.key"}); err == nil {
		t.Fatalf("expected unreadable certificate rejection")
	}
}
