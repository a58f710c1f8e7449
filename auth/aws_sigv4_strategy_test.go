package auth

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"testing"
	"time"
)

func sigv4TestChain(secret, shortDate, region, service, stringToSign string) string {
	key := hmacSHA256([]byte("AWS4"+secret), shortDate)
	key = hmacSHA256(key, region)
	key = hmacSHA256(key, service)
	key = hmacSHA256(key, "aws4_request")
	return hex.EncodeToString(hmacSHA256(key, stringToSign))
}

func TestSigV4Strategy_SignsRequest(t *testing.T) {
	now := time.Date(2023, time.November, 14, 22, 13, 20, 0, time.UTC)
	strategy := NewSigV4Strategy(SigV4StrategyConfig{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret-access-key",
		SessionToken:    "session-token",
		Region:          "ap-northeast-2",
		Service:         "execute-api",
		Now:             func() time.Time { return now },
	})

	body := []byte(`{"user_id":"jane"}`)
	req, err := http.NewRequest(http.MethodPost, "https://api.example.com/prod/notify?b=2&a=1&a=with%20space", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if err := strategy.Authorize(context.Background(), req); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if got := req.Header.Get("X-Amz-Date"); got != "20231114T221320Z" {
		t.Fatalf("unexpected amz date %q", got)
	}
	if got := req.Header.Get("X-Amz-Security-Token"); got != "session-token" {
		t.Fatalf("unexpected security token %q", got)
	}

	authorization := req.Header.Get("Authorization")
	if !strings.HasPrefix(authorization, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20231114/ap-northeast-2/execute-api/aws4_request, SignedHeaders=host;x-amz-date, Signature=") {
		t.Fatalf("unexpected authorization header %q", authorization)
	}

	bodyHash := sha256.Sum256(body)
	canonical := strings.Join([]string{
		http.MethodPost,
		"/prod/notify",
		"a=1&a=with%20space&b=2",
		"host:api.example.com\nx-amz-date:20231114T221320Z\n",
		"host;x-amz-date",
		hex.EncodeToString(bodyHash[:]),
	}, "\n")
	canonicalHash := sha256.Sum256([]byte(canonical))
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		"20231114T221320Z",
		"20231114/ap-northeast-2/execute-api/aws4_request",
		hex.EncodeToString(canonicalHash[:]),
	}, "\n")
	want := sigv4TestChain("secret-access-key", "20231114", "ap-northeast-2", "execute-api", stringToSign)
	if !strings.HasSuffix(authorization, "Signature="+want) {
		t.Fatalf("signature mismatch:\n got %q\nwant suffix %q", authorization, want)
	}
}

func TestSigV4Strategy_UnsignedPayloadAndValidation(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	strategy := NewSigV4Strategy(SigV4StrategyConfig{
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret-access-key",
		Region:          "us-east-1",
		Service:         "s3",
		UnsignedPayload: true,
		Now:             func() time.Time { return now },
	})
	req, _ := http.NewRequest(http.MethodPut, "https://bucket.s3.amazonaws.com/exports/report.csv", strings.NewReader("streamed"))
	if err := strategy.Authorize(context.Background(), req); err != nil {
		t.Fatalf("authorize unsigned payload: %v", err)
	}
	if req.Header.Get("Authorization") == "" {
		t.Fatalf("expected authorization header")
	}
	if req.Header.Get("X-Amz-Security-Token") != "" {
		t.Fatalf("no session token configured, header must be absent")
	}

	missing := NewSigV4Strategy(SigV4StrategyConfig{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "secret"})
	if err := missing.Authorize(context.Background(), req); err == nil {
		t.Fatalf("expected missing region rejection")
	}
	unconfigured := NewSigV4Strategy(SigV4StrategyConfig{Region: "us-east-1", Service: "s3"})
	if err := unconfigured.Authorize(context.Background(), req); err == nil {
		t.Fatalf("expected missing credentials rejection")
	}
}

func TestHMACChainHelperMatchesStdlib(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("key"))
	mac.Write([]byte("message"))
	if got := hex.EncodeToString(hmacSHA256([]byte("key"), "message")); got != hex.EncodeToString(mac.Sum(nil)) {
		t.Fatalf("helper diverges from stdlib hmac")
	}
}
