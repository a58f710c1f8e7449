package ratelimit

import (
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/core"
)

func TestThrottledError_ToAuthError(t *testing.T) {
	err := ThrottledError{
		Subject:    "jane",
		RetryAfter: 3 * time.Second,
	}

	mapped := err.ToAuthError()
	if mapped == nil {
		t.Fatalf("expected mapped error")
	}
	if mapped.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category, got %v", mapped.Category)
	}
	if mapped.TextCode != core.AuthErrorRateLimited {
		t.Fatalf("expected %q text code, got %q", core.AuthErrorRateLimited, mapped.TextCode)
	}
	if mapped.Code != 429 {
		t.Fatalf("expected status code 429, got %d", mapped.Code)
	}
	if mapped.Metadata["retry_after_ms"] != int64(3000) {
		t.Fatalf("expected retry_after_ms metadata, got %v", mapped.Metadata["retry_after_ms"])
	}
}
