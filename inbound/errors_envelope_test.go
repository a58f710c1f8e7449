package inbound

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/core"
)

func TestDefaultKeyExtractor_MissingIDReturnsRichError(t *testing.T) {
	_, err := DefaultKeyExtractor(Request{
		Provider: core.ProviderKakao,
		Surface:  SurfaceUnlink,
	})
	if err == nil {
		t.Fatalf("expected missing delivery id error")
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.Category != goerrors.CategoryBadInput {
		t.Fatalf("expected bad input category, got %v", richErr.Category)
	}
	if richErr.TextCode != core.AuthErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.AuthErrorBadInput, richErr.TextCode)
	}
	if richErr.Metadata["provider"] != "KAKAO" {
		t.Fatalf("expected provider metadata, got %v", richErr.Metadata)
	}
}

func TestDispatch_VerificationFailureReturnsRichError(t *testing.T) {
	dispatcher := NewDispatcher(NewSharedSecretVerifier("x-callback-token", "expected"), nil)
	if err := dispatcher.Register(&stubHandler{surface: SurfaceUnlink}); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	result, err := dispatcher.Dispatch(context.Background(), Request{
		Provider: core.ProviderNaver,
		Surface:  SurfaceUnlink,
		Headers:  map[string]string{"X-Callback-Token": "wrong"},
	})
	if err == nil {
		t.Fatalf("expected verification failure")
	}
	if result.Accepted || result.StatusCode != 401 {
		t.Fatalf("expected rejected 401 result, got %+v", result)
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.Category != goerrors.CategoryAuth {
		t.Fatalf("expected auth category, got %v", richErr.Category)
	}
	if richErr.TextCode != core.AuthErrorUnauthorized {
		t.Fatalf("expected %q text code, got %q", core.AuthErrorUnauthorized, richErr.TextCode)
	}
	if richErr.Code != 401 {
		t.Fatalf("expected code 401, got %d", richErr.Code)
	}
}
