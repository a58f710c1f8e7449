package transport

import (
	"encoding/json"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/core"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.AuthErrorBadInput
	case goerrors.CategoryAuth:
		return core.AuthErrorUnauthorized
	case goerrors.CategoryAuthz:
		return core.AuthErrorForbidden
	case goerrors.CategoryConflict:
		return core.AuthErrorAlreadyExists
	case goerrors.CategoryRateLimit:
		return core.AuthErrorRateLimited
	default:
		return core.AuthErrorInternal
	}
}

// errorResponse renders any error as the wire envelope. Rich errors carry
// their own HTTP status and text code; everything else is an internal
// failure with the message suppressed.
func errorResponse(err error) Response {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		rich = goerrors.New("An unexpected error occurred", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.AuthErrorInternal)
	}
	status := rich.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}
	textCode := rich.TextCode
	if textCode == "" {
		textCode = transportTextCode(rich.Category)
	}
	body, _ := json.Marshal(map[string]any{
		"error": map[string]any{
			"message":   rich.Message,
			"text_code": textCode,
		},
	})
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}
