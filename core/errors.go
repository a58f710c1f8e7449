package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	AuthErrorBadInput           = "AUTH_BAD_INPUT"
	AuthErrorUnauthorized       = "AUTH_UNAUTHORIZED"
	AuthErrorForbiddenToken     = "AUTH_FORBIDDEN_TOKEN"
	AuthErrorForbidden          = "AUTH_FORBIDDEN"
	AuthErrorAlreadyExists      = "AUTH_ALREADY_EXISTS"
	AuthErrorEmailNotVerified   = "AUTH_EMAIL_NOT_VERIFIED"
	AuthErrorRateLimited        = "AUTH_RATE_LIMITED"
	AuthErrorStoreFailure       = "AUTH_STORE_FAILURE"
	AuthErrorCompensationFailed = "AUTH_COMPENSATION_FAILED"
	AuthErrorInternal           = "AUTH_INTERNAL_ERROR"
)

func authErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureAuthErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "email verification"):
		return newAuthError(err.Error(), goerrors.CategoryAuthz, AuthErrorEmailNotVerified)
	case strings.Contains(msg, "already in use"), strings.Contains(msg, "already exists"):
		return newAuthError(err.Error(), goerrors.CategoryConflict, AuthErrorAlreadyExists)
	case strings.Contains(msg, "credential"), strings.Contains(msg, "password"):
		return newAuthError(err.Error(), goerrors.CategoryAuth, AuthErrorUnauthorized)
	case strings.Contains(msg, "compensation"), strings.Contains(msg, "rollback"):
		return newAuthError(err.Error(), goerrors.CategoryInternal, AuthErrorCompensationFailed)
	case strings.Contains(msg, "cache"), strings.Contains(msg, "store"):
		return newAuthError(err.Error(), goerrors.CategoryInternal, AuthErrorStoreFailure)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newAuthError(err.Error(), goerrors.CategoryBadInput, AuthErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureAuthErrorEnvelope(mapped)
}

func newAuthError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureAuthErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// RejectionError turns an identity-reconciliation rejection reason into the
// structured error the command boundary surfaces.
func RejectionError(reason string) *goerrors.Error {
	switch reason {
	case RejectionForbiddenToken:
		return newAuthError("unsupported token provider", goerrors.CategoryAuth, AuthErrorForbiddenToken)
	case RejectionAlreadyExists:
		return newAuthError("account already registered with another provider", goerrors.CategoryConflict, AuthErrorAlreadyExists)
	default:
		return newAuthError("identity reconciliation refused", goerrors.CategoryAuthz, AuthErrorForbidden)
	}
}

func ensureAuthErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = authHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultAuthTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultAuthTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return AuthErrorBadInput
	case goerrors.CategoryAuth:
		return AuthErrorUnauthorized
	case goerrors.CategoryAuthz:
		return AuthErrorForbidden
	case goerrors.CategoryConflict:
		return AuthErrorAlreadyExists
	case goerrors.CategoryRateLimit:
		return AuthErrorRateLimited
	default:
		return AuthErrorInternal
	}
}

func authHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
