package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const KindForm = "form"

// FormAdapter accepts classic urlencoded browser posts and delegates to
// the REST routes after re-encoding the fields as the JSON bodies those
// routes expect. Only the operations a plain HTML form can drive are
// mapped.
type FormAdapter struct {
	rest *RESTAdapter
}

func NewFormAdapter(rest *RESTAdapter) *FormAdapter {
	return &FormAdapter{rest: rest}
}

func (*FormAdapter) Kind() string { return KindForm }

func (a *FormAdapter) Handle(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.rest == nil {
		return Response{}, transportError(
			"transport: form adapter requires the rest adapter",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindForm},
		)
	}

	fields, err := url.ParseQuery(string(req.Body))
	if err != nil {
		return errorResponse(transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: decode form body",
			http.StatusBadRequest,
			map[string]any{"adapter": KindForm},
		)), nil
	}

	path := normalizePath(req.Path)
	var payload map[string]any
	switch path {
	case "/auth/login":
		payload = map[string]any{
			"user_id":  fields.Get("user_id"),
			"password": fields.Get("password"),
		}
	case "/auth/join":
		payload = map[string]any{
			"user_id":   fields.Get("user_id"),
			"password":  fields.Get("password"),
			"user_name": fields.Get("user_name"),
			"email":     fields.Get("email"),
			"email_yn":  fields.Get("email_yn"),
			"phone":     fields.Get("phone"),
			"phone_yn":  fields.Get("phone_yn"),
			"allergies": splitFormList(fields.Get("allergies")),
		}
	case "/auth/verify-email":
		payload = map[string]any{"email": fields.Get("email")}
	case "/auth/refresh":
		payload = map[string]any{"refresh_token": fields.Get("refresh_token")}
	default:
		return errorResponse(transportError(
			"transport: no form route for request",
			goerrors.CategoryNotFound,
			http.StatusNotFound,
			map[string]any{"adapter": KindForm, "path": path},
		)), nil
	}

	body, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return Response{}, transportWrapError(
			marshalErr,
			goerrors.CategoryInternal,
			"transport: encode delegated body",
			http.StatusInternalServerError,
			map[string]any{"adapter": KindForm},
		)
	}

	delegated := req
	delegated.Method = http.MethodPost
	delegated.Body = body
	response, handleErr := a.rest.Handle(ctx, delegated)
	if handleErr != nil {
		return Response{}, handleErr
	}
	if response.Metadata == nil {
		response.Metadata = map[string]any{}
	}
	response.Metadata["kind"] = KindForm
	response.Metadata["delegated_to"] = KindREST
	return response, nil
}

func splitFormList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var _ Adapter = (*FormAdapter)(nil)
