package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/core"
)

const KindGraphQL = "graphql"

// GraphQLAdapter serves a small fixed schema over the standard POST
// envelope. Operation dispatch goes by the first selected field, so the
// client does not have to set operationName.
//
//	mutation { login }            variables: user_id, password
//	mutation { refreshSession }   variables: refresh_token
//	mutation { logout }           variables: token
//	query    { validateToken }    variables: token
//	query    { userInfo }         variables: token
//	query    { managers }
type GraphQLAdapter struct {
	Service core.IdentityService
}

func NewGraphQLAdapter(service core.IdentityService) *GraphQLAdapter {
	return &GraphQLAdapter{Service: service}
}

func (*GraphQLAdapter) Kind() string { return KindGraphQL }

func (a *GraphQLAdapter) Handle(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.Service == nil {
		return Response{}, transportError(
			"transport: graphql adapter requires an identity service",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindGraphQL},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var envelope struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}
	if len(req.Body) == 0 {
		return graphqlErrors("graphql request body is required", core.AuthErrorBadInput), nil
	}
	if err := json.Unmarshal(req.Body, &envelope); err != nil {
		return graphqlErrors("malformed graphql request", core.AuthErrorBadInput), nil
	}

	operation := firstSelectedField(envelope.Query)
	if operation == "" {
		operation = strings.TrimSpace(envelope.OperationName)
	}
	variables := envelope.Variables
	if variables == nil {
		variables = map[string]any{}
	}

	switch operation {
	case "login":
		result, err := a.Service.Login(ctx, stringVariable(variables, "user_id"), stringVariable(variables, "password"))
		if err != nil {
			return graphqlServiceError(err), nil
		}
		return graphqlData("login", map[string]any{
			"loggedIn":     result.LoggedIn,
			"accessToken":  result.AccessToken,
			"refreshToken": result.RefreshToken,
			"userId":       result.UserID,
			"userName":     result.UserName,
		}), nil
	case "refreshSession":
		result, err := a.Service.RefreshSession(ctx, stringVariable(variables, "refresh_token"))
		if err != nil {
			return graphqlServiceError(err), nil
		}
		return graphqlData("refreshSession", map[string]any{
			"status":       int(result.Status),
			"accessToken":  result.AccessToken,
			"refreshToken": result.RefreshToken,
		}), nil
	case "logout":
		loggedOut, err := a.Service.Logout(ctx, stringVariable(variables, "token"))
		if err != nil {
			return graphqlServiceError(err), nil
		}
		return graphqlData("logout", map[string]any{"loggedOut": loggedOut}), nil
	case "validateToken":
		code := a.Service.ValidateToken(ctx, stringVariable(variables, "token"))
		return graphqlData("validateToken", map[string]any{"status": int(code)}), nil
	case "userInfo":
		info, err := a.Service.UserInfo(ctx, stringVariable(variables, "token"))
		if err != nil {
			return graphqlServiceError(err), nil
		}
		return graphqlData("userInfo", map[string]any{
			"uid":      info.UID,
			"kind":     string(info.Kind),
			"userId":   info.UserID,
			"userName": info.UserName,
			"role":     string(info.Role),
		}), nil
	case "managers":
		managers, err := a.Service.Managers(ctx)
		if err != nil {
			return graphqlServiceError(err), nil
		}
		items := make([]map[string]any, 0, len(managers))
		for _, manager := range managers {
			items = append(items, map[string]any{
				"uid":      manager.UID,
				"userId":   manager.UserID,
				"userName": manager.UserName,
				"role":     string(manager.Role),
			})
		}
		return graphqlData("managers", items), nil
	}

	return graphqlErrors(fmt.Sprintf("unknown operation %q", operation), core.AuthErrorBadInput), nil
}

// firstSelectedField scans past the operation keyword and returns the
// first field inside the selection set.
func firstSelectedField(query string) string {
	query = strings.TrimSpace(query)
	open := strings.IndexByte(query, '{')
	if open < 0 {
		return ""
	}
	rest := query[open+1:]
	var field strings.Builder
	for _, r := range rest {
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if field.Len() > 0 {
				return field.String()
			}
		case r == '(' || r == '{' || r == '}':
			return field.String()
		default:
			field.WriteRune(r)
		}
	}
	return field.String()
}

func stringVariable(variables map[string]any, name string) string {
	value, ok := variables[name]
	if !ok || value == nil {
		return ""
	}
	text, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(text)
}

// GraphQL failures ride in the errors array with a 200 status; only the
// envelope itself failing is a transport-level status.
func graphqlData(field string, payload any) Response {
	return graphqlBody(map[string]any{"data": map[string]any{field: payload}})
}

func graphqlErrors(message string, code string) Response {
	return graphqlBody(map[string]any{
		"data": nil,
		"errors": []map[string]any{
			{
				"message":    message,
				"extensions": map[string]any{"code": code},
			},
		},
	})
}

func graphqlServiceError(err error) Response {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return graphqlErrors(rich.Message, rich.TextCode)
	}
	return graphqlErrors("An unexpected error occurred", core.AuthErrorInternal)
}

func graphqlBody(payload map[string]any) Response {
	body, _ := json.Marshal(payload)
	return Response{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
		Metadata:   map[string]any{"kind": KindGraphQL},
	}
}

var _ Adapter = (*GraphQLAdapter)(nil)
