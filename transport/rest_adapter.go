package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/core"
)

const KindREST = "rest"

const maxRequestBodyBytes = 1 << 20

type addressPayload struct {
	MainAddress string  `json:"main_address"`
	MainLat     float64 `json:"main_lat"`
	MainLan     float64 `json:"main_lan"`
	SubAddress1 string  `json:"sub_address1"`
	Sub1Lat     float64 `json:"sub1_lat"`
	Sub1Lan     float64 `json:"sub1_lan"`
	SubAddress2 string  `json:"sub_address2"`
	Sub2Lat     float64 `json:"sub2_lat"`
	Sub2Lan     float64 `json:"sub2_lan"`
}

func (p addressPayload) toDomain() core.Address {
	return core.Address{
		MainAddress: p.MainAddress,
		MainLat:     p.MainLat,
		MainLan:     p.MainLan,
		SubAddress1: p.SubAddress1,
		Sub1Lat:     p.Sub1Lat,
		Sub1Lan:     p.Sub1Lan,
		SubAddress2: p.SubAddress2,
		Sub2Lat:     p.Sub2Lat,
		Sub2Lan:     p.Sub2Lan,
	}
}

func addressPayloadFrom(addr core.Address) addressPayload {
	return addressPayload{
		MainAddress: addr.MainAddress,
		MainLat:     addr.MainLat,
		MainLan:     addr.MainLan,
		SubAddress1: addr.SubAddress1,
		Sub1Lat:     addr.Sub1Lat,
		Sub1Lan:     addr.Sub1Lan,
		SubAddress2: addr.SubAddress2,
		Sub2Lat:     addr.Sub2Lat,
		Sub2Lan:     addr.Sub2Lan,
	}
}

// RESTAdapter serves the JSON surface. Routes mirror the operation names
// so a reader can map a path straight to the service call.
type RESTAdapter struct {
	Service core.IdentityService
}

func NewRESTAdapter(service core.IdentityService) *RESTAdapter {
	return &RESTAdapter{Service: service}
}

func (*RESTAdapter) Kind() string { return KindREST }

func (a *RESTAdapter) Handle(ctx context.Context, req Request) (Response, error) {
	if a == nil || a.Service == nil {
		return Response{}, transportError(
			"transport: rest adapter requires an identity service",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindREST},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if int64(len(req.Body)) > maxRequestBodyBytes {
		return errorResponse(transportError(
			"transport: request body too large",
			goerrors.CategoryBadInput,
			http.StatusRequestEntityTooLarge,
			map[string]any{"adapter": KindREST},
		)), nil
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	path := normalizePath(req.Path)

	switch {
	case method == http.MethodPost && path == "/auth/login":
		return a.handleLogin(ctx, req)
	case method == http.MethodPost && path == "/auth/join":
		return a.handleJoin(ctx, req)
	case method == http.MethodPost && path == "/auth/refresh":
		return a.handleRefresh(ctx, req)
	case method == http.MethodPost && path == "/auth/logout":
		return a.handleLogout(ctx, req)
	case method == http.MethodGet && path == "/auth/validate":
		return a.handleValidate(ctx, req)
	case method == http.MethodPost && path == "/auth/verify-email":
		return a.handleVerifyEmail(ctx, req)
	case method == http.MethodDelete && path == "/users/me":
		return a.handleDeleteAccount(ctx, req)
	case method == http.MethodGet && path == "/users/me":
		return a.handleUserInfo(ctx, req)
	case method == http.MethodGet && path == "/users/me/profile":
		return a.handleUserProfile(ctx, req)
	case method == http.MethodPut && path == "/users/me/profile":
		return a.handleUpdateProfile(ctx, req)
	case method == http.MethodPut && path == "/users/me/address":
		return a.handleUpdateAddress(ctx, req)
	case method == http.MethodGet && path == "/managers":
		return a.handleManagers(ctx)
	}

	return errorResponse(transportError(
		"transport: no route for request",
		goerrors.CategoryNotFound,
		http.StatusNotFound,
		map[string]any{"adapter": KindREST, "method": method, "path": path},
	)), nil
}

func (a *RESTAdapter) handleLogin(ctx context.Context, req Request) (Response, error) {
	var payload struct {
		UserID   string `json:"user_id"`
		Password string `json:"password"`
	}
	if response, ok := decodeBody(req.Body, &payload); !ok {
		return response, nil
	}

	result, err := a.Service.Login(ctx, payload.UserID, payload.Password)
	if err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{
		"logged_in":     result.LoggedIn,
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user_id":       result.UserID,
		"user_name":     result.UserName,
	}), nil
}

func (a *RESTAdapter) handleJoin(ctx context.Context, req Request) (Response, error) {
	var payload struct {
		UserID    string         `json:"user_id"`
		Password  string         `json:"password"`
		UserName  string         `json:"user_name"`
		Email     string         `json:"email"`
		EmailYN   string         `json:"email_yn"`
		Phone     string         `json:"phone"`
		PhoneYN   string         `json:"phone_yn"`
		Address   addressPayload `json:"address"`
		Allergies []string       `json:"allergies"`
	}
	if response, ok := decodeBody(req.Body, &payload); !ok {
		return response, nil
	}

	result, err := a.Service.Join(ctx, core.JoinRequest{
		UserID:    payload.UserID,
		Password:  payload.Password,
		UserName:  payload.UserName,
		Email:     payload.Email,
		EmailYN:   payload.EmailYN,
		Phone:     payload.Phone,
		PhoneYN:   payload.PhoneYN,
		Address:   payload.Address.toDomain(),
		Allergies: payload.Allergies,
	})
	if err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusCreated, map[string]any{
		"success":  result.Success,
		"message":  result.Message,
		"user_uid": result.UserUID,
	}), nil
}

func (a *RESTAdapter) handleRefresh(ctx context.Context, req Request) (Response, error) {
	var payload struct {
		RefreshToken string `json:"refresh_token"`
	}
	if response, ok := decodeBody(req.Body, &payload); !ok {
		return response, nil
	}

	result, err := a.Service.RefreshSession(ctx, payload.RefreshToken)
	if err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{
		"status":        int(result.Status),
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
	}), nil
}

func (a *RESTAdapter) handleLogout(ctx context.Context, req Request) (Response, error) {
	token, response, ok := requireBearer(req)
	if !ok {
		return response, nil
	}
	loggedOut, err := a.Service.Logout(ctx, token)
	if err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{"logged_out": loggedOut}), nil
}

func (a *RESTAdapter) handleValidate(ctx context.Context, req Request) (Response, error) {
	token := bearerToken(req)
	code := a.Service.ValidateToken(ctx, token)
	return jsonResponse(http.StatusOK, map[string]any{"status": int(code)}), nil
}

func (a *RESTAdapter) handleVerifyEmail(ctx context.Context, req Request) (Response, error) {
	var payload struct {
		Email string `json:"email"`
	}
	if response, ok := decodeBody(req.Body, &payload); !ok {
		return response, nil
	}
	if err := a.Service.VerifyEmail(ctx, payload.Email); err != nil {
		return errorResponse(err), nil
	}
	return Response{StatusCode: http.StatusNoContent}, nil
}

func (a *RESTAdapter) handleDeleteAccount(ctx context.Context, req Request) (Response, error) {
	token, response, ok := requireBearer(req)
	if !ok {
		return response, nil
	}
	deleted, err := a.Service.DeleteAccount(ctx, token)
	if err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{"deleted": deleted}), nil
}

func (a *RESTAdapter) handleUserInfo(ctx context.Context, req Request) (Response, error) {
	token, response, ok := requireBearer(req)
	if !ok {
		return response, nil
	}
	info, err := a.Service.UserInfo(ctx, token)
	if err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{
		"uid":       info.UID,
		"kind":      string(info.Kind),
		"user_id":   info.UserID,
		"user_name": info.UserName,
		"role":      string(info.Role),
	}), nil
}

func (a *RESTAdapter) handleUserProfile(ctx context.Context, req Request) (Response, error) {
	token, response, ok := requireBearer(req)
	if !ok {
		return response, nil
	}
	view, err := a.Service.UserProfile(ctx, token)
	if err != nil {
		return errorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, map[string]any{
		"uid":     view.UID,
		"kind":    string(view.Kind),
		"user_id": view.UserID,
		"profile": map[string]any{
			"user_name": view.Profile.UserName,
			"email":     view.Profile.Email,
			"email_yn":  view.Profile.EmailYN,
			"phone":     view.Profile.Phone,
			"phone_yn":  view.Profile.PhoneYN,
		},
		"provider":   view.Provider.WireName(),
		"role":       string(view.Role),
		"created_at": view.CreatedAt,
		"address":    addressPayloadFrom(view.Address),
	}), nil
}

func (a *RESTAdapter) handleUpdateProfile(ctx context.Context, req Request) (Response, error) {
	token, response, ok := requireBearer(req)
	if !ok {
		return response, nil
	}
	var payload struct {
		UserName  string         `json:"user_name"`
		Email     string         `json:"email"`
		EmailYN   string         `json:"email_yn"`
		Phone     string         `json:"phone"`
		PhoneYN   string         `json:"phone_yn"`
		Address   addressPayload `json:"address"`
		Allergies []string       `json:"allergies"`
	}
	if decoded, ok := decodeBody(req.Body, &payload); !ok {
		return decoded, nil
	}

	err := a.Service.UpdateProfile(ctx, token, core.UpdateProfileRequest{
		Profile: core.Profile{
			UserName: payload.UserName,
			Email:    payload.Email,
			EmailYN:  payload.EmailYN,
			Phone:    payload.Phone,
			PhoneYN:  payload.PhoneYN,
		},
		Address:   payload.Address.toDomain(),
		Allergies: payload.Allergies,
	})
	if err != nil {
		return errorResponse(err), nil
	}
	return Response{StatusCode: http.StatusNoContent}, nil
}

func (a *RESTAdapter) handleUpdateAddress(ctx context.Context, req Request) (Response, error) {
	token, response, ok := requireBearer(req)
	if !ok {
		return response, nil
	}
	var payload addressPayload
	if decoded, ok := decodeBody(req.Body, &payload); !ok {
		return decoded, nil
	}
	if err := a.Service.UpdateAddress(ctx, token, core.UpdateAddressRequest{Address: payload.toDomain()}); err != nil {
		return errorResponse(err), nil
	}
	return Response{StatusCode: http.StatusNoContent}, nil
}

func (a *RESTAdapter) handleManagers(ctx context.Context) (Response, error) {
	managers, err := a.Service.Managers(ctx)
	if err != nil {
		return errorResponse(err), nil
	}
	items := make([]map[string]any, 0, len(managers))
	for _, manager := range managers {
		items = append(items, map[string]any{
			"uid":       manager.UID,
			"user_id":   manager.UserID,
			"user_name": manager.UserName,
			"role":      string(manager.Role),
		})
	}
	return jsonResponse(http.StatusOK, map[string]any{"managers": items}), nil
}

func decodeBody(body []byte, target any) (Response, bool) {
	if len(body) == 0 {
		return errorResponse(transportError(
			"transport: request body is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST},
		)), false
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errorResponse(transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: decode request body",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST},
		)), false
	}
	return Response{}, true
}

func bearerToken(req Request) string {
	authorization := strings.TrimSpace(headerLookup(req.Headers, "Authorization"))
	if authorization != "" {
		parts := strings.SplitN(authorization, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return strings.TrimSpace(headerLookup(req.Headers, "X-Access-Token"))
}

func requireBearer(req Request) (string, Response, bool) {
	token := bearerToken(req)
	if token == "" {
		return "", errorResponse(transportError(
			"transport: bearer token is required",
			goerrors.CategoryAuth,
			http.StatusUnauthorized,
			map[string]any{"adapter": KindREST},
		)), false
	}
	return token, Response{}, true
}

func headerLookup(headers map[string]string, name string) string {
	for key, value := range headers {
		if strings.EqualFold(strings.TrimSpace(key), name) {
			return value
		}
	}
	return ""
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return strings.ToLower(path)
}

func jsonResponse(status int, payload any) Response {
	body, err := json.Marshal(payload)
	if err != nil {
		return errorResponse(transportWrapError(
			err,
			goerrors.CategoryInternal,
			"transport: encode response body",
			http.StatusInternalServerError,
			nil,
		))
	}
	return Response{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
		Metadata:   map[string]any{"kind": KindREST},
	}
}

var _ Adapter = (*RESTAdapter)(nil)
