package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-identity/core"
)

type stubMutatingService struct {
	loginFn              func(ctx context.Context, userID string, password string) (core.LoginResult, error)
	joinFn               func(ctx context.Context, req core.JoinRequest) (core.JoinResult, error)
	oauthLoginFn         func(ctx context.Context, providerName string, callback core.OAuthCallback) (core.OAuthLoginResult, error)
	refreshFn            func(ctx context.Context, refreshToken string) (core.RefreshResult, error)
	updateSocialTokensFn func(ctx context.Context, ref core.PrincipalRef, accessToken string, refreshToken string) (int, error)
	logoutFn             func(ctx context.Context, token string) (bool, error)
	deleteAccountFn      func(ctx context.Context, token string) (bool, error)
	updateProfileFn      func(ctx context.Context, token string, req core.UpdateProfileRequest) error
	updateAddressFn      func(ctx context.Context, token string, req core.UpdateAddressRequest) error
	verifyEmailFn        func(ctx context.Context, email string) error
}

func (s *stubMutatingService) Login(ctx context.Context, userID string, password string) (core.LoginResult, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, userID, password)
	}
	return core.LoginResult{}, nil
}

func (s *stubMutatingService) Join(ctx context.Context, req core.JoinRequest) (core.JoinResult, error) {
	if s.joinFn != nil {
		return s.joinFn(ctx, req)
	}
	return core.JoinResult{}, nil
}

func (s *stubMutatingService) OAuthLogin(ctx context.Context, providerName string, callback core.OAuthCallback) (core.OAuthLoginResult, error) {
	if s.oauthLoginFn != nil {
		return s.oauthLoginFn(ctx, providerName, callback)
	}
	return core.OAuthLoginResult{}, nil
}

func (s *stubMutatingService) RefreshSession(ctx context.Context, refreshToken string) (core.RefreshResult, error) {
	if s.refreshFn != nil {
		return s.refreshFn(ctx, refreshToken)
	}
	return core.RefreshResult{}, nil
}

func (s *stubMutatingService) UpdateSocialTokens(ctx context.Context, ref core.PrincipalRef, accessToken string, refreshToken string) (int, error) {
	if s.updateSocialTokensFn != nil {
		return s.updateSocialTokensFn(ctx, ref, accessToken, refreshToken)
	}
	return 0, nil
}

func (s *stubMutatingService) Logout(ctx context.Context, token string) (bool, error) {
	if s.logoutFn != nil {
		return s.logoutFn(ctx, token)
	}
	return false, nil
}

func (s *stubMutatingService) DeleteAccount(ctx context.Context, token string) (bool, error) {
	if s.deleteAccountFn != nil {
		return s.deleteAccountFn(ctx, token)
	}
	return false, nil
}

func (s *stubMutatingService) UpdateProfile(ctx context.Context, token string, req core.UpdateProfileRequest) error {
	if s.updateProfileFn != nil {
		return s.updateProfileFn(ctx, token, req)
	}
	return nil
}

func (s *stubMutatingService) UpdateAddress(ctx context.Context, token string, req core.UpdateAddressRequest) error {
	if s.updateAddressFn != nil {
		return s.updateAddressFn(ctx, token, req)
	}
	return nil
}

func (s *stubMutatingService) VerifyEmail(ctx context.Context, email string) error {
	if s.verifyEmailFn != nil {
		return s.verifyEmailFn(ctx, email)
	}
	return nil
}

func TestLoginCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	var gotUserID, gotPassword string
	service := &stubMutatingService{
		loginFn: func(_ context.Context, userID string, password string) (core.LoginResult, error) {
			gotUserID = userID
			gotPassword = password
			return core.LoginResult{
				Session: core.Session{
					Principal:   core.PrincipalRef{Kind: core.PrincipalLocal, UID: 7},
					AccessToken: "access-1",
				},
			}, nil
		},
	}

	collector := gocmd.NewResult[core.LoginResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	cmd := NewLoginCommand(service)
	if err := cmd.Execute(ctx, LoginMessage{UserID: "jane", Password: "secret"}); err != nil {
		t.Fatalf("execute login: %v", err)
	}

	if gotUserID != "jane" || gotPassword != "secret" {
		t.Fatalf("unexpected delegation args %q %q", gotUserID, gotPassword)
	}

	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected login result in collector")
	}
	if result.Session.AccessToken != "access-1" || result.Session.Principal.UID != 7 {
		t.Fatalf("unexpected stored result %+v", result)
	}
}

func TestLoginCommand_ExecutePropagatesServiceError(t *testing.T) {
	wantErr := errors.New("credentials rejected")
	service := &stubMutatingService{
		loginFn: func(_ context.Context, _ string, _ string) (core.LoginResult, error) {
			return core.LoginResult{}, wantErr
		},
	}

	collector := gocmd.NewResult[core.LoginResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := NewLoginCommand(service).Execute(ctx, LoginMessage{UserID: "jane", Password: "bad"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if _, ok := collector.Load(); ok {
		t.Fatalf("expected no result stored on failure")
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("join stores result", func(t *testing.T) {
		service := &stubMutatingService{
			joinFn: func(_ context.Context, req core.JoinRequest) (core.JoinResult, error) {
				if req.UserID != "jane" {
					t.Fatalf("unexpected join request %+v", req)
				}
				return core.JoinResult{Success: true, Message: "joined", UserUID: 3}, nil
			},
		}
		collector := gocmd.NewResult[core.JoinResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)

		err := NewJoinCommand(service).Execute(ctx, JoinMessage{
			Request: core.JoinRequest{UserID: "jane", Password: "secret", Email: "jane@example.com"},
		})
		if err != nil {
			t.Fatalf("execute join: %v", err)
		}
		result, ok := collector.Load()
		if !ok || !result.Success || result.UserUID != 3 {
			t.Fatalf("unexpected join result %+v ok=%v", result, ok)
		}
	})

	t.Run("oauth login forwards provider and callback", func(t *testing.T) {
		var gotProvider string
		var gotCallback core.OAuthCallback
		service := &stubMutatingService{
			oauthLoginFn: func(_ context.Context, providerName string, callback core.OAuthCallback) (core.OAuthLoginResult, error) {
				gotProvider = providerName
				gotCallback = callback
				return core.OAuthLoginResult{Status: core.ReconcileCreated}, nil
			},
		}
		collector := gocmd.NewResult[core.OAuthLoginResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)

		err := NewOAuthLoginCommand(service).Execute(ctx, OAuthLoginMessage{
			Provider: "naver",
			Callback: core.OAuthCallback{ExternalID: "ext-9", Email: "jane@example.com"},
		})
		if err != nil {
			t.Fatalf("execute oauth login: %v", err)
		}
		if gotProvider != "naver" || gotCallback.ExternalID != "ext-9" {
			t.Fatalf("unexpected delegation %q %+v", gotProvider, gotCallback)
		}
		result, ok := collector.Load()
		if !ok || result.Status != core.ReconcileCreated {
			t.Fatalf("unexpected oauth result %+v ok=%v", result, ok)
		}
	})

	t.Run("refresh session stores rotated tokens", func(t *testing.T) {
		service := &stubMutatingService{
			refreshFn: func(_ context.Context, refreshToken string) (core.RefreshResult, error) {
				if refreshToken != "refresh-1" {
					t.Fatalf("unexpected refresh token %q", refreshToken)
				}
				return core.RefreshResult{Status: core.ValidationValid, AccessToken: "access-2"}, nil
			},
		}
		collector := gocmd.NewResult[core.RefreshResult]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)

		err := NewRefreshSessionCommand(service).Execute(ctx, RefreshSessionMessage{RefreshToken: "refresh-1"})
		if err != nil {
			t.Fatalf("execute refresh: %v", err)
		}
		result, ok := collector.Load()
		if !ok || result.AccessToken != "access-2" {
			t.Fatalf("unexpected refresh result %+v ok=%v", result, ok)
		}
	})

	t.Run("update social tokens stores affected count", func(t *testing.T) {
		service := &stubMutatingService{
			updateSocialTokensFn: func(_ context.Context, ref core.PrincipalRef, accessToken string, refreshToken string) (int, error) {
				if ref.Kind != core.PrincipalSocial || ref.UID != 11 {
					t.Fatalf("unexpected principal %+v", ref)
				}
				if accessToken != "sa-1" || refreshToken != "sr-1" {
					t.Fatalf("unexpected tokens %q %q", accessToken, refreshToken)
				}
				return 1, nil
			},
		}
		collector := gocmd.NewResult[int]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)

		err := NewUpdateSocialTokensCommand(service).Execute(ctx, UpdateSocialTokensMessage{
			Principal:    core.PrincipalRef{Kind: core.PrincipalSocial, UID: 11},
			AccessToken:  "sa-1",
			RefreshToken: "sr-1",
		})
		if err != nil {
			t.Fatalf("execute update social tokens: %v", err)
		}
		result, ok := collector.Load()
		if !ok || result != 1 {
			t.Fatalf("unexpected affected count %v ok=%v", result, ok)
		}
	})

	t.Run("logout stores teardown flag", func(t *testing.T) {
		service := &stubMutatingService{
			logoutFn: func(_ context.Context, token string) (bool, error) {
				return token == "access-1", nil
			},
		}
		collector := gocmd.NewResult[bool]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)

		if err := NewLogoutCommand(service).Execute(ctx, LogoutMessage{Token: "access-1"}); err != nil {
			t.Fatalf("execute logout: %v", err)
		}
		result, ok := collector.Load()
		if !ok || !result {
			t.Fatalf("expected logout to report teardown, got %v ok=%v", result, ok)
		}
	})

	t.Run("delete account stores outcome", func(t *testing.T) {
		service := &stubMutatingService{
			deleteAccountFn: func(_ context.Context, _ string) (bool, error) {
				return true, nil
			},
		}
		collector := gocmd.NewResult[bool]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)

		if err := NewDeleteAccountCommand(service).Execute(ctx, DeleteAccountMessage{Token: "access-1"}); err != nil {
			t.Fatalf("execute delete account: %v", err)
		}
		if result, ok := collector.Load(); !ok || !result {
			t.Fatalf("expected deletion outcome, got %v ok=%v", result, ok)
		}
	})

	t.Run("update profile delegates without collector", func(t *testing.T) {
		var gotToken string
		var gotReq core.UpdateProfileRequest
		service := &stubMutatingService{
			updateProfileFn: func(_ context.Context, token string, req core.UpdateProfileRequest) error {
				gotToken = token
				gotReq = req
				return nil
			},
		}

		err := NewUpdateProfileCommand(service).Execute(context.Background(), UpdateProfileMessage{
			Token:   "access-1",
			Request: core.UpdateProfileRequest{UserName: "Jane"},
		})
		if err != nil {
			t.Fatalf("execute update profile: %v", err)
		}
		if gotToken != "access-1" || gotReq.UserName != "Jane" {
			t.Fatalf("unexpected delegation %q %+v", gotToken, gotReq)
		}
	})

	t.Run("update address delegates without collector", func(t *testing.T) {
		var gotReq core.UpdateAddressRequest
		service := &stubMutatingService{
			updateAddressFn: func(_ context.Context, _ string, req core.UpdateAddressRequest) error {
				gotReq = req
				return nil
			},
		}

		err := NewUpdateAddressCommand(service).Execute(context.Background(), UpdateAddressMessage{
			Token:   "access-1",
			Request: core.UpdateAddressRequest{MainAddress: "12 Elm St"},
		})
		if err != nil {
			t.Fatalf("execute update address: %v", err)
		}
		if gotReq.MainAddress != "12 Elm St" {
			t.Fatalf("unexpected request %+v", gotReq)
		}
	})

	t.Run("verify email delegates", func(t *testing.T) {
		var gotEmail string
		service := &stubMutatingService{
			verifyEmailFn: func(_ context.Context, email string) error {
				gotEmail = email
				return nil
			},
		}

		if err := NewVerifyEmailCommand(service).Execute(context.Background(), VerifyEmailMessage{Email: "jane@example.com"}); err != nil {
			t.Fatalf("execute verify email: %v", err)
		}
		if gotEmail != "jane@example.com" {
			t.Fatalf("unexpected email %q", gotEmail)
		}
	})
}

func TestMessages_ValidateRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		msg  interface{ Validate() error }
	}{
		{"login missing user id", LoginMessage{Password: "secret"}},
		{"login missing password", LoginMessage{UserID: "jane"}},
		{"join missing email", JoinMessage{Request: core.JoinRequest{UserID: "jane", Password: "secret"}}},
		{"oauth login missing provider", OAuthLoginMessage{Callback: core.OAuthCallback{ExternalID: "ext-9"}}},
		{"oauth login missing external id", OAuthLoginMessage{Provider: "naver"}},
		{"refresh missing token", RefreshSessionMessage{}},
		{"social tokens missing principal", UpdateSocialTokensMessage{AccessToken: "a", RefreshToken: "r"}},
		{"logout missing token", LogoutMessage{}},
		{"delete account missing token", DeleteAccountMessage{}},
		{"update profile missing token", UpdateProfileMessage{}},
		{"update address missing token", UpdateAddressMessage{}},
		{"verify email missing email", VerifyEmailMessage{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.msg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestMessages_ValidateAcceptsCompleteInput(t *testing.T) {
	msgs := []interface {
		Validate() error
		Type() string
	}{
		LoginMessage{UserID: "jane", Password: "secret"},
		JoinMessage{Request: core.JoinRequest{UserID: "jane", Password: "secret", Email: "jane@example.com"}},
		OAuthLoginMessage{Provider: "kakao", Callback: core.OAuthCallback{ExternalID: "ext-9"}},
		RefreshSessionMessage{RefreshToken: "refresh-1"},
		UpdateSocialTokensMessage{
			Principal:    core.PrincipalRef{Kind: core.PrincipalSocial, UID: 4},
			AccessToken:  "sa-1",
			RefreshToken: "sr-1",
		},
		LogoutMessage{Token: "access-1"},
		DeleteAccountMessage{Token: "access-1"},
		UpdateProfileMessage{Token: "access-1"},
		UpdateAddressMessage{Token: "access-1"},
		VerifyEmailMessage{Email: "jane@example.com"},
	}

	for _, msg := range msgs {
		if err := msg.Validate(); err != nil {
			t.Fatalf("unexpected validation error for %s: %v", msg.Type(), err)
		}
	}
}

func TestMessageTypesAreNamespaced(t *testing.T) {
	types := map[string]string{
		LoginMessage{}.Type():              TypeLogin,
		JoinMessage{}.Type():               TypeJoin,
		OAuthLoginMessage{}.Type():         TypeOAuthLogin,
		RefreshSessionMessage{}.Type():     TypeRefreshSession,
		UpdateSocialTokensMessage{}.Type(): TypeUpdateSocialTokens,
		LogoutMessage{}.Type():             TypeLogout,
		DeleteAccountMessage{}.Type():      TypeDeleteAccount,
		UpdateProfileMessage{}.Type():      TypeUpdateProfile,
		UpdateAddressMessage{}.Type():      TypeUpdateAddress,
		VerifyEmailMessage{}.Type():        TypeVerifyEmail,
	}

	for got, want := range types {
		if got != want {
			t.Fatalf("expected type %q, got %q", want, got)
		}
	}
}
