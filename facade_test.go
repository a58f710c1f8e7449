package identity

import (
	"context"
	"testing"

	gocmd "github.com/goliatone/go-command"
	identitycommand "github.com/goliatone/go-identity/command"
	"github.com/goliatone/go-identity/core"
	identityquery "github.com/goliatone/go-identity/query"
)

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.Login == nil || commands.OAuthLogin == nil || commands.DeleteAccount == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.ValidateToken == nil || queries.Managers == nil {
		t.Fatalf("expected query handlers to be wired")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	svc := &stubFacadeService{}

	facade, err := NewFacade(svc)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.LoginResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	if err := facade.Commands().Login.Execute(ctx, identitycommand.LoginMessage{
		UserID:   "jane",
		Password: "secret",
	}); err != nil {
		t.Fatalf("execute login command: %v", err)
	}
	if svc.lastLoginUserID != "jane" {
		t.Fatalf("unexpected login delegation payload %q", svc.lastLoginUserID)
	}
	result, ok := collector.Load()
	if !ok || result.AccessToken != "access-1" {
		t.Fatalf("unexpected login result %+v ok=%v", result, ok)
	}

	code, err := facade.Queries().ValidateToken.Query(context.Background(), identityquery.ValidateTokenMessage{
		Token: "access-1",
	})
	if err != nil {
		t.Fatalf("query validate token: %v", err)
	}
	if code != core.ValidationValid {
		t.Fatalf("unexpected validation code %d", code)
	}

	managers, err := facade.Queries().Managers.Query(context.Background(), identityquery.ManagersMessage{})
	if err != nil {
		t.Fatalf("query managers: %v", err)
	}
	if len(managers) != 1 || managers[0].UserID != "lead" {
		t.Fatalf("unexpected managers result %#v", managers)
	}
}

func TestNewFacade_ManagerReaderOverride(t *testing.T) {
	svc := &stubFacadeService{}
	override := &stubManagerReader{users: []core.LocalUser{{UID: 9, UserID: "cached-lead"}}}

	facade, err := NewFacade(svc, WithManagerReader(override))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	managers, err := facade.Queries().Managers.Query(context.Background(), identityquery.ManagersMessage{})
	if err != nil {
		t.Fatalf("query managers: %v", err)
	}
	if len(managers) != 1 || managers[0].UserID != "cached-lead" {
		t.Fatalf("expected override reader to serve managers, got %#v", managers)
	}
}

func TestNewFacade_RequiresService(t *testing.T) {
	facade, err := NewFacade(nil)
	if err == nil {
		t.Fatalf("expected nil service error")
	}
	if facade != nil {
		t.Fatalf("expected nil facade on error")
	}
}

type stubFacadeService struct {
	lastLoginUserID string
}

func (s *stubFacadeService) Login(_ context.Context, userID string, _ string) (core.LoginResult, error) {
	s.lastLoginUserID = userID
	return core.LoginResult{LoggedIn: true, AccessToken: "access-1", RefreshToken: "refresh-1", UserID: userID}, nil
}

func (s *stubFacadeService) Join(_ context.Context, req core.JoinRequest) (core.JoinResult, error) {
	return core.JoinResult{Success: true, Message: "joined", UserUID: 1}, nil
}

func (s *stubFacadeService) OAuthLogin(context.Context, string, core.OAuthCallback) (core.OAuthLoginResult, error) {
	return core.OAuthLoginResult{LoggedIn: true, Provider: core.ProviderNaver}, nil
}

func (s *stubFacadeService) RefreshSession(context.Context, string) (core.RefreshResult, error) {
	return core.RefreshResult{Status: core.ValidationValid, AccessToken: "access-2", RefreshToken: "refresh-2"}, nil
}

func (s *stubFacadeService) UpdateSocialTokens(context.Context, core.PrincipalRef, string, string) (int, error) {
	return core.SocialTokenUpdateOK, nil
}

func (s *stubFacadeService) Logout(context.Context, string) (bool, error) {
	return true, nil
}

func (s *stubFacadeService) DeleteAccount(context.Context, string) (bool, error) {
	return true, nil
}

func (s *stubFacadeService) UpdateProfile(context.Context, string, core.UpdateProfileRequest) error {
	return nil
}

func (s *stubFacadeService) UpdateAddress(context.Context, string, core.UpdateAddressRequest) error {
	return nil
}

func (s *stubFacadeService) VerifyEmail(context.Context, string) error {
	return nil
}

func (s *stubFacadeService) ValidateToken(context.Context, string) core.ValidationCode {
	return core.ValidationValid
}

func (s *stubFacadeService) UserInfo(context.Context, string) (core.UserInfo, error) {
	return core.UserInfo{UID: 1, Kind: core.PrincipalLocal, UserID: "jane"}, nil
}

func (s *stubFacadeService) UserProfile(context.Context, string) (core.ProfileView, error) {
	return core.ProfileView{UID: 1, Kind: core.PrincipalLocal, UserID: "jane"}, nil
}

func (s *stubFacadeService) Managers(context.Context) ([]core.LocalUser, error) {
	return []core.LocalUser{{UID: 2, UserID: "lead", Role: core.RoleManager}}, nil
}

type stubManagerReader struct {
	users []core.LocalUser
}

func (s *stubManagerReader) Managers(context.Context) ([]core.LocalUser, error) {
	return s.users, nil
}

var _ CommandQueryService = (*stubFacadeService)(nil)
