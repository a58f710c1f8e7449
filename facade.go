package identity

import (
	"fmt"

	identitycommand "github.com/goliatone/go-identity/command"
	identityquery "github.com/goliatone/go-identity/query"
)

// CommandQueryService is the full operation surface the facade wires: the
// mutating slice plus the read slices the query package consumes.
type CommandQueryService interface {
	identitycommand.MutatingService
	identityquery.TokenValidator
	identityquery.UserReader
	identityquery.ManagerReader
}

type Commands struct {
	Login              *identitycommand.LoginCommand
	Join               *identitycommand.JoinCommand
	OAuthLogin         *identitycommand.OAuthLoginCommand
	RefreshSession     *identitycommand.RefreshSessionCommand
	UpdateSocialTokens *identitycommand.UpdateSocialTokensCommand
	Logout             *identitycommand.LogoutCommand
	DeleteAccount      *identitycommand.DeleteAccountCommand
	UpdateProfile      *identitycommand.UpdateProfileCommand
	UpdateAddress      *identitycommand.UpdateAddressCommand
	VerifyEmail        *identitycommand.VerifyEmailCommand
}

type Queries struct {
	ValidateToken *identityquery.ValidateTokenQuery
	UserInfo      *identityquery.UserInfoQuery
	UserProfile   *identityquery.UserProfileQuery
	Managers      *identityquery.ManagersQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	managerReader identityquery.ManagerReader
}

// WithManagerReader routes the manager listing through a different reader
// than the service, for callers that front it with a cache.
func WithManagerReader(reader identityquery.ManagerReader) FacadeOption {
	return func(options *facadeOptions) {
		options.managerReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("identity: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	managerReader := cfg.managerReader
	if managerReader == nil {
		managerReader = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Login:              identitycommand.NewLoginCommand(service),
		Join:               identitycommand.NewJoinCommand(service),
		OAuthLogin:         identitycommand.NewOAuthLoginCommand(service),
		RefreshSession:     identitycommand.NewRefreshSessionCommand(service),
		UpdateSocialTokens: identitycommand.NewUpdateSocialTokensCommand(service),
		Logout:             identitycommand.NewLogoutCommand(service),
		DeleteAccount:      identitycommand.NewDeleteAccountCommand(service),
		UpdateProfile:      identitycommand.NewUpdateProfileCommand(service),
		UpdateAddress:      identitycommand.NewUpdateAddressCommand(service),
		VerifyEmail:        identitycommand.NewVerifyEmailCommand(service),
	}
	facade.queries = Queries{
		ValidateToken: identityquery.NewValidateTokenQuery(service),
		UserInfo:      identityquery.NewUserInfoQuery(service),
		UserProfile:   identityquery.NewUserProfileQuery(service),
		Managers:      identityquery.NewManagersQuery(managerReader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
