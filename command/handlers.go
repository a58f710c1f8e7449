package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-identity/core"
)

// MutatingService is the slice of the identity service the command boundary
// drives. Read paths live in the query package.
type MutatingService interface {
	Login(ctx context.Context, userID string, password string) (core.LoginResult, error)
	Join(ctx context.Context, req core.JoinRequest) (core.JoinResult, error)
	OAuthLogin(ctx context.Context, providerName string, callback core.OAuthCallback) (core.OAuthLoginResult, error)
	RefreshSession(ctx context.Context, refreshToken string) (core.RefreshResult, error)
	UpdateSocialTokens(ctx context.Context, ref core.PrincipalRef, accessToken string, refreshToken string) (int, error)
	Logout(ctx context.Context, token string) (bool, error)
	DeleteAccount(ctx context.Context, token string) (bool, error)
	UpdateProfile(ctx context.Context, token string, req core.UpdateProfileRequest) error
	UpdateAddress(ctx context.Context, token string, req core.UpdateAddressRequest) error
	VerifyEmail(ctx context.Context, email string) error
}

type LoginCommand struct {
	service MutatingService
}

func NewLoginCommand(service MutatingService) *LoginCommand {
	return &LoginCommand{service: service}
}

func (c *LoginCommand) Execute(ctx context.Context, msg LoginMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: login service is required")
	}
	out, err := c.service.Login(ctx, msg.UserID, msg.Password)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type JoinCommand struct {
	service MutatingService
}

func NewJoinCommand(service MutatingService) *JoinCommand {
	return &JoinCommand{service: service}
}

func (c *JoinCommand) Execute(ctx context.Context, msg JoinMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: join service is required")
	}
	out, err := c.service.Join(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type OAuthLoginCommand struct {
	service MutatingService
}

func NewOAuthLoginCommand(service MutatingService) *OAuthLoginCommand {
	return &OAuthLoginCommand{service: service}
}

func (c *OAuthLoginCommand) Execute(ctx context.Context, msg OAuthLoginMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: oauth login service is required")
	}
	out, err := c.service.OAuthLogin(ctx, msg.Provider, msg.Callback)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshSessionCommand struct {
	service MutatingService
}

func NewRefreshSessionCommand(service MutatingService) *RefreshSessionCommand {
	return &RefreshSessionCommand{service: service}
}

func (c *RefreshSessionCommand) Execute(ctx context.Context, msg RefreshSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.RefreshSession(ctx, msg.RefreshToken)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateSocialTokensCommand struct {
	service MutatingService
}

func NewUpdateSocialTokensCommand(service MutatingService) *UpdateSocialTokensCommand {
	return &UpdateSocialTokensCommand{service: service}
}

func (c *UpdateSocialTokensCommand) Execute(ctx context.Context, msg UpdateSocialTokensMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: social token service is required")
	}
	out, err := c.service.UpdateSocialTokens(ctx, msg.Principal, msg.AccessToken, msg.RefreshToken)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type LogoutCommand struct {
	service MutatingService
}

func NewLogoutCommand(service MutatingService) *LogoutCommand {
	return &LogoutCommand{service: service}
}

func (c *LogoutCommand) Execute(ctx context.Context, msg LogoutMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: logout service is required")
	}
	out, err := c.service.Logout(ctx, msg.Token)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteAccountCommand struct {
	service MutatingService
}

func NewDeleteAccountCommand(service MutatingService) *DeleteAccountCommand {
	return &DeleteAccountCommand{service: service}
}

func (c *DeleteAccountCommand) Execute(ctx context.Context, msg DeleteAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: account service is required")
	}
	out, err := c.service.DeleteAccount(ctx, msg.Token)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateProfileCommand struct {
	service MutatingService
}

func NewUpdateProfileCommand(service MutatingService) *UpdateProfileCommand {
	return &UpdateProfileCommand{service: service}
}

func (c *UpdateProfileCommand) Execute(ctx context.Context, msg UpdateProfileMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: profile service is required")
	}
	return c.service.UpdateProfile(ctx, msg.Token, msg.Request)
}

type UpdateAddressCommand struct {
	service MutatingService
}

func NewUpdateAddressCommand(service MutatingService) *UpdateAddressCommand {
	return &UpdateAddressCommand{service: service}
}

func (c *UpdateAddressCommand) Execute(ctx context.Context, msg UpdateAddressMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: address service is required")
	}
	return c.service.UpdateAddress(ctx, msg.Token, msg.Request)
}

type VerifyEmailCommand struct {
	service MutatingService
}

func NewVerifyEmailCommand(service MutatingService) *VerifyEmailCommand {
	return &VerifyEmailCommand{service: service}
}

func (c *VerifyEmailCommand) Execute(ctx context.Context, msg VerifyEmailMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verification service is required")
	}
	return c.service.VerifyEmail(ctx, msg.Email)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
