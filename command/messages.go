package command

import (
	"strings"

	"github.com/goliatone/go-identity/core"
)

const (
	TypeLogin              = "identity.command.login"
	TypeJoin               = "identity.command.join"
	TypeOAuthLogin         = "identity.command.oauth_login"
	TypeRefreshSession     = "identity.command.session.refresh"
	TypeUpdateSocialTokens = "identity.command.social_tokens.update"
	TypeLogout             = "identity.command.logout"
	TypeDeleteAccount      = "identity.command.account.delete"
	TypeUpdateProfile      = "identity.command.profile.update"
	TypeUpdateAddress      = "identity.command.address.update"
	TypeVerifyEmail        = "identity.command.email.verify"
)

type LoginMessage struct {
	UserID   string
	Password string
}

func (LoginMessage) Type() string { return TypeLogin }

func (m LoginMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if m.Password == "" {
		return commandValidationError("password", "password is required")
	}
	return nil
}

type JoinMessage struct {
	Request core.JoinRequest
}

func (JoinMessage) Type() string { return TypeJoin }

func (m JoinMessage) Validate() error {
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if m.Request.Password == "" {
		return commandValidationError("password", "password is required")
	}
	if strings.TrimSpace(m.Request.Email) == "" {
		return commandValidationError("email", "email is required")
	}
	return nil
}

type OAuthLoginMessage struct {
	Provider string
	Callback core.OAuthCallback
}

func (OAuthLoginMessage) Type() string { return TypeOAuthLogin }

func (m OAuthLoginMessage) Validate() error {
	if strings.TrimSpace(m.Provider) == "" {
		return commandValidationError("provider", "provider is required")
	}
	if strings.TrimSpace(m.Callback.ExternalID) == "" {
		return commandValidationError("external_id", "external account id is required")
	}
	return nil
}

type RefreshSessionMessage struct {
	RefreshToken string
}

func (RefreshSessionMessage) Type() string { return TypeRefreshSession }

func (m RefreshSessionMessage) Validate() error {
	if strings.TrimSpace(m.RefreshToken) == "" {
		return commandValidationError("refresh_token", "refresh token is required")
	}
	return nil
}

type UpdateSocialTokensMessage struct {
	Principal    core.PrincipalRef
	AccessToken  string
	RefreshToken string
}

func (UpdateSocialTokensMessage) Type() string { return TypeUpdateSocialTokens }

func (m UpdateSocialTokensMessage) Validate() error {
	if err := m.Principal.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid principal")
	}
	if strings.TrimSpace(m.AccessToken) == "" {
		return commandValidationError("access_token", "access token is required")
	}
	if strings.TrimSpace(m.RefreshToken) == "" {
		return commandValidationError("refresh_token", "refresh token is required")
	}
	return nil
}

type LogoutMessage struct {
	Token string
}

func (LogoutMessage) Type() string { return TypeLogout }

func (m LogoutMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	return nil
}

type DeleteAccountMessage struct {
	Token string
}

func (DeleteAccountMessage) Type() string { return TypeDeleteAccount }

func (m DeleteAccountMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	return nil
}

type UpdateProfileMessage struct {
	Token   string
	Request core.UpdateProfileRequest
}

func (UpdateProfileMessage) Type() string { return TypeUpdateProfile }

func (m UpdateProfileMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	return nil
}

type UpdateAddressMessage struct {
	Token   string
	Request core.UpdateAddressRequest
}

func (UpdateAddressMessage) Type() string { return TypeUpdateAddress }

func (m UpdateAddressMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return commandValidationError("token", "token is required")
	}
	return nil
}

type VerifyEmailMessage struct {
	Email string
}

func (VerifyEmailMessage) Type() string { return TypeVerifyEmail }

func (m VerifyEmailMessage) Validate() error {
	if strings.TrimSpace(m.Email) == "" {
		return commandValidationError("email", "email is required")
	}
	return nil
}
