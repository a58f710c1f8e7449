package query

import "strings"

const (
	TypeValidateToken = "identity.query.token.validate"
	TypeUserInfo      = "identity.query.user.info"
	TypeUserProfile   = "identity.query.user.profile"
	TypeManagers      = "identity.query.managers.list"
)

type ValidateTokenMessage struct {
	Token string
}

func (ValidateTokenMessage) Type() string { return TypeValidateToken }

func (m ValidateTokenMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return queryValidationError("token", "token is required")
	}
	return nil
}

type UserInfoMessage struct {
	Token string
}

func (UserInfoMessage) Type() string { return TypeUserInfo }

func (m UserInfoMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return queryValidationError("token", "token is required")
	}
	return nil
}

type UserProfileMessage struct {
	Token string
}

func (UserProfileMessage) Type() string { return TypeUserProfile }

func (m UserProfileMessage) Validate() error {
	if strings.TrimSpace(m.Token) == "" {
		return queryValidationError("token", "token is required")
	}
	return nil
}

// ManagersMessage has no parameters; the manager listing is unfiltered.
type ManagersMessage struct{}

func (ManagersMessage) Type() string { return TypeManagers }

func (ManagersMessage) Validate() error { return nil }
