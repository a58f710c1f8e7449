package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-identity/core"
)

var (
	_ gocmd.Querier[ValidateTokenMessage, core.ValidationCode] = (*ValidateTokenQuery)(nil)
	_ gocmd.Querier[UserInfoMessage, core.UserInfo]            = (*UserInfoQuery)(nil)
	_ gocmd.Querier[UserProfileMessage, core.ProfileView]      = (*UserProfileQuery)(nil)
	_ gocmd.Querier[ManagersMessage, []core.LocalUser]         = (*ManagersQuery)(nil)
)
