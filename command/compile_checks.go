package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[LoginMessage]              = (*LoginCommand)(nil)
	_ gocmd.Commander[JoinMessage]               = (*JoinCommand)(nil)
	_ gocmd.Commander[OAuthLoginMessage]         = (*OAuthLoginCommand)(nil)
	_ gocmd.Commander[RefreshSessionMessage]     = (*RefreshSessionCommand)(nil)
	_ gocmd.Commander[UpdateSocialTokensMessage] = (*UpdateSocialTokensCommand)(nil)
	_ gocmd.Commander[LogoutMessage]             = (*LogoutCommand)(nil)
	_ gocmd.Commander[DeleteAccountMessage]      = (*DeleteAccountCommand)(nil)
	_ gocmd.Commander[UpdateProfileMessage]      = (*UpdateProfileCommand)(nil)
	_ gocmd.Commander[UpdateAddressMessage]      = (*UpdateAddressCommand)(nil)
	_ gocmd.Commander[VerifyEmailMessage]        = (*VerifyEmailCommand)(nil)
)
