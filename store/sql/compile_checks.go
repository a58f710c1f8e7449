package sqlstore

import "github.com/goliatone/go-identity/core"

var (
	_ core.UserStore              = (*UserStore)(nil)
	_ core.SocialStore            = (*SocialIdentityStore)(nil)
	_ core.SocialStore            = (*CachedSocialIdentityStore)(nil)
	_ core.SessionTokenStore      = (*SessionTokenStore)(nil)
	_ core.ProfileStore           = (*ProfileStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
