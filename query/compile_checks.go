package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social-links/core"
)

var (
	_ gocmd.Querier[GetUserAccountsMessage, []core.SocialAccountLink]          = (*GetUserAccountsQuery)(nil)
	_ gocmd.Querier[GetAccountMessage, core.SocialAccountLink]                 = (*GetAccountQuery)(nil)
	_ gocmd.Querier[CheckEngagementMessage, bool]                              = (*CheckEngagementQuery)(nil)
	_ gocmd.Querier[GetPlatformCapabilitiesMessage, core.PlatformCapabilities] = (*GetPlatformCapabilitiesQuery)(nil)

	_ LinkReader = (*core.Manager)(nil)
)
