package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social-links/core"
)

var (
	_ gocmd.Commander[LinkAccountMessage]       = (*LinkAccountCommand)(nil)
	_ gocmd.Commander[VerifyAccountMessage]     = (*VerifyAccountCommand)(nil)
	_ gocmd.Commander[UnlinkAccountMessage]     = (*UnlinkAccountCommand)(nil)
	_ gocmd.Commander[DisconnectAccountMessage] = (*DisconnectAccountCommand)(nil)
	_ gocmd.Commander[LinkManualAccountMessage] = (*LinkManualAccountCommand)(nil)
	_ gocmd.Commander[RefreshAccountMessage]    = (*RefreshAccountCommand)(nil)
	_ gocmd.Commander[RefreshAllTokensMessage]  = (*RefreshAllTokensCommand)(nil)

	_ LinkMutator    = (*core.Manager)(nil)
	_ TokenRefresher = (*core.RefreshScheduler)(nil)
)
