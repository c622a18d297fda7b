package sociallinks

import (
	"fmt"

	linkcommand "github.com/goliatone/go-social-links/command"
	linkquery "github.com/goliatone/go-social-links/query"
)

type Commands struct {
	LinkAccount       *linkcommand.LinkAccountCommand
	VerifyAccount     *linkcommand.VerifyAccountCommand
	UnlinkAccount     *linkcommand.UnlinkAccountCommand
	DisconnectAccount *linkcommand.DisconnectAccountCommand
	LinkManualAccount *linkcommand.LinkManualAccountCommand
	RefreshAccount    *linkcommand.RefreshAccountCommand
	RefreshAllTokens  *linkcommand.RefreshAllTokensCommand
}

type Queries struct {
	GetUserAccounts         *linkquery.GetUserAccountsQuery
	GetAccount              *linkquery.GetAccountQuery
	CheckEngagement         *linkquery.CheckEngagementQuery
	GetPlatformCapabilities *linkquery.GetPlatformCapabilitiesQuery
}

// LinkService is the manager surface the facade wraps.
type LinkService interface {
	linkcommand.LinkMutator
	linkquery.LinkReader
}

// Facade exposes every link operation as a go-command handler.
type Facade struct {
	service  LinkService
	commands Commands
	queries  Queries
}

func NewFacade(service LinkService, refresher linkcommand.TokenRefresher, capabilities linkquery.CapabilityReader) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("sociallinks: link service is required")
	}
	if refresher == nil {
		return nil, fmt.Errorf("sociallinks: token refresher is required")
	}
	if capabilities == nil {
		return nil, fmt.Errorf("sociallinks: capability reader is required")
	}

	return &Facade{
		service: service,
		commands: Commands{
			LinkAccount:       linkcommand.NewLinkAccountCommand(service),
			VerifyAccount:     linkcommand.NewVerifyAccountCommand(service),
			UnlinkAccount:     linkcommand.NewUnlinkAccountCommand(service),
			DisconnectAccount: linkcommand.NewDisconnectAccountCommand(service),
			LinkManualAccount: linkcommand.NewLinkManualAccountCommand(service),
			RefreshAccount:    linkcommand.NewRefreshAccountCommand(service),
			RefreshAllTokens:  linkcommand.NewRefreshAllTokensCommand(refresher),
		},
		queries: Queries{
			GetUserAccounts:         linkquery.NewGetUserAccountsQuery(service),
			GetAccount:              linkquery.NewGetAccountQuery(service),
			CheckEngagement:         linkquery.NewCheckEngagementQuery(service),
			GetPlatformCapabilities: linkquery.NewGetPlatformCapabilitiesQuery(capabilities),
		},
	}, nil
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

func (f *Facade) Service() LinkService {
	if f == nil {
		return nil
	}
	return f.service
}
