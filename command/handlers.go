package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social-links/core"
)

// LinkMutator is the write side of core.Manager.
type LinkMutator interface {
	LinkAccount(ctx context.Context, in core.LinkAccountInput) (core.SocialAccountLink, error)
	VerifyAccount(ctx context.Context, linkID string, clientID string, clientSecret string) (bool, error)
	UnlinkAccount(ctx context.Context, req core.UnlinkRequest) (core.UnlinkResult, error)
	DisconnectAccount(ctx context.Context, userID string, platformName string) (core.SocialAccountLink, error)
	LinkManualAccount(ctx context.Context, userID string, platformName string, username string) (core.SocialAccountLink, error)
	RefreshAccount(ctx context.Context, userID string, platform core.Platform) (core.SocialAccountLink, error)
}

type TokenRefresher interface {
	RefreshAllTokens(ctx context.Context, req core.RefreshAllRequest) (core.RefreshStats, error)
}

type LinkAccountCommand struct {
	service LinkMutator
}

func NewLinkAccountCommand(service LinkMutator) *LinkAccountCommand {
	return &LinkAccountCommand{service: service}
}

func (c *LinkAccountCommand) Execute(ctx context.Context, msg LinkAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: link service is required")
	}
	out, err := c.service.LinkAccount(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type VerifyAccountCommand struct {
	service LinkMutator
}

func NewVerifyAccountCommand(service LinkMutator) *VerifyAccountCommand {
	return &VerifyAccountCommand{service: service}
}

func (c *VerifyAccountCommand) Execute(ctx context.Context, msg VerifyAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: verify service is required")
	}
	verified, err := c.service.VerifyAccount(ctx, msg.LinkID, msg.ClientID, msg.ClientSecret)
	if err != nil {
		return err
	}
	storeResult(ctx, verified)
	return nil
}

type UnlinkAccountCommand struct {
	service LinkMutator
}

func NewUnlinkAccountCommand(service LinkMutator) *UnlinkAccountCommand {
	return &UnlinkAccountCommand{service: service}
}

func (c *UnlinkAccountCommand) Execute(ctx context.Context, msg UnlinkAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: unlink service is required")
	}
	out, err := c.service.UnlinkAccount(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectAccountCommand struct {
	service LinkMutator
}

func NewDisconnectAccountCommand(service LinkMutator) *DisconnectAccountCommand {
	return &DisconnectAccountCommand{service: service}
}

func (c *DisconnectAccountCommand) Execute(ctx context.Context, msg DisconnectAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	out, err := c.service.DisconnectAccount(ctx, msg.UserID, msg.Platform)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type LinkManualAccountCommand struct {
	service LinkMutator
}

func NewLinkManualAccountCommand(service LinkMutator) *LinkManualAccountCommand {
	return &LinkManualAccountCommand{service: service}
}

func (c *LinkManualAccountCommand) Execute(ctx context.Context, msg LinkManualAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: manual link service is required")
	}
	out, err := c.service.LinkManualAccount(ctx, msg.UserID, msg.Platform, msg.Username)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshAccountCommand struct {
	service LinkMutator
}

func NewRefreshAccountCommand(service LinkMutator) *RefreshAccountCommand {
	return &RefreshAccountCommand{service: service}
}

func (c *RefreshAccountCommand) Execute(ctx context.Context, msg RefreshAccountMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh account service is required")
	}
	out, err := c.service.RefreshAccount(ctx, msg.UserID, msg.Platform)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshAllTokensCommand struct {
	service TokenRefresher
}

func NewRefreshAllTokensCommand(service TokenRefresher) *RefreshAllTokensCommand {
	return &RefreshAllTokensCommand{service: service}
}

// Execute stores the batch stats even when the run reports an error, so
// callers can see partial progress.
func (c *RefreshAllTokensCommand) Execute(ctx context.Context, msg RefreshAllTokensMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: token refresher is required")
	}
	stats, err := c.service.RefreshAllTokens(ctx, msg.Request)
	storeResult(ctx, stats)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
