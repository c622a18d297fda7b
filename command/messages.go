package command

import (
	"strings"

	"github.com/goliatone/go-social-links/core"
)

const (
	TypeLinkAccount       = "sociallinks.command.link_account"
	TypeVerifyAccount     = "sociallinks.command.verify_account"
	TypeUnlinkAccount     = "sociallinks.command.unlink_account"
	TypeDisconnectAccount = "sociallinks.command.disconnect_account"
	TypeLinkManualAccount = "sociallinks.command.link_manual_account"
	TypeRefreshAccount    = "sociallinks.command.refresh_account"
	TypeRefreshAllTokens  = "sociallinks.command.refresh_all_tokens"
)

type LinkAccountMessage struct {
	Input core.LinkAccountInput
}

func (LinkAccountMessage) Type() string { return TypeLinkAccount }

func (m LinkAccountMessage) Validate() error {
	if strings.TrimSpace(m.Input.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if err := validatePlatform(string(m.Input.Platform)); err != nil {
		return err
	}
	if strings.TrimSpace(m.Input.PlatformAccountID) == "" {
		return commandValidationError("platform_account_id", "platform account id is required")
	}
	if strings.TrimSpace(m.Input.AccessToken) == "" {
		return commandValidationError("access_token", "access token is required")
	}
	return nil
}

type VerifyAccountMessage struct {
	LinkID       string
	ClientID     string
	ClientSecret string
}

func (VerifyAccountMessage) Type() string { return TypeVerifyAccount }

func (m VerifyAccountMessage) Validate() error {
	if strings.TrimSpace(m.LinkID) == "" {
		return commandValidationError("link_id", "link id is required")
	}
	return nil
}

type UnlinkAccountMessage struct {
	Request core.UnlinkRequest
}

func (UnlinkAccountMessage) Type() string { return TypeUnlinkAccount }

func (m UnlinkAccountMessage) Validate() error {
	if strings.TrimSpace(m.Request.LinkID) == "" {
		return commandValidationError("link_id", "link id is required")
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return nil
}

type DisconnectAccountMessage struct {
	UserID   string
	Platform string
}

func (DisconnectAccountMessage) Type() string { return TypeDisconnectAccount }

func (m DisconnectAccountMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return validatePlatform(m.Platform)
}

type LinkManualAccountMessage struct {
	UserID   string
	Platform string
	Username string
}

func (LinkManualAccountMessage) Type() string { return TypeLinkManualAccount }

func (m LinkManualAccountMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	if err := validatePlatform(m.Platform); err != nil {
		return err
	}
	if strings.TrimSpace(m.Username) == "" {
		return commandValidationError("username", "username is required")
	}
	return nil
}

type RefreshAccountMessage struct {
	UserID   string
	Platform core.Platform
}

func (RefreshAccountMessage) Type() string { return TypeRefreshAccount }

func (m RefreshAccountMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return commandValidationError("user_id", "user id is required")
	}
	return validatePlatform(string(m.Platform))
}

type RefreshAllTokensMessage struct {
	Request core.RefreshAllRequest
}

func (RefreshAllTokensMessage) Type() string { return TypeRefreshAllTokens }

func (m RefreshAllTokensMessage) Validate() error {
	if m.Request.HoursBeforeExpiry < 0 {
		return commandValidationError("hours_before_expiry", "hours before expiry must not be negative")
	}
	return nil
}

func validatePlatform(name string) error {
	if strings.TrimSpace(name) == "" {
		return commandValidationError("platform", "platform is required")
	}
	if _, err := core.ParsePlatform(name); err != nil {
		return commandWrapValidation(err, "command: unsupported platform")
	}
	return nil
}
