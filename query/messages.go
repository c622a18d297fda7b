package query

import (
	"strings"

	"github.com/goliatone/go-social-links/core"
)

const (
	TypeGetUserAccounts         = "sociallinks.query.user_accounts"
	TypeGetAccount              = "sociallinks.query.account"
	TypeCheckEngagement         = "sociallinks.query.engagement"
	TypeGetPlatformCapabilities = "sociallinks.query.platform_capabilities"
)

type GetUserAccountsMessage struct {
	UserID string
	Filter core.AccountFilter
}

func (GetUserAccountsMessage) Type() string { return TypeGetUserAccounts }

func (m GetUserAccountsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	if m.Filter.Platform != "" && !m.Filter.Platform.Valid() {
		return queryValidationError("platform", "unsupported platform")
	}
	return nil
}

type GetAccountMessage struct {
	UserID string
	LinkID string
}

func (GetAccountMessage) Type() string { return TypeGetAccount }

func (m GetAccountMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.LinkID) == "" {
		return queryValidationError("link_id", "link id is required")
	}
	return nil
}

type CheckEngagementMessage struct {
	Check core.EngagementCheck
}

func (CheckEngagementMessage) Type() string { return TypeCheckEngagement }

func (m CheckEngagementMessage) Validate() error {
	if strings.TrimSpace(m.Check.LinkID) == "" {
		return queryValidationError("link_id", "link id is required")
	}
	if strings.TrimSpace(m.Check.UserID) == "" {
		return queryValidationError("user_id", "user id is required")
	}
	switch m.Check.Kind {
	case core.EngagementFollow,
		core.EngagementSubscription,
		core.EngagementLike,
		core.EngagementComment,
		core.EngagementVideoEngagement:
	default:
		return queryValidationError("kind", "unknown engagement kind")
	}
	if strings.TrimSpace(m.Check.TargetID) == "" {
		return queryValidationError("target_id", "target id is required")
	}
	return nil
}

type GetPlatformCapabilitiesMessage struct {
	Platform core.Platform
}

func (GetPlatformCapabilitiesMessage) Type() string { return TypeGetPlatformCapabilities }

func (m GetPlatformCapabilitiesMessage) Validate() error {
	if !m.Platform.Valid() {
		return queryValidationError("platform", "unsupported platform")
	}
	return nil
}
