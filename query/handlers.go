package query

import (
	"context"
	"fmt"

	"github.com/goliatone/go-social-links/core"
)

// LinkReader is the read side of core.Manager.
type LinkReader interface {
	GetUserAccounts(ctx context.Context, userID string, filter core.AccountFilter) ([]core.SocialAccountLink, error)
	GetAccount(ctx context.Context, userID string, linkID string) (core.SocialAccountLink, error)
	CheckEngagement(ctx context.Context, check core.EngagementCheck) (bool, error)
}

type CapabilityReader interface {
	Capabilities(platform core.Platform) (core.PlatformCapabilities, bool)
}

type GetUserAccountsQuery struct {
	reader LinkReader
}

func NewGetUserAccountsQuery(reader LinkReader) *GetUserAccountsQuery {
	return &GetUserAccountsQuery{reader: reader}
}

func (q *GetUserAccountsQuery) Query(ctx context.Context, msg GetUserAccountsMessage) ([]core.SocialAccountLink, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: link reader is required")
	}
	return q.reader.GetUserAccounts(ctx, msg.UserID, msg.Filter)
}

type GetAccountQuery struct {
	reader LinkReader
}

func NewGetAccountQuery(reader LinkReader) *GetAccountQuery {
	return &GetAccountQuery{reader: reader}
}

func (q *GetAccountQuery) Query(ctx context.Context, msg GetAccountMessage) (core.SocialAccountLink, error) {
	if q == nil || q.reader == nil {
		return core.SocialAccountLink{}, queryDependencyError("query: link reader is required")
	}
	return q.reader.GetAccount(ctx, msg.UserID, msg.LinkID)
}

// CheckEngagementQuery asks the platform a yes/no question. It never writes,
// so it lives on the query side.
type CheckEngagementQuery struct {
	reader LinkReader
}

func NewCheckEngagementQuery(reader LinkReader) *CheckEngagementQuery {
	return &CheckEngagementQuery{reader: reader}
}

func (q *CheckEngagementQuery) Query(ctx context.Context, msg CheckEngagementMessage) (bool, error) {
	if q == nil || q.reader == nil {
		return false, queryDependencyError("query: link reader is required")
	}
	return q.reader.CheckEngagement(ctx, msg.Check)
}

type GetPlatformCapabilitiesQuery struct {
	reader CapabilityReader
}

func NewGetPlatformCapabilitiesQuery(reader CapabilityReader) *GetPlatformCapabilitiesQuery {
	return &GetPlatformCapabilitiesQuery{reader: reader}
}

func (q *GetPlatformCapabilitiesQuery) Query(_ context.Context, msg GetPlatformCapabilitiesMessage) (core.PlatformCapabilities, error) {
	if q == nil || q.reader == nil {
		return core.PlatformCapabilities{}, queryDependencyError("query: capability reader is required")
	}
	caps, ok := q.reader.Capabilities(msg.Platform)
	if !ok {
		return core.PlatformCapabilities{}, fmt.Errorf("%w: %q", core.ErrUnsupportedPlatform, msg.Platform)
	}
	return caps, nil
}
