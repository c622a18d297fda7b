package instagram

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/providers"
	meta "github.com/goliatone/go-social-links/providers/meta/common"
)

const profileFields = "user_id,username,name,account_type,followers_count,media_count"

// Client reads the Instagram Graph API. Only the token's own account is
// addressable, so profile lookups by id are unsupported.
type Client struct {
	*providers.APIClient

	mu sync.Mutex
	me *core.PlatformProfile
}

func New(cfg providers.ClientConfig) (*Client, error) {
	cfg.Platform = core.PlatformInstagram
	base, err := meta.NewGraphClient(cfg, meta.InstagramGraphBaseURL)
	if err != nil {
		return nil, err
	}
	return &Client{APIClient: base}, nil
}

func Builder(_ context.Context, cfg providers.ClientConfig) (core.PlatformClient, error) {
	return New(cfg)
}

type profilePayload struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	AccountType    string `json:"account_type"`
	FollowersCount int64  `json:"followers_count"`
	MediaCount     int64  `json:"media_count"`
}

func (c *Client) GetUserProfile(ctx context.Context, remoteID string) (core.PlatformProfile, error) {
	if strings.TrimSpace(remoteID) != "" {
		if c.Closed() {
			return core.PlatformProfile{}, core.TransportFailureError(nil, "providers: client is closed", nil)
		}
		return core.PlatformProfile{}, core.CapabilityUnsupportedError(core.PlatformInstagram, "profile_by_id")
	}
	var payload profilePayload
	raw, err := c.FetchJSON(ctx, http.MethodGet, "/me", map[string]string{"fields": profileFields}, nil, &payload)
	if err != nil {
		return core.PlatformProfile{}, err
	}
	profile := core.PlatformProfile{
		ID:            meta.FirstNonEmpty(payload.UserID, payload.ID),
		Username:      payload.Username,
		DisplayName:   meta.FirstNonEmpty(payload.Name, payload.Username),
		FollowerCount: payload.FollowersCount,
		Raw:           raw,
	}
	c.mu.Lock()
	cached := profile
	c.me = &cached
	c.mu.Unlock()
	return profile, nil
}

func (c *Client) VerifyAccountOwnership(ctx context.Context, claimedAccountID string) (bool, error) {
	profile, err := c.GetUserProfile(ctx, "")
	if err != nil {
		return false, err
	}
	return profile.ID != "" && profile.ID == strings.TrimSpace(claimedAccountID), nil
}

func (c *Client) VerifyFollow(ctx context.Context, _ string) (bool, error) {
	return c.CapabilityGap(ctx, string(core.EngagementFollow))
}

func (c *Client) VerifySubscription(ctx context.Context, _ string) (bool, error) {
	return c.CapabilityGap(ctx, string(core.EngagementSubscription))
}

func (c *Client) VerifyLike(ctx context.Context, _ string) (bool, error) {
	return c.CapabilityGap(ctx, string(core.EngagementLike))
}

// VerifyComment looks for a comment by the token's username on the media.
func (c *Client) VerifyComment(ctx context.Context, contentID string) (bool, error) {
	me, err := c.current(ctx)
	if err != nil {
		return false, err
	}
	path, err := meta.ObjectPath(contentID, "comments")
	if err != nil {
		return false, core.ValidationError(err.Error(), "target_id")
	}
	var payload struct {
		Data []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := c.GetJSON(ctx, path, map[string]string{"fields": "id,username", "limit": meta.DefaultPageLimit}, &payload); err != nil {
		return false, err
	}
	for _, comment := range payload.Data {
		if me.Username != "" && strings.EqualFold(comment.Username, me.Username) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) VerifyVideoEngagement(ctx context.Context, videoID string) (bool, error) {
	return c.VerifyComment(ctx, videoID)
}

func (c *Client) current(ctx context.Context) (core.PlatformProfile, error) {
	c.mu.Lock()
	cached := c.me
	c.mu.Unlock()
	if cached != nil {
		return *cached, nil
	}
	return c.GetUserProfile(ctx, "")
}

var _ core.PlatformClient = (*Client)(nil)
