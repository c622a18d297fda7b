package facebook

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/providers"
	meta "github.com/goliatone/go-social-links/providers/meta/common"
)

const profileFields = "id,name,short_name,picture"

// Client talks to the Facebook Graph API on behalf of a single user token.
type Client struct {
	*providers.APIClient

	mu   sync.Mutex
	meID string
}

func New(cfg providers.ClientConfig) (*Client, error) {
	cfg.Platform = core.PlatformFacebook
	base, err := meta.NewGraphClient(cfg, meta.FacebookGraphBaseURL)
	if err != nil {
		return nil, err
	}
	return &Client{APIClient: base}, nil
}

// Builder adapts New to the factory builder signature.
func Builder(_ context.Context, cfg providers.ClientConfig) (core.PlatformClient, error) {
	return New(cfg)
}

type profilePayload struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	ShortName string       `json:"short_name"`
	Picture   meta.Picture `json:"picture"`
}

func (c *Client) GetUserProfile(ctx context.Context, remoteID string) (core.PlatformProfile, error) {
	path := "/me"
	if strings.TrimSpace(remoteID) != "" {
		objectPath, err := meta.ObjectPath(remoteID)
		if err != nil {
			return core.PlatformProfile{}, core.ValidationError(err.Error(), "remote_id")
		}
		path = objectPath
	}
	var payload profilePayload
	raw, err := c.FetchJSON(ctx, http.MethodGet, path, map[string]string{"fields": profileFields}, nil, &payload)
	if err != nil {
		return core.PlatformProfile{}, err
	}
	return core.PlatformProfile{
		ID:          payload.ID,
		Username:    meta.FirstNonEmpty(payload.ShortName, payload.Name),
		DisplayName: meta.FirstNonEmpty(payload.Name, payload.ShortName),
		AvatarURL:   payload.Picture.Data.URL,
		Raw:         raw,
	}, nil
}

func (c *Client) VerifyAccountOwnership(ctx context.Context, claimedAccountID string) (bool, error) {
	me, err := c.currentUserID(ctx)
	if err != nil {
		return false, err
	}
	return me != "" && me == strings.TrimSpace(claimedAccountID), nil
}

// VerifyFollow checks whether the user likes the given page.
func (c *Client) VerifyFollow(ctx context.Context, targetAccountID string) (bool, error) {
	path, err := meta.ObjectPath("me", "likes", targetAccountID)
	if err != nil {
		return false, core.ValidationError(err.Error(), "target_id")
	}
	var payload struct {
		Data []meta.Actor `json:"data"`
	}
	if err := c.GetJSON(ctx, path, nil, &payload); err != nil {
		return false, err
	}
	return len(payload.Data) > 0, nil
}

func (c *Client) VerifySubscription(ctx context.Context, _ string) (bool, error) {
	return c.CapabilityGap(ctx, string(core.EngagementSubscription))
}

func (c *Client) VerifyLike(ctx context.Context, contentID string) (bool, error) {
	me, err := c.currentUserID(ctx)
	if err != nil {
		return false, err
	}
	path, err := meta.ObjectPath(contentID, "likes")
	if err != nil {
		return false, core.ValidationError(err.Error(), "target_id")
	}
	var payload struct {
		Data []meta.Actor `json:"data"`
	}
	if err := c.GetJSON(ctx, path, map[string]string{"fields": "id", "limit": meta.DefaultPageLimit}, &payload); err != nil {
		return false, err
	}
	for _, actor := range payload.Data {
		if actor.ID == me {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) VerifyComment(ctx context.Context, contentID string) (bool, error) {
	me, err := c.currentUserID(ctx)
	if err != nil {
		return false, err
	}
	path, err := meta.ObjectPath(contentID, "comments")
	if err != nil {
		return false, core.ValidationError(err.Error(), "target_id")
	}
	var payload struct {
		Data []struct {
			ID   string     `json:"id"`
			From meta.Actor `json:"from"`
		} `json:"data"`
	}
	if err := c.GetJSON(ctx, path, map[string]string{"fields": "from", "limit": meta.DefaultPageLimit}, &payload); err != nil {
		return false, err
	}
	for _, comment := range payload.Data {
		if comment.From.ID == me {
			return true, nil
		}
	}
	return false, nil
}

// VerifyVideoEngagement accepts either a like or a comment on the video.
func (c *Client) VerifyVideoEngagement(ctx context.Context, videoID string) (bool, error) {
	liked, err := c.VerifyLike(ctx, videoID)
	if err != nil || liked {
		return liked, err
	}
	return c.VerifyComment(ctx, videoID)
}

func (c *Client) currentUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.meID
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}
	profile, err := c.GetUserProfile(ctx, "")
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	c.meID = profile.ID
	c.mu.Unlock()
	return profile.ID, nil
}

var _ core.PlatformClient = (*Client)(nil)
