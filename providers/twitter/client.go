package twitter

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/providers"
)

const (
	DefaultBaseURL = "https://api.twitter.com/2"
	userFields     = "id,name,username,public_metrics,profile_image_url"
)

// Client wraps the Twitter/X API v2 for a user context token.
type Client struct {
	*providers.APIClient

	mu sync.Mutex
	me *core.PlatformProfile
}

func New(cfg providers.ClientConfig) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := providers.NewAPIClient(providers.APIClientConfig{
		Platform:    core.PlatformTwitter,
		BaseURL:     baseURL,
		AccessToken: cfg.AccessToken,
		Transport:   cfg.Transport,
		Timeout:     cfg.Timeout,
		Logger:      cfg.Logger,
		RateLimiter: cfg.RateLimiter,
	})
	if err != nil {
		return nil, err
	}
	return &Client{APIClient: base}, nil
}

func Builder(_ context.Context, cfg providers.ClientConfig) (core.PlatformClient, error) {
	return New(cfg)
}

type user struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
	PublicMetrics   struct {
		FollowersCount int64 `json:"followers_count"`
		FollowingCount int64 `json:"following_count"`
		TweetCount     int64 `json:"tweet_count"`
	} `json:"public_metrics"`
}

type idList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

func (l idList) contains(id string) bool {
	for _, item := range l.Data {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (c *Client) GetUserProfile(ctx context.Context, remoteID string) (core.PlatformProfile, error) {
	path := "/users/me"
	if trimmed := strings.TrimSpace(remoteID); trimmed != "" {
		path = "/users/" + url.PathEscape(trimmed)
	}
	var payload struct {
		Data user `json:"data"`
	}
	raw, err := c.FetchJSON(ctx, http.MethodGet, path, map[string]string{"user.fields": userFields}, nil, &payload)
	if err != nil {
		return core.PlatformProfile{}, err
	}
	profile := core.PlatformProfile{
		ID:            payload.Data.ID,
		Username:      payload.Data.Username,
		DisplayName:   payload.Data.Name,
		AvatarURL:     payload.Data.ProfileImageURL,
		FollowerCount: payload.Data.PublicMetrics.FollowersCount,
		Raw:           raw,
	}
	if path == "/users/me" {
		c.mu.Lock()
		cached := profile
		c.me = &cached
		c.mu.Unlock()
	}
	return profile, nil
}

func (c *Client) VerifyAccountOwnership(ctx context.Context, claimedAccountID string) (bool, error) {
	profile, err := c.GetUserProfile(ctx, "")
	if err != nil {
		return false, err
	}
	return profile.ID != "" && profile.ID == strings.TrimSpace(claimedAccountID), nil
}

// VerifyFollow scans the first page of accounts the user follows.
func (c *Client) VerifyFollow(ctx context.Context, targetAccountID string) (bool, error) {
	target := strings.TrimSpace(targetAccountID)
	if target == "" {
		return false, core.ValidationError("target account id is required", "target_id")
	}
	me, err := c.current(ctx)
	if err != nil {
		return false, err
	}
	var payload idList
	err = c.GetJSON(ctx, "/users/"+url.PathEscape(me.ID)+"/following", map[string]string{"max_results": "1000"}, &payload)
	if err != nil {
		return false, err
	}
	return payload.contains(target), nil
}

func (c *Client) VerifySubscription(ctx context.Context, _ string) (bool, error) {
	return c.CapabilityGap(ctx, string(core.EngagementSubscription))
}

func (c *Client) VerifyLike(ctx context.Context, contentID string) (bool, error) {
	tweetID := strings.TrimSpace(contentID)
	if tweetID == "" {
		return false, core.ValidationError("tweet id is required", "target_id")
	}
	me, err := c.current(ctx)
	if err != nil {
		return false, err
	}
	var payload idList
	err = c.GetJSON(ctx, "/users/"+url.PathEscape(me.ID)+"/liked_tweets", map[string]string{"max_results": "100"}, &payload)
	if err != nil {
		return false, err
	}
	return payload.contains(tweetID), nil
}

// VerifyComment searches recent replies in the tweet's conversation written
// by the user.
func (c *Client) VerifyComment(ctx context.Context, contentID string) (bool, error) {
	tweetID := strings.TrimSpace(contentID)
	if tweetID == "" {
		return false, core.ValidationError("tweet id is required", "target_id")
	}
	me, err := c.current(ctx)
	if err != nil {
		return false, err
	}
	if me.Username == "" {
		return false, nil
	}
	var payload idList
	query := map[string]string{"query": "conversation_id:" + tweetID + " from:" + me.Username}
	if err := c.GetJSON(ctx, "/tweets/search/recent", query, &payload); err != nil {
		return false, err
	}
	return len(payload.Data) > 0, nil
}

func (c *Client) VerifyVideoEngagement(ctx context.Context, videoID string) (bool, error) {
	return c.VerifyLike(ctx, videoID)
}

func (c *Client) GetFollowerCount(ctx context.Context) (int64, error) {
	profile, err := c.GetUserProfile(ctx, "")
	if err != nil {
		return 0, err
	}
	return profile.FollowerCount, nil
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
