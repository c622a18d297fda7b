package tiktok

import (
	"context"
	"net/http"
	"strings"

	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/providers"
)

const (
	DefaultBaseURL = "https://open.tiktokapis.com/v2"
	MaxVideoPage   = 20
	MaxVideoQuery  = 20

	userFields  = "open_id,union_id,avatar_url,display_name,bio_description,profile_deep_link,is_verified,follower_count,following_count,likes_count,video_count"
	videoFields = "id,create_time,cover_image_url,share_url,video_description,duration,title,like_count,comment_count,share_count,view_count"
)

// Client wraps the TikTok API v2. The public API exposes no engagement
// lookups so every check is a capability gap.
type Client struct {
	*providers.APIClient
}

func New(cfg providers.ClientConfig) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := providers.NewAPIClient(providers.APIClientConfig{
		Platform:    core.PlatformTikTok,
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

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

type User struct {
	OpenID         string `json:"open_id"`
	UnionID        string `json:"union_id"`
	AvatarURL      string `json:"avatar_url"`
	DisplayName    string `json:"display_name"`
	BioDescription string `json:"bio_description"`
	ProfileLink    string `json:"profile_deep_link"`
	IsVerified     bool   `json:"is_verified"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	LikesCount     int64  `json:"likes_count"`
	VideoCount     int64  `json:"video_count"`
}

type Video struct {
	ID           string `json:"id"`
	CreateTime   int64  `json:"create_time"`
	CoverImage   string `json:"cover_image_url"`
	ShareURL     string `json:"share_url"`
	Description  string `json:"video_description"`
	Duration     int64  `json:"duration"`
	Title        string `json:"title"`
	LikeCount    int64  `json:"like_count"`
	CommentCount int64  `json:"comment_count"`
	ShareCount   int64  `json:"share_count"`
	ViewCount    int64  `json:"view_count"`
}

type VideoPage struct {
	Videos  []Video
	Cursor  int64
	HasMore bool
}

func (c *Client) GetUserProfile(ctx context.Context, remoteID string) (core.PlatformProfile, error) {
	if strings.TrimSpace(remoteID) != "" {
		if c.Closed() {
			return core.PlatformProfile{}, core.TransportFailureError(nil, "providers: client is closed", nil)
		}
		return core.PlatformProfile{}, core.CapabilityUnsupportedError(core.PlatformTikTok, "profile_by_id")
	}
	user, raw, err := c.userInfo(ctx)
	if err != nil {
		return core.PlatformProfile{}, err
	}
	return core.PlatformProfile{
		ID:            user.OpenID,
		DisplayName:   user.DisplayName,
		AvatarURL:     user.AvatarURL,
		FollowerCount: user.FollowerCount,
		Raw:           raw,
	}, nil
}

func (c *Client) VerifyAccountOwnership(ctx context.Context, claimedAccountID string) (bool, error) {
	user, _, err := c.userInfo(ctx)
	if err != nil {
		return false, err
	}
	return user.OpenID != "" && user.OpenID == strings.TrimSpace(claimedAccountID), nil
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

func (c *Client) VerifyComment(ctx context.Context, _ string) (bool, error) {
	return c.CapabilityGap(ctx, string(core.EngagementComment))
}

func (c *Client) VerifyVideoEngagement(ctx context.Context, _ string) (bool, error) {
	return c.CapabilityGap(ctx, string(core.EngagementVideoEngagement))
}

// GetUserVideos lists the user's own videos. maxCount is clamped to 1..20 and
// a zero cursor starts from the newest video.
func (c *Client) GetUserVideos(ctx context.Context, maxCount int, cursor int64) (VideoPage, error) {
	body := map[string]any{"max_count": clamp(maxCount, MaxVideoPage)}
	if cursor > 0 {
		body["cursor"] = cursor
	}
	var payload struct {
		Data struct {
			Videos  []Video `json:"videos"`
			Cursor  int64   `json:"cursor"`
			HasMore bool    `json:"has_more"`
		} `json:"data"`
		Error apiError `json:"error"`
	}
	if err := c.PostJSON(ctx, "/video/list/", map[string]string{"fields": videoFields}, body, &payload); err != nil {
		return VideoPage{}, err
	}
	if err := checkAPIError(payload.Error, "/video/list/"); err != nil {
		return VideoPage{}, err
	}
	return VideoPage{
		Videos:  payload.Data.Videos,
		Cursor:  payload.Data.Cursor,
		HasMore: payload.Data.HasMore,
	}, nil
}

func (c *Client) GetVideoInfo(ctx context.Context, videoIDs []string) ([]Video, error) {
	ids := make([]string, 0, len(videoIDs))
	for _, id := range videoIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return nil, core.ValidationError("at least one video id is required", "video_ids")
	}
	if len(ids) > MaxVideoQuery {
		return nil, core.ValidationError("at most 20 video ids can be queried at once", "video_ids")
	}
	body := map[string]any{"filters": map[string]any{"video_ids": ids}}
	var payload struct {
		Data struct {
			Videos []Video `json:"videos"`
		} `json:"data"`
		Error apiError `json:"error"`
	}
	if err := c.PostJSON(ctx, "/video/query/", map[string]string{"fields": videoFields}, body, &payload); err != nil {
		return nil, err
	}
	if err := checkAPIError(payload.Error, "/video/query/"); err != nil {
		return nil, err
	}
	return payload.Data.Videos, nil
}

func (c *Client) GetFollowerCount(ctx context.Context) (int64, error) {
	user, _, err := c.userInfo(ctx)
	if err != nil {
		return 0, err
	}
	return user.FollowerCount, nil
}

func (c *Client) userInfo(ctx context.Context) (User, map[string]any, error) {
	var payload struct {
		Data struct {
			User User `json:"user"`
		} `json:"data"`
		Error apiError `json:"error"`
	}
	raw, err := c.FetchJSON(ctx, http.MethodPost, "/user/info/", map[string]string{"fields": userFields}, nil, &payload)
	if err != nil {
		return User{}, nil, err
	}
	if err := checkAPIError(payload.Error, "/user/info/"); err != nil {
		return User{}, nil, err
	}
	return payload.Data.User, raw, nil
}

// checkAPIError surfaces the error envelope TikTok returns alongside 200s.
func checkAPIError(apiErr apiError, path string) error {
	code := strings.TrimSpace(apiErr.Code)
	if code == "" || strings.EqualFold(code, "ok") {
		return nil
	}
	return core.TransportFailureError(nil, "providers: tiktok api error: "+code, map[string]any{
		"platform": core.PlatformTikTok.String(),
		"path":     path,
		"code":     code,
		"message":  apiErr.Message,
		"log_id":   apiErr.LogID,
	})
}

func clamp(value int, limit int) int {
	if value <= 0 || value > limit {
		return limit
	}
	return value
}

var _ core.PlatformClient = (*Client)(nil)
