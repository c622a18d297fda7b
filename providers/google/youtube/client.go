package youtube

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/providers"
)

const (
	DefaultBaseURL    = "https://www.googleapis.com/youtube/v3"
	MaxResultsPerCall = 50

	channelParts = "snippet,statistics,contentDetails,brandingSettings"
)

// Client wraps the YouTube Data API v3. A 404 from subscription or rating
// lookups is a negative answer rather than a failure.
type Client struct {
	*providers.APIClient
}

func New(cfg providers.ClientConfig) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	base, err := providers.NewAPIClient(providers.APIClientConfig{
		Platform:    core.PlatformYouTube,
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

type thumbnail struct {
	URL string `json:"url"`
}

type Channel struct {
	ID      string `json:"id"`
	Snippet struct {
		Title       string               `json:"title"`
		Description string               `json:"description"`
		CustomURL   string               `json:"customUrl"`
		Thumbnails  map[string]thumbnail `json:"thumbnails"`
	} `json:"snippet"`
	Statistics struct {
		SubscriberCount string `json:"subscriberCount"`
		VideoCount      string `json:"videoCount"`
		ViewCount       string `json:"viewCount"`
	} `json:"statistics"`
	ContentDetails struct {
		RelatedPlaylists struct {
			Uploads string `json:"uploads"`
		} `json:"relatedPlaylists"`
	} `json:"contentDetails"`
}

// SubscriberCount parses the string encoded statistic. Hidden counts read
// as zero.
func (ch Channel) SubscriberCount() int64 {
	count, err := strconv.ParseInt(strings.TrimSpace(ch.Statistics.SubscriberCount), 10, 64)
	if err != nil {
		return 0
	}
	return count
}

type Video struct {
	ID      string `json:"id"`
	Snippet struct {
		Title        string               `json:"title"`
		Description  string               `json:"description"`
		ChannelID    string               `json:"channelId"`
		PublishedAt  string               `json:"publishedAt"`
		Thumbnails   map[string]thumbnail `json:"thumbnails"`
		ChannelTitle string               `json:"channelTitle"`
	} `json:"snippet"`
	Statistics struct {
		ViewCount    string `json:"viewCount"`
		LikeCount    string `json:"likeCount"`
		CommentCount string `json:"commentCount"`
	} `json:"statistics"`
	ContentDetails struct {
		Duration string `json:"duration"`
		VideoID  string `json:"videoId"`
	} `json:"contentDetails"`
}

type VideoPage struct {
	Videos        []Video
	NextPageToken string
	TotalResults  int64
}

type channelList struct {
	Items []Channel `json:"items"`
}

func (c *Client) GetUserProfile(ctx context.Context, remoteID string) (core.PlatformProfile, error) {
	query := map[string]string{"part": channelParts}
	if trimmed := strings.TrimSpace(remoteID); trimmed != "" {
		query["id"] = trimmed
	} else {
		query["mine"] = "true"
	}
	var payload channelList
	raw, err := c.FetchJSON(ctx, http.MethodGet, "/channels", query, nil, &payload)
	if err != nil {
		return core.PlatformProfile{}, err
	}
	if len(payload.Items) == 0 {
		return core.PlatformProfile{}, core.NotFoundError("YouTube channel not found", map[string]any{
			"platform": core.PlatformYouTube.String(),
		})
	}
	channel := payload.Items[0]
	return core.PlatformProfile{
		ID:            channel.ID,
		Username:      strings.TrimPrefix(strings.TrimSpace(channel.Snippet.CustomURL), "@"),
		DisplayName:   channel.Snippet.Title,
		AvatarURL:     channel.Snippet.Thumbnails["default"].URL,
		FollowerCount: channel.SubscriberCount(),
		Raw:           raw,
	}, nil
}

// VerifyAccountOwnership compares the token's channel id. A token with no
// channel never owns one.
func (c *Client) VerifyAccountOwnership(ctx context.Context, claimedAccountID string) (bool, error) {
	channel, found, err := c.mine(ctx)
	if err != nil || !found {
		return false, err
	}
	return channel.ID != "" && channel.ID == strings.TrimSpace(claimedAccountID), nil
}

func (c *Client) VerifyFollow(ctx context.Context, _ string) (bool, error) {
	return c.CapabilityGap(ctx, string(core.EngagementFollow))
}

func (c *Client) VerifySubscription(ctx context.Context, targetChannelID string) (bool, error) {
	target := strings.TrimSpace(targetChannelID)
	if target == "" {
		return false, core.ValidationError("target channel id is required", "target_id")
	}
	var payload struct {
		Items []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	err := c.GetJSON(ctx, "/subscriptions", map[string]string{
		"part":         "snippet",
		"forChannelId": target,
		"mine":         "true",
	}, &payload)
	if providers.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(payload.Items) > 0, nil
}

// VerifyLike scans the most recent videos the user rated as liked.
func (c *Client) VerifyLike(ctx context.Context, contentID string) (bool, error) {
	videoID := strings.TrimSpace(contentID)
	if videoID == "" {
		return false, core.ValidationError("video id is required", "target_id")
	}
	var payload struct {
		Items []Video `json:"items"`
	}
	err := c.GetJSON(ctx, "/videos", map[string]string{
		"part":       "snippet",
		"myRating":   "like",
		"maxResults": strconv.Itoa(MaxResultsPerCall),
	}, &payload)
	if providers.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, video := range payload.Items {
		if video.ID == videoID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) VerifyComment(ctx context.Context, _ string) (bool, error) {
	return c.CapabilityGap(ctx, string(core.EngagementComment))
}

func (c *Client) VerifyVideoEngagement(ctx context.Context, videoID string) (bool, error) {
	return c.VerifyLike(ctx, videoID)
}

// GetChannelVideos pages through the uploads playlist of the token's
// channel. A channel without uploads yields an empty page.
func (c *Client) GetChannelVideos(ctx context.Context, maxResults int, pageToken string) (VideoPage, error) {
	channel, found, err := c.mine(ctx)
	if err != nil {
		return VideoPage{}, err
	}
	uploads := strings.TrimSpace(channel.ContentDetails.RelatedPlaylists.Uploads)
	if !found || uploads == "" {
		c.Logger().Warn("no uploads playlist found", "platform", core.PlatformYouTube.String())
		return VideoPage{Videos: []Video{}}, nil
	}

	query := map[string]string{
		"part":       "snippet,contentDetails",
		"playlistId": uploads,
		"maxResults": strconv.Itoa(clamp(maxResults, MaxResultsPerCall)),
	}
	if token := strings.TrimSpace(pageToken); token != "" {
		query["pageToken"] = token
	}
	var payload struct {
		Items         []Video `json:"items"`
		NextPageToken string  `json:"nextPageToken"`
		PageInfo      struct {
			TotalResults int64 `json:"totalResults"`
		} `json:"pageInfo"`
	}
	if err := c.GetJSON(ctx, "/playlistItems", query, &payload); err != nil {
		return VideoPage{}, err
	}
	return VideoPage{
		Videos:        payload.Items,
		NextPageToken: payload.NextPageToken,
		TotalResults:  payload.PageInfo.TotalResults,
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
	if len(ids) > MaxResultsPerCall {
		return nil, core.ValidationError("at most 50 video ids can be queried at once", "video_ids")
	}
	var payload struct {
		Items []Video `json:"items"`
	}
	err := c.GetJSON(ctx, "/videos", map[string]string{
		"part": "snippet,statistics,contentDetails",
		"id":   strings.Join(ids, ","),
	}, &payload)
	if err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) GetSubscriberCount(ctx context.Context) (int64, error) {
	channel, found, err := c.mine(ctx)
	if err != nil || !found {
		return 0, err
	}
	return channel.SubscriberCount(), nil
}

// GetChannelByUsername resolves a channel handle, with or without the
// leading @.
func (c *Client) GetChannelByUsername(ctx context.Context, handle string) (Channel, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if clean == "" {
		return Channel{}, core.ValidationError("channel handle is required", "handle")
	}
	var payload channelList
	err := c.GetJSON(ctx, "/channels", map[string]string{
		"part":      "snippet,statistics,contentDetails",
		"forHandle": clean,
	}, &payload)
	if err != nil {
		return Channel{}, err
	}
	if len(payload.Items) == 0 {
		return Channel{}, core.NotFoundError("YouTube channel @"+clean+" not found", map[string]any{
			"platform": core.PlatformYouTube.String(),
			"handle":   clean,
		})
	}
	return payload.Items[0], nil
}

func (c *Client) mine(ctx context.Context) (Channel, bool, error) {
	var payload channelList
	err := c.GetJSON(ctx, "/channels", map[string]string{"part": channelParts, "mine": "true"}, &payload)
	if err != nil {
		return Channel{}, false, err
	}
	if len(payload.Items) == 0 {
		return Channel{}, false, nil
	}
	return payload.Items[0], true, nil
}

func clamp(value int, limit int) int {
	if value <= 0 || value > limit {
		return limit
	}
	return value
}

var _ core.PlatformClient = (*Client)(nil)
