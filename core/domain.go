package core

import (
	"fmt"
	"strings"
	"time"
)

type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
)

// Platforms returns the supported platforms in their canonical order.
func Platforms() []Platform {
	return []Platform{
		PlatformFacebook,
		PlatformInstagram,
		PlatformTwitter,
		PlatformTikTok,
		PlatformYouTube,
	}
}

func (p Platform) String() string {
	return string(p)
}

func (p Platform) Valid() bool {
	switch p {
	case PlatformFacebook, PlatformInstagram, PlatformTwitter, PlatformTikTok, PlatformYouTube:
		return true
	default:
		return false
	}
}

// ParsePlatform matches a platform name case-insensitively.
func ParsePlatform(name string) (Platform, error) {
	candidate := Platform(strings.ToLower(strings.TrimSpace(name)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPlatform, name)
	}
	return candidate, nil
}

func validPlatformNames() string {
	names := make([]string, 0, len(Platforms()))
	for _, platform := range Platforms() {
		names = append(names, platform.String())
	}
	return strings.Join(names, ", ")
}

// SocialAccountLink associates a local user with a remote social identity.
// AccessToken and RefreshToken always hold ciphertext.
type SocialAccountLink struct {
	ID                string
	UserID            string
	Platform          Platform
	PlatformAccountID string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         *time.Time
	Scope             string
	Username          string
	DisplayName       string
	IsVerified        bool
	LastVerifiedAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone returns a detached copy with no shared pointers.
func (l SocialAccountLink) Clone() SocialAccountLink {
	out := l
	out.ExpiresAt = cloneTime(l.ExpiresAt)
	out.LastVerifiedAt = cloneTime(l.LastVerifiedAt)
	return out
}

func (l SocialAccountLink) HasRefreshToken() bool {
	return strings.TrimSpace(l.RefreshToken) != ""
}

type LinkAccountInput struct {
	UserID            string
	Platform          Platform
	PlatformAccountID string
	AccessToken       string
	RefreshToken      string
	ExpiresAt         *time.Time
	Scope             string
	Username          string
	DisplayName       string
}

func (in LinkAccountInput) Validate() error {
	if strings.TrimSpace(in.UserID) == "" {
		return fmt.Errorf("core: user id is required")
	}
	if !in.Platform.Valid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedPlatform, in.Platform)
	}
	if strings.TrimSpace(in.PlatformAccountID) == "" {
		return fmt.Errorf("core: platform account id is required")
	}
	if strings.TrimSpace(in.AccessToken) == "" {
		return fmt.Errorf("core: access token is required")
	}
	return nil
}

type UnlinkRequest struct {
	LinkID       string
	UserID       string
	ClientID     string
	ClientSecret string
	Revoke       bool
}

// UnlinkResult reports the advisory revoke outcome. Deletion itself either
// succeeds or the call returns an error.
type UnlinkResult struct {
	Revoked   bool
	RevokeErr error
}

type AccountFilter struct {
	Platform     Platform
	VerifiedOnly bool
}

type PlatformProfile struct {
	ID            string
	Username      string
	DisplayName   string
	AvatarURL     string
	FollowerCount int64
	Raw           map[string]any
}

type TokenRefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Scope        string
}

type RefreshAllRequest struct {
	ClientID          string
	ClientSecret      string
	HoursBeforeExpiry int
}

type RefreshFailure struct {
	LinkID   string
	Platform Platform
	Err      error
}

type RefreshStats struct {
	Success  int
	Failed   int
	Skipped  int
	Failures []RefreshFailure
}

func (s RefreshStats) Total() int {
	return s.Success + s.Failed + s.Skipped
}

type EngagementKind string

const (
	EngagementFollow          EngagementKind = "follow"
	EngagementSubscription    EngagementKind = "subscription"
	EngagementLike            EngagementKind = "like"
	EngagementComment         EngagementKind = "comment"
	EngagementVideoEngagement EngagementKind = "video_engagement"
)

type EngagementCheck struct {
	LinkID   string
	UserID   string
	Kind     EngagementKind
	TargetID string
}

// PlatformCapabilities describes what a platform's public API allows.
type PlatformCapabilities struct {
	Platform             Platform
	SupportsRefreshToken bool
	SupportsRevoke       bool
	SupportsProfileByID  bool
	Follow               bool
	Subscription         bool
	Like                 bool
	Comment              bool
	VideoEngagement      bool
}

func (c PlatformCapabilities) Supports(kind EngagementKind) bool {
	switch kind {
	case EngagementFollow:
		return c.Follow
	case EngagementSubscription:
		return c.Subscription
	case EngagementLike:
		return c.Like
	case EngagementComment:
		return c.Comment
	case EngagementVideoEngagement:
		return c.VideoEngagement
	default:
		return false
	}
}

func cloneTime(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	value := in.UTC()
	return &value
}
