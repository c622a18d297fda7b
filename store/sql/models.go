package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-social-links/core"
	"github.com/uptrace/bun"
)

type linkRecord struct {
	bun.BaseModel `bun:"table:social_account_links,alias:sal"`

	ID                string     `bun:"id,pk"`
	UserID            string     `bun:"user_id,notnull"`
	Platform          string     `bun:"platform,notnull"`
	PlatformAccountID string     `bun:"platform_account_id,notnull"`
	AccessToken       string     `bun:"access_token,notnull"`
	RefreshToken      string     `bun:"refresh_token,notnull"`
	ExpiresAt         *time.Time `bun:"expires_at,nullzero"`
	Scope             string     `bun:"scope,notnull"`
	Username          string     `bun:"username,notnull"`
	DisplayName       string     `bun:"display_name,notnull"`
	IsVerified        bool       `bun:"is_verified,notnull"`
	LastVerifiedAt    *time.Time `bun:"last_verified_at,nullzero"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newLinkRecord(link core.SocialAccountLink, now time.Time) *linkRecord {
	createdAt := link.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := link.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return &linkRecord{
		ID:                strings.TrimSpace(link.ID),
		UserID:            strings.TrimSpace(link.UserID),
		Platform:          strings.TrimSpace(link.Platform.String()),
		PlatformAccountID: strings.TrimSpace(link.PlatformAccountID),
		AccessToken:       link.AccessToken,
		RefreshToken:      link.RefreshToken,
		ExpiresAt:         utcPointer(link.ExpiresAt),
		Scope:             link.Scope,
		Username:          link.Username,
		DisplayName:       link.DisplayName,
		IsVerified:        link.IsVerified,
		LastVerifiedAt:    utcPointer(link.LastVerifiedAt),
		CreatedAt:         createdAt.UTC(),
		UpdatedAt:         updatedAt.UTC(),
	}
}

func (r *linkRecord) toDomain() core.SocialAccountLink {
	if r == nil {
		return core.SocialAccountLink{}
	}
	return core.SocialAccountLink{
		ID:                r.ID,
		UserID:            r.UserID,
		Platform:          core.Platform(r.Platform),
		PlatformAccountID: r.PlatformAccountID,
		AccessToken:       r.AccessToken,
		RefreshToken:      r.RefreshToken,
		ExpiresAt:         utcPointer(r.ExpiresAt),
		Scope:             r.Scope,
		Username:          r.Username,
		DisplayName:       r.DisplayName,
		IsVerified:        r.IsVerified,
		LastVerifiedAt:    utcPointer(r.LastVerifiedAt),
		CreatedAt:         r.CreatedAt.UTC(),
		UpdatedAt:         r.UpdatedAt.UTC(),
	}
}

func toDomainLinks(records []*linkRecord) []core.SocialAccountLink {
	out := make([]core.SocialAccountLink, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		out = append(out, record.toDomain())
	}
	return out
}

func utcPointer(in *time.Time) *time.Time {
	if in == nil || in.IsZero() {
		return nil
	}
	value := in.UTC()
	return &value
}
