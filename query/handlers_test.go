package query

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-social-links/core"
)

func TestGetUserAccountsQuery_QueryDelegates(t *testing.T) {
	called := false
	reader := stubLinkReader{
		listFn: func(_ context.Context, userID string, filter core.AccountFilter) ([]core.SocialAccountLink, error) {
			called = true
			if userID != "usr_1" || filter.Platform != core.PlatformYouTube || !filter.VerifiedOnly {
				t.Fatalf("unexpected list request: %q %#v", userID, filter)
			}
			return []core.SocialAccountLink{{ID: "link_1"}}, nil
		},
	}

	links, err := NewGetUserAccountsQuery(reader).Query(context.Background(), GetUserAccountsMessage{
		UserID: "usr_1",
		Filter: core.AccountFilter{Platform: core.PlatformYouTube, VerifiedOnly: true},
	})
	if err != nil {
		t.Fatalf("query user accounts: %v", err)
	}
	if !called || len(links) != 1 || links[0].ID != "link_1" {
		t.Fatalf("unexpected result %#v called=%v", links, called)
	}
}

func TestGetAccountQuery_PropagatesForbidden(t *testing.T) {
	reader := stubLinkReader{
		getFn: func(_ context.Context, userID string, linkID string) (core.SocialAccountLink, error) {
			return core.SocialAccountLink{}, core.ForbiddenError("Not authorized to access this account", nil)
		},
	}
	_, err := NewGetAccountQuery(reader).Query(context.Background(), GetAccountMessage{UserID: "usr_2", LinkID: "link_1"})
	if !core.IsForbidden(err) {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestCheckEngagementQuery_QueryDelegates(t *testing.T) {
	reader := stubLinkReader{
		checkFn: func(_ context.Context, check core.EngagementCheck) (bool, error) {
			if check.Kind != core.EngagementLike || check.TargetID != "tweet_1" {
				t.Fatalf("unexpected check %#v", check)
			}
			return true, nil
		},
	}
	passed, err := NewCheckEngagementQuery(reader).Query(context.Background(), CheckEngagementMessage{Check: core.EngagementCheck{
		LinkID:   "link_1",
		UserID:   "usr_1",
		Kind:     core.EngagementLike,
		TargetID: "tweet_1",
	}})
	if err != nil || !passed {
		t.Fatalf("expected passing check, got %v err=%v", passed, err)
	}
}

func TestGetPlatformCapabilitiesQuery(t *testing.T) {
	reader := stubCapabilityReader{
		core.PlatformTwitter: {Platform: core.PlatformTwitter, Like: true},
	}
	q := NewGetPlatformCapabilitiesQuery(reader)

	caps, err := q.Query(context.Background(), GetPlatformCapabilitiesMessage{Platform: core.PlatformTwitter})
	if err != nil || !caps.Like {
		t.Fatalf("expected twitter capabilities, got %#v err=%v", caps, err)
	}
	if _, err := q.Query(context.Background(), GetPlatformCapabilitiesMessage{Platform: core.PlatformTikTok}); !errors.Is(err, core.ErrUnsupportedPlatform) {
		t.Fatalf("expected unsupported platform for unregistered client, got %v", err)
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := []struct {
		name string
		msg  interface{ Validate() error }
		ok   bool
	}{
		{"accounts valid", GetUserAccountsMessage{UserID: "u"}, true},
		{"accounts bad platform", GetUserAccountsMessage{UserID: "u", Filter: core.AccountFilter{Platform: "myspace"}}, false},
		{"account missing link", GetAccountMessage{UserID: "u"}, false},
		{"engagement unknown kind", CheckEngagementMessage{Check: core.EngagementCheck{LinkID: "l", UserID: "u", Kind: "share", TargetID: "t"}}, false},
		{"engagement missing target", CheckEngagementMessage{Check: core.EngagementCheck{LinkID: "l", UserID: "u", Kind: core.EngagementFollow}}, false},
		{"engagement valid", CheckEngagementMessage{Check: core.EngagementCheck{LinkID: "l", UserID: "u", Kind: core.EngagementComment, TargetID: "t"}}, true},
		{"capabilities invalid", GetPlatformCapabilitiesMessage{}, false},
	}
	for _, tc := range cases {
		err := tc.msg.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

type stubLinkReader struct {
	listFn  func(ctx context.Context, userID string, filter core.AccountFilter) ([]core.SocialAccountLink, error)
	getFn   func(ctx context.Context, userID string, linkID string) (core.SocialAccountLink, error)
	checkFn func(ctx context.Context, check core.EngagementCheck) (bool, error)
}

func (s stubLinkReader) GetUserAccounts(ctx context.Context, userID string, filter core.AccountFilter) ([]core.SocialAccountLink, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID, filter)
}

func (s stubLinkReader) GetAccount(ctx context.Context, userID string, linkID string) (core.SocialAccountLink, error) {
	if s.getFn == nil {
		return core.SocialAccountLink{}, nil
	}
	return s.getFn(ctx, userID, linkID)
}

func (s stubLinkReader) CheckEngagement(ctx context.Context, check core.EngagementCheck) (bool, error) {
	if s.checkFn == nil {
		return false, nil
	}
	return s.checkFn(ctx, check)
}

type stubCapabilityReader map[core.Platform]core.PlatformCapabilities

func (s stubCapabilityReader) Capabilities(platform core.Platform) (core.PlatformCapabilities, bool) {
	caps, ok := s[platform]
	return caps, ok
}
