package twitter

import (
	"context"
	"testing"

	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/providers"
	"github.com/goliatone/go-social-links/providers/devkit"
)

var meResponse = devkit.OK(map[string]any{"data": map[string]any{
	"id":                "tw-1",
	"name":              "Jane Doe",
	"username":          "jane",
	"profile_image_url": "https://pbs.test/jane.jpg",
	"public_metrics":    map[string]any{"followers_count": 321},
}})

func newTestClient(t *testing.T, scripts ...devkit.TransportScript) (*Client, *devkit.FakeTransportAdapter) {
	t.Helper()
	adapter := devkit.NewFakeTransportAdapter(scripts...)
	client, err := New(providers.ClientConfig{AccessToken: "tw-token", Transport: adapter})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, adapter
}

func TestClient_GetUserProfile(t *testing.T) {
	client, adapter := newTestClient(t, meResponse)
	profile, err := client.GetUserProfile(context.Background(), "")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.ID != "tw-1" || profile.Username != "jane" || profile.DisplayName != "Jane Doe" || profile.FollowerCount != 321 {
		t.Fatalf("unexpected profile %+v", profile)
	}
	req, _ := adapter.LastRequest()
	if req.URL != "https://api.twitter.com/2/users/me" || req.Query["user.fields"] != userFields {
		t.Fatalf("unexpected request %s %#v", req.URL, req.Query)
	}
	if req.Headers["Authorization"] != "Bearer tw-token" {
		t.Fatalf("expected bearer token")
	}

	if _, err := client.GetUserProfile(context.Background(), "99"); err != nil {
		t.Fatalf("get profile by id: %v", err)
	}
	req, _ = adapter.LastRequest()
	if devkit.PathOf(req) != "/2/users/99" {
		t.Fatalf("unexpected path %s", devkit.PathOf(req))
	}
}

func TestClient_VerifyFollowUsesFollowingList(t *testing.T) {
	client, adapter := newTestClient(t,
		meResponse,
		devkit.OK(map[string]any{"data": []any{map[string]any{"id": "brand-1"}}}),
	)
	if ok, err := client.VerifyFollow(context.Background(), "brand-1"); err != nil || !ok {
		t.Fatalf("expected follow, got %v %v", ok, err)
	}
	req := adapter.Requests()[1]
	if devkit.PathOf(req) != "/2/users/tw-1/following" || req.Query["max_results"] != "1000" {
		t.Fatalf("unexpected following request %s %#v", req.URL, req.Query)
	}
	if ok, err := client.VerifyFollow(context.Background(), "brand-2"); err != nil || ok {
		t.Fatalf("expected no follow, got %v %v", ok, err)
	}
}

func TestClient_VerifyLikeAndVideoEngagement(t *testing.T) {
	client, adapter := newTestClient(t,
		meResponse,
		devkit.OK(map[string]any{"data": []any{map[string]any{"id": "t-1"}, map[string]any{"id": "t-2"}}}),
	)
	if ok, err := client.VerifyLike(context.Background(), "t-2"); err != nil || !ok {
		t.Fatalf("expected like, got %v %v", ok, err)
	}
	if ok, err := client.VerifyVideoEngagement(context.Background(), "t-3"); err != nil || ok {
		t.Fatalf("expected no engagement, got %v %v", ok, err)
	}
	if devkit.PathOf(adapter.Requests()[1]) != "/2/users/tw-1/liked_tweets" {
		t.Fatalf("unexpected liked tweets path")
	}
}

func TestClient_VerifyCommentSearchesConversation(t *testing.T) {
	client, adapter := newTestClient(t,
		meResponse,
		devkit.OK(map[string]any{"data": []any{map[string]any{"id": "reply-1"}}, "meta": map[string]any{"result_count": 1}}),
		devkit.OK(map[string]any{"meta": map[string]any{"result_count": 0}}),
	)
	if ok, err := client.VerifyComment(context.Background(), "t-1"); err != nil || !ok {
		t.Fatalf("expected comment, got %v %v", ok, err)
	}
	req := adapter.Requests()[1]
	if req.Query["query"] != "conversation_id:t-1 from:jane" {
		t.Fatalf("unexpected search query %q", req.Query["query"])
	}
	if ok, err := client.VerifyComment(context.Background(), "t-2"); err != nil || ok {
		t.Fatalf("expected no comment, got %v %v", ok, err)
	}
}

func TestClient_GetFollowerCountAndFailures(t *testing.T) {
	client, _ := newTestClient(t, meResponse, devkit.JSON(429, `{"title":"Too Many Requests"}`))
	count, err := client.GetFollowerCount(context.Background())
	if err != nil || count != 321 {
		t.Fatalf("expected follower count 321, got %d %v", count, err)
	}
	if _, err := client.GetFollowerCount(context.Background()); !core.IsTransportFailure(err) {
		t.Fatalf("expected rate limit as transport failure, got %v", err)
	}
	if ok, err := client.VerifySubscription(context.Background(), "x"); ok || err != nil {
		t.Fatalf("expected subscription gap, got %v %v", ok, err)
	}
	if _, err := client.VerifyLike(context.Background(), ""); !core.IsValidation(err) {
		t.Fatalf("expected blank tweet id validation, got %v", err)
	}
}

func TestClient_Conformance(t *testing.T) {
	client, _ := newTestClient(t, meResponse)
	if err := devkit.ValidatePlatformClientConformance(context.Background(), client); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}
