package facebook

import (
	"context"
	"testing"

	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/providers"
	"github.com/goliatone/go-social-links/providers/devkit"
)

var meResponse = devkit.OK(map[string]any{
	"id":         "fb-1",
	"name":       "Jane Doe",
	"short_name": "Jane",
	"picture":    map[string]any{"data": map[string]any{"url": "https://cdn.test/jane.png"}},
})

func newTestClient(t *testing.T, scripts ...devkit.TransportScript) (*Client, *devkit.FakeTransportAdapter) {
	t.Helper()
	adapter := devkit.NewFakeTransportAdapter(scripts...)
	client, err := New(providers.ClientConfig{
		AccessToken: "fb-token",
		App:         core.AppCredentials{ClientID: "app", ClientSecret: "app-secret"},
		Transport:   adapter,
	})
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
	if profile.ID != "fb-1" || profile.Username != "Jane" || profile.DisplayName != "Jane Doe" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if profile.AvatarURL != "https://cdn.test/jane.png" || profile.Raw["id"] != "fb-1" {
		t.Fatalf("unexpected avatar or raw payload %+v", profile)
	}

	req, _ := adapter.LastRequest()
	if devkit.PathOf(req) != "/v23.0/me" || req.Query["fields"] != profileFields {
		t.Fatalf("unexpected request %s %#v", req.URL, req.Query)
	}
	if req.Query["appsecret_proof"] != providers.AppSecretProof("fb-token", "app-secret") {
		t.Fatalf("expected appsecret_proof on graph call")
	}

	if _, err := client.GetUserProfile(context.Background(), "page-9"); err != nil {
		t.Fatalf("get profile by id: %v", err)
	}
	req, _ = adapter.LastRequest()
	if devkit.PathOf(req) != "/v23.0/page-9" {
		t.Fatalf("expected profile by id path, got %s", devkit.PathOf(req))
	}
}

func TestClient_VerifyAccountOwnership(t *testing.T) {
	client, _ := newTestClient(t, meResponse)
	if ok, err := client.VerifyAccountOwnership(context.Background(), "fb-1"); err != nil || !ok {
		t.Fatalf("expected ownership match, got %v %v", ok, err)
	}
	if ok, err := client.VerifyAccountOwnership(context.Background(), "fb-2"); err != nil || ok {
		t.Fatalf("expected ownership mismatch, got %v %v", ok, err)
	}
}

func TestClient_VerifyFollowChecksPageLikes(t *testing.T) {
	client, adapter := newTestClient(t,
		devkit.OK(map[string]any{"data": []any{map[string]any{"id": "page-1", "name": "Brand"}}}),
		devkit.OK(map[string]any{"data": []any{}}),
	)
	if ok, err := client.VerifyFollow(context.Background(), "page-1"); err != nil || !ok {
		t.Fatalf("expected follow, got %v %v", ok, err)
	}
	if devkit.PathOf(adapter.Requests()[0]) != "/v23.0/me/likes/page-1" {
		t.Fatalf("unexpected follow path %s", devkit.PathOf(adapter.Requests()[0]))
	}
	if ok, err := client.VerifyFollow(context.Background(), "page-2"); err != nil || ok {
		t.Fatalf("expected no follow, got %v %v", ok, err)
	}
}

func TestClient_VerifyLikeAndComment(t *testing.T) {
	client, _ := newTestClient(t,
		meResponse,
		devkit.OK(map[string]any{"data": []any{map[string]any{"id": "other"}, map[string]any{"id": "fb-1"}}}),
		devkit.OK(map[string]any{"data": []any{map[string]any{"id": "c1", "from": map[string]any{"id": "other"}}}}),
	)
	if ok, err := client.VerifyLike(context.Background(), "post-1"); err != nil || !ok {
		t.Fatalf("expected like, got %v %v", ok, err)
	}
	if ok, err := client.VerifyComment(context.Background(), "post-1"); err != nil || ok {
		t.Fatalf("expected no comment from me, got %v %v", ok, err)
	}
}

func TestClient_VerifyVideoEngagementFallsBackToComment(t *testing.T) {
	client, adapter := newTestClient(t,
		meResponse,
		devkit.OK(map[string]any{"data": []any{}}),
		devkit.OK(map[string]any{"data": []any{map[string]any{"id": "c1", "from": map[string]any{"id": "fb-1"}}}}),
	)
	if ok, err := client.VerifyVideoEngagement(context.Background(), "video-1"); err != nil || !ok {
		t.Fatalf("expected engagement through comment, got %v %v", ok, err)
	}
	requests := adapter.Requests()
	if len(requests) != 3 || devkit.PathOf(requests[2]) != "/v23.0/video-1/comments" {
		t.Fatalf("expected profile, likes and comments calls, got %d", len(requests))
	}
}

func TestClient_GapsAndFailures(t *testing.T) {
	client, _ := newTestClient(t, devkit.JSON(401, map[string]any{"error": map[string]any{"message": "expired"}}))
	if ok, err := client.VerifySubscription(context.Background(), "x"); ok || err != nil {
		t.Fatalf("expected subscription gap, got %v %v", ok, err)
	}
	if _, err := client.VerifyAccountOwnership(context.Background(), "fb-1"); !core.IsTransportFailure(err) {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if _, err := client.VerifyLike(context.Background(), " "); err == nil {
		t.Fatalf("expected blank content id to fail")
	}
}

func TestClient_Conformance(t *testing.T) {
	client, _ := newTestClient(t, meResponse)
	if err := devkit.ValidatePlatformClientConformance(context.Background(), client); err != nil {
		t.Fatalf("conformance: %v", err)
	}
}
