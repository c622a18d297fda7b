package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

type schedulerFixture struct {
	scheduler *RefreshScheduler
	store     *memoryLinkStore
	factory   *fakeClientFactory
	exchange  *fakeOAuthExchange
	logger    *captureLogger
}

func newSchedulerFixture(t *testing.T, cfg Config) *schedulerFixture {
	t.Helper()
	fx := &schedulerFixture{
		store:    newMemoryLinkStore(),
		exchange: newFakeOAuthExchange(),
		logger:   newCaptureLogger(),
	}
	fx.factory = newFakeClientFactory(&fakePlatformClient{})
	scheduler, err := NewRefreshScheduler(cfg,
		WithLinkStore(fx.store),
		WithSecretProvider(testSecretProvider{}),
		WithPlatformClientFactory(fx.factory),
		WithOAuthExchange(fx.exchange),
		WithLoggerProvider(stubLoggerProvider{logger: fx.logger}),
		WithLogger(fx.logger),
		WithClock(fixedClock),
	)
	if err != nil {
		t.Fatalf("new refresh scheduler: %v", err)
	}
	fx.scheduler = scheduler
	return fx
}

func (fx *schedulerFixture) seedExpiring(t *testing.T, platform Platform, refresh string, expiresIn time.Duration) SocialAccountLink {
	t.Helper()
	link := SocialAccountLink{
		UserID:            "usr_" + refresh,
		Platform:          platform,
		PlatformAccountID: "acct_" + refresh,
		AccessToken:       sealForTest(t, "old-access-"+refresh),
		ExpiresAt:         timePtr(testNow.Add(expiresIn)),
	}
	if refresh != "" {
		link.RefreshToken = sealForTest(t, refresh)
	}
	return fx.store.seed(link)
}

func TestRefreshAllTokens_CountsSuccessFailedSkipped(t *testing.T) {
	fx := newSchedulerFixture(t, DefaultConfig())
	newExpiry := testNow.Add(2 * time.Hour)

	ok := fx.seedExpiring(t, PlatformTwitter, "rt-ok", time.Hour)
	failing := fx.seedExpiring(t, PlatformYouTube, "rt-fail", time.Hour)
	skipped := fx.seedExpiring(t, PlatformFacebook, "rt-fb", time.Hour)
	fx.seedExpiring(t, PlatformTikTok, "rt-later", 72*time.Hour)

	fx.exchange.results["rt-ok"] = TokenRefreshResult{AccessToken: "new-access", RefreshToken: "rt-rotated", ExpiresAt: &newExpiry}
	fx.exchange.errs["rt-fail"] = errors.New("invalid_grant")

	stats, err := fx.scheduler.RefreshAllTokens(context.Background(), RefreshAllRequest{ClientID: "client", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if stats.Success != 1 || stats.Failed != 1 || stats.Skipped != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(stats.Failures) != 1 || stats.Failures[0].LinkID != failing.ID {
		t.Fatalf("expected failure entry for %s, got %+v", failing.ID, stats.Failures)
	}

	stored, _ := fx.store.snapshot(ok.ID)
	if got := openForTest(t, stored.AccessToken); got != "new-access" {
		t.Fatalf("expected refreshed access token, got %q", got)
	}
	if got := openForTest(t, stored.RefreshToken); got != "rt-rotated" {
		t.Fatalf("expected rotated refresh token, got %q", got)
	}
	if stored.ExpiresAt == nil || !stored.ExpiresAt.Equal(newExpiry) {
		t.Fatalf("expected new expiry, got %v", stored.ExpiresAt)
	}

	untouched, _ := fx.store.snapshot(skipped.ID)
	if openForTest(t, untouched.AccessToken) != "old-access-rt-fb" {
		t.Fatalf("expected skipped link untouched")
	}
	if fx.store.commitCount() != 1 {
		t.Fatalf("expected a single commit, got %d", fx.store.commitCount())
	}
	if !hasLogMessage(fx.logger.snapshot(), "error", "failed to refresh token") {
		t.Fatalf("expected per-item failure log")
	}
}

func TestRefreshAllTokens_KeepsExistingRefreshTokenWhenNotRotated(t *testing.T) {
	fx := newSchedulerFixture(t, DefaultConfig())
	link := fx.seedExpiring(t, PlatformTikTok, "rt-keep", 30*time.Minute)
	fx.exchange.results["rt-keep"] = TokenRefreshResult{AccessToken: "fresh"}

	stats, err := fx.scheduler.RefreshAllTokens(context.Background(), RefreshAllRequest{})
	if err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if stats.Success != 1 {
		t.Fatalf("expected one success, got %+v", stats)
	}
	stored, _ := fx.store.snapshot(link.ID)
	if stored.RefreshToken != link.RefreshToken {
		t.Fatalf("expected previous refresh ciphertext to be kept")
	}
	if stored.ExpiresAt != nil {
		t.Fatalf("expected expiry cleared when platform omits it, got %v", stored.ExpiresAt)
	}
}

func TestRefreshAllTokens_HonorsHorizonOverride(t *testing.T) {
	fx := newSchedulerFixture(t, DefaultConfig())
	fx.seedExpiring(t, PlatformTwitter, "rt-soon", 2*time.Hour)
	fx.seedExpiring(t, PlatformTwitter, "rt-late", 10*time.Hour)
	fx.exchange.results["rt-soon"] = TokenRefreshResult{AccessToken: "a"}
	fx.exchange.results["rt-late"] = TokenRefreshResult{AccessToken: "b"}

	stats, err := fx.scheduler.RefreshAllTokens(context.Background(), RefreshAllRequest{HoursBeforeExpiry: 3})
	if err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if stats.Total() != 1 || stats.Success != 1 {
		t.Fatalf("expected only the link inside the horizon, got %+v", stats)
	}
}

func TestRefreshAllTokens_IgnoresLinksWithoutRefreshToken(t *testing.T) {
	fx := newSchedulerFixture(t, DefaultConfig())
	fx.seedExpiring(t, PlatformTwitter, "", time.Hour)

	stats, err := fx.scheduler.RefreshAllTokens(context.Background(), RefreshAllRequest{})
	if err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if stats.Total() != 0 || len(fx.exchange.refreshed) != 0 {
		t.Fatalf("expected no candidates, got %+v", stats)
	}
	if fx.store.commitCount() != 0 {
		t.Fatalf("expected no commit for an empty batch")
	}
}

func TestRefreshAllTokens_BoundsConcurrency(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refresh.Workers = 2
	fx := newSchedulerFixture(t, cfg)
	fx.exchange.delay = 20 * time.Millisecond
	for index := 0; index < 8; index++ {
		token := fmt.Sprintf("rt-%d", index)
		fx.seedExpiring(t, PlatformYouTube, token, time.Hour)
		fx.exchange.results[token] = TokenRefreshResult{AccessToken: "access-" + token}
	}

	stats, err := fx.scheduler.RefreshAllTokens(context.Background(), RefreshAllRequest{})
	if err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if stats.Success != 8 {
		t.Fatalf("expected all refreshed, got %+v", stats)
	}
	if fx.exchange.maxInflight > 2 {
		t.Fatalf("expected at most 2 concurrent refreshes, got %d", fx.exchange.maxInflight)
	}
	if fx.store.commitCount() != 1 {
		t.Fatalf("expected one commit for the batch, got %d", fx.store.commitCount())
	}
}

func TestRefreshAllTokens_CommitFailureRecountsSuccesses(t *testing.T) {
	fx := newSchedulerFixture(t, DefaultConfig())
	fx.seedExpiring(t, PlatformTwitter, "rt-a", time.Hour)
	fx.seedExpiring(t, PlatformTwitter, "rt-b", time.Hour)
	fx.exchange.results["rt-a"] = TokenRefreshResult{AccessToken: "a"}
	fx.exchange.results["rt-b"] = TokenRefreshResult{AccessToken: "b"}
	fx.store.failCredentials = errors.New("database unavailable")

	stats, err := fx.scheduler.RefreshAllTokens(context.Background(), RefreshAllRequest{})
	if err == nil {
		t.Fatalf("expected commit error")
	}
	if stats.Success != 0 || stats.Failed != 2 {
		t.Fatalf("expected successes recounted as failed, got %+v", stats)
	}
	if len(stats.Failures) != 2 {
		t.Fatalf("expected failure entries for each pending link, got %+v", stats.Failures)
	}
}

func TestRefreshAllTokens_ListFailureReturnsError(t *testing.T) {
	fx := newSchedulerFixture(t, DefaultConfig())
	fx.store.failList = errors.New("query timeout")

	_, err := fx.scheduler.RefreshAllTokens(context.Background(), RefreshAllRequest{})
	if err == nil {
		t.Fatalf("expected list failure")
	}
}

func TestRefreshAllTokens_ItemTimeoutCountsAsFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Refresh.ItemTimeout = 5 * time.Millisecond
	fx := newSchedulerFixture(t, cfg)
	fx.exchange.delay = 200 * time.Millisecond
	fx.seedExpiring(t, PlatformTwitter, "rt-slow", time.Hour)
	fx.exchange.results["rt-slow"] = TokenRefreshResult{AccessToken: "late"}

	stats, err := fx.scheduler.RefreshAllTokens(context.Background(), RefreshAllRequest{})
	if err != nil {
		t.Fatalf("refresh all: %v", err)
	}
	if stats.Failed != 1 || !errors.Is(stats.Failures[0].Err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout failure, got %+v", stats)
	}
}

func TestNewRefreshScheduler_RequiresExchange(t *testing.T) {
	_, err := NewRefreshScheduler(DefaultConfig(),
		WithLinkStore(newMemoryLinkStore()),
		WithSecretProvider(testSecretProvider{}),
	)
	if err == nil {
		t.Fatalf("expected error without oauth exchange")
	}
}
