package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var testNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type testSecretProvider struct{}

func (testSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("test secret provider: plaintext is required")
	}
	encoded := base64.StdEncoding.EncodeToString(plaintext)
	return []byte("enc:" + encoded), nil
}

func (testSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	value := strings.TrimSpace(string(ciphertext))
	if value == "" || !strings.HasPrefix(value, "enc:") {
		return nil, fmt.Errorf("test secret provider: invalid ciphertext")
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, "enc:"))
	if err != nil {
		return nil, fmt.Errorf("test secret provider: decode ciphertext: %w", err)
	}
	return decoded, nil
}

func sealForTest(t *testing.T, plaintext string) string {
	t.Helper()
	sealed, err := testSecretProvider{}.Encrypt(context.Background(), []byte(plaintext))
	if err != nil {
		t.Fatalf("seal %q: %v", plaintext, err)
	}
	return string(sealed)
}

func openForTest(t *testing.T, ciphertext string) string {
	t.Helper()
	plain, err := testSecretProvider{}.Decrypt(context.Background(), []byte(ciphertext))
	if err != nil {
		t.Fatalf("open %q: %v", ciphertext, err)
	}
	return string(plain)
}

// memoryLinkStore keeps links in a map. WithinTx works on a copy and swaps it
// in only when fn succeeds.
type memoryLinkStore struct {
	mu              sync.Mutex
	next            int
	links           map[string]SocialAccountLink
	commits         int
	failList        error
	failCredentials error
}

func newMemoryLinkStore() *memoryLinkStore {
	return &memoryLinkStore{links: map[string]SocialAccountLink{}}
}

func (s *memoryLinkStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo LinkRepository) error) error {
	s.mu.Lock()
	working := make(map[string]SocialAccountLink, len(s.links))
	for id, link := range s.links {
		working[id] = link.Clone()
	}
	tx := &memoryLinkStore{links: working, next: s.next, failCredentials: s.failCredentials}
	s.mu.Unlock()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.links = tx.links
	s.next = tx.next
	s.commits++
	return nil
}

func (s *memoryLinkStore) seed(link SocialAccountLink) SocialAccountLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	if link.ID == "" {
		s.next++
		link.ID = fmt.Sprintf("link_%d", s.next)
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = testNow.Add(time.Duration(len(s.links)) * time.Minute)
	}
	if link.UpdatedAt.IsZero() {
		link.UpdatedAt = link.CreatedAt
	}
	s.links[link.ID] = link.Clone()
	return link
}

func (s *memoryLinkStore) snapshot(id string) (SocialAccountLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	return link.Clone(), ok
}

func (s *memoryLinkStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.links)
}

func (s *memoryLinkStore) commitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *memoryLinkStore) Get(_ context.Context, id string) (SocialAccountLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return SocialAccountLink{}, ErrLinkNotFound
	}
	return link.Clone(), nil
}

func (s *memoryLinkStore) FindByPlatformAccount(_ context.Context, platform Platform, accountID string) (SocialAccountLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.links {
		if link.Platform == platform && link.PlatformAccountID == accountID {
			return link.Clone(), nil
		}
	}
	return SocialAccountLink{}, ErrLinkNotFound
}

func (s *memoryLinkStore) FindByUserPlatform(_ context.Context, userID string, platform Platform) (SocialAccountLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, link := range s.sortedLocked() {
		if link.UserID == userID && link.Platform == platform {
			return link.Clone(), nil
		}
	}
	return SocialAccountLink{}, ErrLinkNotFound
}

func (s *memoryLinkStore) ListByUser(_ context.Context, userID string, filter AccountFilter) ([]SocialAccountLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	out := []SocialAccountLink{}
	for _, link := range s.sortedLocked() {
		if link.UserID != userID {
			continue
		}
		if filter.Platform != "" && link.Platform != filter.Platform {
			continue
		}
		if filter.VerifiedOnly && !link.IsVerified {
			continue
		}
		out = append(out, link.Clone())
	}
	return out, nil
}

func (s *memoryLinkStore) ListRefreshCandidates(_ context.Context, expiresBefore time.Time) ([]SocialAccountLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failList != nil {
		return nil, s.failList
	}
	out := []SocialAccountLink{}
	for _, link := range s.sortedLocked() {
		if link.ExpiresAt == nil || link.ExpiresAt.After(expiresBefore) || !link.HasRefreshToken() {
			continue
		}
		out = append(out, link.Clone())
	}
	return out, nil
}

func (s *memoryLinkStore) Create(_ context.Context, link SocialAccountLink) (SocialAccountLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.links {
		if existing.Platform == link.Platform && existing.PlatformAccountID == link.PlatformAccountID {
			return SocialAccountLink{}, fmt.Errorf("unique constraint violated")
		}
	}
	s.next++
	link.ID = fmt.Sprintf("link_%d", s.next)
	s.links[link.ID] = link.Clone()
	return link.Clone(), nil
}

func (s *memoryLinkStore) Update(_ context.Context, link SocialAccountLink) (SocialAccountLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[link.ID]; !ok {
		return SocialAccountLink{}, ErrLinkNotFound
	}
	s.links[link.ID] = link.Clone()
	return link.Clone(), nil
}

func (s *memoryLinkStore) UpdateCredentials(_ context.Context, id string, update CredentialUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCredentials != nil {
		return s.failCredentials
	}
	link, ok := s.links[id]
	if !ok {
		return ErrLinkNotFound
	}
	link.AccessToken = update.AccessToken
	link.RefreshToken = update.RefreshToken
	link.ExpiresAt = cloneTime(update.ExpiresAt)
	link.UpdatedAt = update.UpdatedAt
	s.links[id] = link
	return nil
}

func (s *memoryLinkStore) UpdateProfile(_ context.Context, id string, update ProfileUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return ErrLinkNotFound
	}
	link.Username = update.Username
	link.DisplayName = update.DisplayName
	link.UpdatedAt = update.UpdatedAt
	s.links[id] = link
	return nil
}

func (s *memoryLinkStore) MarkVerified(_ context.Context, id string, verifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[id]
	if !ok {
		return ErrLinkNotFound
	}
	link.IsVerified = true
	link.LastVerifiedAt = &verifiedAt
	link.UpdatedAt = verifiedAt
	s.links[id] = link
	return nil
}

func (s *memoryLinkStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[id]; !ok {
		return ErrLinkNotFound
	}
	delete(s.links, id)
	return nil
}

func (s *memoryLinkStore) sortedLocked() []SocialAccountLink {
	out := make([]SocialAccountLink, 0, len(s.links))
	for _, link := range s.links {
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

type fakePlatformClient struct {
	platform     Platform
	accountID    string
	profile      PlatformProfile
	err          error
	engagement   map[EngagementKind]bool
	closed       atomic.Bool
	lastTargetID string
}

func (c *fakePlatformClient) Platform() Platform { return c.platform }

func (c *fakePlatformClient) GetUserProfile(context.Context, string) (PlatformProfile, error) {
	if c.err != nil {
		return PlatformProfile{}, c.err
	}
	return c.profile, nil
}

func (c *fakePlatformClient) VerifyAccountOwnership(_ context.Context, claimed string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return claimed == c.accountID, nil
}

func (c *fakePlatformClient) check(kind EngagementKind, target string) (bool, error) {
	c.lastTargetID = target
	if c.err != nil {
		return false, c.err
	}
	return c.engagement[kind], nil
}

func (c *fakePlatformClient) VerifyFollow(_ context.Context, target string) (bool, error) {
	return c.check(EngagementFollow, target)
}

func (c *fakePlatformClient) VerifySubscription(_ context.Context, target string) (bool, error) {
	return c.check(EngagementSubscription, target)
}

func (c *fakePlatformClient) VerifyLike(_ context.Context, target string) (bool, error) {
	return c.check(EngagementLike, target)
}

func (c *fakePlatformClient) VerifyComment(_ context.Context, target string) (bool, error) {
	return c.check(EngagementComment, target)
}

func (c *fakePlatformClient) VerifyVideoEngagement(_ context.Context, target string) (bool, error) {
	return c.check(EngagementVideoEngagement, target)
}

func (c *fakePlatformClient) Close() error {
	c.closed.Store(true)
	return nil
}

type fakeClientFactory struct {
	mu     sync.Mutex
	client *fakePlatformClient
	caps   map[Platform]PlatformCapabilities
	tokens []string
	apps   []AppCredentials
}

func newFakeClientFactory(client *fakePlatformClient) *fakeClientFactory {
	return &fakeClientFactory{
		client: client,
		caps: map[Platform]PlatformCapabilities{
			PlatformFacebook:  {Platform: PlatformFacebook, SupportsRevoke: true, Follow: true, Like: true, Comment: true},
			PlatformInstagram: {Platform: PlatformInstagram, Comment: true},
			PlatformTwitter:   {Platform: PlatformTwitter, SupportsRefreshToken: true, SupportsRevoke: true, Follow: true, Like: true},
			PlatformTikTok:    {Platform: PlatformTikTok, SupportsRefreshToken: true, SupportsRevoke: true},
			PlatformYouTube:   {Platform: PlatformYouTube, SupportsRefreshToken: true, SupportsRevoke: true, Subscription: true, Like: true},
		},
	}
}

func (f *fakeClientFactory) NewClient(_ context.Context, platform Platform, accessToken string, app AppCredentials) (PlatformClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.caps[platform]; !ok {
		return nil, ErrUnsupportedPlatform
	}
	f.tokens = append(f.tokens, accessToken)
	f.apps = append(f.apps, app)
	f.client.platform = platform
	return f.client, nil
}

func (f *fakeClientFactory) Capabilities(platform Platform) (PlatformCapabilities, bool) {
	caps, ok := f.caps[platform]
	return caps, ok
}

type revokeCall struct {
	platform Platform
	token    string
	clientID string
}

type fakeOAuthExchange struct {
	mu          sync.Mutex
	results     map[string]TokenRefreshResult
	errs        map[string]error
	revokeErr   error
	revokes     []revokeCall
	refreshed   []string
	delay       time.Duration
	inflight    int
	maxInflight int
}

func newFakeOAuthExchange() *fakeOAuthExchange {
	return &fakeOAuthExchange{
		results: map[string]TokenRefreshResult{},
		errs:    map[string]error{},
	}
}

func (e *fakeOAuthExchange) Refresh(ctx context.Context, _ Platform, refreshToken string, _ string, _ string) (TokenRefreshResult, error) {
	e.mu.Lock()
	e.inflight++
	if e.inflight > e.maxInflight {
		e.maxInflight = e.inflight
	}
	e.refreshed = append(e.refreshed, refreshToken)
	delay := e.delay
	result, ok := e.results[refreshToken]
	err := e.errs[refreshToken]
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inflight--
		e.mu.Unlock()
	}()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return TokenRefreshResult{}, ctx.Err()
		}
	}
	if err != nil {
		return TokenRefreshResult{}, err
	}
	if !ok {
		return TokenRefreshResult{}, errors.New("no scripted refresh result")
	}
	return result, nil
}

func (e *fakeOAuthExchange) Revoke(_ context.Context, platform Platform, token string, clientID string, _ string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revokes = append(e.revokes, revokeCall{platform: platform, token: token, clientID: clientID})
	return e.revokeErr
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type managerFixture struct {
	manager  *Manager
	store    *memoryLinkStore
	client   *fakePlatformClient
	factory  *fakeClientFactory
	exchange *fakeOAuthExchange
	logger   *captureLogger
	metrics  *captureMetricsRecorder
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	fx := &managerFixture{
		store:    newMemoryLinkStore(),
		client:   &fakePlatformClient{},
		exchange: newFakeOAuthExchange(),
		logger:   newCaptureLogger(),
		metrics:  &captureMetricsRecorder{},
	}
	fx.factory = newFakeClientFactory(fx.client)
	manager, err := NewManager(DefaultConfig(),
		WithLinkStore(fx.store),
		WithSecretProvider(testSecretProvider{}),
		WithPlatformClientFactory(fx.factory),
		WithOAuthExchange(fx.exchange),
		WithLoggerProvider(stubLoggerProvider{logger: fx.logger}),
		WithLogger(fx.logger),
		WithMetricsRecorder(fx.metrics),
		WithClock(fixedClock),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	fx.manager = manager
	return fx
}

func timePtr(value time.Time) *time.Time {
	return &value
}
