package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-social-links/core"
)

const linkListCacheKeyPrefix = "go-social-links::links_by_user::v1"

// CachedLinkStore serves ListByUser from a cache. Point lookups, duplicate
// checks and everything inside WithinTx always reach the base store. Cached
// lists for a user are dropped once a write touching that user commits. A
// failed drop is logged and never fails the committed write; the cache TTL
// bounds how long a stale list survives.
type CachedLinkStore struct {
	base   core.LinkStore
	cache  repositorycache.CacheService
	logger core.Logger
}

type CachedLinkStoreOption func(*CachedLinkStore)

func WithCachedLinkStoreLogger(logger core.Logger) CachedLinkStoreOption {
	return func(s *CachedLinkStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewCachedLinkStore(base core.LinkStore, cacheService repositorycache.CacheService, opts ...CachedLinkStoreOption) (*CachedLinkStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base link store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: link cache service is required")
	}
	store := &CachedLinkStore{base: base, cache: cacheService, logger: glog.Nop()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store, nil
}

// LinkListCacheKey returns the cache key for one user and filter:
// go-social-links::links_by_user::v1::<user_id>::<platform|*>::<verified_only>
func LinkListCacheKey(userID string, filter core.AccountFilter) string {
	platform := "*"
	if filter.Platform != "" {
		platform = filter.Platform.String()
	}
	return linkListUserPrefix(userID) + url.PathEscape(platform) + "::" + strconv.FormatBool(filter.VerifiedOnly)
}

// linkListUserPrefix covers every cached list of one user. The trailing
// separator keeps usr_1 from matching usr_10.
func linkListUserPrefix(userID string) string {
	return linkListCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(userID)) + "::"
}

func (s *CachedLinkStore) ListByUser(ctx context.Context, userID string, filter core.AccountFilter) ([]core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	links, err := repositorycache.GetOrFetch(ctx, s.cache, LinkListCacheKey(userID, filter), func(ctx context.Context) ([]core.SocialAccountLink, error) {
		fetched, fetchErr := s.base.ListByUser(ctx, userID, filter)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return cloneLinks(fetched), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneLinks(links), nil
}

func (s *CachedLinkStore) Get(ctx context.Context, id string) (core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return core.SocialAccountLink{}, err
	}
	return s.base.Get(ctx, id)
}

func (s *CachedLinkStore) FindByPlatformAccount(ctx context.Context, platform core.Platform, platformAccountID string) (core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return core.SocialAccountLink{}, err
	}
	return s.base.FindByPlatformAccount(ctx, platform, platformAccountID)
}

func (s *CachedLinkStore) FindByUserPlatform(ctx context.Context, userID string, platform core.Platform) (core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return core.SocialAccountLink{}, err
	}
	return s.base.FindByUserPlatform(ctx, userID, platform)
}

func (s *CachedLinkStore) ListRefreshCandidates(ctx context.Context, expiresBefore time.Time) ([]core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.base.ListRefreshCandidates(ctx, expiresBefore)
}

func (s *CachedLinkStore) Create(ctx context.Context, link core.SocialAccountLink) (core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return core.SocialAccountLink{}, err
	}
	created, err := s.base.Create(ctx, link)
	if err != nil {
		return core.SocialAccountLink{}, err
	}
	s.invalidate(ctx, created.UserID)
	return created, nil
}

func (s *CachedLinkStore) Update(ctx context.Context, link core.SocialAccountLink) (core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return core.SocialAccountLink{}, err
	}
	updated, err := s.base.Update(ctx, link)
	if err != nil {
		return core.SocialAccountLink{}, err
	}
	s.invalidate(ctx, updated.UserID)
	return updated, nil
}

func (s *CachedLinkStore) UpdateCredentials(ctx context.Context, id string, update core.CredentialUpdate) error {
	return s.writeByID(ctx, id, func(ctx context.Context) error {
		return s.base.UpdateCredentials(ctx, id, update)
	})
}

func (s *CachedLinkStore) UpdateProfile(ctx context.Context, id string, update core.ProfileUpdate) error {
	return s.writeByID(ctx, id, func(ctx context.Context) error {
		return s.base.UpdateProfile(ctx, id, update)
	})
}

func (s *CachedLinkStore) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	return s.writeByID(ctx, id, func(ctx context.Context) error {
		return s.base.MarkVerified(ctx, id, verifiedAt)
	})
}

func (s *CachedLinkStore) Delete(ctx context.Context, id string) error {
	return s.writeByID(ctx, id, func(ctx context.Context) error {
		return s.base.Delete(ctx, id)
	})
}

// WithinTx records which users a transaction touched and invalidates their
// lists only after the base store committed.
func (s *CachedLinkStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo core.LinkRepository) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	touched := &touchedUsers{}
	err := s.base.WithinTx(ctx, func(ctx context.Context, repo core.LinkRepository) error {
		return fn(ctx, &trackingLinkRepository{LinkRepository: repo, touched: touched})
	})
	if err != nil {
		return err
	}
	for _, userID := range touched.list() {
		s.invalidate(ctx, userID)
	}
	return nil
}

func (s *CachedLinkStore) writeByID(ctx context.Context, id string, write func(ctx context.Context) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	current, err := s.base.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := write(ctx); err != nil {
		return err
	}
	s.invalidate(ctx, current.UserID)
	return nil
}

// invalidate drops every cached list for a user. It runs after the write
// committed, so a cache failure is only logged.
func (s *CachedLinkStore) invalidate(ctx context.Context, userID string) {
	if strings.TrimSpace(userID) == "" {
		return
	}
	if err := s.cache.DeleteByPrefix(ctx, linkListUserPrefix(userID)); err != nil {
		s.logger.WithContext(ctx).Warn("link list cache invalidation failed", "user_id", userID, "error", err)
	}
}

func (s *CachedLinkStore) ready() error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached link store is not configured")
	}
	return nil
}

type touchedUsers struct {
	mu    sync.Mutex
	order []string
	seen  map[string]struct{}
}

func (t *touchedUsers) add(userID string) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen == nil {
		t.seen = map[string]struct{}{}
	}
	if _, ok := t.seen[userID]; ok {
		return
	}
	t.seen[userID] = struct{}{}
	t.order = append(t.order, userID)
}

func (t *touchedUsers) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.order...)
}

type trackingLinkRepository struct {
	core.LinkRepository
	touched *touchedUsers
}

func (r *trackingLinkRepository) Create(ctx context.Context, link core.SocialAccountLink) (core.SocialAccountLink, error) {
	created, err := r.LinkRepository.Create(ctx, link)
	if err == nil {
		r.touched.add(created.UserID)
	}
	return created, err
}

func (r *trackingLinkRepository) Update(ctx context.Context, link core.SocialAccountLink) (core.SocialAccountLink, error) {
	updated, err := r.LinkRepository.Update(ctx, link)
	if err == nil {
		r.touched.add(updated.UserID)
	}
	return updated, err
}

func (r *trackingLinkRepository) UpdateCredentials(ctx context.Context, id string, update core.CredentialUpdate) error {
	return r.trackByID(ctx, id, func() error { return r.LinkRepository.UpdateCredentials(ctx, id, update) })
}

func (r *trackingLinkRepository) UpdateProfile(ctx context.Context, id string, update core.ProfileUpdate) error {
	return r.trackByID(ctx, id, func() error { return r.LinkRepository.UpdateProfile(ctx, id, update) })
}

func (r *trackingLinkRepository) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	return r.trackByID(ctx, id, func() error { return r.LinkRepository.MarkVerified(ctx, id, verifiedAt) })
}

func (r *trackingLinkRepository) Delete(ctx context.Context, id string) error {
	return r.trackByID(ctx, id, func() error { return r.LinkRepository.Delete(ctx, id) })
}

func (r *trackingLinkRepository) trackByID(ctx context.Context, id string, write func() error) error {
	current, err := r.LinkRepository.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := write(); err != nil {
		return err
	}
	r.touched.add(current.UserID)
	return nil
}

func cloneLinks(in []core.SocialAccountLink) []core.SocialAccountLink {
	out := make([]core.SocialAccountLink, 0, len(in))
	for _, link := range in {
		out = append(out, link.Clone())
	}
	return out
}
