package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-social-links/core"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
)

// LinkStore persists social account links. Every lookup that matches no row
// returns an error wrapping core.ErrLinkNotFound.
type LinkStore struct {
	db   *bun.DB
	repo repository.Repository[*linkRecord]
	now  func() time.Time
}

func NewLinkStore(db *bun.DB) (*LinkStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*linkRecord](db, linkHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid link repository wiring: %w", err)
		}
	}
	return &LinkStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithinTx runs fn against a repository bound to a single transaction. The
// transaction commits only when fn returns nil.
func (s *LinkStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repo core.LinkRepository) error) error {
	if err := s.ready(); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: transaction callback is required")
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &txLinkRepository{tx: tx, repo: s.repo, now: s.now})
	})
}

func (s *LinkStore) Create(ctx context.Context, link core.SocialAccountLink) (core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return core.SocialAccountLink{}, err
	}
	record, err := prepareCreate(link, s.now())
	if err != nil {
		return core.SocialAccountLink{}, err
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.SocialAccountLink{}, mapWriteError(err, record)
	}
	return created.toDomain(), nil
}

func (s *LinkStore) Get(ctx context.Context, id string) (core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return core.SocialAccountLink{}, err
	}
	return getLink(ctx, s.db, id)
}

func (s *LinkStore) FindByPlatformAccount(ctx context.Context, platform core.Platform, platformAccountID string) (core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return core.SocialAccountLink{}, err
	}
	return findByPlatformAccount(ctx, s.db, platform, platformAccountID)
}

func (s *LinkStore) FindByUserPlatform(ctx context.Context, userID string, platform core.Platform) (core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return core.SocialAccountLink{}, err
	}
	return findByUserPlatform(ctx, s.db, userID, platform)
}

func (s *LinkStore) ListByUser(ctx context.Context, userID string, filter core.AccountFilter) ([]core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	criteria := []repository.SelectCriteria{
		repository.SelectBy("user_id", "=", strings.TrimSpace(userID)),
	}
	if filter.Platform != "" {
		criteria = append(criteria, repository.SelectBy("platform", "=", filter.Platform.String()))
	}
	if filter.VerifiedOnly {
		criteria = append(criteria, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.is_verified = ?", true)
		}))
	}
	criteria = append(criteria, repository.OrderBy("created_at ASC"))

	records, _, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, err
	}
	return toDomainLinks(records), nil
}

func (s *LinkStore) ListRefreshCandidates(ctx context.Context, expiresBefore time.Time) ([]core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.expires_at IS NOT NULL").
				Where("?TableAlias.expires_at <= ?", expiresBefore.UTC()).
				Where("?TableAlias.refresh_token <> ''")
		}),
		repository.OrderBy("expires_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	return toDomainLinks(records), nil
}

func (s *LinkStore) Update(ctx context.Context, link core.SocialAccountLink) (core.SocialAccountLink, error) {
	if err := s.ready(); err != nil {
		return core.SocialAccountLink{}, err
	}
	return updateLink(ctx, s.db, link, s.now())
}

func (s *LinkStore) UpdateCredentials(ctx context.Context, id string, update core.CredentialUpdate) error {
	if err := s.ready(); err != nil {
		return err
	}
	return updateCredentials(ctx, s.db, id, update, s.now())
}

func (s *LinkStore) UpdateProfile(ctx context.Context, id string, update core.ProfileUpdate) error {
	if err := s.ready(); err != nil {
		return err
	}
	return updateProfile(ctx, s.db, id, update, s.now())
}

func (s *LinkStore) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	if err := s.ready(); err != nil {
		return err
	}
	return markVerified(ctx, s.db, id, verifiedAt, s.now())
}

func (s *LinkStore) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return deleteLink(ctx, s.db, id)
}

func (s *LinkStore) ready() error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: link store is not configured")
	}
	return nil
}

// txLinkRepository is the repository handed to WithinTx callbacks. All reads
// and writes go through the same transaction.
type txLinkRepository struct {
	tx   bun.Tx
	repo repository.Repository[*linkRecord]
	now  func() time.Time
}

func (r *txLinkRepository) Create(ctx context.Context, link core.SocialAccountLink) (core.SocialAccountLink, error) {
	record, err := prepareCreate(link, r.now())
	if err != nil {
		return core.SocialAccountLink{}, err
	}
	created, err := r.repo.CreateTx(ctx, r.tx, record)
	if err != nil {
		return core.SocialAccountLink{}, mapWriteError(err, record)
	}
	return created.toDomain(), nil
}

func (r *txLinkRepository) Get(ctx context.Context, id string) (core.SocialAccountLink, error) {
	return getLink(ctx, r.tx, id)
}

func (r *txLinkRepository) FindByPlatformAccount(ctx context.Context, platform core.Platform, platformAccountID string) (core.SocialAccountLink, error) {
	return findByPlatformAccount(ctx, r.tx, platform, platformAccountID)
}

func (r *txLinkRepository) FindByUserPlatform(ctx context.Context, userID string, platform core.Platform) (core.SocialAccountLink, error) {
	return findByUserPlatform(ctx, r.tx, userID, platform)
}

func (r *txLinkRepository) ListByUser(ctx context.Context, userID string, filter core.AccountFilter) ([]core.SocialAccountLink, error) {
	records := []*linkRecord{}
	query := r.tx.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", strings.TrimSpace(userID))
	if filter.Platform != "" {
		query = query.Where("?TableAlias.platform = ?", filter.Platform.String())
	}
	if filter.VerifiedOnly {
		query = query.Where("?TableAlias.is_verified = ?", true)
	}
	if err := query.Order("created_at ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return toDomainLinks(records), nil
}

func (r *txLinkRepository) ListRefreshCandidates(ctx context.Context, expiresBefore time.Time) ([]core.SocialAccountLink, error) {
	records := []*linkRecord{}
	err := r.tx.NewSelect().
		Model(&records).
		Where("?TableAlias.expires_at IS NOT NULL").
		Where("?TableAlias.expires_at <= ?", expiresBefore.UTC()).
		Where("?TableAlias.refresh_token <> ''").
		Order("expires_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return toDomainLinks(records), nil
}

func (r *txLinkRepository) Update(ctx context.Context, link core.SocialAccountLink) (core.SocialAccountLink, error) {
	return updateLink(ctx, r.tx, link, r.now())
}

func (r *txLinkRepository) UpdateCredentials(ctx context.Context, id string, update core.CredentialUpdate) error {
	return updateCredentials(ctx, r.tx, id, update, r.now())
}

func (r *txLinkRepository) UpdateProfile(ctx context.Context, id string, update core.ProfileUpdate) error {
	return updateProfile(ctx, r.tx, id, update, r.now())
}

func (r *txLinkRepository) MarkVerified(ctx context.Context, id string, verifiedAt time.Time) error {
	return markVerified(ctx, r.tx, id, verifiedAt, r.now())
}

func (r *txLinkRepository) Delete(ctx context.Context, id string) error {
	return deleteLink(ctx, r.tx, id)
}

func prepareCreate(link core.SocialAccountLink, now time.Time) (*linkRecord, error) {
	if strings.TrimSpace(link.UserID) == "" {
		return nil, fmt.Errorf("sqlstore: user id is required")
	}
	if !link.Platform.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedPlatform, link.Platform)
	}
	if strings.TrimSpace(link.PlatformAccountID) == "" {
		return nil, fmt.Errorf("sqlstore: platform account id is required")
	}
	record := newLinkRecord(link, now)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	return record, nil
}

func getLink(ctx context.Context, db bun.IDB, id string) (core.SocialAccountLink, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return core.SocialAccountLink{}, fmt.Errorf("%w: id is required", core.ErrLinkNotFound)
	}
	record := &linkRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.SocialAccountLink{}, notFound(err, "id "+trimmed)
	}
	return record.toDomain(), nil
}

func findByPlatformAccount(ctx context.Context, db bun.IDB, platform core.Platform, platformAccountID string) (core.SocialAccountLink, error) {
	record := &linkRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.platform = ?", platform.String()).
		Where("?TableAlias.platform_account_id = ?", strings.TrimSpace(platformAccountID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.SocialAccountLink{}, notFound(err, platform.String()+" account "+strings.TrimSpace(platformAccountID))
	}
	return record.toDomain(), nil
}

func findByUserPlatform(ctx context.Context, db bun.IDB, userID string, platform core.Platform) (core.SocialAccountLink, error) {
	record := &linkRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", strings.TrimSpace(userID)).
		Where("?TableAlias.platform = ?", platform.String()).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.SocialAccountLink{}, notFound(err, "user "+strings.TrimSpace(userID)+" on "+platform.String())
	}
	return record.toDomain(), nil
}

// updateLink rewrites every mutable column of an existing row. The row
// identity fields and created_at are kept as stored.
func updateLink(ctx context.Context, db bun.IDB, link core.SocialAccountLink, now time.Time) (core.SocialAccountLink, error) {
	trimmed := strings.TrimSpace(link.ID)
	if trimmed == "" {
		return core.SocialAccountLink{}, fmt.Errorf("sqlstore: link id is required")
	}
	record := newLinkRecord(link, now)
	if link.UpdatedAt.IsZero() {
		record.UpdatedAt = now.UTC()
	}
	res, err := db.NewUpdate().
		Model(record).
		Column(
			"access_token",
			"refresh_token",
			"expires_at",
			"scope",
			"username",
			"display_name",
			"is_verified",
			"last_verified_at",
			"updated_at",
		).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return core.SocialAccountLink{}, mapWriteError(err, record)
	}
	if err := requireAffected(res, trimmed); err != nil {
		return core.SocialAccountLink{}, err
	}
	return getLink(ctx, db, trimmed)
}

func updateCredentials(ctx context.Context, db bun.IDB, id string, update core.CredentialUpdate, now time.Time) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: link id is required")
	}
	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	res, err := db.NewUpdate().
		Model((*linkRecord)(nil)).
		Set("access_token = ?", update.AccessToken).
		Set("refresh_token = ?", update.RefreshToken).
		Set("expires_at = ?", utcPointer(update.ExpiresAt)).
		Set("updated_at = ?", updatedAt.UTC()).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, trimmed)
}

func updateProfile(ctx context.Context, db bun.IDB, id string, update core.ProfileUpdate, now time.Time) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: link id is required")
	}
	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	res, err := db.NewUpdate().
		Model((*linkRecord)(nil)).
		Set("username = ?", update.Username).
		Set("display_name = ?", update.DisplayName).
		Set("updated_at = ?", updatedAt.UTC()).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, trimmed)
}

func markVerified(ctx context.Context, db bun.IDB, id string, verifiedAt time.Time, now time.Time) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: link id is required")
	}
	if verifiedAt.IsZero() {
		verifiedAt = now
	}
	res, err := db.NewUpdate().
		Model((*linkRecord)(nil)).
		Set("is_verified = ?", true).
		Set("last_verified_at = ?", verifiedAt.UTC()).
		Set("updated_at = ?", verifiedAt.UTC()).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, trimmed)
}

func deleteLink(ctx context.Context, db bun.IDB, id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("sqlstore: link id is required")
	}
	res, err := db.NewDelete().
		Model((*linkRecord)(nil)).
		Where("id = ?", trimmed).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res, trimmed)
}

func requireAffected(res sql.Result, id string) error {
	if res == nil {
		return nil
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %s", core.ErrLinkNotFound, id)
	}
	return nil
}

func notFound(err error, subject string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", core.ErrLinkNotFound, subject)
	}
	return err
}

// mapWriteError turns a unique index violation on (platform,
// platform_account_id) into a conflict.
func mapWriteError(err error, record *linkRecord) error {
	if err == nil || !isUniqueViolation(err) {
		return err
	}
	platform, accountID := "", ""
	if record != nil {
		platform, accountID = record.Platform, record.PlatformAccountID
	}
	return core.ConflictError(
		fmt.Sprintf("Account %s on %s is already linked", accountID, platform),
		map[string]any{"platform": platform, "platform_account_id": accountID},
	)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
