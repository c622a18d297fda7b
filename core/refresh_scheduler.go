package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// RefreshScheduler proactively refreshes OAuth credentials that are about to
// expire. Items are refreshed concurrently and persisted in one transaction.
type RefreshScheduler struct {
	observer
	config   Config
	store    LinkStore
	cipher   *CredentialCipher
	clients  PlatformClientFactory
	exchange OAuthExchange
	now      func() time.Time
}

func NewRefreshScheduler(cfg Config, opts ...Option) (*RefreshScheduler, error) {
	builder, final, err := buildOptions(cfg, "sociallinks.refresh", opts)
	if err != nil {
		return nil, err
	}
	if builder.linkStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: link store is required"))
	}
	if builder.oauthExchange == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: oauth exchange is required"))
	}
	cipher, err := NewCredentialCipher(builder.secretProvider)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	return &RefreshScheduler{
		observer: observer{
			logger:  builder.logger,
			metrics: builder.metricsRecorder,
		},
		config:   final,
		store:    builder.linkStore,
		cipher:   cipher,
		clients:  builder.clientFactory,
		exchange: builder.oauthExchange,
		now:      builder.now,
	}, nil
}

type refreshOutcome int

const (
	refreshSucceeded refreshOutcome = iota
	refreshFailed
	refreshSkipped
)

type pendingCredentials struct {
	linkID   string
	platform Platform
	update   CredentialUpdate
}

// refreshBatch aggregates worker results. All fields are guarded by mu.
type refreshBatch struct {
	mu      sync.Mutex
	stats   RefreshStats
	pending []pendingCredentials
}

func (b *refreshBatch) record(link SocialAccountLink, outcome refreshOutcome, pending *pendingCredentials, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch outcome {
	case refreshSucceeded:
		b.stats.Success++
		if pending != nil {
			b.pending = append(b.pending, *pending)
		}
	case refreshSkipped:
		b.stats.Skipped++
	default:
		b.stats.Failed++
		b.stats.Failures = append(b.stats.Failures, RefreshFailure{
			LinkID:   link.ID,
			Platform: link.Platform,
			Err:      err,
		})
	}
}

// RefreshAllTokens refreshes every link whose token expires within the
// horizon. Individual failures are counted and never abort the batch. An
// error is returned only when candidates cannot be listed or the final
// commit fails.
func (s *RefreshScheduler) RefreshAllTokens(ctx context.Context, req RefreshAllRequest) (stats RefreshStats, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{}
	defer func() {
		fields["success"] = stats.Success
		fields["failed"] = stats.Failed
		fields["skipped"] = stats.Skipped
		s.observeOperation(ctx, startedAt, "refresh_all_tokens", err, fields)
	}()

	if s == nil || s.store == nil || s.cipher == nil || s.exchange == nil {
		err = InternalError(nil, "core: refresh scheduler is not configured")
		return RefreshStats{}, err
	}

	hours := req.HoursBeforeExpiry
	if hours <= 0 {
		hours = s.config.Refresh.HoursBeforeExpiry
	}
	if hours <= 0 {
		hours = DefaultHoursBeforeExpiry
	}
	fields["hours_before_expiry"] = hours
	threshold := s.now().UTC().Add(time.Duration(hours) * time.Hour)

	candidates, err := s.store.ListRefreshCandidates(ctx, threshold)
	if err != nil {
		err = InternalError(err, "failed to list refresh candidates")
		return RefreshStats{}, err
	}
	fields["candidates"] = len(candidates)
	if len(candidates) == 0 {
		return RefreshStats{}, nil
	}

	app := AppCredentials{
		ClientID:     strings.TrimSpace(req.ClientID),
		ClientSecret: strings.TrimSpace(req.ClientSecret),
	}
	workers := s.config.Refresh.Workers
	if workers <= 0 {
		workers = DefaultRefreshWorkers
	}

	batch := &refreshBatch{}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for _, candidate := range candidates {
		group.Go(func() error {
			outcome, pending, itemErr := s.refreshOne(groupCtx, candidate, app)
			batch.record(candidate, outcome, pending, itemErr)
			return nil
		})
	}
	_ = group.Wait()

	stats = batch.stats
	if len(batch.pending) == 0 {
		return stats, nil
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repo LinkRepository) error {
		for _, item := range batch.pending {
			if updateErr := repo.UpdateCredentials(ctx, item.linkID, item.update); updateErr != nil {
				return updateErr
			}
		}
		return nil
	})
	if err != nil {
		for _, item := range batch.pending {
			stats.Failures = append(stats.Failures, RefreshFailure{
				LinkID:   item.linkID,
				Platform: item.platform,
				Err:      err,
			})
		}
		stats.Failed += stats.Success
		stats.Success = 0
		err = InternalError(err, "failed to persist refreshed tokens")
		return stats, err
	}
	return stats, nil
}

func (s *RefreshScheduler) refreshOne(ctx context.Context, link SocialAccountLink, app AppCredentials) (refreshOutcome, *pendingCredentials, error) {
	if s.clients != nil {
		caps, ok := s.clients.Capabilities(link.Platform)
		if !ok || !caps.SupportsRefreshToken {
			return refreshSkipped, nil, nil
		}
	}

	refreshToken, err := s.cipher.Open(ctx, link.RefreshToken)
	if err != nil {
		s.logRefreshFailure(ctx, link, err)
		return refreshFailed, nil, err
	}
	if strings.TrimSpace(refreshToken) == "" {
		return refreshSkipped, nil, nil
	}

	itemCtx := ctx
	if timeout := s.config.Refresh.ItemTimeout; timeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := s.exchange.Refresh(itemCtx, link.Platform, refreshToken, app.ClientID, app.ClientSecret)
	if err != nil {
		s.logRefreshFailure(ctx, link, err)
		return refreshFailed, nil, err
	}
	accessToken, err := s.cipher.Seal(ctx, result.AccessToken)
	if err != nil {
		s.logRefreshFailure(ctx, link, err)
		return refreshFailed, nil, err
	}
	sealedRefresh := link.RefreshToken
	if strings.TrimSpace(result.RefreshToken) != "" {
		sealedRefresh, err = s.cipher.Seal(ctx, result.RefreshToken)
		if err != nil {
			s.logRefreshFailure(ctx, link, err)
			return refreshFailed, nil, err
		}
	}

	s.logInfo(ctx, "token refreshed", map[string]any{
		"link_id":  link.ID,
		"platform": link.Platform.String(),
	})
	return refreshSucceeded, &pendingCredentials{
		linkID:   link.ID,
		platform: link.Platform,
		update: CredentialUpdate{
			AccessToken:  accessToken,
			RefreshToken: sealedRefresh,
			ExpiresAt:    cloneTime(result.ExpiresAt),
			UpdatedAt:    s.now().UTC(),
		},
	}, nil
}

func (s *RefreshScheduler) logRefreshFailure(ctx context.Context, link SocialAccountLink, err error) {
	s.logError(ctx, "failed to refresh token", map[string]any{
		"link_id":  link.ID,
		"platform": link.Platform.String(),
		"error":    err.Error(),
	})
}
