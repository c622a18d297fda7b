package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Manager owns the link lifecycle: linking, verification, unlinking, manual
// links and profile refresh. It is the only component that touches the
// credential cipher for request-scoped operations.
type Manager struct {
	observer
	config         Config
	loggerProvider LoggerProvider
	errorMapper    ErrorMapper
	store          LinkStore
	cipher         *CredentialCipher
	clients        PlatformClientFactory
	exchange       OAuthExchange
	now            func() time.Time
}

func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	builder, final, err := buildOptions(cfg, "sociallinks", opts)
	if err != nil {
		return nil, err
	}
	if builder.linkStore == nil {
		return nil, mapBuildError(builder.errorMapper, fmt.Errorf("core: link store is required"))
	}
	cipher, err := NewCredentialCipher(builder.secretProvider)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Manager{
		observer: observer{
			logger:  builder.logger,
			metrics: builder.metricsRecorder,
		},
		config:         final,
		loggerProvider: builder.loggerProvider,
		errorMapper:    builder.errorMapper,
		store:          builder.linkStore,
		cipher:         cipher,
		clients:        builder.clientFactory,
		exchange:       builder.oauthExchange,
		now:            builder.now,
	}, nil
}

func (m *Manager) Config() Config {
	if m == nil {
		return Config{}
	}
	return m.config
}

func (m *Manager) LinkAccount(ctx context.Context, in LinkAccountInput) (link SocialAccountLink, err error) {
	startedAt := time.Now().UTC()
	in = normalizeLinkInput(in)
	fields := map[string]any{
		"user_id":             in.UserID,
		"platform":            in.Platform.String(),
		"platform_account_id": in.PlatformAccountID,
	}
	defer func() {
		m.observeOperation(ctx, startedAt, "link_account", err, fields)
	}()

	if err = m.ready(); err != nil {
		return SocialAccountLink{}, err
	}
	if err = in.Validate(); err != nil {
		err = m.mapError(err)
		return SocialAccountLink{}, err
	}

	err = m.store.WithinTx(ctx, func(ctx context.Context, repo LinkRepository) error {
		existing, findErr := repo.FindByPlatformAccount(ctx, in.Platform, in.PlatformAccountID)
		switch {
		case findErr == nil:
			if existing.UserID != in.UserID {
				return ConflictError(
					fmt.Sprintf("Account %s on %s is already linked to another user", in.PlatformAccountID, in.Platform),
					map[string]any{"platform": in.Platform.String(), "platform_account_id": in.PlatformAccountID},
				)
			}
			rotated, rotateErr := m.rotateCredentials(ctx, existing, in)
			if rotateErr != nil {
				return rotateErr
			}
			updated, updateErr := repo.Update(ctx, rotated)
			if updateErr != nil {
				return updateErr
			}
			fields["action"] = "updated"
			link = updated
			return nil
		case errors.Is(findErr, ErrLinkNotFound):
			record, buildErr := m.newLinkRecord(ctx, in)
			if buildErr != nil {
				return buildErr
			}
			created, createErr := repo.Create(ctx, record)
			if createErr != nil {
				return createErr
			}
			fields["action"] = "created"
			link = created
			return nil
		default:
			return findErr
		}
	})
	if err != nil {
		err = m.wrapUnexpected(err, "failed to link account")
		return SocialAccountLink{}, err
	}
	fields["link_id"] = link.ID
	return link.Clone(), nil
}

// VerifyAccount checks ownership against the live platform. A transport
// failure is reported as an unverified result and never downgrades a link
// that was already verified.
func (m *Manager) VerifyAccount(ctx context.Context, linkID string, clientID string, clientSecret string) (verified bool, err error) {
	startedAt := time.Now().UTC()
	linkID = strings.TrimSpace(linkID)
	fields := map[string]any{"link_id": linkID}
	defer func() {
		fields["verified"] = verified
		m.observeOperation(ctx, startedAt, "verify_account", err, fields)
	}()

	if err = m.ready(); err != nil {
		return false, err
	}
	link, err := m.loadLink(ctx, m.store, linkID)
	if err != nil {
		return false, err
	}
	fields["platform"] = link.Platform.String()
	fields["user_id"] = link.UserID

	app := AppCredentials{ClientID: strings.TrimSpace(clientID), ClientSecret: strings.TrimSpace(clientSecret)}
	err = m.withClient(ctx, link, app, func(client PlatformClient) error {
		ok, verifyErr := client.VerifyAccountOwnership(ctx, link.PlatformAccountID)
		if verifyErr != nil {
			m.logWarn(ctx, "ownership verification could not reach platform", map[string]any{
				"link_id":  link.ID,
				"platform": link.Platform.String(),
				"error":    verifyErr.Error(),
			})
			return nil
		}
		verified = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	if !verified {
		m.logWarn(ctx, "account verification failed", map[string]any{
			"link_id":  link.ID,
			"user_id":  link.UserID,
			"platform": link.Platform.String(),
		})
		return false, nil
	}

	verifiedAt := m.now().UTC()
	err = m.store.WithinTx(ctx, func(ctx context.Context, repo LinkRepository) error {
		return repo.MarkVerified(ctx, link.ID, verifiedAt)
	})
	if err != nil {
		verified = false
		err = m.wrapUnexpected(err, "failed to verify account")
		return false, err
	}
	return true, nil
}

func (m *Manager) UnlinkAccount(ctx context.Context, req UnlinkRequest) (result UnlinkResult, err error) {
	startedAt := time.Now().UTC()
	req.LinkID = strings.TrimSpace(req.LinkID)
	req.UserID = strings.TrimSpace(req.UserID)
	fields := map[string]any{"link_id": req.LinkID, "user_id": req.UserID, "revoke": req.Revoke}
	defer func() {
		fields["revoked"] = result.Revoked
		m.observeOperation(ctx, startedAt, "unlink_account", err, fields)
	}()

	if err = m.ready(); err != nil {
		return UnlinkResult{}, err
	}
	link, err := m.loadLink(ctx, m.store, req.LinkID)
	if err != nil {
		return UnlinkResult{}, err
	}
	fields["platform"] = link.Platform.String()
	if link.UserID != req.UserID {
		err = ForbiddenError("Unauthorized: Account belongs to different user", map[string]any{
			"link_id": req.LinkID,
		})
		return UnlinkResult{}, err
	}

	clientID := strings.TrimSpace(req.ClientID)
	clientSecret := strings.TrimSpace(req.ClientSecret)
	if req.Revoke && clientID != "" && clientSecret != "" {
		result = m.revokeBestEffort(ctx, link, clientID, clientSecret)
	}

	err = m.store.WithinTx(ctx, func(ctx context.Context, repo LinkRepository) error {
		return repo.Delete(ctx, link.ID)
	})
	if err != nil {
		err = m.wrapUnexpected(err, "failed to unlink account")
		return result, err
	}
	return result, nil
}

// DisconnectAccount removes the user's link for a platform and returns the
// removed link as a detached copy.
func (m *Manager) DisconnectAccount(ctx context.Context, userID string, platformName string) (removed SocialAccountLink, err error) {
	startedAt := time.Now().UTC()
	userID = strings.TrimSpace(userID)
	normalized := strings.ToLower(strings.TrimSpace(platformName))
	fields := map[string]any{"user_id": userID, "platform": normalized}
	defer func() {
		m.observeOperation(ctx, startedAt, "disconnect_account", err, fields)
	}()

	if err = m.ready(); err != nil {
		return SocialAccountLink{}, err
	}
	notFound := NotFoundError(
		fmt.Sprintf("No %s account found for user", strings.TrimSpace(platformName)),
		map[string]any{"user_id": userID, "platform": normalized},
	)
	platform, parseErr := ParsePlatform(normalized)
	if parseErr != nil {
		err = notFound
		return SocialAccountLink{}, err
	}

	err = m.store.WithinTx(ctx, func(ctx context.Context, repo LinkRepository) error {
		existing, findErr := repo.FindByUserPlatform(ctx, userID, platform)
		if errors.Is(findErr, ErrLinkNotFound) {
			return notFound
		}
		if findErr != nil {
			return findErr
		}
		removed = existing.Clone()
		return repo.Delete(ctx, existing.ID)
	})
	if err != nil {
		err = m.wrapUnexpected(err, "failed to disconnect account")
		return SocialAccountLink{}, err
	}
	fields["link_id"] = removed.ID
	return removed, nil
}

// LinkManualAccount creates an unverified link from a username alone. The
// synthesized account id is derived from the username and the first eight
// characters of the user id.
func (m *Manager) LinkManualAccount(ctx context.Context, userID string, platformName string, username string) (link SocialAccountLink, err error) {
	startedAt := time.Now().UTC()
	userID = strings.TrimSpace(userID)
	username = strings.TrimSpace(username)
	fields := map[string]any{"user_id": userID, "platform": strings.ToLower(strings.TrimSpace(platformName)), "username": username}
	defer func() {
		m.observeOperation(ctx, startedAt, "link_manual_account", err, fields)
	}()

	if err = m.ready(); err != nil {
		return SocialAccountLink{}, err
	}
	platform, parseErr := ParsePlatform(platformName)
	if parseErr != nil {
		err = ValidationError(
			fmt.Sprintf("Invalid platform: %s. Valid: %s", strings.TrimSpace(platformName), validPlatformNames()),
			"platform",
		)
		return SocialAccountLink{}, err
	}
	if userID == "" {
		err = ValidationError("user id is required", "user_id")
		return SocialAccountLink{}, err
	}
	if username == "" {
		err = ValidationError("username is required", "username")
		return SocialAccountLink{}, err
	}

	accountID := manualAccountID(m.config.Manual.IDPrefix, username, userID)
	fields["platform_account_id"] = accountID

	err = m.store.WithinTx(ctx, func(ctx context.Context, repo LinkRepository) error {
		_, findErr := repo.FindByUserPlatform(ctx, userID, platform)
		if findErr == nil {
			return ValidationError(fmt.Sprintf("A %s account is already connected", platform), "platform")
		}
		if !errors.Is(findErr, ErrLinkNotFound) {
			return findErr
		}
		if _, dupErr := repo.FindByPlatformAccount(ctx, platform, accountID); dupErr == nil {
			return ConflictError(
				fmt.Sprintf("Account %s on %s is already linked to another user", accountID, platform),
				map[string]any{"platform": platform.String(), "platform_account_id": accountID},
			)
		} else if !errors.Is(dupErr, ErrLinkNotFound) {
			return dupErr
		}

		record, buildErr := m.newLinkRecord(ctx, LinkAccountInput{
			UserID:            userID,
			Platform:          platform,
			PlatformAccountID: accountID,
			AccessToken:       m.config.Manual.PlaceholderToken,
			Username:          username,
			DisplayName:       username,
		})
		if buildErr != nil {
			return buildErr
		}
		created, createErr := repo.Create(ctx, record)
		if createErr != nil {
			return createErr
		}
		link = created
		return nil
	})
	if err != nil {
		err = m.wrapUnexpected(err, "failed to link manual account")
		return SocialAccountLink{}, err
	}
	fields["link_id"] = link.ID
	return link.Clone(), nil
}

func (m *Manager) GetUserAccounts(ctx context.Context, userID string, filter AccountFilter) (links []SocialAccountLink, err error) {
	startedAt := time.Now().UTC()
	userID = strings.TrimSpace(userID)
	fields := map[string]any{"user_id": userID, "platform": filter.Platform.String(), "verified_only": filter.VerifiedOnly}
	defer func() {
		fields["count"] = len(links)
		m.observeOperation(ctx, startedAt, "get_user_accounts", err, fields)
	}()

	if err = m.ready(); err != nil {
		return nil, err
	}
	if filter.Platform != "" && !filter.Platform.Valid() {
		err = UnsupportedPlatformError(filter.Platform.String())
		return nil, err
	}
	found, err := m.store.ListByUser(ctx, userID, filter)
	if err != nil {
		err = m.wrapUnexpected(err, "failed to list user accounts")
		return nil, err
	}
	links = make([]SocialAccountLink, 0, len(found))
	for _, link := range found {
		links = append(links, link.Clone())
	}
	return links, nil
}

// GetAccount returns one link after checking it belongs to userID.
func (m *Manager) GetAccount(ctx context.Context, userID string, linkID string) (SocialAccountLink, error) {
	if err := m.ready(); err != nil {
		return SocialAccountLink{}, err
	}
	link, err := m.loadLink(ctx, m.store, strings.TrimSpace(linkID))
	if err != nil {
		return SocialAccountLink{}, err
	}
	if link.UserID != strings.TrimSpace(userID) {
		return SocialAccountLink{}, ForbiddenError("Unauthorized: Account belongs to different user", map[string]any{
			"link_id": link.ID,
		})
	}
	return link.Clone(), nil
}

// RefreshAccount overlays live profile fields on the cached copy. Empty
// values from the platform never replace known data.
func (m *Manager) RefreshAccount(ctx context.Context, userID string, platform Platform) (link SocialAccountLink, err error) {
	startedAt := time.Now().UTC()
	userID = strings.TrimSpace(userID)
	fields := map[string]any{"user_id": userID, "platform": platform.String()}
	defer func() {
		m.observeOperation(ctx, startedAt, "refresh_account", err, fields)
	}()

	if err = m.ready(); err != nil {
		return SocialAccountLink{}, err
	}
	if !platform.Valid() {
		err = UnsupportedPlatformError(platform.String())
		return SocialAccountLink{}, err
	}
	link, err = m.store.FindByUserPlatform(ctx, userID, platform)
	if errors.Is(err, ErrLinkNotFound) {
		err = NotFoundError(fmt.Sprintf("No %s account found for user", platform), map[string]any{
			"user_id":  userID,
			"platform": platform.String(),
		})
		return SocialAccountLink{}, err
	}
	if err != nil {
		err = m.wrapUnexpected(err, "failed to refresh account")
		return SocialAccountLink{}, err
	}
	fields["link_id"] = link.ID

	var profile PlatformProfile
	err = m.withClient(ctx, link, AppCredentials{}, func(client PlatformClient) error {
		fetched, fetchErr := client.GetUserProfile(ctx, "")
		if fetchErr != nil {
			return TransportFailureError(fetchErr, "failed to fetch platform profile", map[string]any{
				"platform": link.Platform.String(),
			})
		}
		profile = fetched
		return nil
	})
	if err != nil {
		return SocialAccountLink{}, err
	}

	update := ProfileUpdate{
		Username:    link.Username,
		DisplayName: link.DisplayName,
		UpdatedAt:   m.now().UTC(),
	}
	if value := strings.TrimSpace(profile.Username); value != "" {
		update.Username = value
	}
	if value := strings.TrimSpace(profile.DisplayName); value != "" {
		update.DisplayName = value
	}

	err = m.store.WithinTx(ctx, func(ctx context.Context, repo LinkRepository) error {
		return repo.UpdateProfile(ctx, link.ID, update)
	})
	if err != nil {
		err = m.wrapUnexpected(err, "failed to refresh account")
		return SocialAccountLink{}, err
	}
	link.Username = update.Username
	link.DisplayName = update.DisplayName
	link.UpdatedAt = update.UpdatedAt
	return link.Clone(), nil
}

// CheckEngagement runs one best-effort engagement check on the user's link.
// Checks the platform cannot answer return false.
func (m *Manager) CheckEngagement(ctx context.Context, check EngagementCheck) (passed bool, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"link_id": check.LinkID, "user_id": check.UserID, "kind": string(check.Kind)}
	defer func() {
		fields["passed"] = passed
		m.observeOperation(ctx, startedAt, "check_engagement", err, fields)
	}()

	link, err := m.GetAccount(ctx, check.UserID, check.LinkID)
	if err != nil {
		return false, err
	}
	fields["platform"] = link.Platform.String()
	targetID := strings.TrimSpace(check.TargetID)
	if targetID == "" {
		err = ValidationError("target id is required", "target_id")
		return false, err
	}

	err = m.withClient(ctx, link, AppCredentials{}, func(client PlatformClient) error {
		var checkErr error
		switch check.Kind {
		case EngagementFollow:
			passed, checkErr = client.VerifyFollow(ctx, targetID)
		case EngagementSubscription:
			passed, checkErr = client.VerifySubscription(ctx, targetID)
		case EngagementLike:
			passed, checkErr = client.VerifyLike(ctx, targetID)
		case EngagementComment:
			passed, checkErr = client.VerifyComment(ctx, targetID)
		case EngagementVideoEngagement:
			passed, checkErr = client.VerifyVideoEngagement(ctx, targetID)
		default:
			return ValidationError(fmt.Sprintf("unknown engagement kind %q", check.Kind), "kind")
		}
		if checkErr != nil {
			return TransportFailureError(checkErr, "engagement check failed", map[string]any{
				"platform": link.Platform.String(),
				"kind":     string(check.Kind),
			})
		}
		return nil
	})
	if err != nil {
		passed = false
		return false, err
	}
	return passed, nil
}

func (m *Manager) ready() error {
	if m == nil || m.store == nil || m.cipher == nil {
		return InternalError(nil, "core: link manager is not configured")
	}
	return nil
}

func (m *Manager) loadLink(ctx context.Context, repo LinkReader, linkID string) (SocialAccountLink, error) {
	if linkID == "" {
		return SocialAccountLink{}, ValidationError("link id is required", "link_id")
	}
	link, err := repo.Get(ctx, linkID)
	if errors.Is(err, ErrLinkNotFound) {
		return SocialAccountLink{}, NotFoundError(fmt.Sprintf("Account %s not found", linkID), map[string]any{
			"link_id": linkID,
		})
	}
	if err != nil {
		return SocialAccountLink{}, m.wrapUnexpected(err, "failed to load account")
	}
	return link, nil
}

// withClient decrypts the access token, opens a platform client and always
// closes it once fn returns.
func (m *Manager) withClient(ctx context.Context, link SocialAccountLink, app AppCredentials, fn func(PlatformClient) error) error {
	if m.clients == nil {
		return UnsupportedPlatformError(link.Platform.String())
	}
	if _, ok := m.clients.Capabilities(link.Platform); !ok {
		return UnsupportedPlatformError(link.Platform.String())
	}
	accessToken, err := m.cipher.Open(ctx, link.AccessToken)
	if err != nil {
		return m.wrapUnexpected(err, "failed to decrypt access token")
	}
	client, err := m.clients.NewClient(ctx, link.Platform, accessToken, app)
	if err != nil {
		if errors.Is(err, ErrUnsupportedPlatform) {
			return UnsupportedPlatformError(link.Platform.String())
		}
		return m.wrapUnexpected(err, "failed to create platform client")
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			m.logWarn(ctx, "platform client close failed", map[string]any{
				"platform": link.Platform.String(),
				"error":    closeErr.Error(),
			})
		}
	}()
	return fn(client)
}

func (m *Manager) revokeBestEffort(ctx context.Context, link SocialAccountLink, clientID string, clientSecret string) UnlinkResult {
	fields := map[string]any{"link_id": link.ID, "platform": link.Platform.String()}
	if m.exchange == nil {
		m.logWarn(ctx, "token revoke skipped: no oauth exchange configured", fields)
		return UnlinkResult{RevokeErr: ErrCapabilityUnsupported}
	}
	accessToken, err := m.cipher.Open(ctx, link.AccessToken)
	if err == nil {
		err = m.exchange.Revoke(ctx, link.Platform, accessToken, clientID, clientSecret)
	}
	if err != nil {
		fields["error"] = err.Error()
		m.logWarn(ctx, "failed to revoke oauth token", fields)
		return UnlinkResult{RevokeErr: err}
	}
	m.logInfo(ctx, "oauth token revoked", fields)
	return UnlinkResult{Revoked: true}
}

func (m *Manager) newLinkRecord(ctx context.Context, in LinkAccountInput) (SocialAccountLink, error) {
	accessToken, err := m.cipher.Seal(ctx, in.AccessToken)
	if err != nil {
		return SocialAccountLink{}, err
	}
	refreshToken, err := m.cipher.SealOptional(ctx, in.RefreshToken)
	if err != nil {
		return SocialAccountLink{}, err
	}
	now := m.now().UTC()
	return SocialAccountLink{
		UserID:            in.UserID,
		Platform:          in.Platform,
		PlatformAccountID: in.PlatformAccountID,
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		ExpiresAt:         cloneTime(in.ExpiresAt),
		Scope:             in.Scope,
		Username:          in.Username,
		DisplayName:       in.DisplayName,
		IsVerified:        false,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

func (m *Manager) rotateCredentials(ctx context.Context, existing SocialAccountLink, in LinkAccountInput) (SocialAccountLink, error) {
	rotated := existing.Clone()
	accessToken, err := m.cipher.Seal(ctx, in.AccessToken)
	if err != nil {
		return SocialAccountLink{}, err
	}
	rotated.AccessToken = accessToken
	if strings.TrimSpace(in.RefreshToken) != "" {
		refreshToken, sealErr := m.cipher.Seal(ctx, in.RefreshToken)
		if sealErr != nil {
			return SocialAccountLink{}, sealErr
		}
		rotated.RefreshToken = refreshToken
	}
	rotated.ExpiresAt = cloneTime(in.ExpiresAt)
	if in.Scope != "" {
		rotated.Scope = in.Scope
	}
	if in.Username != "" {
		rotated.Username = in.Username
	}
	if in.DisplayName != "" {
		rotated.DisplayName = in.DisplayName
	}
	rotated.UpdatedAt = m.now().UTC()
	return rotated, nil
}

func (m *Manager) mapError(err error) error {
	if err == nil {
		return nil
	}
	if m == nil || m.errorMapper == nil {
		return err
	}
	if mapped := m.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

// wrapUnexpected passes typed domain errors through and wraps everything else
// as an internal error that keeps the cause.
func (m *Manager) wrapUnexpected(err error, message string) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return InternalError(err, message)
}

func normalizeLinkInput(in LinkAccountInput) LinkAccountInput {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Platform = Platform(strings.ToLower(strings.TrimSpace(string(in.Platform))))
	in.PlatformAccountID = strings.TrimSpace(in.PlatformAccountID)
	in.AccessToken = strings.TrimSpace(in.AccessToken)
	in.RefreshToken = strings.TrimSpace(in.RefreshToken)
	in.Scope = strings.TrimSpace(in.Scope)
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.ExpiresAt != nil {
		in.ExpiresAt = cloneTime(in.ExpiresAt)
	}
	return in
}

func manualAccountID(prefix string, username string, userID string) string {
	short := userID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s_%s", prefix, username, short)
}
