package sociallinks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-social-links/core"
	linkmigrations "github.com/goliatone/go-social-links/migrations"
	"github.com/goliatone/go-social-links/providers"
	"github.com/goliatone/go-social-links/ratelimit"
	"github.com/goliatone/go-social-links/security"
	sqlstore "github.com/goliatone/go-social-links/store/sql"
	"github.com/goliatone/go-social-links/transport"
)

type SetupOption func(*setupOptions)

type setupOptions struct {
	coreOptions     []core.Option
	factoryOptions  []providers.FactoryOption
	exchangeOptions []providers.OAuthExchangeOption
	persistence     *persistence.Client
	cacheService    repositorycache.CacheService
	skipMigrations  bool
	logger          core.Logger
}

// WithCoreOptions forwards options to both the manager and the scheduler.
func WithCoreOptions(opts ...core.Option) SetupOption {
	return func(o *setupOptions) {
		o.coreOptions = append(o.coreOptions, opts...)
	}
}

// WithLogger sets the logger for the manager, the scheduler, the client
// factory and the link cache.
func WithLogger(logger core.Logger) SetupOption {
	return func(o *setupOptions) {
		if logger == nil {
			return
		}
		o.logger = logger
		o.coreOptions = append(o.coreOptions, core.WithLogger(logger))
		o.factoryOptions = append(o.factoryOptions, providers.WithFactoryLogger(logger))
	}
}

func WithFactoryOptions(opts ...providers.FactoryOption) SetupOption {
	return func(o *setupOptions) {
		o.factoryOptions = append(o.factoryOptions, opts...)
	}
}

func WithOAuthExchangeOptions(opts ...providers.OAuthExchangeOption) SetupOption {
	return func(o *setupOptions) {
		o.exchangeOptions = append(o.exchangeOptions, opts...)
	}
}

// WithTransport routes platform API and token endpoint traffic through one
// adapter.
func WithTransport(adapter transport.Adapter) SetupOption {
	return func(o *setupOptions) {
		if adapter == nil {
			return
		}
		o.factoryOptions = append(o.factoryOptions, providers.WithTransport(adapter))
		o.exchangeOptions = append(o.exchangeOptions, providers.WithOAuthTransport(adapter))
	}
}

// WithPersistenceClient reuses an open client instead of opening one from
// Config.Database. Runtime.Close leaves a supplied client open.
func WithPersistenceClient(client *persistence.Client) SetupOption {
	return func(o *setupOptions) {
		o.persistence = client
	}
}

func WithCacheService(service repositorycache.CacheService) SetupOption {
	return func(o *setupOptions) {
		o.cacheService = service
	}
}

// WithoutMigrations skips registering and running the embedded migrations.
func WithoutMigrations() SetupOption {
	return func(o *setupOptions) {
		o.skipMigrations = true
	}
}

// Runtime is the wired link service.
type Runtime struct {
	Manager     *core.Manager
	Scheduler   *core.RefreshScheduler
	Clients     *providers.Factory
	Exchange    *providers.OAuthExchange
	Store       core.LinkStore
	Persistence *persistence.Client
	Facade      *Facade

	ownsPersistence bool
}

// Close releases the database when Setup opened it.
func (r *Runtime) Close() error {
	if r == nil || r.Persistence == nil || !r.ownsPersistence {
		return nil
	}
	return r.Persistence.Close()
}

// Setup opens storage, applies migrations and builds the manager, the refresh
// scheduler and the client factory from cfg.
func Setup(ctx context.Context, cfg Config, opts ...SetupOption) (*Runtime, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	options := setupOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if options.persistence == nil && strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("sociallinks: database.dsn is required")
	}

	runtime := &Runtime{Persistence: options.persistence}
	if runtime.Persistence == nil {
		client, err := sqlstore.Open(cfg.Database)
		if err != nil {
			return nil, err
		}
		runtime.Persistence = client
		runtime.ownsPersistence = true
	}

	if err := setupRuntime(ctx, runtime, cfg, options); err != nil {
		return nil, errors.Join(err, runtime.Close())
	}
	return runtime, nil
}

func setupRuntime(ctx context.Context, runtime *Runtime, cfg Config, options setupOptions) error {
	if !options.skipMigrations {
		if err := migrate(ctx, runtime.Persistence, cfg.Database.NormalizedDriver()); err != nil {
			return err
		}
	}

	repositories, err := sqlstore.NewRepositoryFactoryFromPersistence(runtime.Persistence)
	if err != nil {
		return err
	}
	cacheService := options.cacheService
	if cacheService == nil && cfg.Cache.Enabled {
		cacheConfig := repositorycache.DefaultConfig()
		cacheConfig.TTL = cfg.Cache.TTL
		cacheService, err = repositorycache.NewCacheService(cacheConfig)
		if err != nil {
			return fmt.Errorf("sociallinks: new cache service: %w", err)
		}
	}
	if cacheService != nil {
		var cacheOptions []sqlstore.CachedLinkStoreOption
		if options.logger != nil {
			cacheOptions = append(cacheOptions, sqlstore.WithCachedLinkStoreLogger(options.logger))
		}
		if err := repositories.WithCache(cacheService, cacheOptions...); err != nil {
			return err
		}
	}
	runtime.Store = repositories.LinkStore()

	secrets, err := newSecretProvider(cfg.Security)
	if err != nil {
		return err
	}

	factoryOptions := []providers.FactoryOption{
		providers.WithRequestTimeout(cfg.Core.Transport.RequestTimeout),
		providers.WithRateLimiter(ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())),
	}
	for name, baseURL := range cfg.Platforms {
		platform, parseErr := core.ParsePlatform(name)
		if parseErr != nil {
			return parseErr
		}
		factoryOptions = append(factoryOptions, providers.WithBaseURL(platform, baseURL))
	}
	factoryOptions = append(factoryOptions, options.factoryOptions...)
	runtime.Clients, err = NewClientFactory(factoryOptions...)
	if err != nil {
		return err
	}

	exchangeOptions := append([]providers.OAuthExchangeOption{
		providers.WithOAuthTimeout(cfg.Core.Transport.RequestTimeout),
	}, options.exchangeOptions...)
	runtime.Exchange = providers.NewOAuthExchange(exchangeOptions...)

	coreOptions := append([]core.Option{
		core.WithLinkStore(runtime.Store),
		core.WithSecretProvider(secrets),
		core.WithPlatformClientFactory(runtime.Clients),
		core.WithOAuthExchange(runtime.Exchange),
	}, options.coreOptions...)

	runtime.Manager, err = core.NewManager(cfg.Core, coreOptions...)
	if err != nil {
		return err
	}
	runtime.Scheduler, err = core.NewRefreshScheduler(cfg.Core, coreOptions...)
	if err != nil {
		return err
	}
	runtime.Facade, err = NewFacade(runtime.Manager, runtime.Scheduler, runtime.Clients)
	return err
}

func migrate(ctx context.Context, client *persistence.Client, driver string) error {
	dialect := linkmigrations.DialectSQLite
	if driver == sqlstore.DriverPostgres {
		dialect = linkmigrations.DialectPostgres
	}
	_, err := linkmigrations.Register(ctx, func(_ context.Context, target string, _ string, fsys fs.FS) error {
		if target != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	},
		linkmigrations.WithSource(GetMigrationsFS()),
		linkmigrations.WithValidationTargets(dialect),
	)
	if err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("sociallinks: migrate: %w", err)
	}
	return nil
}

// newSecretProvider returns the plain app key provider, or a keyring when
// retired keys must remain readable.
func newSecretProvider(cfg SecurityConfig) (core.SecretProvider, error) {
	active, err := security.NewAppKeySecretProviderFromString(
		cfg.AppKey,
		security.WithKeyID(cfg.KeyID),
		security.WithVersion(cfg.KeyVersion),
	)
	if err != nil {
		return nil, err
	}
	if len(cfg.RetiredKeys) == 0 {
		return active, nil
	}
	entries := []security.KeyringEntry{{Provider: active}}
	for _, retired := range cfg.RetiredKeys {
		keyID := retired.KeyID
		if strings.TrimSpace(keyID) == "" {
			keyID = cfg.KeyID
		}
		provider, err := security.NewAppKeySecretProviderFromString(
			retired.AppKey,
			security.WithKeyID(keyID),
			security.WithVersion(retired.KeyVersion),
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, security.KeyringEntry{
			Provider: provider,
			Window:   security.KeyRotationWindow{NotAfter: retired.NotAfter},
		})
	}
	return security.NewKeyring(entries)
}
