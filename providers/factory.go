package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/ratelimit"
	"github.com/goliatone/go-social-links/transport"
)

// ClientConfig is what a builder receives for a single client. Transport is
// a fresh adapter per client unless the factory was given a shared one.
type ClientConfig struct {
	Platform    core.Platform
	AccessToken string
	App         core.AppCredentials
	BaseURL     string
	Transport   transport.Adapter
	Timeout     time.Duration
	Logger      core.Logger
	RateLimiter ratelimit.Policy
}

type ClientBuilder func(ctx context.Context, cfg ClientConfig) (core.PlatformClient, error)

type FactoryOption func(*Factory)

func WithClientBuilder(platform core.Platform, builder ClientBuilder) FactoryOption {
	return func(f *Factory) {
		if builder != nil {
			f.builders[platform] = builder
		}
	}
}

// WithBaseURL overrides a platform API root, mostly for tests.
func WithBaseURL(platform core.Platform, baseURL string) FactoryOption {
	return func(f *Factory) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			f.baseURLs[platform] = trimmed
		}
	}
}

// WithTransport shares one adapter across every client.
func WithTransport(adapter transport.Adapter) FactoryOption {
	return func(f *Factory) {
		f.transport = adapter
	}
}

func WithHTTPClient(client transport.HTTPDoer) FactoryOption {
	return func(f *Factory) {
		f.httpClient = client
	}
}

func WithRequestTimeout(timeout time.Duration) FactoryOption {
	return func(f *Factory) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithRateLimiter shares one throttle policy across every client.
func WithRateLimiter(policy ratelimit.Policy) FactoryOption {
	return func(f *Factory) {
		f.limiter = policy
	}
}

func WithFactoryLogger(logger core.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Factory is the single dispatch point from a platform to its client.
type Factory struct {
	mu         sync.RWMutex
	builders   map[core.Platform]ClientBuilder
	baseURLs   map[core.Platform]string
	transport  transport.Adapter
	httpClient transport.HTTPDoer
	timeout    time.Duration
	logger     core.Logger
	limiter    ratelimit.Policy
}

func NewFactory(opts ...FactoryOption) *Factory {
	factory := &Factory{
		builders: map[core.Platform]ClientBuilder{},
		baseURLs: map[core.Platform]string{},
		timeout:  transport.DefaultRequestTimeout,
		logger:   glog.Nop(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(factory)
	}
	return factory
}

func (f *Factory) Register(platform core.Platform, builder ClientBuilder) error {
	if f == nil {
		return fmt.Errorf("providers: factory is nil")
	}
	if !platform.Valid() {
		return fmt.Errorf("%w: %q", core.ErrUnsupportedPlatform, platform)
	}
	if builder == nil {
		return fmt.Errorf("providers: builder for %s is nil", platform)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.builders[platform]; exists {
		return fmt.Errorf("providers: builder for %s already registered", platform)
	}
	f.builders[platform] = builder
	return nil
}

func (f *Factory) NewClient(ctx context.Context, platform core.Platform, accessToken string, app core.AppCredentials) (core.PlatformClient, error) {
	if f == nil {
		return nil, fmt.Errorf("providers: factory is nil")
	}
	f.mu.RLock()
	builder, ok := f.builders[platform]
	baseURL := f.baseURLs[platform]
	f.mu.RUnlock()
	if !platform.Valid() || !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedPlatform, platform)
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("providers: access token is required for %s", platform)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	adapter := f.transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(f.httpClient)
	}
	return builder(ctx, ClientConfig{
		Platform:    platform,
		AccessToken: accessToken,
		App:         app,
		BaseURL:     baseURL,
		Transport:   adapter,
		Timeout:     f.timeout,
		Logger:      f.logger,
		RateLimiter: f.limiter,
	})
}

// Capabilities reports the descriptor for platforms that have a builder.
func (f *Factory) Capabilities(platform core.Platform) (core.PlatformCapabilities, bool) {
	if f == nil {
		return core.PlatformCapabilities{}, false
	}
	f.mu.RLock()
	_, registered := f.builders[platform]
	f.mu.RUnlock()
	if !registered {
		return core.PlatformCapabilities{}, false
	}
	return Capabilities(platform)
}

// Platforms lists registered platforms in canonical order.
func (f *Factory) Platforms() []core.Platform {
	if f == nil {
		return nil
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.Platform, 0, len(f.builders))
	for _, platform := range core.Platforms() {
		if _, ok := f.builders[platform]; ok {
			out = append(out, platform)
		}
	}
	return out
}

var _ core.PlatformClientFactory = (*Factory)(nil)
