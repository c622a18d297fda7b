package providers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/ratelimit"
	"github.com/goliatone/go-social-links/transport"
)

type APIClientConfig struct {
	Platform     core.Platform
	BaseURL      string
	AccessToken  string
	Transport    transport.Adapter
	Timeout      time.Duration
	Logger       core.Logger
	DefaultQuery map[string]string
	RateLimiter  ratelimit.Policy
}

// APIClient is the REST base shared by platform clients. The access token is
// only ever sent as a bearer header.
type APIClient struct {
	platform     core.Platform
	baseURL      string
	accessToken  string
	transport    transport.Adapter
	timeout      time.Duration
	logger       core.Logger
	defaultQuery map[string]string
	limiter      ratelimit.Policy
	limitKey     ratelimit.Key
	closed       atomic.Bool
}

func NewAPIClient(cfg APIClientConfig) (*APIClient, error) {
	if !cfg.Platform.Valid() {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedPlatform, cfg.Platform)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("providers: base url is required for %s", cfg.Platform)
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, fmt.Errorf("providers: access token is required for %s", cfg.Platform)
	}
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = transport.DefaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	query := map[string]string{}
	for key, value := range cfg.DefaultQuery {
		if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
			continue
		}
		query[key] = value
	}
	return &APIClient{
		platform:     cfg.Platform,
		baseURL:      baseURL,
		accessToken:  token,
		transport:    adapter,
		timeout:      timeout,
		logger:       logger,
		defaultQuery: query,
		limiter:      cfg.RateLimiter,
		limitKey:     ratelimit.Key{Platform: cfg.Platform, Bucket: tokenBucket(token)},
	}, nil
}

// tokenBucket keys rate limits by a digest of the access token so the token
// itself never lands in limiter state.
func tokenBucket(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func (c *APIClient) Platform() core.Platform {
	return c.platform
}

// Close releases idle connections held by a client owned transport. It is
// safe to call more than once.
func (c *APIClient) Close() error {
	if c == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if rest, ok := c.transport.(*transport.RESTAdapter); ok && rest != nil {
		if idle, ok := rest.Client.(interface{ CloseIdleConnections() }); ok {
			idle.CloseIdleConnections()
		}
	}
	return nil
}

func (c *APIClient) Closed() bool {
	return c == nil || c.closed.Load()
}

// Do performs a call against the platform API. Non-2xx responses and
// transport errors both surface as transport failures.
func (c *APIClient) Do(ctx context.Context, method string, path string, query map[string]string, body any) (transport.Response, error) {
	if c.Closed() {
		return transport.Response{}, core.TransportFailureError(nil, "providers: client is closed", map[string]any{
			"platform": c.platformName(),
		})
	}
	if ctx == nil {
		ctx = context.Background()
	}

	req := transport.Request{
		Method: method,
		URL:    c.baseURL + "/" + strings.TrimLeft(strings.TrimSpace(path), "/"),
		Headers: map[string]string{
			"Authorization": "Bearer " + c.accessToken,
			"Accept":        "application/json",
		},
		Query:   map[string]string{},
		Timeout: c.timeout,
	}
	for key, value := range c.defaultQuery {
		req.Query[key] = value
	}
	for key, value := range query {
		req.Query[key] = value
	}
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return transport.Response{}, core.InternalError(err, "providers: encode request body")
		}
		req.Body = encoded
		req.Headers["Content-Type"] = "application/json"
	}

	if c.limiter != nil {
		if err := c.limiter.BeforeCall(ctx, c.limitKey); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				return transport.Response{}, throttled.ToLinkError()
			}
			return transport.Response{}, core.InternalError(err, "providers: rate limit check failed")
		}
	}

	metadata := map[string]any{
		"platform": c.platform.String(),
		"path":     path,
	}
	res, err := c.transport.Do(ctx, req)
	if err != nil {
		return transport.Response{}, core.TransportFailureError(err, "providers: "+c.platform.String()+" request failed", metadata)
	}
	if c.limiter != nil {
		if limitErr := c.limiter.AfterCall(ctx, c.limitKey, ratelimit.ResponseMeta{
			StatusCode: res.StatusCode,
			Headers:    res.Headers,
		}); limitErr != nil {
			c.logger.WithContext(ctx).Warn("rate limit state update failed", "platform", c.platform.String(), "error", limitErr)
		}
	}
	if !res.Success() {
		return res, core.TransportFailureError(
			transport.StatusError(res, "providers: "+c.platform.String()+" api error", metadata),
			"providers: "+c.platform.String()+" api error",
			metadata,
		)
	}
	return res, nil
}

func (c *APIClient) GetJSON(ctx context.Context, path string, query map[string]string, out any) error {
	res, err := c.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return c.decode(res, path, out)
}

func (c *APIClient) PostJSON(ctx context.Context, path string, query map[string]string, body any, out any) error {
	res, err := c.Do(ctx, http.MethodPost, path, query, body)
	if err != nil {
		return err
	}
	return c.decode(res, path, out)
}

// FetchJSON decodes into out and also returns the body as a generic object,
// which profile snapshots keep as Raw.
func (c *APIClient) FetchJSON(ctx context.Context, method string, path string, query map[string]string, body any, out any) (map[string]any, error) {
	res, err := c.Do(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if err := c.decode(res, path, out); err != nil {
		return nil, err
	}
	raw := map[string]any{}
	if err := c.decode(res, path, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// CapabilityGap reports a check the platform cannot answer. It logs a
// warning and returns false with no error unless the client is closed.
func (c *APIClient) CapabilityGap(ctx context.Context, capability string) (bool, error) {
	if c.Closed() {
		return false, core.TransportFailureError(nil, "providers: client is closed", map[string]any{
			"platform": c.platformName(),
		})
	}
	logger := c.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	logger.Warn("capability not supported by platform", "platform", c.platform.String(), "capability", capability)
	return false, nil
}

func (c *APIClient) Logger() core.Logger {
	return c.logger
}

func (c *APIClient) decode(res transport.Response, path string, out any) error {
	if out == nil || len(bytes.TrimSpace(res.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return core.TransportFailureError(err, "providers: decode "+c.platform.String()+" response", map[string]any{
			"platform": c.platform.String(),
			"path":     path,
		})
	}
	return nil
}

func (c *APIClient) platformName() string {
	if c == nil {
		return ""
	}
	return c.platform.String()
}

// IsNotFound reports a platform 404.
func IsNotFound(err error) bool {
	for current := err; current != nil; current = errors.Unwrap(current) {
		if rich, ok := current.(*goerrors.Error); ok && rich.Category == goerrors.CategoryNotFound {
			return true
		}
	}
	return false
}
