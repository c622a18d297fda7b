package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-social-links/core"
	"github.com/goliatone/go-social-links/transport"
)

const (
	DefaultTokenRequestTimeout       = 30 * time.Second
	maxTokenResponseBodyBytes  int64 = 1 << 20
)

type ClientAuthStyle int

const (
	// ClientAuthBasic sends the client credentials as HTTP basic auth.
	ClientAuthBasic ClientAuthStyle = iota
	// ClientAuthBody sends client_id and client_secret as form fields.
	ClientAuthBody
	// ClientAuthClientKey sends client_key and client_secret as form fields.
	ClientAuthClientKey
)

type RevokeStyle int

const (
	RevokeNone RevokeStyle = iota
	// RevokeForm posts the token to a revocation endpoint.
	RevokeForm
	// RevokeGraphPermissions deletes the app's permissions with the token as
	// bearer.
	RevokeGraphPermissions
)

type OAuthEndpoint struct {
	TokenURL    string
	RevokeURL   string
	ClientAuth  ClientAuthStyle
	RevokeStyle RevokeStyle
}

const GraphPermissionsURL = "https://graph.facebook.com/v23.0/me/permissions"

func DefaultOAuthEndpoints() map[core.Platform]OAuthEndpoint {
	return map[core.Platform]OAuthEndpoint{
		core.PlatformTwitter: {
			TokenURL:    "https://api.twitter.com/2/oauth2/token",
			RevokeURL:   "https://api.twitter.com/2/oauth2/revoke",
			ClientAuth:  ClientAuthBasic,
			RevokeStyle: RevokeForm,
		},
		core.PlatformTikTok: {
			TokenURL:    "https://open.tiktokapis.com/v2/oauth/token/",
			RevokeURL:   "https://open.tiktokapis.com/v2/oauth/revoke/",
			ClientAuth:  ClientAuthClientKey,
			RevokeStyle: RevokeForm,
		},
		core.PlatformYouTube: {
			TokenURL:    "https://oauth2.googleapis.com/token",
			RevokeURL:   "https://oauth2.googleapis.com/revoke",
			ClientAuth:  ClientAuthBody,
			RevokeStyle: RevokeForm,
		},
		core.PlatformFacebook: {
			RevokeURL:   GraphPermissionsURL,
			RevokeStyle: RevokeGraphPermissions,
		},
		core.PlatformInstagram: {},
	}
}

type OAuthExchangeOption func(*OAuthExchange)

func WithOAuthTransport(adapter transport.Adapter) OAuthExchangeOption {
	return func(e *OAuthExchange) {
		if adapter != nil {
			e.transport = adapter
		}
	}
}

func WithOAuthEndpoint(platform core.Platform, endpoint OAuthEndpoint) OAuthExchangeOption {
	return func(e *OAuthExchange) {
		e.endpoints[platform] = endpoint
	}
}

func WithOAuthTimeout(timeout time.Duration) OAuthExchangeOption {
	return func(e *OAuthExchange) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func WithOAuthClock(now func() time.Time) OAuthExchangeOption {
	return func(e *OAuthExchange) {
		if now != nil {
			e.now = now
		}
	}
}

// OAuthExchange talks to platform token endpoints for refresh and revoke.
type OAuthExchange struct {
	transport transport.Adapter
	endpoints map[core.Platform]OAuthEndpoint
	timeout   time.Duration
	now       func() time.Time
}

func NewOAuthExchange(opts ...OAuthExchangeOption) *OAuthExchange {
	exchange := &OAuthExchange{
		transport: transport.NewRESTAdapter(nil),
		endpoints: DefaultOAuthEndpoints(),
		timeout:   DefaultTokenRequestTimeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(exchange)
	}
	return exchange
}

func (e *OAuthExchange) Refresh(
	ctx context.Context,
	platform core.Platform,
	refreshToken string,
	clientID string,
	clientSecret string,
) (core.TokenRefreshResult, error) {
	endpoint, ok := e.endpoints[platform]
	if !ok || strings.TrimSpace(endpoint.TokenURL) == "" {
		return core.TokenRefreshResult{}, core.CapabilityUnsupportedError(platform, "refresh_token")
	}
	if strings.TrimSpace(refreshToken) == "" {
		return core.TokenRefreshResult{}, core.ValidationError("refresh token is required", "refresh_token")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", strings.TrimSpace(refreshToken))
	req := e.formRequest(endpoint.TokenURL, form, endpoint.ClientAuth, clientID, clientSecret)

	res, err := e.transport.Do(ctx, req)
	if err != nil {
		return core.TokenRefreshResult{}, core.TransportFailureError(err, "providers: token request failed", map[string]any{
			"platform": platform.String(),
		})
	}
	payload, parseErr := parseTokenPayload(res.Body, headerValue(res.Headers, "Content-Type"))
	if !res.Success() {
		message := "providers: token endpoint error"
		if parseErr == nil {
			message += ": " + describeTokenError(payload)
		}
		return core.TokenRefreshResult{}, core.TransportFailureError(
			transport.StatusError(res, message, map[string]any{"platform": platform.String()}),
			message,
			nil,
		)
	}
	if parseErr != nil {
		return core.TokenRefreshResult{}, core.TransportFailureError(parseErr, "providers: decode token response", map[string]any{
			"platform": platform.String(),
		})
	}
	if payload.ErrorCode != "" {
		return core.TokenRefreshResult{}, core.TransportFailureError(nil, "providers: token endpoint error: "+describeTokenError(payload), map[string]any{
			"platform": platform.String(),
		})
	}
	if payload.AccessToken == "" {
		return core.TokenRefreshResult{}, core.TransportFailureError(nil, "providers: token endpoint response missing access token", map[string]any{
			"platform": platform.String(),
		})
	}

	return core.TokenRefreshResult{
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    resolveExpiresAt(e.now(), payload.ExpiresIn),
		Scope:        payload.Scope,
	}, nil
}

func (e *OAuthExchange) Revoke(
	ctx context.Context,
	platform core.Platform,
	token string,
	clientID string,
	clientSecret string,
) error {
	endpoint, ok := e.endpoints[platform]
	if !ok || endpoint.RevokeStyle == RevokeNone || strings.TrimSpace(endpoint.RevokeURL) == "" {
		return core.CapabilityUnsupportedError(platform, "revoke")
	}
	if strings.TrimSpace(token) == "" {
		return core.ValidationError("token is required", "token")
	}

	var req transport.Request
	switch endpoint.RevokeStyle {
	case RevokeGraphPermissions:
		req = transport.Request{
			Method: http.MethodDelete,
			URL:    endpoint.RevokeURL,
			Headers: map[string]string{
				"Authorization": "Bearer " + strings.TrimSpace(token),
				"Accept":        "application/json",
			},
			Query:                map[string]string{},
			Timeout:              e.timeout,
			MaxResponseBodyBytes: maxTokenResponseBodyBytes,
		}
		if proof := AppSecretProof(token, clientSecret); proof != "" {
			req.Query["appsecret_proof"] = proof
		}
	default:
		form := url.Values{}
		form.Set("token", strings.TrimSpace(token))
		if platform == core.PlatformTwitter {
			form.Set("token_type_hint", "access_token")
		}
		auth := endpoint.ClientAuth
		if platform == core.PlatformYouTube {
			// Google revocation only needs the token.
			clientID, clientSecret = "", ""
		}
		req = e.formRequest(endpoint.RevokeURL, form, auth, clientID, clientSecret)
	}

	res, err := e.transport.Do(ctx, req)
	if err != nil {
		return core.TransportFailureError(err, "providers: revoke request failed", map[string]any{
			"platform": platform.String(),
		})
	}
	if !res.Success() {
		return core.TransportFailureError(
			transport.StatusError(res, "providers: revoke endpoint error", map[string]any{"platform": platform.String()}),
			"providers: revoke endpoint error",
			nil,
		)
	}
	return nil
}

func (e *OAuthExchange) formRequest(
	endpointURL string,
	form url.Values,
	auth ClientAuthStyle,
	clientID string,
	clientSecret string,
) transport.Request {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "application/json",
	}
	switch auth {
	case ClientAuthClientKey:
		if clientID != "" {
			form.Set("client_key", clientID)
		}
		if clientSecret != "" {
			form.Set("client_secret", clientSecret)
		}
	case ClientAuthBody:
		if clientID != "" {
			form.Set("client_id", clientID)
		}
		if clientSecret != "" {
			form.Set("client_secret", clientSecret)
		}
	default:
		if clientID != "" {
			form.Set("client_id", clientID)
		}
		if clientID != "" && clientSecret != "" {
			headers["Authorization"] = "Basic " + basicAuth(clientID, clientSecret)
		}
	}
	return transport.Request{
		Method:               http.MethodPost,
		URL:                  endpointURL,
		Headers:              headers,
		Body:                 []byte(form.Encode()),
		Timeout:              e.timeout,
		MaxResponseBodyBytes: maxTokenResponseBodyBytes,
	}
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func describeTokenError(payload tokenEndpointPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	payload := tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}
	// TikTok nests errors as {"error": {"code": "...", "message": "..."}}.
	if nested, ok := decoded["error"].(map[string]any); ok {
		payload.ErrorCode = readAnyString(nested["code"])
		payload.ErrorDescription = readAnyString(nested["message"])
		if payload.ErrorCode == "ok" {
			payload.ErrorCode, payload.ErrorDescription = "", ""
		}
	}
	return payload, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if strings.TrimSpace(string(body)) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func resolveExpiresAt(now time.Time, expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	expiresAt := now.UTC().Add(time.Duration(expiresIn) * time.Second)
	return &expiresAt
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case map[string]any, []any:
		return ""
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

func headerValue(headers map[string]string, key string) string {
	for name, value := range headers {
		if strings.EqualFold(name, key) {
			return value
		}
	}
	return ""
}

func basicAuth(username string, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(url.QueryEscape(username) + ":" + url.QueryEscape(password)))
}

var _ core.OAuthExchange = (*OAuthExchange)(nil)
