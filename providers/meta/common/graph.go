package common

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-social-links/providers"
)

const (
	GraphVersion          = "v23.0"
	FacebookGraphBaseURL  = "https://graph.facebook.com/" + GraphVersion
	InstagramGraphBaseURL = "https://graph.instagram.com/" + GraphVersion
	DefaultPageLimit      = "100"
)

type Paging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next string `json:"next"`
}

// Picture is the nested avatar shape returned for the picture field.
type Picture struct {
	Data struct {
		URL string `json:"url"`
	} `json:"data"`
}

type Actor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// NewGraphClient builds the shared REST base for a Graph host. When the app
// secret is known every call carries appsecret_proof.
func NewGraphClient(cfg providers.ClientConfig, defaultBaseURL string) (*providers.APIClient, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	query := map[string]string{}
	if proof := providers.AppSecretProof(cfg.AccessToken, cfg.App.ClientSecret); proof != "" {
		query["appsecret_proof"] = proof
	}
	return providers.NewAPIClient(providers.APIClientConfig{
		Platform:     cfg.Platform,
		BaseURL:      baseURL,
		AccessToken:  cfg.AccessToken,
		Transport:    cfg.Transport,
		Timeout:      cfg.Timeout,
		Logger:       cfg.Logger,
		DefaultQuery: query,
		RateLimiter:  cfg.RateLimiter,
	})
}

// ObjectPath joins escaped Graph node ids into a request path.
func ObjectPath(segments ...string) (string, error) {
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		trimmed := strings.TrimSpace(segment)
		if trimmed == "" {
			return "", fmt.Errorf("providers/meta/common: object id is required")
		}
		parts = append(parts, url.PathEscape(trimmed))
	}
	return "/" + strings.Join(parts, "/"), nil
}

func FirstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
