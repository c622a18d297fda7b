package transport

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social-links/core"
)

const maxErrorBodyPreview = 512

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	if source == nil {
		return transportError(message, category, code, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

// StatusError converts a non-2xx response into a transport failure. The
// category follows the status so callers can tell auth, throttling and
// missing resources apart.
func StatusError(res Response, message string, metadata map[string]any) error {
	category := goerrors.CategoryExternal
	code := http.StatusBadGateway
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		category, code = goerrors.CategoryAuth, http.StatusUnauthorized
	case res.StatusCode == http.StatusForbidden:
		category, code = goerrors.CategoryAuthz, http.StatusForbidden
	case res.StatusCode == http.StatusNotFound:
		category, code = goerrors.CategoryNotFound, http.StatusNotFound
	case res.StatusCode == http.StatusTooManyRequests:
		category, code = goerrors.CategoryRateLimit, http.StatusTooManyRequests
	}
	fields := map[string]any{"status_code": res.StatusCode}
	for key, value := range metadata {
		fields[key] = value
	}
	if preview := bodyPreview(res.Body); preview != "" {
		fields["response_body"] = preview
	}
	if strings.TrimSpace(message) == "" {
		message = "transport: unexpected response status"
	}
	return transportError(fmt.Sprintf("%s (status %d)", message, res.StatusCode), category, code, fields)
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorValidation
	case goerrors.CategoryInternal:
		return core.ErrorInternal
	default:
		return core.ErrorTransportFailure
	}
}

func bodyPreview(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > maxErrorBodyPreview {
		return trimmed[:maxErrorBodyPreview]
	}
	return trimmed
}
