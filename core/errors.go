package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorLinkConflict          = "SOCIAL_LINK_CONFLICT"
	ErrorLinkNotFound          = "SOCIAL_LINK_NOT_FOUND"
	ErrorLinkForbidden         = "SOCIAL_LINK_FORBIDDEN"
	ErrorValidation            = "SOCIAL_LINK_VALIDATION"
	ErrorUnsupportedPlatform   = "SOCIAL_PLATFORM_UNSUPPORTED"
	ErrorTransportFailure      = "SOCIAL_TRANSPORT_FAILURE"
	ErrorCapabilityUnsupported = "SOCIAL_CAPABILITY_UNSUPPORTED"
	ErrorRateLimited           = "SOCIAL_RATE_LIMITED"
	ErrorInternal              = "SOCIAL_INTERNAL_ERROR"
)

var (
	ErrLinkNotFound          = errors.New("core: social account link not found")
	ErrUnsupportedPlatform   = errors.New("core: unsupported platform")
	ErrCapabilityUnsupported = errors.New("core: capability not supported")
)

func ConflictError(message string, metadata map[string]any) *goerrors.Error {
	return newLinkError(message, goerrors.CategoryConflict, ErrorLinkConflict, metadata)
}

func NotFoundError(message string, metadata map[string]any) *goerrors.Error {
	return newLinkError(message, goerrors.CategoryNotFound, ErrorLinkNotFound, metadata)
}

func ForbiddenError(message string, metadata map[string]any) *goerrors.Error {
	return newLinkError(message, goerrors.CategoryAuthz, ErrorLinkForbidden, metadata)
}

func ValidationError(message string, field string) *goerrors.Error {
	err := goerrors.NewValidation(message, goerrors.FieldError{Field: field, Message: message})
	err.WithTextCode(ErrorValidation).WithCode(http.StatusBadRequest)
	return err
}

func UnsupportedPlatformError(platform string) *goerrors.Error {
	return newLinkError(
		"Unsupported platform: "+strings.TrimSpace(platform),
		goerrors.CategoryBadInput,
		ErrorUnsupportedPlatform,
		map[string]any{"platform": strings.TrimSpace(platform)},
	)
}

// TransportFailureError marks a failed round trip to a platform. It is
// distinct from a check that completed with a negative answer.
func TransportFailureError(source error, message string, metadata map[string]any) *goerrors.Error {
	var rich *goerrors.Error
	if goerrors.As(source, &rich) && rich.TextCode == ErrorTransportFailure {
		return rich
	}
	category := goerrors.CategoryExternal
	code := http.StatusBadGateway
	if goerrors.As(source, &rich) && rich.Category == goerrors.CategoryRateLimit {
		category = goerrors.CategoryRateLimit
		code = http.StatusTooManyRequests
	}
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	err.WithCode(code).WithTextCode(ErrorTransportFailure)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func CapabilityUnsupportedError(platform Platform, capability string) *goerrors.Error {
	return newLinkError(
		"capability "+strings.TrimSpace(capability)+" is not supported for "+platform.String(),
		goerrors.CategoryOperation,
		ErrorCapabilityUnsupported,
		map[string]any{"platform": platform.String(), "capability": capability},
	)
}

// InternalError wraps an unexpected failure. The cause is kept for
// diagnostics and the message never includes credential material.
func InternalError(source error, message string) *goerrors.Error {
	if source == nil {
		return newLinkError(message, goerrors.CategoryInternal, ErrorInternal, nil)
	}
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

func newLinkError(message string, category goerrors.Category, textCode string, metadata map[string]any) *goerrors.Error {
	err := goerrors.New(message, category).
		WithTextCode(textCode).
		WithCode(linkHTTPStatus(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func IsConflict(err error) bool            { return hasTextCode(err, ErrorLinkConflict) }
func IsNotFound(err error) bool            { return hasTextCode(err, ErrorLinkNotFound) }
func IsForbidden(err error) bool           { return hasTextCode(err, ErrorLinkForbidden) }
func IsValidation(err error) bool          { return hasTextCode(err, ErrorValidation) }
func IsUnsupportedPlatform(err error) bool { return hasTextCode(err, ErrorUnsupportedPlatform) }
func IsTransportFailure(err error) bool    { return hasTextCode(err, ErrorTransportFailure) }

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == code
}

// isDomainError reports whether err already carries one of the typed
// outcomes callers are expected to handle.
func isDomainError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	switch rich.TextCode {
	case ErrorLinkConflict,
		ErrorLinkNotFound,
		ErrorLinkForbidden,
		ErrorValidation,
		ErrorUnsupportedPlatform,
		ErrorTransportFailure,
		ErrorCapabilityUnsupported,
		ErrorRateLimited:
		return true
	default:
		return false
	}
}

func DefaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return ensureErrorEnvelope(rich)
	}
	switch {
	case errors.Is(err, ErrLinkNotFound):
		return NotFoundError(err.Error(), nil)
	case errors.Is(err, ErrUnsupportedPlatform):
		return newLinkError(err.Error(), goerrors.CategoryBadInput, ErrorUnsupportedPlatform, nil)
	case errors.Is(err, ErrCapabilityUnsupported):
		return newLinkError(err.Error(), goerrors.CategoryOperation, ErrorCapabilityUnsupported, nil)
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	if strings.Contains(msg, "required") || strings.Contains(msg, "invalid") {
		return newLinkError(err.Error(), goerrors.CategoryBadInput, ErrorValidation, nil)
	}
	return ensureErrorEnvelope(goerrors.MapToError(err, goerrors.DefaultErrorMappers()))
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = linkHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorValidation
	case goerrors.CategoryNotFound:
		return ErrorLinkNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorLinkForbidden
	case goerrors.CategoryConflict:
		return ErrorLinkConflict
	case goerrors.CategoryRateLimit:
		return ErrorRateLimited
	case goerrors.CategoryExternal:
		return ErrorTransportFailure
	case goerrors.CategoryOperation:
		return ErrorCapabilityUnsupported
	default:
		return ErrorInternal
	}
}

func linkHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryOperation:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
