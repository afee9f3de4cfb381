package domain

import "errors"

// Error categories shared by the services and the HTTP layer.
// Services wrap these with fmt.Errorf("%w: ...").
var (
	// ErrValidation marks a request rejected before any side effect.
	ErrValidation = errors.New("validation failed")

	// ErrLimitExceeded marks size or count limits (too many files, file too large).
	ErrLimitExceeded = errors.New("limit exceeded")

	// ErrForbidden marks an owner that is not allowed to use a feature.
	ErrForbidden = errors.New("forbidden")

	// ErrUpstream marks a failure of an external service (AI, embedding, page fetch, vector DB).
	ErrUpstream = errors.New("upstream service failure")

	// ErrNoDescription is returned by the description generator when the
	// model produced no usable description. It fails a single item only.
	ErrNoDescription = errors.New("no description generated")

	// ErrImageSourceRequired is a caller contract violation: neither image
	// bytes nor an image URL were supplied to the description generator.
	ErrImageSourceRequired = errors.New("image bytes or image url required")

	// ErrNoContent marks a scraped page without any text to embed.
	ErrNoContent = errors.New("no content found to embed")

	// ErrInvalidKey marks a storage key or URL that cannot be resolved safely.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrPartialDelete marks a teardown where at least one store failed.
	ErrPartialDelete = errors.New("delete partially failed")
)

// ErrorCategory is the coarse failure class reported to API clients.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryLimit      ErrorCategory = "limit"
	CategoryForbidden  ErrorCategory = "forbidden"
	CategoryNoContent  ErrorCategory = "no_content"
	CategoryUpstream   ErrorCategory = "upstream"
	CategoryServer     ErrorCategory = "server"
)

// Categorize maps an error onto its category.
func Categorize(err error) ErrorCategory {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidKey), errors.Is(err, ErrImageSourceRequired):
		return CategoryValidation
	case errors.Is(err, ErrLimitExceeded):
		return CategoryLimit
	case errors.Is(err, ErrForbidden):
		return CategoryForbidden
	case errors.Is(err, ErrNoContent):
		return CategoryNoContent
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrNoDescription):
		return CategoryUpstream
	default:
		return CategoryServer
	}
}

// IsRetryable reports whether a client may reasonably retry the same request.
func IsRetryable(err error) bool {
	switch Categorize(err) {
	case CategoryUpstream, CategoryServer:
		return true
	default:
		return false
	}
}
