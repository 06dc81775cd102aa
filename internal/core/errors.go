package core

import "errors"

var (
	// ErrNotFound signals an unknown child or response.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded signals that the post-trial free tier blocks this question.
	ErrQuotaExceeded = errors.New("question quota exceeded")
	// ErrFeatureGated signals that the requested feedback kind needs premium.
	ErrFeatureGated = errors.New("feature requires premium")
	// ErrProviderUnavailable signals that every generation attempt failed.
	ErrProviderUnavailable = errors.New("generation provider unavailable")
)
