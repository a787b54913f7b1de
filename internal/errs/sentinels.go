// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service layers.
var (
	// ErrNotFound indicates the requested entity or stored key does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrValidation indicates input rejected before any network/storage call.
	ErrValidation = errors.New("validation failed")

	// ErrLimitReached indicates the plan's status-column limit is exhausted.
	ErrLimitReached = errors.New("status limit reached")

	// ErrLastStatus indicates an attempt to delete the sole remaining status.
	ErrLastStatus = errors.New("cannot delete the last status")
)
