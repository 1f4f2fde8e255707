package trend

import "errors"

// Request errors.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrUnknownSource  = errors.New("unknown source")
)

// Upstream errors, scoped to a single source.
var (
	ErrParse             = errors.New("feed parse failed")
	ErrSourceRejected    = errors.New("source rejected request")
	ErrSourceUnavailable = errors.New("source unavailable")
)

// Internal errors.
var (
	ErrClientUnavailable = errors.New("http client not initialized")
	ErrHistoryDisabled   = errors.New("history is disabled")
)
