package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrInvalidUser        = errors.New("user id must not be empty")
	ErrInvalidDataset     = errors.New("dataset key must not be empty")
	ErrNoItems            = errors.New("no items to rank")
	ErrTooManyItems       = errors.New("too many items")
	ErrSessionNotFound    = errors.New("session not found")
	ErrDatasetNotFound    = errors.New("dataset not found")
	ErrStaleSession       = errors.New("session was replaced")
	ErrCorruptSession     = errors.New("stored session is corrupt")
	ErrCatalogUnavailable = errors.New("catalog not configured")
)
