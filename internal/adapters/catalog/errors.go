package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrUpstream     = errors.New("catalog upstream error")
	ErrNoIDs        = errors.New("no artist ids")
	ErrTooManyIDs   = errors.New("too many artist ids")
	ErrMissingToken = errors.New("missing access token")
)
