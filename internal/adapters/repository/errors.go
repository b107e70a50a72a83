package repository

import "errors"

// Sentinel errors for store construction.
var (
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrMissingDSN     = errors.New("store dsn is required")
)
