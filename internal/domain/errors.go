package domain

import "errors"

// Sentinel errors shared across the engine. Check with errors.Is.
var (
	ErrInvalidQuality = errors.New("margin: invalid quality")
	ErrCardNotFound   = errors.New("margin: card not found")
	ErrNotConfigured  = errors.New("margin: engine not configured")
	ErrPersistFailed  = errors.New("margin: persist failed")
)
