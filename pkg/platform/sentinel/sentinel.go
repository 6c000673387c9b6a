package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and collaborator clients
// return these (optionally wrapped) so services can translate them into
// domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrExpired: challenge/token has passed its server-supplied expiry
// - ErrAlreadyUsed: one-shot resource (challenge token) already consumed
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrStale: response no longer targets the current context; discard silently
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrStale        = errors.New("stale")
	ErrUnavailable  = errors.New("unavailable")
)
