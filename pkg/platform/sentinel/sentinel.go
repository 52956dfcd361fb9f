package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: entity exists with conflicting data (e.g. anchor ref mismatch)
// - ErrAlreadyUsed: key already consumed (certificate registered, allocation made)
// - ErrInsufficient: epoch budget cannot cover the requested reservation
// - ErrInvalidState: entity in wrong state for requested operation (closed epoch)
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInsufficient = errors.New("insufficient")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
