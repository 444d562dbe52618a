package session

import "errors"

var (
	// ErrSessionNotFound indicates no record exists for the id
	ErrSessionNotFound = errors.New("session.not_found")

	// ErrSessionExpired indicates the record existed but its lifetime has passed
	ErrSessionExpired = errors.New("session.expired")

	// ErrInvalidSessionID indicates an empty or malformed id was passed to a store
	ErrInvalidSessionID = errors.New("session.invalid_id")

	// ErrIDGeneration indicates the random source failed
	ErrIDGeneration = errors.New("session.id_generation_failed")

	// ErrRevokeUnsupported indicates the store cannot look sessions up by user
	ErrRevokeUnsupported = errors.New("session.revoke_unsupported")
)
