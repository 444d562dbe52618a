package session

import (
	"context"
	"time"
)

// Store defines the interface for session persistence
type Store interface {
	// Save writes data under id, replacing any previous record, valid for ttl
	Save(ctx context.Context, id string, data Payload, ttl time.Duration) error

	// Load returns ErrSessionNotFound or ErrSessionExpired when the record is unusable
	Load(ctx context.Context, id string) (Payload, error)

	// Delete returns ErrSessionNotFound when nothing was removed
	Delete(ctx context.Context, id string) error
}

// UserRevoker is implemented by stores that can drop every session of a user
type UserRevoker interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// ExpiredSweeper is implemented by stores that keep expired records until swept
type ExpiredSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}
