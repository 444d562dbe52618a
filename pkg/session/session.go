package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/dmitrymomot/authkit/pkg/cookie"
)

// Payload is the data stored against a session id.
type Payload struct {
	UserID    string `json:"userId"`
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`
}

// SetParams describes a session write. An empty SessionID is replaced by a
// freshly generated one.
type SetParams struct {
	SessionID string
	Data      Payload
}

// SessionManager is the contract the HTTP layer depends on. Results are
// booleans: failures are logged by the implementation, never returned.
type SessionManager interface {
	SetSession(ctx context.Context, jar cookie.Jar, params SetParams) bool
	GetSession(ctx context.Context, jar cookie.Jar) (Payload, bool)
	DeleteSession(ctx context.Context, jar cookie.Jar) bool
}

const idSize = 32

// GenerateID returns 32 random bytes, hex encoded.
func GenerateID() (string, error) {
	b := make([]byte, idSize)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrIDGeneration, err)
	}
	return hex.EncodeToString(b), nil
}
