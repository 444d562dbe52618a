package cookie

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

const secretSize = 32

// Signer produces and checks "<value>.<signature>" strings where the
// signature is the unpadded base64url HMAC-SHA256 of value.
// A Signer is immutable and safe for concurrent use.
type Signer struct {
	key []byte
}

// NewSigner returns a signer keyed by secret. An empty secret is replaced by
// a random one, which invalidates every cookie on restart.
func NewSigner(secret string) *Signer {
	if secret == "" {
		secret = GenerateSecret()
	}
	return &Signer{key: []byte(secret)}
}

// GenerateSecret returns 32 random bytes encoded as unpadded base64url.
func GenerateSecret() string {
	b := make([]byte, secretSize)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Errorf("cookie: read random bytes: %w", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func (s *Signer) Sign(value string) string {
	return value + "." + s.signature(value)
}

// Verify returns the embedded value when signed carries a valid signature.
// The value is split at the last ".", so values may themselves contain dots.
func (s *Signer) Verify(signed string) (string, bool) {
	idx := strings.LastIndex(signed, ".")
	if idx <= 0 {
		return "", false
	}

	value, sig := signed[:idx], signed[idx+1:]
	expected := s.signature(value)
	if len(sig) != len(expected) {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return "", false
	}

	return value, true
}

// SignJSON encodes v as base64url JSON and signs the result.
func (s *Signer) SignJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal cookie value: %w", err)
	}
	return s.Sign(base64.RawURLEncoding.EncodeToString(data)), nil
}

// VerifyJSON is the inverse of SignJSON.
func (s *Signer) VerifyJSON(signed string, dest any) error {
	value, ok := s.Verify(signed)
	if !ok {
		return ErrInvalidSignature
	}

	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return ErrInvalidFormat
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	return nil
}

func (s *Signer) signature(value string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
