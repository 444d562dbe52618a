package auth

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

// OAuth flow errors
var (
	ErrInvalidCodeOrState  = errors.New("invalid code or state")
	ErrUserInfoUnavailable = errors.New("failed to get user info")
)

// Configuration errors
var (
	ErrInvalidProvider = errors.New("invalid provider")
	ErrInvalidPlugin   = errors.New("invalid plugin")
)

// Password plugin errors
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrPasswordNotSet    = errors.New("user password does not match")
	ErrInvalidPassword   = errors.New("invalid password")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// Email verification errors
var (
	ErrNoVerificationCookie      = errors.New("no verification cookie")
	ErrVerificationNotFound      = errors.New("verification not found")
	ErrVerificationEmailMismatch = errors.New("verification email mismatch")
	ErrVerificationExpired       = errors.New("verification expired")
	ErrVerificationStillExists   = errors.New("old verification still exists")
	ErrVerificationOwnerMismatch = errors.New("verification belongs to another user")
	ErrEmailAlreadyVerified      = errors.New("email already verified")
	ErrVerificationDisabled      = errors.New("email verification is not configured")
)

// ProviderError reports a failure returned by, or while talking to, an
// identity provider.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newProviderError converts a transport or token endpoint failure. For
// *oauth2.RetrieveError the IdP's own error description is preferred.
func newProviderError(provider string, err error) *ProviderError {
	pe := &ProviderError{Provider: provider, Message: err.Error(), Err: err}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		pe.Code = re.ErrorCode
		switch {
		case re.ErrorDescription != "":
			pe.Message = re.ErrorDescription
		case re.ErrorCode != "":
			pe.Message = re.ErrorCode
		case re.Response != nil:
			pe.Message = fmt.Sprintf("token endpoint returned status %d", re.Response.StatusCode)
		}
	}

	return pe
}
