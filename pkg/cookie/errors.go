package cookie

import "errors"

var (
	ErrInvalidSignature = errors.New("cookie.invalid_signature")
	ErrInvalidFormat    = errors.New("cookie.invalid_format")
	ErrInvalidSameSite  = errors.New("cookie.invalid_same_site")
)
