package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EmailSender delivers a rendered message.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams represents the parameters for sending an email.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that all required fields are set and SendTo is an address.
func (p SendEmailParams) Validate() error {
	if strings.TrimSpace(p.SendTo) == "" {
		return fmt.Errorf("%w: SendTo is required", ErrInvalidParams)
	}
	if err := validate.Var(p.SendTo, "email"); err != nil {
		return fmt.Errorf("%w: SendTo must be a valid email address", ErrInvalidParams)
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: Subject is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.BodyHTML) == "" {
		return fmt.Errorf("%w: BodyHTML is required", ErrInvalidParams)
	}
	return nil
}

func isEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}
