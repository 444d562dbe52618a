package email

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/authkit/pkg/email/templates"
)

const verificationTag = "email-verification"

// VerificationMailer renders the verification template and hands it to an
// EmailSender. It satisfies auth.VerificationMailer.
type VerificationMailer struct {
	sender  EmailSender
	appName string
	now     func() time.Time
}

func NewVerificationMailer(sender EmailSender, appName string) *VerificationMailer {
	if sender == nil {
		panic("email: sender is required")
	}
	return &VerificationMailer{sender: sender, appName: appName, now: time.Now}
}

func (m *VerificationMailer) SendVerification(ctx context.Context, to, link string, expiresAt time.Time) error {
	body, err := templates.Render(ctx, templates.Verification(templates.VerificationData{
		AppName:   m.appName,
		Link:      link,
		ExpiresIn: expiresAt.Sub(m.now()),
	}))
	if err != nil {
		return fmt.Errorf("%w: render verification email: %v", ErrFailedToSendEmail, err)
	}

	return m.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   to,
		Subject:  "Verify your email address",
		BodyHTML: body,
		Tag:      verificationTag,
	})
}
