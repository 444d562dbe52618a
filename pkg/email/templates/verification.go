package templates

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/a-h/templ"
)

// VerificationData is rendered into the verification email.
type VerificationData struct {
	AppName   string
	Link      string
	ExpiresIn time.Duration
}

// Verification is the body of the "confirm your email" message.
func Verification(d VerificationData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		minutes := max(int(d.ExpiresIn.Round(time.Minute)/time.Minute), 1)
		link := templ.URL(d.Link)

		_, err := fmt.Fprintf(w, `<!DOCTYPE html><html><body style="font-family:sans-serif;color:#111827">`+
			`<h1 style="font-size:20px">Confirm your email for %s</h1>`+
			`<p>Click the button below to verify your address. The link expires in %d minute(s).</p>`+
			`<p><a href="%s" style="display:inline-block;padding:10px 16px;background:#111827;color:#fff;border-radius:6px;text-decoration:none">Verify email</a></p>`+
			`<p style="color:#6b7280;font-size:12px">If you did not create an account, you can ignore this message.</p>`+
			`</body></html>`,
			templ.EscapeString(d.AppName),
			minutes,
			templ.EscapeString(string(link)),
		)
		return err
	})
}
