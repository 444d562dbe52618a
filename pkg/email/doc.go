// Package email delivers the verification messages of the password plugin.
//
// EmailSender is the delivery collaborator. PostmarkClient sends through
// Postmark; DevSender writes messages to disk for local development.
// VerificationMailer renders the templ verification template and satisfies
// auth.VerificationMailer:
//
//	var sender email.EmailSender = email.NewDevSender(cfg.DevDir)
//	if cfg.UsePostmark() {
//		sender, err = email.NewPostmarkClient(cfg)
//	}
//	mailer := email.NewVerificationMailer(sender, cfg.AppName)
//
// Parameters are validated before delivery; failures wrap ErrInvalidParams
// or ErrFailedToSendEmail.
package email
