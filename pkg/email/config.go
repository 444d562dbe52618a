package email

// Config holds email delivery settings. The Postmark tokens may be empty in
// development, where DevSender writes messages to DevDir instead.
type Config struct {
	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL" envDefault:"noreply@localhost.dev"`
	SupportEmail         string `env:"SUPPORT_EMAIL"`
	DevDir               string `env:"EMAIL_DEV_DIR" envDefault:"tmp/emails"`
	AppName              string `env:"APP_NAME" envDefault:"Dashboard"`
}

// UsePostmark reports whether both Postmark tokens are configured.
func (c Config) UsePostmark() bool {
	return c.PostmarkServerToken != "" && c.PostmarkAccountToken != ""
}
