package email_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authkit/pkg/email"
)

var postmarkConfig = email.Config{
	PostmarkServerToken:  "server-token",
	PostmarkAccountToken: "account-token",
	SenderEmail:          "noreply@example.com",
	SupportEmail:         "support@example.com",
}

func TestSendEmailParams_Validate(t *testing.T) {
	t.Parallel()

	valid := email.SendEmailParams{SendTo: "a@b.com", Subject: "Hi", BodyHTML: "<p>hi</p>"}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*email.SendEmailParams)
		msg    string
	}{
		{"missing recipient", func(p *email.SendEmailParams) { p.SendTo = " " }, "SendTo is required"},
		{"bad recipient", func(p *email.SendEmailParams) { p.SendTo = "not-an-email" }, "valid email"},
		{"missing subject", func(p *email.SendEmailParams) { p.Subject = "" }, "Subject is required"},
		{"missing body", func(p *email.SendEmailParams) { p.BodyHTML = "" }, "BodyHTML is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			assert.ErrorIs(t, err, email.ErrInvalidParams)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestNewPostmarkClient_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*email.Config)
	}{
		{"no server token", func(c *email.Config) { c.PostmarkServerToken = "" }},
		{"no account token", func(c *email.Config) { c.PostmarkAccountToken = "" }},
		{"bad sender", func(c *email.Config) { c.SenderEmail = "nope" }},
		{"bad support", func(c *email.Config) { c.SupportEmail = "nope" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := postmarkConfig
			tt.mutate(&cfg)
			client, err := email.NewPostmarkClient(cfg)
			assert.Nil(t, client)
			assert.ErrorIs(t, err, email.ErrInvalidConfig)
		})
	}
}

func TestPostmarkClient_SendEmail(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"To":"a@b.com","ErrorCode":0,"Message":"OK"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := email.NewPostmarkClient(postmarkConfig, email.WithPostmarkBaseURL(srv.URL))
	require.NoError(t, err)

	err = client.SendEmail(context.Background(), email.SendEmailParams{
		SendTo:   "a@b.com",
		Subject:  "Verify",
		BodyHTML: "<p>link</p>",
		Tag:      "email-verification",
	})
	require.NoError(t, err)
	assert.Equal(t, "noreply@example.com", got["From"])
	assert.Equal(t, "support@example.com", got["ReplyTo"])
	assert.Equal(t, "email-verification", got["Tag"])
}

func TestPostmarkClient_SendEmailAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email request"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := email.NewPostmarkClient(postmarkConfig, email.WithPostmarkBaseURL(srv.URL))
	require.NoError(t, err)

	err = client.SendEmail(context.Background(), email.SendEmailParams{
		SendTo: "a@b.com", Subject: "Verify", BodyHTML: "<p>link</p>",
	})
	assert.ErrorIs(t, err, email.ErrFailedToSendEmail)
}

func TestDevSender_WritesFiles(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "emails")
	sender := email.NewDevSender(dir)

	err := sender.SendEmail(context.Background(), email.SendEmailParams{
		SendTo: "a@b.com", Subject: "Verify your email", BodyHTML: "<p>hello</p>", Tag: "Email Verification!",
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, e := range entries {
		assert.Contains(t, e.Name(), "email_verification")
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		switch filepath.Ext(e.Name()) {
		case ".html":
			assert.Equal(t, "<p>hello</p>", string(data))
		case ".json":
			assert.Contains(t, string(data), `"send_to": "a@b.com"`)
		default:
			t.Errorf("unexpected file %s", e.Name())
		}
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
}

func (r *recordingSender) SendEmail(_ context.Context, p email.SendEmailParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
	return nil
}

func TestVerificationMailer_SendVerification(t *testing.T) {
	t.Parallel()

	rec := &recordingSender{}
	mailer := email.NewVerificationMailer(rec, "Acme <Dash>")

	link := "https://app.example.com/auth/verify?token=abc&x=1"
	err := mailer.SendVerification(context.Background(), "a@b.com", link, time.Now().Add(6*time.Minute))
	require.NoError(t, err)

	require.Len(t, rec.sent, 1)
	msg := rec.sent[0]
	assert.Equal(t, "a@b.com", msg.SendTo)
	assert.Equal(t, "email-verification", msg.Tag)
	assert.Contains(t, msg.BodyHTML, "Acme &lt;Dash&gt;")
	assert.Contains(t, msg.BodyHTML, "token=abc&amp;x=1")
	assert.True(t, strings.Contains(msg.BodyHTML, "6 minute") || strings.Contains(msg.BodyHTML, "5 minute"))
}
