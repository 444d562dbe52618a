package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// PostmarkClient sends email through Postmark's transactional API.
type PostmarkClient struct {
	client *postmark.Client
	config Config
}

var _ EmailSender = (*PostmarkClient)(nil)

// PostmarkOption tunes the underlying Postmark client.
type PostmarkOption func(*postmark.Client)

// WithPostmarkBaseURL points the client at another API root, e.g. a test
// server.
func WithPostmarkBaseURL(u string) PostmarkOption {
	return func(c *postmark.Client) {
		c.BaseURL = u
	}
}

// NewPostmarkClient validates cfg and creates a Postmark sender.
func NewPostmarkClient(cfg Config, opts ...PostmarkOption) (*PostmarkClient, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if !isEmail(cfg.SenderEmail) {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}
	if cfg.SupportEmail != "" && !isEmail(cfg.SupportEmail) {
		return nil, fmt.Errorf("%w: SupportEmail must be a valid email address", ErrInvalidConfig)
	}

	client := postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken)
	for _, opt := range opts {
		opt(client)
	}

	return &PostmarkClient{client: client, config: cfg}, nil
}

// SendEmail implements EmailSender. Replies go to SupportEmail when set.
func (c *PostmarkClient) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: false,
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(
			ErrFailedToSendEmail,
			fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message),
		)
	}
	return nil
}
