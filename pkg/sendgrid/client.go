package sendgrid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/butterandcrumb/storefront-backend/pkg/config"
	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errLoggerRequired = errors.New("sendgrid logger is required")
)

// Message describes a single transactional email.
type Message struct {
	To      string
	From    string
	Subject string
	Text    string
	HTML    string
}

// Client wraps the SendGrid mail API with logging and error mapping.
type Client struct {
	sdk         *sendgrid.Client
	defaultFrom string
	logger      *logger.Logger
}

// NewClient initializes the SendGrid wrapper and validates the credentials.
func NewClient(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	return &Client{
		sdk:         sendgrid.NewSendClient(apiKey),
		defaultFrom: strings.TrimSpace(cfg.DefaultFrom),
		logger:      logg,
	}, nil
}

// DefaultFrom returns the configured default sender address.
func (c *Client) DefaultFrom() string {
	if c == nil {
		return ""
	}
	return c.defaultFrom
}

// Send delivers the message through SendGrid. Provider rejections surface as
// dependency errors carrying the provider's status code.
func (c *Client) Send(ctx context.Context, msg Message) error {
	from := strings.TrimSpace(msg.From)
	if from == "" {
		from = c.defaultFrom
	}
	if from == "" {
		return pkgerrors.New(pkgerrors.CodeConfig, "no sender address configured")
	}

	email := mail.NewSingleEmail(
		mail.NewEmail("", from),
		msg.Subject,
		mail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)

	ctx = c.logger.WithFields(ctx, map[string]any{
		"operation": "send_email",
		"subject":   msg.Subject,
	})
	c.logger.Info(ctx, "sendgrid request")

	resp, err := c.sdk.SendWithContext(ctx, email)
	if err != nil {
		c.logger.Error(ctx, "sendgrid send", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "email provider unreachable")
	}
	if resp.StatusCode >= 400 {
		err := fmt.Errorf("sendgrid status %d", resp.StatusCode)
		c.logger.Error(ctx, "sendgrid rejected", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "email provider rejected message")
	}

	c.logger.Info(c.logger.WithField(ctx, "status", resp.StatusCode), "sendgrid response")
	return nil
}
