package mailer

import (
	"context"
	"net/mail"
	"strings"

	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/metrics"
	"github.com/butterandcrumb/storefront-backend/pkg/sendgrid"
)

// Sender is the slice of the SendGrid client the service depends on. The
// sender falls back to its own configured from address when the message
// leaves it empty.
type Sender interface {
	Send(ctx context.Context, msg sendgrid.Message) error
}

// SendInput is a transactional email request from the storefront.
type SendInput struct {
	To      string
	Subject string
	Text    string
	HTML    string
	From    string
}

// Service validates and delivers transactional email. It always returns a
// structured error; nothing escapes its boundary as a panic.
type Service interface {
	Send(ctx context.Context, input SendInput) error
}

type service struct {
	sender  Sender
	metrics *metrics.PaymentMetrics
}

// NewService wires the mailer dependencies. A nil sender is tolerated so the
// endpoint degrades to a configuration error instead of a crash.
func NewService(sender Sender, m *metrics.PaymentMetrics) Service {
	return &service{sender: sender, metrics: m}
}

func (s *service) Send(ctx context.Context, input SendInput) error {
	to := strings.TrimSpace(input.To)
	if to == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "to is required")
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "to is not a valid email address")
	}
	if strings.TrimSpace(input.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	}
	if strings.TrimSpace(input.Text) == "" && strings.TrimSpace(input.HTML) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "text or html body is required")
	}
	if from := strings.TrimSpace(input.From); from != "" {
		if _, err := mail.ParseAddress(from); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "from is not a valid email address")
		}
	}

	if s.sender == nil {
		s.metrics.IncEmail("config_error")
		return pkgerrors.New(pkgerrors.CodeConfig, "email provider is not configured")
	}

	err := s.sender.Send(ctx, sendgrid.Message{
		To:      to,
		From:    strings.TrimSpace(input.From),
		Subject: strings.TrimSpace(input.Subject),
		Text:    input.Text,
		HTML:    input.HTML,
	})
	if err != nil {
		s.metrics.IncEmail("failed")
		return err
	}

	s.metrics.IncEmail("sent")
	return nil
}
