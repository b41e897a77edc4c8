package mailer

import (
	"context"
	"testing"

	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/sendgrid"
)

type fakeSender struct {
	sent []sendgrid.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg sendgrid.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func TestSendHappyPath(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	svc := NewService(sender, nil)

	err := svc.Send(context.Background(), SendInput{
		To:      "customer@example.com",
		Subject: "Order confirmed",
		Text:    "Thanks for your order!",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(sender.sent))
	}
	if sender.sent[0].To != "customer@example.com" {
		t.Fatalf("unexpected recipient: %q", sender.sent[0].To)
	}
}

func TestSendValidation(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	svc := NewService(sender, nil)

	cases := []struct {
		name  string
		input SendInput
	}{
		{"missing to", SendInput{Subject: "s", Text: "t"}},
		{"bad to", SendInput{To: "not-an-address", Subject: "s", Text: "t"}},
		{"missing subject", SendInput{To: "a@example.com", Text: "t"}},
		{"missing body", SendInput{To: "a@example.com", Subject: "s"}},
		{"bad from", SendInput{To: "a@example.com", Subject: "s", Text: "t", From: "nope"}},
	}
	for _, tc := range cases {
		err := svc.Send(context.Background(), tc.input)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected a validation error, got %v", tc.name, err)
		}
	}
	if len(sender.sent) != 0 {
		t.Fatal("invalid input must never reach the provider")
	}
}

func TestSendHTMLOnlyBodyAllowed(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	svc := NewService(sender, nil)

	err := svc.Send(context.Background(), SendInput{
		To:      "customer@example.com",
		Subject: "Order confirmed",
		HTML:    "<p>Thanks!</p>",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendWithoutSenderIsConfigError(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, nil)
	err := svc.Send(context.Background(), SendInput{
		To:      "customer@example.com",
		Subject: "Order confirmed",
		Text:    "Thanks!",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConfig {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}

func TestSendPropagatesProviderFailure(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{err: pkgerrors.New(pkgerrors.CodeDependency, "sendgrid 502")}
	svc := NewService(sender, nil)

	err := svc.Send(context.Background(), SendInput{
		To:      "customer@example.com",
		Subject: "Order confirmed",
		Text:    "Thanks!",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected the provider failure to propagate, got %v", err)
	}
}
