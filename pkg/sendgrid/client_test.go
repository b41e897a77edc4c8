package sendgrid

import (
	"context"
	"io"
	"testing"

	"github.com/butterandcrumb/storefront-backend/pkg/config"
	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(config.SendgridConfig{}, testLogger()); err == nil {
		t.Fatal("expected an error without an api key")
	}
	if _, err := NewClient(config.SendgridConfig{APIKey: "SG.key"}, nil); err == nil {
		t.Fatal("expected an error without a logger")
	}
}

func TestDefaultFrom(t *testing.T) {
	t.Parallel()

	client, err := NewClient(config.SendgridConfig{
		APIKey:      "SG.key",
		DefaultFrom: "  orders@butterandcrumb.example  ",
	}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := client.DefaultFrom(); got != "orders@butterandcrumb.example" {
		t.Fatalf("unexpected default from %q", got)
	}
}

func TestSendWithoutAnyFromIsConfigError(t *testing.T) {
	t.Parallel()

	client, err := NewClient(config.SendgridConfig{APIKey: "SG.key"}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sendErr := client.Send(context.Background(), Message{
		To:      "ada@example.com",
		Subject: "Order confirmed",
		Text:    "Thanks!",
	})
	typed := pkgerrors.As(sendErr)
	if typed == nil || typed.Code() != pkgerrors.CodeConfig {
		t.Fatalf("expected a configuration error before any provider call, got %v", sendErr)
	}
}
