package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/butterandcrumb/storefront-backend/api/responses"
	"github.com/butterandcrumb/storefront-backend/internal/mailer"
	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
)

type fakeMailerService struct {
	inputs []mailer.SendInput
	err    error
}

func (f *fakeMailerService) Send(_ context.Context, input mailer.SendInput) error {
	f.inputs = append(f.inputs, input)
	return f.err
}

func postEmail(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/send-email", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestSendEmailSent(t *testing.T) {
	t.Parallel()

	svc := &fakeMailerService{}
	rec := postEmail(t, SendEmail(svc, nil, responses.Options{}),
		`{"to":"ada@example.com","subject":"Order confirmed","text":"Thanks!"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if payload["status"] != responses.StatusSent {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if len(svc.inputs) != 1 || svc.inputs[0].To != "ada@example.com" {
		t.Fatalf("unexpected service inputs: %+v", svc.inputs)
	}
}

func TestSendEmailMissingFields(t *testing.T) {
	t.Parallel()

	svc := &fakeMailerService{}
	rec := postEmail(t, SendEmail(svc, nil, responses.Options{}), `{"text":"Thanks!"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["status"] != responses.StatusFailed {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
	if len(svc.inputs) != 0 {
		t.Fatal("the service must not be called for invalid bodies")
	}
}

func TestSendEmailProviderFailure(t *testing.T) {
	t.Parallel()

	svc := &fakeMailerService{err: pkgerrors.New(pkgerrors.CodeDependency, "sendgrid 502")}
	rec := postEmail(t, SendEmail(svc, nil, responses.Options{}),
		`{"to":"ada@example.com","subject":"Order confirmed","text":"Thanks!"}`)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["status"] != responses.StatusFailed {
		t.Fatalf("unexpected status: %v", payload["status"])
	}
}

func TestSendEmailNilService(t *testing.T) {
	t.Parallel()

	rec := postEmail(t, SendEmail(nil, nil, responses.Options{}),
		`{"to":"ada@example.com","subject":"s","text":"t"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
