package checkout

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/butterandcrumb/storefront-backend/internal/cart"
	"github.com/butterandcrumb/storefront-backend/internal/notify"
	"github.com/butterandcrumb/storefront-backend/internal/orderform"
	"github.com/butterandcrumb/storefront-backend/internal/widget"
	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
)

type fakeHostedWidget struct {
	tokenResult widget.TokenResult
	tokenErr    error
	release     chan struct{}

	mu            sync.Mutex
	tokenizeCalls int
}

func (f *fakeHostedWidget) Attach(_ context.Context) error { return nil }
func (f *fakeHostedWidget) Detach() error                  { return nil }

func (f *fakeHostedWidget) Tokenize(_ context.Context) (widget.TokenResult, error) {
	f.mu.Lock()
	f.tokenizeCalls++
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return f.tokenResult, f.tokenErr
}

func (f *fakeHostedWidget) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenizeCalls
}

type renderedMount struct{}

func (renderedMount) HasRendered() bool { return true }
func (renderedMount) Clear()            {}

type fakePaymentClient struct {
	outcome PaymentOutcome
	err     error
	release chan struct{}

	mu       sync.Mutex
	requests []PaymentRequest
}

func (f *fakePaymentClient) SubmitPayment(_ context.Context, req PaymentRequest) (PaymentOutcome, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	return f.outcome, f.err
}

func (f *fakePaymentClient) submitted() []PaymentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PaymentRequest(nil), f.requests...)
}

type fakeEmailSender struct {
	mu   sync.Mutex
	sent []EmailRequest
}

func (f *fakeEmailSender) SendEmail(_ context.Context, req EmailRequest) error {
	f.mu.Lock()
	f.sent = append(f.sent, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeEmailSender) delivered() []EmailRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]EmailRequest(nil), f.sent...)
}

type fixture struct {
	orch     *Orchestrator
	cart     *cart.Store
	hosted   *fakeHostedWidget
	payments *fakePaymentClient
	emails   *fakeEmailSender
	notifier *notify.Notifier
}

func okWidget() *fakeHostedWidget {
	return &fakeHostedWidget{tokenResult: widget.TokenResult{Status: widget.TokenStatusOK, Token: "tok_ok"}}
}

func newFixture(t *testing.T, hosted *fakeHostedWidget, payments *fakePaymentClient) *fixture {
	t.Helper()

	cartStore := cart.NewStore(nil, nil, nil)
	cartStore.Add(context.Background(), cart.Item{Name: "Croissant", UnitPriceCents: 450})
	cartStore.Add(context.Background(), cart.Item{Name: "Sourdough Loaf", UnitPriceCents: 900})

	emails := &fakeEmailSender{}
	notifier := notify.New(nil)
	t.Cleanup(notifier.Close)

	orch, err := New(Params{
		Cart:       cartStore,
		Widget:     widget.NewAdapter(hosted, renderedMount{}, nil),
		Payments:   payments,
		Email:      emails,
		Notifier:   notifier,
		AdminEmail: "orders@butterandcrumb.example",
		StoreName:  "Butter & Crumb",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &fixture{orch: orch, cart: cartStore, hosted: hosted, payments: payments, emails: emails, notifier: notifier}
}

func submitValidDetails(t *testing.T, orch *Orchestrator) {
	t.Helper()
	problems := orch.SubmitDetails(context.Background(), orderform.Details{
		Name:           "Ada Lovelace",
		Email:          "ada@example.com",
		Phone:          "555-0100",
		Address:        "1 Analytical Way",
		City:           "London",
		Zip:            "12345",
		DeliveryDate:   "2026-09-05",
		DeliveryWindow: "morning",
	})
	if len(problems) != 0 {
		t.Fatalf("unexpected form problems: %v", problems)
	}
}

func TestEmptyCartPreemptsForm(t *testing.T) {
	t.Parallel()

	cartStore := cart.NewStore(nil, nil, nil)
	orch, err := New(Params{
		Cart:     cartStore,
		Widget:   widget.NewAdapter(okWidget(), renderedMount{}, nil),
		Payments: &fakePaymentClient{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := orch.State(); got != StateEmpty {
		t.Fatalf("expected EMPTY, got %s", got)
	}

	cartStore.Add(context.Background(), cart.Item{Name: "Croissant", UnitPriceCents: 450})
	if got := orch.State(); got != StateForm {
		t.Fatalf("expected FORM once the cart has items, got %s", got)
	}
}

func TestSubmitDetailsAdvancesAndOpensWidget(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okWidget(), &fakePaymentClient{outcome: PaymentOutcome{Completed: true}})
	submitValidDetails(t, f.orch)

	if got := f.orch.State(); got != StatePayment {
		t.Fatalf("expected PAYMENT, got %s", got)
	}
	if !f.orch.CanPay() {
		t.Fatal("pay must be enabled once the widget is ready")
	}
}

func TestSubmitDetailsKeepsInvalidFormOnForm(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okWidget(), &fakePaymentClient{})
	problems := f.orch.SubmitDetails(context.Background(), orderform.Details{Name: "Ada"})
	if len(problems) == 0 {
		t.Fatal("expected field problems")
	}
	if got := f.orch.State(); got != StateForm {
		t.Fatalf("expected to stay on FORM, got %s", got)
	}
}

func TestBackPreservesDetails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okWidget(), &fakePaymentClient{})
	submitValidDetails(t, f.orch)

	f.orch.Back()
	if got := f.orch.State(); got != StateForm {
		t.Fatalf("expected FORM, got %s", got)
	}
	if f.orch.Details().Name != "Ada Lovelace" {
		t.Fatal("entered details must survive back navigation")
	}
}

func TestPaySuccessClearsCartAndNotifies(t *testing.T) {
	t.Parallel()

	payments := &fakePaymentClient{outcome: PaymentOutcome{
		Completed: true,
		PaymentID: "pay_123",
		Message:   "payment completed",
	}}
	f := newFixture(t, okWidget(), payments)
	submitValidDetails(t, f.orch)

	if err := f.orch.Pay(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := f.orch.State(); got != StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", got)
	}
	if !f.cart.IsEmpty() {
		t.Fatal("the cart must be cleared after success")
	}
	if got := f.orch.PaymentID(); got != "pay_123" {
		t.Fatalf("unexpected payment id: %q", got)
	}

	reqs := payments.submitted()
	if len(reqs) != 1 {
		t.Fatalf("expected one submission, got %d", len(reqs))
	}
	if reqs[0].AmountCents != 1350 {
		t.Fatalf("expected the cart total in minor units, got %d", reqs[0].AmountCents)
	}
	if reqs[0].SourceID != "tok_ok" {
		t.Fatalf("expected the widget token as the source, got %q", reqs[0].SourceID)
	}
	if reqs[0].IdempotencyKey == "" {
		t.Fatal("expected a minted idempotency key")
	}

	f.notifier.Close()
	delivered := f.emails.delivered()
	if len(delivered) != 2 {
		t.Fatalf("expected confirmation and admin alert, got %d", len(delivered))
	}
	if delivered[0].To != "ada@example.com" {
		t.Fatalf("unexpected confirmation recipient: %q", delivered[0].To)
	}
	if delivered[1].To != "orders@butterandcrumb.example" {
		t.Fatalf("unexpected alert recipient: %q", delivered[1].To)
	}
	if !strings.Contains(delivered[0].Text, "2x Croissant") {
		t.Fatalf("confirmation must list the order lines, got %q", delivered[0].Text)
	}
	if !strings.Contains(delivered[0].Text, "$13.50") {
		t.Fatalf("confirmation must carry the total, got %q", delivered[0].Text)
	}
}

func TestPayFreshKeyPerAttempt(t *testing.T) {
	t.Parallel()

	payments := &fakePaymentClient{err: pkgerrors.New(pkgerrors.CodeDeclined, "card declined")}
	f := newFixture(t, okWidget(), payments)
	submitValidDetails(t, f.orch)

	if err := f.orch.Pay(context.Background()); err == nil {
		t.Fatal("expected the decline to propagate")
	}

	payments.err = nil
	payments.outcome = PaymentOutcome{Completed: true, PaymentID: "pay_2"}
	if err := f.orch.Pay(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := payments.submitted()
	if len(reqs) != 2 {
		t.Fatalf("expected two submissions, got %d", len(reqs))
	}
	if reqs[0].IdempotencyKey == reqs[1].IdempotencyKey {
		t.Fatal("each attempt must mint a fresh idempotency key")
	}
}

func TestPayTokenizeNetworkErrorStaysOnPayment(t *testing.T) {
	t.Parallel()

	hosted := &fakeHostedWidget{tokenResult: widget.TokenResult{
		Status: widget.TokenStatusError,
		Errors: []widget.TokenError{{Category: widget.CategoryNetwork, Message: "connection lost"}},
	}}
	payments := &fakePaymentClient{}
	f := newFixture(t, hosted, payments)
	submitValidDetails(t, f.orch)

	err := f.orch.Pay(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeWidget {
		t.Fatalf("expected a widget error, got %v", err)
	}

	if got := f.orch.State(); got != StatePayment {
		t.Fatalf("a failed tokenization must stay on PAYMENT, got %s", got)
	}
	if f.cart.IsEmpty() {
		t.Fatal("the cart must be untouched")
	}
	if len(payments.submitted()) != 0 {
		t.Fatal("the backend must not be reached when tokenization fails")
	}
	if f.orch.LastError() != "connection lost" {
		t.Fatalf("unexpected last error: %q", f.orch.LastError())
	}
}

func TestPayFieldErrorsAbortQuietly(t *testing.T) {
	t.Parallel()

	hosted := &fakeHostedWidget{tokenResult: widget.TokenResult{
		Status: widget.TokenStatusError,
		Errors: []widget.TokenError{{Category: widget.CategoryValidation, Field: "cardNumber"}},
	}}
	f := newFixture(t, hosted, &fakePaymentClient{})
	submitValidDetails(t, f.orch)

	if err := f.orch.Pay(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	if got := f.orch.LastError(); got != "please check your card details" {
		t.Fatalf("unexpected last error: %q", got)
	}
	if got := f.orch.State(); got != StatePayment {
		t.Fatalf("expected to stay on PAYMENT, got %s", got)
	}
}

func TestPayBackendFailureKeepsCart(t *testing.T) {
	t.Parallel()

	payments := &fakePaymentClient{outcome: PaymentOutcome{Message: "payment was not completed"}}
	f := newFixture(t, okWidget(), payments)
	submitValidDetails(t, f.orch)

	err := f.orch.Pay(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDeclined {
		t.Fatalf("expected a declined error, got %v", err)
	}
	if got := f.orch.State(); got != StatePayment {
		t.Fatalf("expected to stay on PAYMENT, got %s", got)
	}
	if f.cart.IsEmpty() {
		t.Fatal("the cart must survive a failed payment")
	}
	f.notifier.Close()
	if len(f.emails.delivered()) != 0 {
		t.Fatal("no emails on failure")
	}
}

func TestPayRejectsOverlappingAttempts(t *testing.T) {
	t.Parallel()

	hosted := okWidget()
	hosted.release = make(chan struct{})
	payments := &fakePaymentClient{outcome: PaymentOutcome{Completed: true}}
	f := newFixture(t, hosted, payments)
	submitValidDetails(t, f.orch)

	done := make(chan error, 1)
	go func() { done <- f.orch.Pay(context.Background()) }()

	for hosted.calls() == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := f.orch.Pay(context.Background()); !errors.Is(err, ErrPaymentInFlight) {
		t.Fatalf("expected ErrPaymentInFlight, got %v", err)
	}

	close(hosted.release)
	if err := <-done; err != nil {
		t.Fatalf("first attempt must succeed: %v", err)
	}
	if hosted.calls() != 1 {
		t.Fatalf("expected exactly one tokenization, got %d", hosted.calls())
	}
	if len(payments.submitted()) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(payments.submitted()))
	}
}

func TestAbandonDiscardsLateVerdict(t *testing.T) {
	t.Parallel()

	payments := &fakePaymentClient{
		outcome: PaymentOutcome{Completed: true, PaymentID: "pay_late"},
		release: make(chan struct{}),
	}
	f := newFixture(t, okWidget(), payments)
	submitValidDetails(t, f.orch)

	done := make(chan error, 1)
	go func() { done <- f.orch.Pay(context.Background()) }()

	for len(payments.submitted()) == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := f.orch.Abandon(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	close(payments.release)
	if err := <-done; err != nil {
		t.Fatalf("an abandoned attempt must not error: %v", err)
	}

	if got := f.orch.PaymentID(); got != "" {
		t.Fatalf("a late verdict must not record a payment, got %q", got)
	}
	if f.cart.IsEmpty() {
		t.Fatal("a late verdict must not clear the cart")
	}
	f.notifier.Close()
	if len(f.emails.delivered()) != 0 {
		t.Fatal("a late verdict must not send emails")
	}
}

func TestPayFromWrongStateRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, okWidget(), &fakePaymentClient{})
	// Still on FORM.
	err := f.orch.Pay(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

func TestSuccessSurvivesEmptyCart(t *testing.T) {
	t.Parallel()

	payments := &fakePaymentClient{outcome: PaymentOutcome{Completed: true, PaymentID: "pay_1"}}
	f := newFixture(t, okWidget(), payments)
	submitValidDetails(t, f.orch)
	if err := f.orch.Pay(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The cart is now empty; success must not degrade to EMPTY.
	if got := f.orch.State(); got != StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", got)
	}
}

func TestSkippedOutcomeCountsAsSuccess(t *testing.T) {
	t.Parallel()

	payments := &fakePaymentClient{outcome: PaymentOutcome{Skipped: true, Message: "no backend deployed"}}
	f := newFixture(t, okWidget(), payments)
	submitValidDetails(t, f.orch)

	if err := f.orch.Pay(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.orch.State(); got != StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", got)
	}
}
