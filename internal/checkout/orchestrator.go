package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/butterandcrumb/storefront-backend/internal/cart"
	"github.com/butterandcrumb/storefront-backend/internal/notify"
	"github.com/butterandcrumb/storefront-backend/internal/orderform"
	"github.com/butterandcrumb/storefront-backend/internal/widget"
	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
)

// State is the checkout flow position.
type State string

const (
	// StateEmpty preempts the form whenever the cart has no items.
	StateEmpty   State = "EMPTY"
	StateForm    State = "FORM"
	StatePayment State = "PAYMENT"
	StateSuccess State = "SUCCESS"
)

// SuccessRedirectDelay is how long the success view stays up before the UI
// navigates away.
const SuccessRedirectDelay = 5 * time.Second

// ErrPaymentInFlight rejects a second pay action while one is outstanding.
var ErrPaymentInFlight = errors.New("payment attempt already in flight")

// PaymentRequest is the wire message submitted to the payment backend. The
// amount is always minor units; the key is fresh per attempt.
type PaymentRequest struct {
	SourceID       string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
}

// PaymentOutcome is the backend's verdict. Skipped marks the local-development
// fallback where no backend is deployed; it never occurs in production.
type PaymentOutcome struct {
	Completed bool
	Skipped   bool
	PaymentID string
	Message   string
}

// PaymentClient submits payment requests to the backend.
type PaymentClient interface {
	SubmitPayment(ctx context.Context, req PaymentRequest) (PaymentOutcome, error)
}

// EmailSender delivers the post-payment notification emails.
type EmailSender interface {
	SendEmail(ctx context.Context, req EmailRequest) error
}

// EmailRequest mirrors the notification backend contract.
type EmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html,omitempty"`
	From    string `json:"from,omitempty"`
}

// Params wires an orchestrator instance. One instance drives exactly one
// order; a new order starts a fresh instance.
type Params struct {
	Cart     *cart.Store
	Widget   *widget.Adapter
	Payments PaymentClient
	Email    EmailSender
	Notifier *notify.Notifier
	Logger   *logger.Logger

	Currency   string
	AdminEmail string
	StoreName  string
}

// Orchestrator sequences form, card entry, tokenization, backend submission,
// and the post-payment side effects.
type Orchestrator struct {
	cartStore *cart.Store
	adapter   *widget.Adapter
	payments  PaymentClient
	email     EmailSender
	notifier  *notify.Notifier
	logg      *logger.Logger

	currency   string
	adminEmail string
	storeName  string

	mu          sync.Mutex
	state       State
	details     orderform.Details
	payInFlight bool
	abandoned   bool
	lastError   string
	warning     string
	paymentID   string
}

// New validates the wiring and starts the flow at the form step.
func New(params Params) (*Orchestrator, error) {
	if params.Cart == nil {
		return nil, errors.New("cart store is required")
	}
	if params.Widget == nil {
		return nil, errors.New("widget adapter is required")
	}
	if params.Payments == nil {
		return nil, errors.New("payment client is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "USD"
	}
	return &Orchestrator{
		cartStore:  params.Cart,
		adapter:    params.Widget,
		payments:   params.Payments,
		email:      params.Email,
		notifier:   params.Notifier,
		logg:       params.Logger,
		currency:   currency,
		adminEmail: params.AdminEmail,
		storeName:  params.StoreName,
		state:      StateForm,
	}, nil
}

// State reports the flow position. An empty cart preempts the form and the
// payment step; it never preempts a reached success.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.effectiveStateLocked()
}

func (o *Orchestrator) effectiveStateLocked() State {
	if o.state != StateSuccess && o.cartStore.IsEmpty() {
		return StateEmpty
	}
	return o.state
}

// SubmitDetails validates the delivery form. Field errors keep the flow on the
// form; success advances to payment and opens the card widget.
func (o *Orchestrator) SubmitDetails(ctx context.Context, details orderform.Details) map[string]string {
	problems := orderform.Validate(details)
	if len(problems) > 0 {
		return problems
	}

	o.mu.Lock()
	if o.effectiveStateLocked() != StateForm {
		o.mu.Unlock()
		return map[string]string{}
	}
	o.details = details
	o.state = StatePayment
	o.lastError = ""
	o.mu.Unlock()

	// The pay action stays disabled until the adapter reports ready, so an
	// initialization failure here is informational, not fatal to the flow.
	if err := o.adapter.Open(ctx); err != nil && o.logg != nil {
		o.logg.Error(ctx, "card widget failed to open", err)
	}
	return map[string]string{}
}

// Back returns from payment to the form, preserving the entered details.
func (o *Orchestrator) Back() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StatePayment {
		o.state = StateForm
	}
}

// CanPay reports whether the pay action should be enabled.
func (o *Orchestrator) CanPay() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.effectiveStateLocked() == StatePayment &&
		!o.payInFlight &&
		o.adapter.State() == widget.StateReady
}

// Pay runs one payment attempt: tokenize, submit, handle the verdict. A second
// call while one is outstanding returns ErrPaymentInFlight without issuing a
// tokenization. Each genuine attempt uses a freshly generated idempotency key.
func (o *Orchestrator) Pay(ctx context.Context) error {
	o.mu.Lock()
	if o.effectiveStateLocked() != StatePayment {
		state := o.effectiveStateLocked()
		o.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot pay from state %s", state))
	}
	if o.payInFlight {
		o.mu.Unlock()
		return ErrPaymentInFlight
	}
	o.payInFlight = true
	o.lastError = ""
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.payInFlight = false
		o.mu.Unlock()
	}()

	result, err := o.adapter.Tokenize(ctx)
	if err != nil {
		return o.abort(err)
	}
	if result.Status != widget.TokenStatusOK {
		return o.abort(tokenizationError(result))
	}

	// The key is minted only after tokenization succeeded: an aborted attempt
	// never consumes one, and retries after a failure count as new attempts.
	req := PaymentRequest{
		SourceID:       result.Token,
		AmountCents:    o.cartStore.Total(),
		Currency:       o.currency,
		IdempotencyKey: uuid.NewString(),
	}

	attemptCtx := ctx
	if o.logg != nil {
		attemptCtx = o.logg.WithAttemptID(ctx, req.IdempotencyKey)
		o.logg.Info(attemptCtx, "submitting payment")
	}

	outcome, err := o.payments.SubmitPayment(attemptCtx, req)

	o.mu.Lock()
	if o.abandoned {
		// The user navigated away while the request was outstanding; a late
		// verdict must not mutate the flow.
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	if err != nil {
		return o.abort(err)
	}
	if !outcome.Completed && !outcome.Skipped {
		return o.abort(pkgerrors.New(pkgerrors.CodeDeclined, nonEmpty(outcome.Message, "payment was not completed")))
	}

	o.succeed(attemptCtx, outcome)
	return nil
}

// Abandon tears down the flow on navigation away. Late backend responses are
// discarded afterwards.
func (o *Orchestrator) Abandon() error {
	o.mu.Lock()
	o.abandoned = true
	o.mu.Unlock()
	return o.adapter.Close()
}

// Details returns the delivery details entered so far.
func (o *Orchestrator) Details() orderform.Details {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.details
}

// LastError returns the message of the most recent failed attempt.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastError
}

// Warning returns the soft, non-blocking warning attached to a success, if any.
func (o *Orchestrator) Warning() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.warning
}

// PaymentID returns the processor's payment identifier after success.
func (o *Orchestrator) PaymentID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paymentID
}

func (o *Orchestrator) succeed(ctx context.Context, outcome PaymentOutcome) {
	o.mu.Lock()
	details := o.details
	items := o.cartStore.Items()
	total := o.cartStore.Total()
	o.mu.Unlock()

	o.dispatchEmails(details, items, total, outcome)

	o.cartStore.Clear(ctx)

	o.mu.Lock()
	o.state = StateSuccess
	o.paymentID = outcome.PaymentID
	o.mu.Unlock()

	if o.logg != nil {
		o.logg.Info(o.logg.WithPaymentID(ctx, outcome.PaymentID), "checkout complete")
	}
}

// dispatchEmails fires the confirmation and admin-alert emails without gating
// the success transition. Delivery failures are the notifier's problem; only a
// dropped dispatch leaves a soft warning.
func (o *Orchestrator) dispatchEmails(details orderform.Details, items []cart.LineItem, totalCents int64, outcome PaymentOutcome) {
	if o.email == nil || o.notifier == nil {
		return
	}

	confirmation := buildConfirmationEmail(o.storeName, details, items, totalCents)
	alert := buildAdminAlertEmail(o.storeName, o.adminEmail, details, items, totalCents, outcome.PaymentID)

	dispatched := o.notifier.Dispatch(notify.Task{
		Kind: "order.confirmation",
		Run: func(ctx context.Context) error {
			return o.email.SendEmail(ctx, confirmation)
		},
	})
	if o.adminEmail != "" {
		dispatched = o.notifier.Dispatch(notify.Task{
			Kind: "order.admin_alert",
			Run: func(ctx context.Context) error {
				return o.email.SendEmail(ctx, alert)
			},
		}) && dispatched
	}

	if !dispatched {
		o.mu.Lock()
		o.warning = "Your payment went through, but the confirmation email may be delayed."
		o.mu.Unlock()
	}
}

func (o *Orchestrator) abort(err error) error {
	msg := "payment failed"
	if typed := pkgerrors.As(err); typed != nil && typed.Message() != "" {
		msg = typed.Message()
	} else if err != nil {
		msg = err.Error()
	}

	o.mu.Lock()
	o.lastError = msg
	o.mu.Unlock()
	return err
}

func tokenizationError(result widget.TokenResult) error {
	blocking := widget.BlockingErrors(result)
	if len(blocking) == 0 {
		// Only field-level card errors: the widget shows those inline, so the
		// attempt aborts quietly without a duplicate banner.
		return pkgerrors.New(pkgerrors.CodeWidget, "please check your card details")
	}
	messages := make([]string, 0, len(blocking))
	codes := make([]string, 0, len(blocking))
	for _, tokenErr := range blocking {
		if tokenErr.Message != "" {
			messages = append(messages, tokenErr.Message)
		}
		codes = append(codes, tokenErr.Code)
	}
	msg := strings.Join(messages, "; ")
	if msg == "" {
		msg = "card tokenization failed"
	}
	return pkgerrors.New(pkgerrors.CodeWidget, msg).WithDetails(map[string]any{"codes": codes})
}

func nonEmpty(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
