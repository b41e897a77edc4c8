package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"

	"github.com/butterandcrumb/storefront-backend/pkg/config"
	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/metrics"
	"github.com/butterandcrumb/storefront-backend/pkg/square"
)

// Processor is the slice of the Square client the service depends on.
type Processor interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// Request carries the normalized-to-be payment fields off the wire.
type Request struct {
	SourceID       string
	Amount         *float64
	AmountCents    *int64
	Currency       string
	IdempotencyKey string
	Note           string
}

// Result is the processor's verdict for a completed charge.
type Result struct {
	Payment *sq.Payment
	Message string
}

// Service validates, normalizes, and forwards payment requests to the processor.
type Service interface {
	Process(ctx context.Context, req Request) (*Result, error)
}

type service struct {
	// processor stays nil when Square credentials were absent at startup; the
	// service then fails each request with a configuration error instead of
	// preventing the process from serving at all.
	processor Processor
	cfg       config.PaymentsConfig
	metrics   *metrics.PaymentMetrics
}

// NewService wires the payment pipeline dependencies.
func NewService(processor Processor, cfg config.PaymentsConfig, m *metrics.PaymentMetrics) Service {
	return &service{processor: processor, cfg: cfg, metrics: m}
}

func (s *service) Process(ctx context.Context, req Request) (*Result, error) {
	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		s.metrics.IncFailed("missing_source")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sourceId is required")
	}

	amountCents, err := NormalizeAmount(req.Amount, req.AmountCents)
	if err != nil {
		s.metrics.IncFailed("bad_amount")
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	if !s.cfg.CurrencyAllowed(currency) {
		s.metrics.IncFailed("currency")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("currency %s is not supported", currency))
	}

	if amountCents < s.cfg.MinAmountCents || amountCents > s.cfg.MaxAmountCents {
		s.metrics.IncFailed("bounds")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(
			"amount %d is outside the accepted range [%d, %d]",
			amountCents, s.cfg.MinAmountCents, s.cfg.MaxAmountCents,
		))
	}

	if s.processor == nil {
		s.metrics.IncFailed("config")
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "payment processor is not configured")
	}

	// A caller-supplied key is forwarded untouched so the processor can
	// deduplicate retries of the same attempt; one is minted only when absent.
	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	start := time.Now()
	payment, err := s.processor.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    amountCents,
		Currency:       currency,
		SourceID:       sourceID,
		IdempotencyKey: idempotencyKey,
		Note:           req.Note,
	})
	s.metrics.ObserveDuration(currency, time.Since(start))
	if err != nil {
		s.metrics.IncFailed(failureReason(err))
		return nil, err
	}

	s.metrics.IncCompleted(currency)
	return &Result{
		Payment: payment,
		Message: "payment completed",
	}, nil
}

func failureReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "unknown"
	}
	switch typed.Code() {
	case pkgerrors.CodeDeclined:
		return "declined"
	case pkgerrors.CodeDependency:
		return "processor_unreachable"
	case pkgerrors.CodeConfig:
		return "config"
	default:
		return strings.ToLower(string(typed.Code()))
	}
}
