package controllers

import (
	"net/http"

	"github.com/butterandcrumb/storefront-backend/api/responses"
	"github.com/butterandcrumb/storefront-backend/api/validators"
	"github.com/butterandcrumb/storefront-backend/internal/payments"
	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
)

type paymentRequest struct {
	SourceID       string   `json:"sourceId" validate:"required"`
	Amount         *float64 `json:"amount"`
	AmountCents    *int64   `json:"amountCents"`
	Currency       string   `json:"currency"`
	IdempotencyKey string   `json:"idempotencyKey"`
	Note           string   `json:"note"`
}

// ProcessPayment handles the storefront's tokenized payment submissions.
func ProcessPayment(svc payments.Service, logg *logger.Logger, opts responses.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteFailed(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"), opts)
			return
		}

		var payload paymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteFailed(r.Context(), logg, w, err, opts)
			return
		}

		result, err := svc.Process(r.Context(), payments.Request{
			SourceID:       payload.SourceID,
			Amount:         payload.Amount,
			AmountCents:    payload.AmountCents,
			Currency:       payload.Currency,
			IdempotencyKey: payload.IdempotencyKey,
			Note:           payload.Note,
		})
		if err != nil {
			responses.WriteFailed(r.Context(), logg, w, err, opts)
			return
		}

		responses.WriteCompleted(w, result.Payment, result.Message)
	}
}
