package controllers

import (
	"net/http"

	"github.com/butterandcrumb/storefront-backend/api/responses"
	"github.com/butterandcrumb/storefront-backend/api/validators"
	"github.com/butterandcrumb/storefront-backend/internal/mailer"
	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
)

type emailRequest struct {
	To      string `json:"to" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
	From    string `json:"from"`
}

// SendEmail handles the storefront's transactional email requests.
func SendEmail(svc mailer.Service, logg *logger.Logger, opts responses.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteFailed(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "mailer service unavailable"), opts)
			return
		}

		var payload emailRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteFailed(r.Context(), logg, w, err, opts)
			return
		}

		err := svc.Send(r.Context(), mailer.SendInput{
			To:      payload.To,
			Subject: payload.Subject,
			Text:    payload.Text,
			HTML:    payload.HTML,
			From:    payload.From,
		})
		if err != nil {
			responses.WriteFailed(r.Context(), logg, w, err, opts)
			return
		}

		responses.WriteSent(w)
	}
}
