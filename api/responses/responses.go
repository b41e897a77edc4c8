package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
	"github.com/butterandcrumb/storefront-backend/pkg/square"
)

const (
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusSent      = "SENT"
)

// CompletedResponse is the wire shape for a processor-confirmed payment.
type CompletedResponse struct {
	Status  string `json:"status"`
	Payment any    `json:"payment"`
	Message string `json:"message,omitempty"`
}

// SentResponse acknowledges a delivered transactional email.
type SentResponse struct {
	Status string `json:"status"`
}

// FailedResponse is the wire shape for every rejected request. SquareErrors is
// only populated when debug mode is explicitly enabled.
type FailedResponse struct {
	Status       string `json:"status"`
	Error        string `json:"error"`
	SquareErrors any    `json:"squareErrors,omitempty"`
}

// Options tunes how failures are rendered.
type Options struct {
	// Debug exposes processor error payloads and internal messages. Never
	// enable it in production.
	Debug bool
}

func WriteCompleted(w http.ResponseWriter, payment any, message string) {
	WriteJSON(w, http.StatusOK, CompletedResponse{
		Status:  StatusCompleted,
		Payment: payment,
		Message: message,
	})
}

func WriteSent(w http.ResponseWriter) {
	WriteJSON(w, http.StatusOK, SentResponse{Status: StatusSent})
}

// WriteFailed renders err as a FAILED payload with the HTTP status mapped from
// its error code. Internal detail stays out of the body unless debug is on.
func WriteFailed(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error, opts Options) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if meta.DetailsAllowed || opts.Debug {
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := FailedResponse{
		Status: StatusFailed,
		Error:  msg,
	}

	if opts.Debug {
		if sqErrors := square.ExtractErrors(typed); len(sqErrors) > 0 {
			payload.SquareErrors = sqErrors
		}
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		ctx = logg.WithFields(ctx, map[string]any{
			"error":       dump.TopMessage,
			"error_code":  dump.Code,
			"error_chain": dump.Chain,
		})
		logg.Error(ctx, "request.error", err)
	}

	WriteJSON(w, meta.HTTPStatus, payload)
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
