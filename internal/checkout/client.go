package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
)

// Client talks to the payment and notification backends over HTTP. It
// implements both PaymentClient and EmailSender.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logg       *logger.Logger

	// devFallback treats a missing payment endpoint as a skipped (not failed)
	// payment so the storefront can be exercised without a deployed backend.
	// It must stay off in production builds.
	devFallback bool
}

// ClientOption tunes the backend client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying transport.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithDevFallback enables the local-development skipped-payment fallback.
func WithDevFallback() ClientOption {
	return func(c *Client) { c.devFallback = true }
}

// NewClient points the checkout flow at the backend base URL.
func NewClient(baseURL string, logg *logger.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logg:       logg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type paymentWireRequest struct {
	SourceID       string `json:"sourceId"`
	AmountCents    int64  `json:"amountCents"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type paymentWireResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Payment struct {
		ID string `json:"id"`
	} `json:"payment"`
}

// SubmitPayment posts the tokenized payment to /process-payment and relays
// the backend's verdict. The client never invents a completed status.
func (c *Client) SubmitPayment(ctx context.Context, req PaymentRequest) (PaymentOutcome, error) {
	body := paymentWireRequest{
		SourceID:       req.SourceID,
		AmountCents:    req.AmountCents,
		Currency:       req.Currency,
		IdempotencyKey: req.IdempotencyKey,
	}

	status, payload, err := c.post(ctx, "/process-payment", body)
	if err != nil {
		return PaymentOutcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "could not reach the payment service")
	}

	if status == http.StatusNotFound && c.devFallback {
		if c.logg != nil {
			c.logg.Warn(ctx, "payment endpoint missing, skipping charge (dev fallback)")
		}
		return PaymentOutcome{Skipped: true, Message: "payment skipped (no backend deployed)"}, nil
	}

	var decoded paymentWireResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return PaymentOutcome{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unreadable payment service response")
	}

	if status != http.StatusOK || decoded.Status != "COMPLETED" {
		msg := nonEmpty(decoded.Error, fmt.Sprintf("payment service returned status %d", status))
		return PaymentOutcome{}, pkgerrors.New(pkgerrors.CodeDeclined, msg)
	}

	return PaymentOutcome{
		Completed: true,
		PaymentID: decoded.Payment.ID,
		Message:   decoded.Message,
	}, nil
}

type emailWireResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// SendEmail posts a notification to /send-email. Callers treat failures as
// best-effort; this method still reports them for logging.
func (c *Client) SendEmail(ctx context.Context, req EmailRequest) error {
	status, payload, err := c.post(ctx, "/send-email", req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "could not reach the email service")
	}

	var decoded emailWireResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unreadable email service response")
	}
	if status != http.StatusOK || decoded.Status != "SENT" {
		return pkgerrors.New(pkgerrors.CodeDependency, nonEmpty(decoded.Error, fmt.Sprintf("email service returned status %d", status)))
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (int, []byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, buf.Bytes(), nil
}
