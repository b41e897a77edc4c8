package widget

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/multierr"

	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
)

// State tracks the hosted card-entry widget lifecycle.
type State string

const (
	StateUninitialized State = "UNINITIALIZED"
	StateInitializing  State = "INITIALIZING"
	StateReady         State = "READY"
	StateFailed        State = "FAILED"
)

// ErrAlreadyAttached is the benign race where the widget was attached twice;
// adapters treat it as a no-op rather than a failure.
var ErrAlreadyAttached = errors.New("widget already attached")

// ErrTokenizeInFlight rejects overlapping tokenize calls.
var ErrTokenizeInFlight = errors.New("tokenization already in flight")

// HostedWidget is the opaque card-entry capability the adapter drives. Raw
// card data never crosses this boundary; Tokenize exchanges it for a
// single-use token inside the widget.
type HostedWidget interface {
	Attach(ctx context.Context) error
	Detach() error
	Tokenize(ctx context.Context) (TokenResult, error)
}

// Mount is the UI slot the widget binds into.
type Mount interface {
	HasRendered() bool
	Clear()
}

// TokenResult is the widget's tokenization verdict.
type TokenResult struct {
	Status string
	Token  string
	Errors []TokenError
}

// TokenError is one entry of the widget's structured error list.
type TokenError struct {
	Category string
	Code     string
	Message  string
	Field    string
}

const (
	TokenStatusOK    = "OK"
	TokenStatusError = "ERROR"

	// Error categories the widget reports. Only the first three block the
	// payment flow; field-level validation stays on the widget's own inline
	// display.
	CategoryNetwork      = "NETWORK_ERROR"
	CategoryServer       = "SERVER_ERROR"
	CategoryTokenization = "TOKENIZATION_ERROR"
	CategoryValidation   = "VALIDATION_ERROR"
)

// Adapter owns the widget's initialization lifecycle and serializes token
// requests.
type Adapter struct {
	widget HostedWidget
	mount  Mount
	logg   *logger.Logger

	mu       sync.Mutex
	state    State
	cause    string
	inFlight bool
}

// NewAdapter wraps the hosted widget capability. The adapter starts
// uninitialized; call Open before tokenizing.
func NewAdapter(w HostedWidget, mount Mount, logg *logger.Logger) *Adapter {
	return &Adapter{widget: w, mount: mount, logg: logg, state: StateUninitialized}
}

// State reports the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// FailureCause returns the human-readable reason the adapter failed, empty
// otherwise.
func (a *Adapter) FailureCause() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cause
}

// Open acquires the widget and binds it to the mount, confirming the binding
// rendered before declaring the adapter ready. An already-attached race is
// benign.
func (a *Adapter) Open(ctx context.Context) error {
	a.mu.Lock()
	if a.state == StateReady || a.state == StateInitializing {
		a.mu.Unlock()
		return nil
	}
	a.state = StateInitializing
	a.cause = ""
	a.mu.Unlock()

	if err := a.widget.Attach(ctx); err != nil && !errors.Is(err, ErrAlreadyAttached) {
		return a.fail(ctx, causeFor(err), err)
	}

	if a.mount != nil && !a.mount.HasRendered() {
		err := errors.New("card form did not render")
		return a.fail(ctx, "the card form could not be displayed", err)
	}

	a.mu.Lock()
	a.state = StateReady
	a.mu.Unlock()
	if a.logg != nil {
		a.logg.Info(ctx, "card widget ready")
	}
	return nil
}

// Close releases widget resources and clears the mount. It is idempotent and
// safe to call whether or not initialization ever completed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	state := a.state
	a.state = StateUninitialized
	a.inFlight = false
	a.mu.Unlock()

	var err error
	if state == StateReady || state == StateInitializing {
		err = multierr.Append(err, a.widget.Detach())
	}
	if a.mount != nil {
		a.mount.Clear()
	}
	return err
}

// Tokenize requests a single-use payment token. Callable only from Ready;
// overlapping calls are rejected so one user action never issues two
// tokenizations.
func (a *Adapter) Tokenize(ctx context.Context) (TokenResult, error) {
	a.mu.Lock()
	if a.state != StateReady {
		state := a.state
		a.mu.Unlock()
		return TokenResult{}, pkgerrors.New(pkgerrors.CodeWidget, "card form is not ready").
			WithDetails(map[string]any{"state": string(state)})
	}
	if a.inFlight {
		a.mu.Unlock()
		return TokenResult{}, ErrTokenizeInFlight
	}
	a.inFlight = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.inFlight = false
		a.mu.Unlock()
	}()

	result, err := a.widget.Tokenize(ctx)
	if err != nil {
		return TokenResult{}, pkgerrors.Wrap(pkgerrors.CodeWidget, err, "tokenization failed")
	}
	return result, nil
}

// BlockingErrors filters the widget's error list down to the categories that
// should surface as a blocking banner. Field-level validation errors are
// excluded; the widget already shows those inline.
func BlockingErrors(result TokenResult) []TokenError {
	var blocking []TokenError
	for _, tokenErr := range result.Errors {
		switch tokenErr.Category {
		case CategoryNetwork, CategoryServer, CategoryTokenization:
			blocking = append(blocking, tokenErr)
		}
	}
	return blocking
}

func (a *Adapter) fail(ctx context.Context, cause string, err error) error {
	a.mu.Lock()
	a.state = StateFailed
	a.cause = cause
	a.mu.Unlock()
	if a.logg != nil {
		a.logg.Error(ctx, "card widget failed", err)
	}
	return pkgerrors.Wrap(pkgerrors.CodeWidget, err, cause)
}

func causeFor(err error) string {
	msg := err.Error()
	switch {
	case contains(msg, "network"), contains(msg, "timeout"), contains(msg, "connection"):
		return "a network problem prevented loading the card form"
	case contains(msg, "application", "location", "credential", "unauthorized"):
		return "the payment configuration is invalid"
	default:
		return "the card form failed to initialize"
	}
}

func contains(msg string, needles ...string) bool {
	lower := strings.ToLower(msg)
	for _, needle := range needles {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
