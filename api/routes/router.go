package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/butterandcrumb/storefront-backend/api/controllers"
	"github.com/butterandcrumb/storefront-backend/api/middleware"
	"github.com/butterandcrumb/storefront-backend/api/responses"
	"github.com/butterandcrumb/storefront-backend/internal/mailer"
	"github.com/butterandcrumb/storefront-backend/internal/payments"
	"github.com/butterandcrumb/storefront-backend/pkg/config"
	pkgerrors "github.com/butterandcrumb/storefront-backend/pkg/errors"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
	"github.com/butterandcrumb/storefront-backend/pkg/redis"
)

// NewRouter assembles the storefront's HTTP surface: the two payment-flow
// endpoints, health probes, and metrics.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	paymentService payments.Service,
	mailerService mailer.Service,
	cartStore redis.Pinger,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	opts := responses.Options{Debug: cfg.Payments.Debug && !cfg.App.IsProd()}

	// The endpoints only ever accept POST (OPTIONS is answered by the CORS
	// layer); anything else is a 405 in the storefront's wire format.
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteFailed(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMethodNotAllowed, "method not allowed"), opts)
	})

	r.Post("/process-payment", controllers.ProcessPayment(paymentService, logg, opts))
	r.Post("/send-email", controllers.SendEmail(mailerService, logg, opts))

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, cartStore))
	})

	if registry != nil {
		r.Get("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP)
	}

	return r
}
