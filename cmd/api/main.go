package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/butterandcrumb/storefront-backend/api/routes"
	"github.com/butterandcrumb/storefront-backend/internal/mailer"
	"github.com/butterandcrumb/storefront-backend/internal/payments"
	"github.com/butterandcrumb/storefront-backend/pkg/config"
	"github.com/butterandcrumb/storefront-backend/pkg/logger"
	"github.com/butterandcrumb/storefront-backend/pkg/metrics"
	"github.com/butterandcrumb/storefront-backend/pkg/redis"
	"github.com/butterandcrumb/storefront-backend/pkg/sendgrid"
	"github.com/butterandcrumb/storefront-backend/pkg/square"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	// Square credentials may legitimately be absent in a fresh deploy; the
	// payment endpoint then answers with a configuration error instead of the
	// whole service refusing to boot.
	var processor payments.Processor
	squareClient, err := square.NewClient(context.Background(), cfg.Square, logg)
	if err != nil {
		logg.Warn(context.Background(), "square client unavailable: "+err.Error())
	} else {
		processor = squareClient
		logg.Info(logg.WithFields(context.Background(), map[string]any{
			"square_env":  squareClient.Environment(),
			"location_id": squareClient.LocationID(),
		}), "square payments enabled")
	}

	var sender mailer.Sender
	sendgridClient, err := sendgrid.NewClient(cfg.Sendgrid, logg)
	if err != nil {
		logg.Warn(context.Background(), "sendgrid client unavailable: "+err.Error())
	} else {
		sender = sendgridClient
		logg.Info(logg.WithField(context.Background(), "default_from", sendgridClient.DefaultFrom()), "sendgrid delivery enabled")
	}

	var cartStore *redis.Client
	if cfg.Redis.Enabled() {
		cartStore, err = redis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := cartStore.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	paymentMetrics := metrics.NewPaymentMetrics(registry)

	paymentService := payments.NewService(processor, cfg.Payments, paymentMetrics)
	mailerService := mailer.NewService(sender, paymentMetrics)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting storefront server")

	var pinger redis.Pinger
	if cartStore != nil {
		pinger = cartStore
	}

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, paymentService, mailerService, pinger, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "storefront server stopped unexpectedly", err)
		os.Exit(1)
	}
}
