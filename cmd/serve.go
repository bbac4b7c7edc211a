package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/controller"
	"github.com/sellermesh/ms-go-vendor-payouts/app/provider"
	"github.com/sellermesh/ms-go-vendor-payouts/app/repository"
	"github.com/sellermesh/ms-go-vendor-payouts/app/service"
	"github.com/sellermesh/ms-go-vendor-payouts/app/types"
	"github.com/sellermesh/ms-go-vendor-payouts/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  "Start the HTTP (Echo) server for the vendor payouts service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, payoutService, cleanup := mustCreatePayoutService()
	defer cleanup()

	payoutController := controller.NewPayoutController(payoutService)
	e := setupHTTPServer(payoutController)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(payoutController *controller.PayoutController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(requireRequestID())

	e.GET("/health", payoutController.Health)

	accounts := e.Group("/accounts")
	accounts.POST("", payoutController.CreateAccount)
	accounts.GET("/:vendor_id", payoutController.GetAccount)
	accounts.POST("/:vendor_id/onboarding-link", payoutController.GenerateOnboardingLink)
	accounts.POST("/:vendor_id/refresh", payoutController.RefreshAccountStatus)
	accounts.PATCH("/:vendor_id/business-profile", payoutController.UpdateBusinessProfile)

	payments := e.Group("/payments")
	payments.POST("", payoutController.StartPayment)
	payments.GET("/:order_id", payoutController.GetAttempt)
	payments.POST("/:order_id/confirm", payoutController.ConfirmPayment)

	vendors := e.Group("/vendors/:vendor_id")
	vendors.POST("/withdrawals", payoutController.RequestWithdrawal)
	vendors.GET("/withdrawals", payoutController.ListWithdrawals)
	vendors.GET("/withdrawals/summary", payoutController.SummarizeWithdrawals)

	e.GET("/withdrawals/:id", payoutController.GetWithdrawal)

	webhooks := e.Group("/webhooks/providers")
	webhooks.POST("/stripe", payoutController.HandleProviderWebhook)

	return e
}

func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			// Processor deliveries carry no request id; signatures stand in
			// for it on the webhook route.
			if strings.HasPrefix(ctx.Request().URL.Path, "/webhooks/") {
				return next(ctx)
			}

			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func mustCreatePayoutService() (*config.Config, *service.PayoutService, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	accountRepo := repository.NewVendorAccountRepository(db)
	attemptRepo := repository.NewPaymentAttemptRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	earningsRepo := repository.NewEarningsRepository(db)
	eventRepo := repository.NewAccountEventRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)

	stripeClient := provider.NewStripeClient(provider.StripeConfig{
		SecretKey:                 cfg.Stripe.SecretKey,
		WebhookSecret:             cfg.Stripe.WebhookSecret,
		APIBaseURL:                cfg.Stripe.APIBaseURL,
		SignatureToleranceSeconds: cfg.Stripe.SignatureToleranceSeconds,
		HTTPTimeout:               cfg.Stripe.HTTPTimeout,
	})

	orderNotifier := service.NewHTTPOrderNotifier(cfg.Orders.CallbackBaseURL, cfg.Orders.HTTPTimeout)

	payoutService := service.NewPayoutService(
		accountRepo,
		attemptRepo,
		withdrawalRepo,
		earningsRepo,
		eventRepo,
		webhookRepo,
		stripeClient,
		orderNotifier,
		cfg.Payouts,
	)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return cfg, payoutService, cleanup
}
