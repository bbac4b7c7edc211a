package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/sellermesh/ms-go-vendor-payouts/app/service"
	"github.com/sellermesh/ms-go-vendor-payouts/config"
)

var (
	workerMode bool
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Run account lifecycle related commands",
}

var accountsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-poll capability flags for accounts stuck in verification",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"accounts_refresh",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.AccountRefreshInterval },
			func(s *service.PayoutService, ctx context.Context) error {
				return s.RunAccountRefreshBatch(ctx)
			},
		)
	},
}

var transfersCmd = &cobra.Command{
	Use:   "transfers",
	Short: "Run transfer related commands",
}

var transfersReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile withdrawals stuck in processing against the provider",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"transfers_reconcile",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.TransferReconcileInterval },
			func(s *service.PayoutService, ctx context.Context) error {
				return s.RunTransferReconcileBatch(ctx)
			},
		)
	},
}

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "Run payment attempt related commands",
}

var attemptsExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Cancel payment attempts stuck in a non-terminal state",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"attempts_expire",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.ExpireAttemptsInterval },
			func(s *service.PayoutService, ctx context.Context) error {
				return s.RunExpireAttemptsBatch(ctx)
			},
		)
	},
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Run order notification related commands",
}

var notificationsDispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Retry pending order-paid notifications",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"notifications_dispatch",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.NotifyDispatchInterval },
			func(s *service.PayoutService, ctx context.Context) error {
				return s.RunDispatchNotificationsBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	rootCmd.AddCommand(transfersCmd)
	rootCmd.AddCommand(attemptsCmd)
	rootCmd.AddCommand(notificationsCmd)
	accountsCmd.AddCommand(accountsRefreshCmd)
	transfersCmd.AddCommand(transfersReconcileCmd)
	attemptsCmd.AddCommand(attemptsExpireCmd)
	notificationsCmd.AddCommand(notificationsDispatchCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(s *service.PayoutService, ctx context.Context) error,
) {
	cfg, payoutService, cleanup := mustCreatePayoutService()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(cfg), payoutService, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(payoutService, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	payoutService *service.PayoutService,
	fn func(s *service.PayoutService, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(payoutService, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(payoutService, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
