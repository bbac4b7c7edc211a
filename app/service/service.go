package service

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
	"github.com/sellermesh/ms-go-vendor-payouts/app/factory"
	"github.com/sellermesh/ms-go-vendor-payouts/app/provider"
	"github.com/sellermesh/ms-go-vendor-payouts/app/repository"
	"github.com/sellermesh/ms-go-vendor-payouts/config"
)

const (
	defaultPageSize  = int32(20)
	maxPageSize      = int32(100)
	defaultBatchSize = int32(100)
)

type vendorAccountRepository interface {
	Create(ctx context.Context, account *entity.VendorAccount) error
	FindByVendorID(ctx context.Context, vendorID string) (*entity.VendorAccount, error)
	FindByProviderAccountID(ctx context.Context, providerAccountID string) (*entity.VendorAccount, error)
	AttachProviderAccountID(ctx context.Context, vendorID, providerAccountID string, status int32, now time.Time) error
	UpdateCapabilities(ctx context.Context, vendorID string, flags entity.CapabilityFlags, status int32, observedAt, now time.Time) (bool, error)
	UpdateBusinessProfile(ctx context.Context, vendorID, businessName string, now time.Time) error
	ListStaleVerification(ctx context.Context, observedBefore time.Time, limit int32) ([]*entity.VendorAccount, error)
}

type paymentAttemptRepository interface {
	Create(ctx context.Context, attempt *entity.PaymentAttempt) error
	FindByOrderID(ctx context.Context, orderID string) (*entity.PaymentAttempt, error)
	FindByProviderIntentID(ctx context.Context, intentID string) (*entity.PaymentAttempt, error)
	MarkSucceeded(ctx context.Context, id uint64, now time.Time) (bool, error)
	UpdateOutcome(ctx context.Context, id uint64, status int32, errorCategory, errorMessage *string, now time.Time) (bool, error)
	Rearm(ctx context.Context, id uint64, intentID, clientSecret string, amountMinor int64, currency string, now time.Time) (bool, error)
	UpdateNotifyDelivery(ctx context.Context, id uint64, status, attempts int32, nextAt *time.Time, lastErr *string, now time.Time) error
	ListDueNotifyDispatch(ctx context.Context, now time.Time, limit int32) ([]*entity.PaymentAttempt, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.PaymentAttempt, error)
}

type withdrawalRepository interface {
	Create(ctx context.Context, withdrawal *entity.Withdrawal) error
	FindByPublicID(ctx context.Context, publicID string) (*entity.Withdrawal, error)
	FindByProviderTransferID(ctx context.Context, transferID string) (*entity.Withdrawal, error)
	AttachTransfer(ctx context.Context, id uint64, transferID string, arrivalEstimate *string, livemode bool, now time.Time) error
	MarkCompleted(ctx context.Context, id uint64, processedAt, now time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uint64, reason *string, now time.Time) (bool, error)
	List(ctx context.Context, filter repository.WithdrawalFilter) ([]*entity.Withdrawal, error)
	Count(ctx context.Context, filter repository.WithdrawalFilter) (int64, error)
	Summarize(ctx context.Context, vendorID string) (*entity.WithdrawalSummary, error)
	ListStaleProcessing(ctx context.Context, before time.Time, limit int32) ([]*entity.Withdrawal, error)
}

type earningsRepository interface {
	AvailableBalance(ctx context.Context, vendorID string) (int64, error)
	Reserve(ctx context.Context, vendorID string, amountMinor int64, now time.Time) error
	Release(ctx context.Context, vendorID string, amountMinor int64, now time.Time) error
}

type accountEventRepository interface {
	Create(ctx context.Context, event *entity.AccountEvent) error
}

type webhookEventRepository interface {
	Create(ctx context.Context, event *entity.WebhookEvent) error
	ExistsByProviderEventID(ctx context.Context, providerEventID string) (bool, error)
}

type PayoutService struct {
	accountRepo    vendorAccountRepository
	attemptRepo    paymentAttemptRepository
	withdrawalRepo withdrawalRepository
	earningsRepo   earningsRepository
	eventRepo      accountEventRepository
	webhookRepo    webhookEventRepository
	providerClient provider.Client
	orders         OrderNotifier
	payoutsCfg     config.PayoutsConfig
	logger         logrus.FieldLogger
}

func NewPayoutService(
	accountRepo vendorAccountRepository,
	attemptRepo paymentAttemptRepository,
	withdrawalRepo withdrawalRepository,
	earningsRepo earningsRepository,
	eventRepo accountEventRepository,
	webhookRepo webhookEventRepository,
	providerClient provider.Client,
	orders OrderNotifier,
	payoutsCfg config.PayoutsConfig,
) *PayoutService {
	return &PayoutService{
		accountRepo:    accountRepo,
		attemptRepo:    attemptRepo,
		withdrawalRepo: withdrawalRepo,
		earningsRepo:   earningsRepo,
		eventRepo:      eventRepo,
		webhookRepo:    webhookRepo,
		providerClient: providerClient,
		orders:         orders,
		payoutsCfg:     payoutsCfg,
		logger:         factory.NewModuleLogger("payouts-service"),
	}
}

func (s *PayoutService) batchSize() int32 {
	if s.payoutsCfg.JobBatchSize > 0 {
		return s.payoutsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func normalizeOptionalString(v string) *string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func truncate(v string, max int) string {
	if len(v) <= max {
		return v
	}
	return v[:max]
}
