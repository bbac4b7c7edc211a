package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
	"github.com/sellermesh/ms-go-vendor-payouts/app/repository"
	"github.com/sellermesh/ms-go-vendor-payouts/app/types"
)

// ConfirmResult pairs the attempt after a confirmation round-trip with the
// redirect the customer must follow when authentication is required.
type ConfirmResult struct {
	Attempt     *entity.PaymentAttempt
	RedirectURL string
}

// StartPayment opens (or re-opens) the single payment attempt for an order.
// An order holds at most one attempt row; restarting checkout after a failure
// re-points that row at a fresh processor intent instead of inserting another.
func (s *PayoutService) StartPayment(ctx context.Context, req *types.StartPaymentRequest) (*entity.PaymentAttempt, error) {
	orderID := strings.TrimSpace(req.OrderID)
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if orderID == "" || req.AmountMinor <= 0 || len(currency) != 3 {
		return nil, ErrInvalidRequest
	}

	existing, err := s.attemptRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		switch existing.Status {
		case entity.AttemptStatusSucceeded:
			return existing, nil
		case entity.AttemptStatusInitiated, entity.AttemptStatusRequiresAction:
			return existing, nil
		}

		intent, err := s.providerClient.CreatePaymentIntent(ctx, orderID, req.AmountMinor, currency)
		if err != nil {
			return nil, err
		}

		applied, err := s.attemptRepo.Rearm(ctx, existing.ID, intent.IntentID, intent.ClientSecret, req.AmountMinor, currency, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		if !applied {
			// A concurrent confirmation moved the row; hand back what won.
			return s.refetchAttempt(ctx, orderID)
		}
		return s.refetchAttempt(ctx, orderID)
	}

	intent, err := s.providerClient.CreatePaymentIntent(ctx, orderID, req.AmountMinor, currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	attempt := &entity.PaymentAttempt{
		OrderID:          orderID,
		ProviderIntentID: &intent.IntentID,
		ClientSecret:     &intent.ClientSecret,
		Status:           entity.AttemptStatusInitiated,
		AmountMinor:      req.AmountMinor,
		Currency:         currency,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrAttemptAlreadyExists) {
			return s.refetchAttempt(ctx, orderID)
		}
		return nil, err
	}

	return attempt, nil
}

// ConfirmPayment drives one confirmation round-trip for an order's attempt.
// Re-confirming an already succeeded attempt is a no-op that reports success
// again; the order-paid side effect fired when the row first flipped.
func (s *PayoutService) ConfirmPayment(ctx context.Context, req *types.ConfirmPaymentRequest) (*ConfirmResult, error) {
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, ErrInvalidRequest
	}

	attempt, err := s.attemptRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, ErrAttemptNotFound
	}

	if attempt.Status == entity.AttemptStatusSucceeded {
		return &ConfirmResult{Attempt: attempt}, nil
	}
	if attempt.ClientSecret == nil || strings.TrimSpace(*attempt.ClientSecret) == "" {
		return nil, ErrInvalidStatus
	}

	out, err := s.providerClient.ConfirmPaymentIntent(ctx, *attempt.ClientSecret, strings.TrimSpace(req.ReturnURL))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch out.Status {
	case entity.AttemptStatusSucceeded:
		if err := s.markAttemptSucceeded(ctx, attempt, now); err != nil {
			return nil, err
		}
	case entity.AttemptStatusRequiresAction:
		if _, err := s.attemptRepo.UpdateOutcome(ctx, attempt.ID, entity.AttemptStatusRequiresAction, nil, nil, now); err != nil {
			return nil, err
		}
	case entity.AttemptStatusFailed, entity.AttemptStatusCanceled:
		category := normalizeOptionalString(out.ErrorCode)
		safeMessage := CustomerSafeMessage(out.ErrorMessage)
		if _, err := s.attemptRepo.UpdateOutcome(ctx, attempt.ID, out.Status, category, &safeMessage, now); err != nil {
			return nil, err
		}
	}

	refreshed, err := s.refetchAttempt(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{Attempt: refreshed, RedirectURL: out.RedirectURL}, nil
}

func (s *PayoutService) GetAttempt(ctx context.Context, orderID string) (*entity.PaymentAttempt, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrInvalidRequest
	}
	return s.refetchAttempt(ctx, orderID)
}

// markAttemptSucceeded flips the attempt and, only when this call actually
// performed the flip, starts the order-paid notification. The conditional
// UPDATE is what keeps the notification at most once across concurrent
// confirmations and webhook deliveries; MarkSucceeded records the delivery as
// pending in the same statement, so a dispatch that fails here is retried by
// the notifications job rather than lost.
func (s *PayoutService) markAttemptSucceeded(ctx context.Context, attempt *entity.PaymentAttempt, now time.Time) error {
	applied, err := s.attemptRepo.MarkSucceeded(ctx, attempt.ID, now)
	if err != nil {
		return err
	}
	if applied {
		attempt.NotifyDeliveryAttempts = 0
		_ = s.dispatchOrderNotification(ctx, attempt, now)
	}
	return nil
}

// dispatchOrderNotification performs one order-paid delivery round and records
// the outcome on the attempt row.
func (s *PayoutService) dispatchOrderNotification(ctx context.Context, attempt *entity.PaymentAttempt, now time.Time) error {
	attempts := attempt.NotifyDeliveryAttempts + 1

	if notifyErr := s.orders.MarkOrderPaid(ctx, attempt.OrderID); notifyErr != nil {
		return s.recordNotifyFailure(ctx, attempt, attempts, notifyErr, now)
	}

	return s.attemptRepo.UpdateNotifyDelivery(ctx, attempt.ID, entity.NotifyDeliverySuccess, attempts, nil, nil, now)
}

func (s *PayoutService) recordNotifyFailure(ctx context.Context, attempt *entity.PaymentAttempt, attempts int32, notifyErr error, now time.Time) error {
	lastErr := truncate(notifyErr.Error(), 512)

	maxAttempts := s.payoutsCfg.NotifyMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	status := entity.NotifyDeliveryPending
	var nextAt *time.Time
	if attempts >= maxAttempts {
		status = entity.NotifyDeliveryFailed
	} else {
		retryInterval := s.payoutsCfg.NotifyRetryInterval
		if retryInterval <= 0 {
			retryInterval = 5 * time.Minute
		}
		next := now.Add(retryInterval)
		nextAt = &next
	}

	if err := s.attemptRepo.UpdateNotifyDelivery(ctx, attempt.ID, status, attempts, nextAt, &lastErr, now); err != nil {
		return err
	}

	s.logger.WithError(notifyErr).WithFields(logrus.Fields{
		"order_id": attempt.OrderID,
		"attempts": attempts,
	}).Warn("Order paid notification failed")

	return notifyErr
}

func (s *PayoutService) refetchAttempt(ctx context.Context, orderID string) (*entity.PaymentAttempt, error) {
	attempt, err := s.attemptRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, ErrAttemptNotFound
	}
	return attempt, nil
}
