package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
	"github.com/sellermesh/ms-go-vendor-payouts/app/provider"
	"github.com/sellermesh/ms-go-vendor-payouts/app/repository"
)

// HandleProviderWebhook verifies, deduplicates and applies one processor
// event. State is applied before the dedup row is inserted: every transition
// behind it is a forward-only conditional UPDATE, so re-applying a delivery
// that crashed before the insert is harmless, while a recorded event is
// guaranteed to have been applied.
func (s *PayoutService) HandleProviderWebhook(ctx context.Context, payload []byte, signature string) (*provider.WebhookEvent, error) {
	event, err := s.providerClient.VerifyAndParseWebhook(ctx, payload, signature)
	if err != nil {
		s.recordRejectedWebhook(ctx, payload, signature, err)
		if errors.Is(err, provider.ErrInvalidSignature) {
			return nil, ErrWebhookRejected
		}
		return nil, fmt.Errorf("%w: %v", ErrWebhookRejected, err)
	}

	if event.EventID != "" {
		exists, err := s.webhookRepo.ExistsByProviderEventID(ctx, event.EventID)
		if err != nil {
			return nil, err
		}
		if exists {
			return event, ErrDuplicateEvent
		}
	}

	if err := s.applyWebhookEvent(ctx, event); err != nil {
		return event, err
	}

	record := &entity.WebhookEvent{
		ProviderEventID: normalizeOptionalString(event.EventID),
		EventType:       event.EventType,
		Signature:       signature,
		PayloadJSON:     string(payload),
		Status:          entity.WebhookStatusProcessed,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.webhookRepo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrEventAlreadyExists) {
			return event, ErrDuplicateEvent
		}
		return event, err
	}

	return event, nil
}

// applyWebhookEvent routes a verified event. Events that reference unknown
// local state are acknowledged without effect; the processor is allowed to
// know about objects this service never created.
func (s *PayoutService) applyWebhookEvent(ctx context.Context, event *provider.WebhookEvent) error {
	switch event.EventType {
	case "account.updated":
		return s.applyAccountUpdated(ctx, event)
	case "transfer.paid":
		return s.applyTransferPaid(ctx, event)
	case "transfer.failed", "transfer.reversed":
		return s.applyTransferFailed(ctx, event)
	case "payment_intent.succeeded":
		return s.applyIntentSucceeded(ctx, event)
	case "payment_intent.payment_failed":
		return s.applyIntentFailed(ctx, event)
	default:
		return nil
	}
}

func (s *PayoutService) applyAccountUpdated(ctx context.Context, event *provider.WebhookEvent) error {
	if event.Account == nil || event.Account.AccountID == "" {
		return nil
	}

	account, err := s.accountRepo.FindByProviderAccountID(ctx, event.Account.AccountID)
	if err != nil {
		return err
	}
	if account == nil {
		return nil
	}

	flags := entity.CapabilityFlags{
		ChargesEnabled:   event.Account.ChargesEnabled,
		PayoutsEnabled:   event.Account.PayoutsEnabled,
		DetailsSubmitted: event.Account.DetailsSubmitted,
	}
	return s.applyCapabilityState(ctx, account, flags, event.CreatedAt, normalizeOptionalString(event.EventID))
}

func (s *PayoutService) applyTransferPaid(ctx context.Context, event *provider.WebhookEvent) error {
	withdrawal, err := s.findEventWithdrawal(ctx, event)
	if err != nil || withdrawal == nil {
		return err
	}

	now := time.Now().UTC()
	applied, err := s.withdrawalRepo.MarkCompleted(ctx, withdrawal.ID, event.CreatedAt, now)
	if err != nil {
		return err
	}
	if applied {
		_ = s.eventRepo.Create(ctx, &entity.AccountEvent{
			VendorID:        withdrawal.VendorID,
			EventType:       "withdrawal_completed",
			NewStatus:       entity.WithdrawalStatusCompleted,
			ProviderEventID: normalizeOptionalString(event.EventID),
			CreatedAt:       now,
		})
	}
	return nil
}

func (s *PayoutService) applyTransferFailed(ctx context.Context, event *provider.WebhookEvent) error {
	withdrawal, err := s.findEventWithdrawal(ctx, event)
	if err != nil || withdrawal == nil {
		return err
	}

	now := time.Now().UTC()
	reason := event.EventType
	applied, err := s.withdrawalRepo.MarkFailed(ctx, withdrawal.ID, &reason, now)
	if err != nil {
		return err
	}
	if applied {
		// The reservation is only returned by the call that performed the
		// PROCESSING -> FAILED flip, so replays cannot double-release.
		s.releaseReservation(ctx, withdrawal.VendorID, withdrawal.AmountMinor, now)
		_ = s.eventRepo.Create(ctx, &entity.AccountEvent{
			VendorID:        withdrawal.VendorID,
			EventType:       "withdrawal_failed",
			NewStatus:       entity.WithdrawalStatusFailed,
			ProviderEventID: normalizeOptionalString(event.EventID),
			CreatedAt:       now,
		})
	}
	return nil
}

func (s *PayoutService) applyIntentSucceeded(ctx context.Context, event *provider.WebhookEvent) error {
	attempt, err := s.findEventAttempt(ctx, event)
	if err != nil || attempt == nil {
		return err
	}
	return s.markAttemptSucceeded(ctx, attempt, time.Now().UTC())
}

func (s *PayoutService) applyIntentFailed(ctx context.Context, event *provider.WebhookEvent) error {
	attempt, err := s.findEventAttempt(ctx, event)
	if err != nil || attempt == nil {
		return err
	}

	safeMessage := GenericPaymentErrorMessage
	_, err = s.attemptRepo.UpdateOutcome(ctx, attempt.ID, entity.AttemptStatusFailed, normalizeOptionalString("payment_failed"), &safeMessage, time.Now().UTC())
	return err
}

func (s *PayoutService) findEventWithdrawal(ctx context.Context, event *provider.WebhookEvent) (*entity.Withdrawal, error) {
	if event.Transfer == nil || event.Transfer.TransferID == "" {
		return nil, nil
	}
	return s.withdrawalRepo.FindByProviderTransferID(ctx, event.Transfer.TransferID)
}

func (s *PayoutService) findEventAttempt(ctx context.Context, event *provider.WebhookEvent) (*entity.PaymentAttempt, error) {
	if event.Intent == nil {
		return nil, nil
	}
	if event.Intent.IntentID != "" {
		attempt, err := s.attemptRepo.FindByProviderIntentID(ctx, event.Intent.IntentID)
		if err != nil || attempt != nil {
			return attempt, err
		}
	}
	if event.Intent.OrderID != "" {
		return s.attemptRepo.FindByOrderID(ctx, event.Intent.OrderID)
	}
	return nil, nil
}

func (s *PayoutService) recordRejectedWebhook(ctx context.Context, payload []byte, signature string, cause error) {
	errMsg := truncate(cause.Error(), 512)
	_ = s.webhookRepo.Create(ctx, &entity.WebhookEvent{
		EventType:   "unknown",
		Signature:   strings.TrimSpace(signature),
		PayloadJSON: string(payload),
		Status:      entity.WebhookStatusRejected,
		Error:       &errMsg,
		CreatedAt:   time.Now().UTC(),
	})
}
