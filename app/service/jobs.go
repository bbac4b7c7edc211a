package service

import (
	"context"
	"strings"
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
)

// RunAccountRefreshBatch re-polls capability flags for accounts stuck in
// verification, covering gaps when account.updated deliveries were missed.
func (s *PayoutService) RunAccountRefreshBatch(ctx context.Context) error {
	now := time.Now().UTC()
	observedBefore := now.Add(-s.payoutsCfg.AccountRefreshStaleAfter)
	accounts, err := s.accountRepo.ListStaleVerification(ctx, observedBefore, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, account := range accounts {
		if account == nil || account.ProviderAccountID == nil {
			continue
		}

		state, err := s.providerClient.RetrieveAccount(ctx, *account.ProviderAccountID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		flags := entity.CapabilityFlags{
			ChargesEnabled:   state.ChargesEnabled,
			PayoutsEnabled:   state.PayoutsEnabled,
			DetailsSubmitted: state.DetailsSubmitted,
		}
		if err := s.applyCapabilityState(ctx, account, flags, time.Now().UTC(), nil); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunTransferReconcileBatch asks the processor about transfers that have been
// PROCESSING too long and applies the answer through the same terminal-state
// guards the webhook path uses.
func (s *PayoutService) RunTransferReconcileBatch(ctx context.Context) error {
	now := time.Now().UTC()
	before := now.Add(-s.payoutsCfg.TransferStaleAfter)
	withdrawals, err := s.withdrawalRepo.ListStaleProcessing(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, withdrawal := range withdrawals {
		if withdrawal == nil || withdrawal.ProviderTransferID == nil || strings.TrimSpace(*withdrawal.ProviderTransferID) == "" {
			continue
		}

		status, err := s.providerClient.RetrieveTransfer(ctx, strings.TrimSpace(*withdrawal.ProviderTransferID))
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}

		applyAt := time.Now().UTC()
		switch status {
		case entity.WithdrawalStatusCompleted:
			if _, err := s.withdrawalRepo.MarkCompleted(ctx, withdrawal.ID, applyAt, applyAt); err != nil {
				firstErr = keepFirstErr(firstErr, err)
			}
		case entity.WithdrawalStatusFailed:
			reason := "transfer_reconciled_failed"
			applied, err := s.withdrawalRepo.MarkFailed(ctx, withdrawal.ID, &reason, applyAt)
			if err != nil {
				firstErr = keepFirstErr(firstErr, err)
				continue
			}
			if applied {
				s.releaseReservation(ctx, withdrawal.VendorID, withdrawal.AmountMinor, applyAt)
			}
		}
	}

	return firstErr
}

// RunDispatchNotificationsBatch retries order-paid notifications whose inline
// delivery did not go through.
func (s *PayoutService) RunDispatchNotificationsBatch(ctx context.Context) error {
	attempts, err := s.attemptRepo.ListDueNotifyDispatch(ctx, time.Now().UTC(), s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, attempt := range attempts {
		if attempt == nil {
			continue
		}
		if err := s.dispatchOrderNotification(ctx, attempt, time.Now().UTC()); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunExpireAttemptsBatch cancels payment attempts that have sat in a
// non-terminal state past the pending timeout. Checkout can re-arm them.
func (s *PayoutService) RunExpireAttemptsBatch(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := now.Add(-s.payoutsCfg.AttemptPendingTimeout)
	attempts, err := s.attemptRepo.ListStalePending(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, attempt := range attempts {
		if attempt == nil {
			continue
		}

		category := "expired"
		safeMessage := GenericPaymentErrorMessage
		if _, err := s.attemptRepo.UpdateOutcome(ctx, attempt.ID, entity.AttemptStatusCanceled, &category, &safeMessage, time.Now().UTC()); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
