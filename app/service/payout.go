package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
	"github.com/sellermesh/ms-go-vendor-payouts/app/provider"
	"github.com/sellermesh/ms-go-vendor-payouts/app/repository"
	"github.com/sellermesh/ms-go-vendor-payouts/app/types"
)

const defaultArrivalEstimate = "2-3 business days"

// RequestWithdrawal moves vendor earnings out to the vendor's processor
// account. The reservation is committed before the transfer call, so a crash
// or provider failure can leave funds reserved but never over-withdrawn; the
// failure path releases the reservation explicitly.
func (s *PayoutService) RequestWithdrawal(ctx context.Context, req *types.RequestWithdrawalRequest) (*entity.Withdrawal, error) {
	vendorID := strings.TrimSpace(req.VendorID)
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if vendorID == "" || req.AmountMinor <= 0 || len(currency) != 3 {
		return nil, ErrInvalidRequest
	}
	if req.AmountMinor < s.payoutsCfg.MinimumWithdrawalMinor {
		return nil, fmt.Errorf("%w: amount is below the minimum withdrawal", ErrInvalidRequest)
	}

	account, err := s.provisionedAccount(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if account.Status != entity.AccountStatusReady || !account.Capabilities().AllEnabled() {
		return nil, ErrAccountNotReady
	}

	now := time.Now().UTC()
	if err := s.earningsRepo.Reserve(ctx, vendorID, req.AmountMinor, now); err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return nil, ErrInsufficientBalance
		}
		return nil, err
	}

	withdrawal := &entity.Withdrawal{
		PublicID:    uuid.NewString(),
		VendorID:    vendorID,
		AmountMinor: req.AmountMinor,
		Currency:    currency,
		Status:      entity.WithdrawalStatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.withdrawalRepo.Create(ctx, withdrawal); err != nil {
		s.releaseReservation(ctx, vendorID, req.AmountMinor, time.Now().UTC())
		return nil, err
	}

	transfer, err := s.providerClient.CreateTransfer(ctx, &provider.TransferInput{
		DestinationAccountID: *account.ProviderAccountID,
		AmountMinor:          req.AmountMinor,
		Currency:             currency,
		Metadata: map[string]string{
			"withdrawal_id": withdrawal.PublicID,
			"vendor_id":     vendorID,
		},
	})
	if err != nil {
		failedAt := time.Now().UTC()
		// The stored reason is vendor-facing; the full provider error only
		// goes to the server log.
		reason := withdrawalFailureReason(err)
		s.logger.WithError(err).WithFields(logrus.Fields{
			"vendor_id":     vendorID,
			"withdrawal_id": withdrawal.PublicID,
		}).Error("Provider transfer failed")
		if applied, markErr := s.withdrawalRepo.MarkFailed(ctx, withdrawal.ID, &reason, failedAt); markErr == nil && applied {
			s.releaseReservation(ctx, vendorID, req.AmountMinor, failedAt)
		}
		_ = s.eventRepo.Create(ctx, &entity.AccountEvent{
			VendorID:  vendorID,
			EventType: "withdrawal_failed",
			NewStatus: account.Status,
			CreatedAt: failedAt,
		})
		return nil, err
	}

	estimate := strings.TrimSpace(s.payoutsCfg.ArrivalEstimate)
	if estimate == "" {
		estimate = defaultArrivalEstimate
	}
	if err := s.withdrawalRepo.AttachTransfer(ctx, withdrawal.ID, transfer.TransferID, &estimate, transfer.Livemode, time.Now().UTC()); err != nil {
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.AccountEvent{
		VendorID:  vendorID,
		EventType: "withdrawal_requested",
		NewStatus: account.Status,
		CreatedAt: now,
	})

	return s.refetchWithdrawal(ctx, withdrawal.PublicID)
}

func (s *PayoutService) GetWithdrawal(ctx context.Context, publicID string) (*entity.Withdrawal, error) {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return nil, ErrInvalidRequest
	}
	return s.refetchWithdrawal(ctx, publicID)
}

func (s *PayoutService) ListWithdrawals(ctx context.Context, req *types.ListWithdrawalsRequest) ([]*entity.Withdrawal, int64, error) {
	vendorID := strings.TrimSpace(req.VendorID)
	if vendorID == "" {
		return nil, 0, ErrInvalidRequest
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	filter := repository.WithdrawalFilter{
		VendorID:  vendorID,
		HasStatus: req.HasStatus,
		Status:    req.Status,
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	}

	items, err := s.withdrawalRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.withdrawalRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (s *PayoutService) SummarizeWithdrawals(ctx context.Context, vendorID string) (*entity.WithdrawalSummary, error) {
	vendorID = strings.TrimSpace(vendorID)
	if vendorID == "" {
		return nil, ErrInvalidRequest
	}
	return s.withdrawalRepo.Summarize(ctx, vendorID)
}

func (s *PayoutService) AvailableBalance(ctx context.Context, vendorID string) (int64, error) {
	vendorID = strings.TrimSpace(vendorID)
	if vendorID == "" {
		return 0, ErrInvalidRequest
	}
	return s.earningsRepo.AvailableBalance(ctx, vendorID)
}

// withdrawalFailureReason reduces a transfer error to a redacted code safe to
// store on the row and show the vendor.
func withdrawalFailureReason(err error) string {
	var rejection *provider.RejectionError
	if errors.As(err, &rejection) && rejection.Code != "" {
		return rejection.Code
	}
	if errors.Is(err, provider.ErrProviderUnavailable) {
		return "provider_unavailable"
	}
	return "transfer_failed"
}

// releaseReservation returns reserved funds and makes a failed release loud: a
// stuck reservation blocks the vendor's balance until someone reconciles it.
func (s *PayoutService) releaseReservation(ctx context.Context, vendorID string, amountMinor int64, now time.Time) {
	if err := s.earningsRepo.Release(ctx, vendorID, amountMinor, now); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"vendor_id":    vendorID,
			"amount_minor": amountMinor,
		}).Error("Reservation release failed")
	}
}

func (s *PayoutService) refetchWithdrawal(ctx context.Context, publicID string) (*entity.Withdrawal, error) {
	withdrawal, err := s.withdrawalRepo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if withdrawal == nil {
		return nil, ErrWithdrawalNotFound
	}
	return withdrawal, nil
}
