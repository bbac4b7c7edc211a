package mapper

import (
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
	"github.com/sellermesh/ms-go-vendor-payouts/app/types"
)

func AccountToResponse(account *entity.VendorAccount) *types.AccountResponse {
	if account == nil {
		return nil
	}

	return &types.AccountResponse{
		VendorID:         account.VendorID,
		Email:            account.Email,
		BusinessName:     account.BusinessName,
		Country:          account.CountryCode,
		Status:           AccountStatusLabel(account.Status),
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
		ReadyForPayouts:  account.Status == entity.AccountStatusReady && account.Capabilities().AllEnabled(),
		CreatedAt:        formatTime(account.CreatedAt),
		UpdatedAt:        formatTime(account.UpdatedAt),
	}
}

func AttemptToResponse(attempt *entity.PaymentAttempt) *types.AttemptResponse {
	if attempt == nil {
		return nil
	}

	return &types.AttemptResponse{
		OrderID:      attempt.OrderID,
		Status:       AttemptStatusLabel(attempt.Status),
		AmountMinor:  attempt.AmountMinor,
		Currency:     attempt.Currency,
		ErrorMessage: derefString(attempt.LastErrorMessage),
		CreatedAt:    formatTime(attempt.CreatedAt),
		UpdatedAt:    formatTime(attempt.UpdatedAt),
	}
}

func WithdrawalToResponse(withdrawal *entity.Withdrawal) *types.WithdrawalResponse {
	if withdrawal == nil {
		return nil
	}

	resp := &types.WithdrawalResponse{
		ID:              withdrawal.PublicID,
		VendorID:        withdrawal.VendorID,
		AmountMinor:     withdrawal.AmountMinor,
		Currency:        withdrawal.Currency,
		Status:          WithdrawalStatusLabel(withdrawal.Status),
		ArrivalEstimate: derefString(withdrawal.ArrivalEstimate),
		FailureReason:   derefString(withdrawal.FailureReason),
		Livemode:        withdrawal.Livemode,
		CreatedAt:       formatTime(withdrawal.CreatedAt),
	}
	if withdrawal.ProcessedAt != nil {
		resp.ProcessedAt = formatTime(*withdrawal.ProcessedAt)
	}
	return resp
}

func WithdrawalsToResponse(withdrawals []*entity.Withdrawal) []*types.WithdrawalResponse {
	items := make([]*types.WithdrawalResponse, 0, len(withdrawals))
	for _, withdrawal := range withdrawals {
		items = append(items, WithdrawalToResponse(withdrawal))
	}
	return items
}

func SummaryToResponse(summary *entity.WithdrawalSummary, availableMinor int64) *types.WithdrawalSummaryResponse {
	if summary == nil {
		return nil
	}

	return &types.WithdrawalSummaryResponse{
		TotalWithdrawnMinor:   summary.TotalWithdrawnMinor,
		PendingCount:          summary.PendingCount,
		CompletedCount:        summary.CompletedCount,
		TotalCount:            summary.TotalCount,
		AvailableBalanceMinor: availableMinor,
	}
}

func AccountStatusLabel(status int32) string {
	switch status {
	case entity.AccountStatusNotCreated:
		return "not_created"
	case entity.AccountStatusPendingVerification:
		return "pending_verification"
	case entity.AccountStatusReady:
		return "ready"
	case entity.AccountStatusRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

func AttemptStatusLabel(status int32) string {
	switch status {
	case entity.AttemptStatusInitiated:
		return "initiated"
	case entity.AttemptStatusRequiresAction:
		return "requires_action"
	case entity.AttemptStatusSucceeded:
		return "succeeded"
	case entity.AttemptStatusFailed:
		return "failed"
	case entity.AttemptStatusCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func WithdrawalStatusLabel(status int32) string {
	switch status {
	case entity.WithdrawalStatusProcessing:
		return "processing"
	case entity.WithdrawalStatusCompleted:
		return "completed"
	case entity.WithdrawalStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
