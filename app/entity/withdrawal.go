package entity

import "time"

const (
	WithdrawalStatusProcessing int32 = 1
	WithdrawalStatusCompleted  int32 = 10
	WithdrawalStatusFailed     int32 = 20
)

type Withdrawal struct {
	ID uint64

	PublicID string
	VendorID string

	AmountMinor int64
	Currency    string

	Status int32

	ProviderTransferID *string
	ArrivalEstimate    *string
	FailureReason      *string

	// Livemode distinguishes real transfers from processor test-mode ones.
	Livemode bool

	CreatedAt   time.Time
	ProcessedAt *time.Time
	UpdatedAt   time.Time
}

// WithdrawalSummary is derived strictly from withdrawal rows; there are no
// cached counters that can drift.
type WithdrawalSummary struct {
	TotalWithdrawnMinor int64
	PendingCount        int64
	CompletedCount      int64
	TotalCount          int64
}

func WithdrawalTerminal(status int32) bool {
	switch status {
	case WithdrawalStatusCompleted, WithdrawalStatusFailed:
		return true
	default:
		return false
	}
}
