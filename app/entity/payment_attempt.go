package entity

import "time"

const (
	AttemptStatusInitiated      int32 = 1
	AttemptStatusRequiresAction int32 = 2
	AttemptStatusSucceeded      int32 = 10
	AttemptStatusFailed         int32 = 20
	AttemptStatusCanceled       int32 = 30
)

const (
	NotifyDeliveryNone    int32 = 0
	NotifyDeliveryPending int32 = 1
	NotifyDeliverySuccess int32 = 10
	NotifyDeliveryFailed  int32 = 20
)

type PaymentAttempt struct {
	ID uint64

	OrderID string

	ProviderIntentID *string

	// ClientSecret is write-once and must never appear in logs or in any
	// response other than the one that starts the payment.
	ClientSecret *string

	Status int32

	LastErrorCategory *string
	LastErrorMessage  *string

	AmountMinor int64
	Currency    string

	// Order-paid notification delivery state. The row flipping to SUCCEEDED
	// marks delivery pending; the dispatch job retries until success or the
	// attempt cap.
	NotifyDeliveryStatus   int32
	NotifyDeliveryAttempts int32
	NotifyDeliveryNextAt   *time.Time
	NotifyDeliveryLastErr  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}
