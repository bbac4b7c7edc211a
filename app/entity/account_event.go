package entity

import "time"

// AccountEvent is the append-only audit trail for a vendor's payment state:
// account lifecycle transitions, withdrawal requests, webhook-driven changes.
type AccountEvent struct {
	ID uint64

	VendorID string

	EventType string

	OldStatus *int32
	NewStatus int32

	ProviderEventID *string
	PayloadJSON     *string

	CreatedAt time.Time
}
