package entity

import "time"

const (
	WebhookStatusProcessed int32 = 10
	WebhookStatusRejected  int32 = 20
)

type WebhookEvent struct {
	ID uint64

	ProviderEventID *string
	EventType       string
	Signature       string
	PayloadJSON     string
	Status          int32
	Error           *string

	CreatedAt time.Time
}
