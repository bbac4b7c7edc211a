package entity

import "time"

const (
	AccountStatusNotCreated          int32 = 0
	AccountStatusPendingVerification int32 = 1
	AccountStatusReady               int32 = 10
	AccountStatusRestricted          int32 = 20
)

// CapabilityFlags are the processor-reported booleans that gate charging and
// payouts for a vendor account.
type CapabilityFlags struct {
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

func (f CapabilityFlags) AllEnabled() bool {
	return f.ChargesEnabled && f.PayoutsEnabled && f.DetailsSubmitted
}

type VendorAccount struct {
	ID uint64

	VendorID string

	// ProviderAccountID is write-once. A vendor may not silently swap
	// settlement accounts; nil implies AccountStatusNotCreated.
	ProviderAccountID *string

	Email        string
	BusinessName string
	CountryCode  string

	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool

	Status int32

	SensitiveEditCount int32

	// FlagsObservedAt is the processor-side observation time of the
	// capability flags currently persisted. Updates carrying an older
	// observation are discarded.
	FlagsObservedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *VendorAccount) Capabilities() CapabilityFlags {
	return CapabilityFlags{
		ChargesEnabled:   a.ChargesEnabled,
		PayoutsEnabled:   a.PayoutsEnabled,
		DetailsSubmitted: a.DetailsSubmitted,
	}
}
