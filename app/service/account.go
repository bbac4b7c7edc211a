package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
	"github.com/sellermesh/ms-go-vendor-payouts/app/provider"
	"github.com/sellermesh/ms-go-vendor-payouts/app/repository"
	"github.com/sellermesh/ms-go-vendor-payouts/app/types"
)

var requestedCapabilities = []string{"card_payments", "transfers"}

// CreateAccount provisions the vendor's processor account. Calling it again
// for the same vendor returns the existing record; the unique key on
// vendor_id plus the write-once attach means at most one processor account
// ever gets linked, no matter how many requests race.
func (s *PayoutService) CreateAccount(ctx context.Context, req *types.CreateAccountRequest) (*entity.VendorAccount, error) {
	vendorID := strings.TrimSpace(req.VendorID)
	email := strings.TrimSpace(req.Email)
	if vendorID == "" || email == "" {
		return nil, ErrInvalidRequest
	}

	existing, err := s.accountRepo.FindByVendorID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ProviderAccountID != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	if existing == nil {
		account := &entity.VendorAccount{
			VendorID:        vendorID,
			Email:           email,
			BusinessName:    strings.TrimSpace(req.BusinessName),
			CountryCode:     strings.ToUpper(strings.TrimSpace(req.Country)),
			Status:          entity.AccountStatusNotCreated,
			FlagsObservedAt: now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.accountRepo.Create(ctx, account); err != nil {
			if !errors.Is(err, repository.ErrAccountAlreadyExists) {
				return nil, err
			}
			// Lost the insert race; the winner owns provisioning.
			return s.refetchAccount(ctx, vendorID)
		}
		existing = account
	}

	providerAccountID, err := s.providerClient.CreateAccount(ctx, &provider.CreateAccountInput{
		Country:               existing.CountryCode,
		Email:                 existing.Email,
		BusinessType:          "company",
		CompanyName:           existing.BusinessName,
		RequestedCapabilities: requestedCapabilities,
	})
	if err != nil {
		return nil, err
	}

	err = s.accountRepo.AttachProviderAccountID(ctx, vendorID, providerAccountID, entity.AccountStatusPendingVerification, now)
	if err != nil {
		if errors.Is(err, repository.ErrAccountAlreadyExists) {
			return s.refetchAccount(ctx, vendorID)
		}
		return nil, err
	}

	oldStatus := existing.Status
	_ = s.eventRepo.Create(ctx, &entity.AccountEvent{
		VendorID:  vendorID,
		EventType: "account_provisioned",
		OldStatus: &oldStatus,
		NewStatus: entity.AccountStatusPendingVerification,
		CreatedAt: now,
	})

	return s.refetchAccount(ctx, vendorID)
}

func (s *PayoutService) GetAccount(ctx context.Context, vendorID string) (*entity.VendorAccount, error) {
	vendorID = strings.TrimSpace(vendorID)
	if vendorID == "" {
		return nil, ErrInvalidRequest
	}
	return s.refetchAccount(ctx, vendorID)
}

func (s *PayoutService) GenerateOnboardingLink(ctx context.Context, req *types.OnboardingLinkRequest) (string, error) {
	account, err := s.provisionedAccount(ctx, req.VendorID)
	if err != nil {
		return "", err
	}

	return s.providerClient.CreateOnboardingLink(ctx,
		*account.ProviderAccountID,
		strings.TrimSpace(req.RefreshURL),
		strings.TrimSpace(req.ReturnURL),
	)
}

// RefreshAccountStatus pulls the processor's current capability flags and
// applies them through the same observation guard the webhook path uses.
func (s *PayoutService) RefreshAccountStatus(ctx context.Context, vendorID string) (*entity.VendorAccount, error) {
	account, err := s.provisionedAccount(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	state, err := s.providerClient.RetrieveAccount(ctx, *account.ProviderAccountID)
	if err != nil {
		return nil, err
	}

	flags := entity.CapabilityFlags{
		ChargesEnabled:   state.ChargesEnabled,
		PayoutsEnabled:   state.PayoutsEnabled,
		DetailsSubmitted: state.DetailsSubmitted,
	}
	if err := s.applyCapabilityState(ctx, account, flags, time.Now().UTC(), nil); err != nil {
		return nil, err
	}

	return s.refetchAccount(ctx, account.VendorID)
}

func (s *PayoutService) IsReadyForPayouts(ctx context.Context, vendorID string) (bool, error) {
	account, err := s.refetchAccount(ctx, strings.TrimSpace(vendorID))
	if err != nil {
		return false, err
	}
	return account.Status == entity.AccountStatusReady && account.Capabilities().AllEnabled(), nil
}

// UpdateBusinessProfile pushes the new legal name to the processor first, so a
// rejected edit never lands locally. Sensitive edits put the processor account
// back under review; the flag flip comes back through account.updated.
func (s *PayoutService) UpdateBusinessProfile(ctx context.Context, req *types.UpdateBusinessProfileRequest) (*entity.VendorAccount, error) {
	businessName := strings.TrimSpace(req.BusinessName)
	if businessName == "" {
		return nil, ErrInvalidRequest
	}

	account, err := s.provisionedAccount(ctx, req.VendorID)
	if err != nil {
		return nil, err
	}

	if err := s.providerClient.UpdateAccount(ctx, *account.ProviderAccountID, businessName, "company"); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.accountRepo.UpdateBusinessProfile(ctx, account.VendorID, businessName, now); err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	_ = s.eventRepo.Create(ctx, &entity.AccountEvent{
		VendorID:  account.VendorID,
		EventType: "business_profile_updated",
		NewStatus: account.Status,
		CreatedAt: now,
	})

	return s.refetchAccount(ctx, account.VendorID)
}

// applyCapabilityState persists a capability observation and derives the new
// account status from it. Observations older than the stored one are dropped
// by the repository guard, so polling and webhooks can interleave freely.
func (s *PayoutService) applyCapabilityState(ctx context.Context, account *entity.VendorAccount, flags entity.CapabilityFlags, observedAt time.Time, providerEventID *string) error {
	newStatus := nextAccountStatus(account.Status, flags)
	now := time.Now().UTC()

	applied, err := s.accountRepo.UpdateCapabilities(ctx, account.VendorID, flags, newStatus, observedAt, now)
	if err != nil {
		return err
	}
	if !applied || newStatus == account.Status {
		return nil
	}

	oldStatus := account.Status
	_ = s.eventRepo.Create(ctx, &entity.AccountEvent{
		VendorID:        account.VendorID,
		EventType:       "capabilities_updated",
		OldStatus:       &oldStatus,
		NewStatus:       newStatus,
		ProviderEventID: providerEventID,
		CreatedAt:       now,
	})

	return nil
}

// nextAccountStatus derives verification status from capability flags. An
// account that has been READY never goes back to PENDING_VERIFICATION; losing
// a capability after going live means RESTRICTED.
func nextAccountStatus(current int32, flags entity.CapabilityFlags) int32 {
	if flags.AllEnabled() {
		return entity.AccountStatusReady
	}
	if current == entity.AccountStatusReady || current == entity.AccountStatusRestricted {
		return entity.AccountStatusRestricted
	}
	return entity.AccountStatusPendingVerification
}

func (s *PayoutService) provisionedAccount(ctx context.Context, vendorID string) (*entity.VendorAccount, error) {
	account, err := s.refetchAccount(ctx, strings.TrimSpace(vendorID))
	if err != nil {
		return nil, err
	}
	if account.ProviderAccountID == nil || strings.TrimSpace(*account.ProviderAccountID) == "" {
		return nil, ErrAccountNotProvisioned
	}
	return account, nil
}

func (s *PayoutService) refetchAccount(ctx context.Context, vendorID string) (*entity.VendorAccount, error) {
	if vendorID == "" {
		return nil, ErrInvalidRequest
	}
	account, err := s.accountRepo.FindByVendorID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}
