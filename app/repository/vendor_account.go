package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
)

var (
	ErrAccountNotFound      = errors.New("vendor payment account not found")
	ErrAccountAlreadyExists = errors.New("vendor payment account already exists")
)

type VendorAccountRepository struct {
	db DBTX
}

func NewVendorAccountRepository(db DBTX) *VendorAccountRepository {
	return &VendorAccountRepository{db: db}
}

const vendorAccountColumns = `
	id, vendor_id, provider_account_id, email, business_name, country_code,
	charges_enabled, payouts_enabled, details_submitted, status,
	sensitive_edit_count, flags_observed_at, created_at, updated_at
`

// Create inserts the initial NOT_CREATED row. The unique key on vendor_id is
// what collapses concurrent onboarding requests for the same vendor.
func (r *VendorAccountRepository) Create(ctx context.Context, account *entity.VendorAccount) error {
	query := `
		INSERT INTO vendor_payment_accounts (
			vendor_id, provider_account_id, email, business_name, country_code,
			charges_enabled, payouts_enabled, details_submitted, status,
			sensitive_edit_count, flags_observed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		account.VendorID,
		nullableStringValue(account.ProviderAccountID),
		account.Email,
		account.BusinessName,
		account.CountryCode,
		account.ChargesEnabled,
		account.PayoutsEnabled,
		account.DetailsSubmitted,
		account.Status,
		account.SensitiveEditCount,
		account.FlagsObservedAt,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrAccountAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	account.ID = uint64(id)
	return nil
}

func (r *VendorAccountRepository) FindByVendorID(ctx context.Context, vendorID string) (*entity.VendorAccount, error) {
	query := `SELECT ` + vendorAccountColumns + ` FROM vendor_payment_accounts WHERE vendor_id = ? LIMIT 1`

	account := &entity.VendorAccount{}
	if err := scanVendorAccount(r.db.QueryRowContext(ctx, query, vendorID), account); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *VendorAccountRepository) FindByProviderAccountID(ctx context.Context, providerAccountID string) (*entity.VendorAccount, error) {
	query := `SELECT ` + vendorAccountColumns + ` FROM vendor_payment_accounts WHERE provider_account_id = ? LIMIT 1`

	account := &entity.VendorAccount{}
	if err := scanVendorAccount(r.db.QueryRowContext(ctx, query, providerAccountID), account); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return account, nil
}

// AttachProviderAccountID fills in the processor account identifier exactly
// once. Zero affected rows means another request already attached one.
func (r *VendorAccountRepository) AttachProviderAccountID(ctx context.Context, vendorID, providerAccountID string, status int32, now time.Time) error {
	query := `
		UPDATE vendor_payment_accounts
		SET provider_account_id = ?, status = ?, updated_at = ?
		WHERE vendor_id = ? AND provider_account_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, providerAccountID, status, now, vendorID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountAlreadyExists
	}
	return nil
}

// UpdateCapabilities persists processor-reported capability flags. The
// flags_observed_at guard rejects observations older than the persisted one,
// so a stale read can never move flags backward. Returns whether the update
// was applied.
func (r *VendorAccountRepository) UpdateCapabilities(ctx context.Context, vendorID string, flags entity.CapabilityFlags, status int32, observedAt, now time.Time) (bool, error) {
	query := `
		UPDATE vendor_payment_accounts
		SET charges_enabled = ?, payouts_enabled = ?, details_submitted = ?,
			status = ?, flags_observed_at = ?, updated_at = ?
		WHERE vendor_id = ? AND flags_observed_at < ?
	`

	result, err := r.db.ExecContext(ctx, query,
		flags.ChargesEnabled,
		flags.PayoutsEnabled,
		flags.DetailsSubmitted,
		status,
		observedAt,
		now,
		vendorID,
		observedAt,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *VendorAccountRepository) UpdateBusinessProfile(ctx context.Context, vendorID, businessName string, now time.Time) error {
	query := `
		UPDATE vendor_payment_accounts
		SET business_name = ?, sensitive_edit_count = sensitive_edit_count + 1, updated_at = ?
		WHERE vendor_id = ?
	`

	result, err := r.db.ExecContext(ctx, query, businessName, now, vendorID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ListStaleVerification returns provisioned accounts that are not READY and
// whose flags have not been observed since the cutoff. Used by the webhook
// gap-repair job.
func (r *VendorAccountRepository) ListStaleVerification(ctx context.Context, observedBefore time.Time, limit int32) ([]*entity.VendorAccount, error) {
	query := `
		SELECT ` + vendorAccountColumns + `
		FROM vendor_payment_accounts
		WHERE status IN (?, ?)
		  AND provider_account_id IS NOT NULL
		  AND flags_observed_at <= ?
		ORDER BY flags_observed_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		entity.AccountStatusPendingVerification,
		entity.AccountStatusRestricted,
		observedBefore,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]*entity.VendorAccount, 0)
	for rows.Next() {
		item := &entity.VendorAccount{}
		if err := scanVendorAccount(rows, item); err != nil {
			return nil, err
		}
		accounts = append(accounts, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVendorAccount(scan rowScanner, account *entity.VendorAccount) error {
	var providerAccountID sql.NullString

	err := scan.Scan(
		&account.ID,
		&account.VendorID,
		&providerAccountID,
		&account.Email,
		&account.BusinessName,
		&account.CountryCode,
		&account.ChargesEnabled,
		&account.PayoutsEnabled,
		&account.DetailsSubmitted,
		&account.Status,
		&account.SensitiveEditCount,
		&account.FlagsObservedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return err
	}

	account.ProviderAccountID = stringPtrFromNull(providerAccountID)
	return nil
}
