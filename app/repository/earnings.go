package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var ErrInsufficientBalance = errors.New("insufficient settled balance")

// EarningsRepository guards the vendor earnings aggregate owned by the
// earnings collaborator. This service only reserves and releases against it;
// how the balance accrues is not owned here.
type EarningsRepository struct {
	db DBTX
}

func NewEarningsRepository(db DBTX) *EarningsRepository {
	return &EarningsRepository{db: db}
}

func (r *EarningsRepository) AvailableBalance(ctx context.Context, vendorID string) (int64, error) {
	query := `SELECT available_minor - withdrawn_minor FROM vendor_earnings WHERE vendor_id = ?`

	var balance int64
	if err := r.db.QueryRowContext(ctx, query, vendorID).Scan(&balance); err == sql.ErrNoRows {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return balance, nil
}

// Reserve commits the withdrawal amount against the settled balance in a
// single conditional UPDATE. Two concurrent reservations cannot both pass the
// balance check: the losing one matches zero rows and gets
// ErrInsufficientBalance. A missing earnings row means a zero balance.
func (r *EarningsRepository) Reserve(ctx context.Context, vendorID string, amountMinor int64, now time.Time) error {
	query := `
		UPDATE vendor_earnings
		SET withdrawn_minor = withdrawn_minor + ?, updated_at = ?
		WHERE vendor_id = ? AND available_minor - withdrawn_minor >= ?
	`

	result, err := r.db.ExecContext(ctx, query, amountMinor, now, vendorID, amountMinor)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

// Release returns a reservation after a failed transfer.
func (r *EarningsRepository) Release(ctx context.Context, vendorID string, amountMinor int64, now time.Time) error {
	query := `
		UPDATE vendor_earnings
		SET withdrawn_minor = withdrawn_minor - ?, updated_at = ?
		WHERE vendor_id = ? AND withdrawn_minor >= ?
	`

	_, err := r.db.ExecContext(ctx, query, amountMinor, now, vendorID, amountMinor)
	return err
}
