package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
)

var ErrWithdrawalNotFound = errors.New("withdrawal not found")

type WithdrawalFilter struct {
	VendorID  string
	HasStatus bool
	Status    int32
	Limit     int32
	Offset    int32
}

type WithdrawalRepository struct {
	db DBTX
}

func NewWithdrawalRepository(db DBTX) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

const withdrawalColumns = `
	id, public_id, vendor_id, amount_minor, currency, status,
	provider_transfer_id, arrival_estimate, failure_reason, livemode,
	created_at, processed_at, updated_at
`

func (r *WithdrawalRepository) Create(ctx context.Context, withdrawal *entity.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (
			public_id, vendor_id, amount_minor, currency, status,
			provider_transfer_id, arrival_estimate, failure_reason, livemode,
			created_at, processed_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		withdrawal.PublicID,
		withdrawal.VendorID,
		withdrawal.AmountMinor,
		withdrawal.Currency,
		withdrawal.Status,
		nullableStringValue(withdrawal.ProviderTransferID),
		nullableStringValue(withdrawal.ArrivalEstimate),
		nullableStringValue(withdrawal.FailureReason),
		withdrawal.Livemode,
		withdrawal.CreatedAt,
		nullableTimeValue(withdrawal.ProcessedAt),
		withdrawal.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	withdrawal.ID = uint64(id)
	return nil
}

func (r *WithdrawalRepository) FindByPublicID(ctx context.Context, publicID string) (*entity.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE public_id = ? LIMIT 1`

	withdrawal := &entity.Withdrawal{}
	if err := scanWithdrawal(r.db.QueryRowContext(ctx, query, publicID), withdrawal); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

func (r *WithdrawalRepository) FindByProviderTransferID(ctx context.Context, transferID string) (*entity.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE provider_transfer_id = ? LIMIT 1`

	withdrawal := &entity.Withdrawal{}
	if err := scanWithdrawal(r.db.QueryRowContext(ctx, query, transferID), withdrawal); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// AttachTransfer fills in the processor transfer identifier on a PROCESSING
// row once the transfer call has returned.
func (r *WithdrawalRepository) AttachTransfer(ctx context.Context, id uint64, transferID string, arrivalEstimate *string, livemode bool, now time.Time) error {
	query := `
		UPDATE withdrawals
		SET provider_transfer_id = ?, arrival_estimate = ?, livemode = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		transferID,
		nullableStringValue(arrivalEstimate),
		livemode,
		now,
		id,
		entity.WithdrawalStatusProcessing,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrWithdrawalNotFound
	}
	return nil
}

// MarkCompleted advances PROCESSING to COMPLETED. Terminal rows are never
// touched; applied=false means the row had already reached a terminal state.
func (r *WithdrawalRepository) MarkCompleted(ctx context.Context, id uint64, processedAt, now time.Time) (bool, error) {
	query := `
		UPDATE withdrawals
		SET status = ?, processed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.WithdrawalStatusCompleted,
		processedAt,
		now,
		id,
		entity.WithdrawalStatusProcessing,
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

func (r *WithdrawalRepository) MarkFailed(ctx context.Context, id uint64, reason *string, now time.Time) (bool, error) {
	query := `
		UPDATE withdrawals
		SET status = ?, failure_reason = ?, processed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.WithdrawalStatusFailed,
		nullableStringValue(reason),
		now,
		now,
		id,
		entity.WithdrawalStatusProcessing,
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

func (r *WithdrawalRepository) List(ctx context.Context, filter WithdrawalFilter) ([]*entity.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 4)

	if strings.TrimSpace(filter.VendorID) != "" {
		conditions = append(conditions, "vendor_id = ?")
		args = append(args, filter.VendorID)
	}
	if filter.HasStatus {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY COALESCE(processed_at, created_at) DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	withdrawals := make([]*entity.Withdrawal, 0)
	for rows.Next() {
		item := &entity.Withdrawal{}
		if err := scanWithdrawal(rows, item); err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return withdrawals, nil
}

func (r *WithdrawalRepository) Count(ctx context.Context, filter WithdrawalFilter) (int64, error) {
	query := `SELECT COUNT(*) FROM withdrawals`

	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)

	if strings.TrimSpace(filter.VendorID) != "" {
		conditions = append(conditions, "vendor_id = ?")
		args = append(args, filter.VendorID)
	}
	if filter.HasStatus {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// Summarize aggregates directly over withdrawal rows so the four numbers can
// never drift from the ledger.
func (r *WithdrawalRepository) Summarize(ctx context.Context, vendorID string) (*entity.WithdrawalSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN amount_minor ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COUNT(*)
		FROM withdrawals
		WHERE vendor_id = ?
	`

	summary := &entity.WithdrawalSummary{}
	err := r.db.QueryRowContext(ctx, query,
		entity.WithdrawalStatusCompleted,
		entity.WithdrawalStatusProcessing,
		entity.WithdrawalStatusCompleted,
		vendorID,
	).Scan(
		&summary.TotalWithdrawnMinor,
		&summary.PendingCount,
		&summary.CompletedCount,
		&summary.TotalCount,
	)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *WithdrawalRepository) ListStaleProcessing(ctx context.Context, before time.Time, limit int32) ([]*entity.Withdrawal, error) {
	query := `
		SELECT ` + withdrawalColumns + `
		FROM withdrawals
		WHERE status = ?
		  AND provider_transfer_id IS NOT NULL
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.WithdrawalStatusProcessing, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	withdrawals := make([]*entity.Withdrawal, 0)
	for rows.Next() {
		item := &entity.Withdrawal{}
		if err := scanWithdrawal(rows, item); err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return withdrawals, nil
}

func scanWithdrawal(scan rowScanner, withdrawal *entity.Withdrawal) error {
	var transferID sql.NullString
	var arrivalEstimate sql.NullString
	var failureReason sql.NullString
	var processedAt sql.NullTime

	err := scan.Scan(
		&withdrawal.ID,
		&withdrawal.PublicID,
		&withdrawal.VendorID,
		&withdrawal.AmountMinor,
		&withdrawal.Currency,
		&withdrawal.Status,
		&transferID,
		&arrivalEstimate,
		&failureReason,
		&withdrawal.Livemode,
		&withdrawal.CreatedAt,
		&processedAt,
		&withdrawal.UpdatedAt,
	)
	if err != nil {
		return err
	}

	withdrawal.ProviderTransferID = stringPtrFromNull(transferID)
	withdrawal.ArrivalEstimate = stringPtrFromNull(arrivalEstimate)
	withdrawal.FailureReason = stringPtrFromNull(failureReason)
	withdrawal.ProcessedAt = timePtrFromNull(processedAt)
	return nil
}
