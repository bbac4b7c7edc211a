package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
)

var (
	ErrAttemptNotFound      = errors.New("payment attempt not found")
	ErrAttemptAlreadyExists = errors.New("payment attempt already exists")
)

type PaymentAttemptRepository struct {
	db DBTX
}

func NewPaymentAttemptRepository(db DBTX) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{db: db}
}

const paymentAttemptColumns = `
	id, order_id, provider_intent_id, client_secret, status,
	last_error_category, last_error_message, amount_minor, currency,
	notify_delivery_status, notify_delivery_attempts,
	notify_delivery_next_at, notify_delivery_last_err,
	created_at, updated_at
`

func (r *PaymentAttemptRepository) Create(ctx context.Context, attempt *entity.PaymentAttempt) error {
	query := `
		INSERT INTO payment_attempts (
			order_id, provider_intent_id, client_secret, status,
			last_error_category, last_error_message, amount_minor, currency,
			notify_delivery_status, notify_delivery_attempts,
			notify_delivery_next_at, notify_delivery_last_err,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		attempt.OrderID,
		nullableStringValue(attempt.ProviderIntentID),
		nullableStringValue(attempt.ClientSecret),
		attempt.Status,
		nullableStringValue(attempt.LastErrorCategory),
		nullableStringValue(attempt.LastErrorMessage),
		attempt.AmountMinor,
		attempt.Currency,
		attempt.NotifyDeliveryStatus,
		attempt.NotifyDeliveryAttempts,
		nullableTimeValue(attempt.NotifyDeliveryNextAt),
		nullableStringValue(attempt.NotifyDeliveryLastErr),
		attempt.CreatedAt,
		attempt.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrAttemptAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	attempt.ID = uint64(id)
	return nil
}

func (r *PaymentAttemptRepository) FindByOrderID(ctx context.Context, orderID string) (*entity.PaymentAttempt, error) {
	query := `SELECT ` + paymentAttemptColumns + ` FROM payment_attempts WHERE order_id = ? LIMIT 1`

	attempt := &entity.PaymentAttempt{}
	if err := scanPaymentAttempt(r.db.QueryRowContext(ctx, query, orderID), attempt); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return attempt, nil
}

func (r *PaymentAttemptRepository) FindByProviderIntentID(ctx context.Context, intentID string) (*entity.PaymentAttempt, error) {
	query := `SELECT ` + paymentAttemptColumns + ` FROM payment_attempts WHERE provider_intent_id = ? LIMIT 1`

	attempt := &entity.PaymentAttempt{}
	if err := scanPaymentAttempt(r.db.QueryRowContext(ctx, query, intentID), attempt); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return attempt, nil
}

// MarkSucceeded is the exactly-once gate for the order-paid side effect: only
// the call that actually flips the row to SUCCEEDED reports applied=true. The
// flip also marks the order-paid notification pending, so a crash right after
// it still leaves the delivery for the dispatch job to pick up.
func (r *PaymentAttemptRepository) MarkSucceeded(ctx context.Context, id uint64, now time.Time) (bool, error) {
	query := `
		UPDATE payment_attempts
		SET status = ?, last_error_category = NULL, last_error_message = NULL,
			notify_delivery_status = ?, notify_delivery_attempts = 0,
			notify_delivery_next_at = ?, notify_delivery_last_err = NULL,
			updated_at = ?
		WHERE id = ? AND status <> ?
	`

	result, err := r.db.ExecContext(ctx, query,
		entity.AttemptStatusSucceeded,
		entity.NotifyDeliveryPending,
		now,
		now,
		id,
		entity.AttemptStatusSucceeded,
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

// UpdateOutcome records a confirmation round-trip result on a non-terminal
// attempt. A SUCCEEDED row is never overwritten.
func (r *PaymentAttemptRepository) UpdateOutcome(ctx context.Context, id uint64, status int32, errorCategory, errorMessage *string, now time.Time) (bool, error) {
	query := `
		UPDATE payment_attempts
		SET status = ?, last_error_category = ?, last_error_message = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		status,
		nullableStringValue(errorCategory),
		nullableStringValue(errorMessage),
		now,
		id,
		entity.AttemptStatusInitiated,
		entity.AttemptStatusRequiresAction,
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

// Rearm points a failed or canceled attempt at a fresh processor intent when
// checkout is restarted for the order. SUCCEEDED rows are untouched, so the
// one-success-per-order invariant holds.
func (r *PaymentAttemptRepository) Rearm(ctx context.Context, id uint64, intentID, clientSecret string, amountMinor int64, currency string, now time.Time) (bool, error) {
	query := `
		UPDATE payment_attempts
		SET provider_intent_id = ?, client_secret = ?, status = ?,
			last_error_category = NULL, last_error_message = NULL,
			amount_minor = ?, currency = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		intentID,
		clientSecret,
		entity.AttemptStatusInitiated,
		amountMinor,
		currency,
		now,
		id,
		entity.AttemptStatusFailed,
		entity.AttemptStatusCanceled,
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

// UpdateNotifyDelivery records the outcome of one order-paid dispatch round.
func (r *PaymentAttemptRepository) UpdateNotifyDelivery(ctx context.Context, id uint64, status, attempts int32, nextAt *time.Time, lastErr *string, now time.Time) error {
	query := `
		UPDATE payment_attempts
		SET notify_delivery_status = ?, notify_delivery_attempts = ?,
			notify_delivery_next_at = ?, notify_delivery_last_err = ?,
			updated_at = ?
		WHERE id = ?
	`

	_, err := r.db.ExecContext(ctx, query,
		status,
		attempts,
		nullableTimeValue(nextAt),
		nullableStringValue(lastErr),
		now,
		id,
	)
	return err
}

func (r *PaymentAttemptRepository) ListDueNotifyDispatch(ctx context.Context, now time.Time, limit int32) ([]*entity.PaymentAttempt, error) {
	query := `
		SELECT ` + paymentAttemptColumns + `
		FROM payment_attempts
		WHERE notify_delivery_status = ?
		  AND (notify_delivery_next_at IS NULL OR notify_delivery_next_at <= ?)
		ORDER BY notify_delivery_next_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.NotifyDeliveryPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]*entity.PaymentAttempt, 0)
	for rows.Next() {
		item := &entity.PaymentAttempt{}
		if err := scanPaymentAttempt(rows, item); err != nil {
			return nil, err
		}
		attempts = append(attempts, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attempts, nil
}

func (r *PaymentAttemptRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int32) ([]*entity.PaymentAttempt, error) {
	query := `
		SELECT ` + paymentAttemptColumns + `
		FROM payment_attempts
		WHERE status IN (?, ?)
		  AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query,
		entity.AttemptStatusInitiated,
		entity.AttemptStatusRequiresAction,
		cutoff,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]*entity.PaymentAttempt, 0)
	for rows.Next() {
		item := &entity.PaymentAttempt{}
		if err := scanPaymentAttempt(rows, item); err != nil {
			return nil, err
		}
		attempts = append(attempts, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return attempts, nil
}

func scanPaymentAttempt(scan rowScanner, attempt *entity.PaymentAttempt) error {
	var providerIntentID sql.NullString
	var clientSecret sql.NullString
	var errorCategory sql.NullString
	var errorMessage sql.NullString
	var notifyNextAt sql.NullTime
	var notifyLastErr sql.NullString

	err := scan.Scan(
		&attempt.ID,
		&attempt.OrderID,
		&providerIntentID,
		&clientSecret,
		&attempt.Status,
		&errorCategory,
		&errorMessage,
		&attempt.AmountMinor,
		&attempt.Currency,
		&attempt.NotifyDeliveryStatus,
		&attempt.NotifyDeliveryAttempts,
		&notifyNextAt,
		&notifyLastErr,
		&attempt.CreatedAt,
		&attempt.UpdatedAt,
	)
	if err != nil {
		return err
	}

	attempt.ProviderIntentID = stringPtrFromNull(providerIntentID)
	attempt.ClientSecret = stringPtrFromNull(clientSecret)
	attempt.LastErrorCategory = stringPtrFromNull(errorCategory)
	attempt.LastErrorMessage = stringPtrFromNull(errorMessage)
	attempt.NotifyDeliveryNextAt = timePtrFromNull(notifyNextAt)
	attempt.NotifyDeliveryLastErr = stringPtrFromNull(notifyLastErr)
	return nil
}
