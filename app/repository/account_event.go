package repository

import (
	"context"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
)

type AccountEventRepository struct {
	db DBTX
}

func NewAccountEventRepository(db DBTX) *AccountEventRepository {
	return &AccountEventRepository{db: db}
}

func (r *AccountEventRepository) Create(ctx context.Context, event *entity.AccountEvent) error {
	query := `
		INSERT INTO account_events (
			vendor_id, event_type, old_status, new_status, provider_event_id, payload_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		event.VendorID,
		event.EventType,
		nullableInt32Value(event.OldStatus),
		event.NewStatus,
		nullableStringValue(event.ProviderEventID),
		nullableStringValue(event.PayloadJSON),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)

	return nil
}
