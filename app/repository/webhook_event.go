package repository

import (
	"context"
	"errors"

	"github.com/sellermesh/ms-go-vendor-payouts/app/entity"
)

var ErrEventAlreadyExists = errors.New("webhook event already recorded")

type WebhookEventRepository struct {
	db DBTX
}

func NewWebhookEventRepository(db DBTX) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

// Create records a delivery. The unique key on provider_event_id is the
// replay guard for processed events.
func (r *WebhookEventRepository) Create(ctx context.Context, event *entity.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (
			provider_event_id, event_type, signature, payload_json, status, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		nullableStringValue(event.ProviderEventID),
		event.EventType,
		event.Signature,
		event.PayloadJSON,
		event.Status,
		nullableStringValue(event.Error),
		event.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrEventAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	return nil
}

func (r *WebhookEventRepository) ExistsByProviderEventID(ctx context.Context, providerEventID string) (bool, error) {
	query := `SELECT COUNT(*) FROM webhook_events WHERE provider_event_id = ? AND status = ?`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, providerEventID, entity.WebhookStatusProcessed).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
