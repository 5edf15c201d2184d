package payment

import (
	"context"
	"fmt"
	"time"

	"storefront-be/internal/postgrest"
)

const (
	paymentsTable  = "payments"
	callbacksTable = "payment_callbacks"
)

// Repository keeps the local audit trail of invoices and callbacks. It runs
// with the service credential because callbacks carry no user session.
type Repository interface {
	SavePayment(ctx context.Context, p Payment) error
	GetLatestByOrder(ctx context.Context, orderID string) (*Payment, error)
	UpdatePaymentStatus(ctx context.Context, invoiceID, status string, paidAt *time.Time) error
	SaveCallback(ctx context.Context, c Callback) (id int64, duplicate bool, err error)
	MarkCallbackProcessed(ctx context.Context, id int64, outcome string) error
}

type repository struct {
	db *postgrest.Client
}

func NewRepository(db *postgrest.Client) Repository {
	return &repository{db: db}
}

func (r *repository) SavePayment(ctx context.Context, p Payment) error {
	if err := r.db.From(paymentsTable).OnConflict("invoice_id").Upsert(ctx, p, nil, false); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	return nil
}

// GetLatestByOrder returns nil without error when no invoice was issued.
func (r *repository) GetLatestByOrder(ctx context.Context, orderID string) (*Payment, error) {
	var rows []Payment
	err := r.db.From(paymentsTable).
		Select("*").
		Eq("order_id", orderID).
		Order("created_at", true).
		Limit(1).
		Get(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, invoiceID, status string, paidAt *time.Time) error {
	body := map[string]any{"status": status}
	if paidAt != nil {
		body["paid_at"] = paidAt
	}
	if err := r.db.From(paymentsTable).Eq("invoice_id", invoiceID).Update(ctx, body, nil); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// SaveCallback stores a delivery once per (invoice_id, status). A repeat
// delivery reports duplicate and returns no id.
func (r *repository) SaveCallback(ctx context.Context, c Callback) (int64, bool, error) {
	var rows []struct {
		ID int64 `json:"id"`
	}
	err := r.db.From(callbacksTable).
		OnConflict("invoice_id", "status").
		Upsert(ctx, c, &rows, true)
	if err != nil {
		return 0, false, fmt.Errorf("save callback: %w", err)
	}
	if len(rows) == 0 {
		return 0, true, nil
	}
	return rows[0].ID, false, nil
}

func (r *repository) MarkCallbackProcessed(ctx context.Context, id int64, outcome string) error {
	body := map[string]any{
		"outcome":      outcome,
		"processed_at": time.Now().UTC(),
	}
	if err := r.db.From(callbacksTable).Eq("id", id).Update(ctx, body, nil); err != nil {
		return fmt.Errorf("mark callback processed: %w", err)
	}
	return nil
}
