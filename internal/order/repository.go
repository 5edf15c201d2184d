package order

import (
	"context"
	"errors"
	"fmt"

	"storefront-be/internal/logger"
	"storefront-be/internal/postgrest"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ordersTable = "orders"
	itemsTable  = "order_items"

	itemsSelect = "*,product:products(name,brand,category,images)"
)

type Repository interface {
	Create(ctx context.Context, o NewOrder) (*Order, error)
	GetByCheckoutKey(ctx context.Context, userID, key string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListItems(ctx context.Context, orderIDs []string) ([]Item, error)
	InsertItems(ctx context.Context, items []Item) error
	UpdateStatus(ctx context.Context, orderID string, status Status) (int, error)

	// Lookup and Transition run with the service credential; callers own
	// the authorization decision.
	Lookup(ctx context.Context, orderID string) (*Order, error)
	Transition(ctx context.Context, orderID string, to Status, from []Status) (int, error)
}

type repository struct {
	db      *postgrest.Client
	service *postgrest.Client
}

// NewRepository takes the per-user client and the service-role client.
func NewRepository(db, service *postgrest.Client) Repository {
	return &repository{db: db, service: service}
}

func (r *repository) Create(ctx context.Context, o NewOrder) (*Order, error) {
	var rows []Order
	if err := r.db.From(ordersTable).Insert(ctx, o, &rows); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("create order: no row returned")
	}
	return &rows[0], nil
}

// GetByCheckoutKey returns nil without error when no order carries key.
func (r *repository) GetByCheckoutKey(ctx context.Context, userID, key string) (*Order, error) {
	var rows []Order
	err := r.db.From(ordersTable).
		Select("*").
		Eq("user_id", userID).
		Eq("checkout_key", key).
		Limit(1).
		Get(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("get order by checkout key: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	orders := []Order{}
	err := r.db.From(ordersTable).
		Select("*").
		Eq("user_id", userID).
		Order("created_at", true).
		Get(ctx, &orders)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (r *repository) ListItems(ctx context.Context, orderIDs []string) ([]Item, error) {
	items := []Item{}
	if len(orderIDs) == 0 {
		return items, nil
	}
	if err := r.db.From(itemsTable).Select(itemsSelect).In("order_id", orderIDs).Get(ctx, &items); err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return items, nil
}

// InsertItems skips rows whose (order_id, product_id) already exists, which
// lets a resumed checkout re-send the full set.
func (r *repository) InsertItems(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := r.db.From(itemsTable).OnConflict("order_id", "product_id").Upsert(ctx, items, nil, true); err != nil {
		logger.FromCtx(ctx).Error("insert order items failed",
			zap.String("repo", "Order"),
			zap.Int("count", len(items)),
			zap.Error(err),
		)
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, orderID string, status Status) (int, error) {
	if uuid.Validate(orderID) != nil {
		return 0, nil
	}

	var rows []Order
	err := r.db.From(ordersTable).
		Eq("order_id", orderID).
		Update(ctx, map[string]any{"status": status}, &rows)
	if err != nil {
		return 0, fmt.Errorf("update order status: %w", err)
	}
	return len(rows), nil
}

func (r *repository) Lookup(ctx context.Context, orderID string) (*Order, error) {
	if uuid.Validate(orderID) != nil {
		return nil, ErrOrderNotFound
	}

	var o Order
	if err := r.service.From(ordersTable).Select("*").Eq("order_id", orderID).GetOne(ctx, &o); err != nil {
		if postgrest.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("lookup order %s: %w", orderID, err)
	}
	return &o, nil
}

// Transition moves the order to status to only while its current status is
// one of from, and reports how many rows changed.
func (r *repository) Transition(ctx context.Context, orderID string, to Status, from []Status) (int, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	var rows []Order
	err := r.service.From(ordersTable).
		Eq("order_id", orderID).
		In("status", allowed).
		Update(ctx, map[string]any{"status": to}, &rows)
	if err != nil {
		return 0, fmt.Errorf("transition order %s to %s: %w", orderID, to, err)
	}
	return len(rows), nil
}
