package cart

import (
	"context"
	"fmt"

	"storefront-be/internal/logger"
	"storefront-be/internal/postgrest"

	"go.uber.org/zap"
)

const table = "cart"

type Repository interface {
	ListLines(ctx context.Context, userID string) ([]Line, error)
	Upsert(ctx context.Context, userID, productID string, quantity int) (*Line, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*Line, error)
	Delete(ctx context.Context, userID, productID string) (int, error)
	DeleteProducts(ctx context.Context, userID string, productIDs []string) error
}

type repository struct {
	db *postgrest.Client
}

func NewRepository(db *postgrest.Client) Repository {
	return &repository{db: db}
}

func (r *repository) ListLines(ctx context.Context, userID string) ([]Line, error) {
	lines := []Line{}
	err := r.db.From(table).
		Select("*").
		Eq("user_id", userID).
		Order("created_at", false).
		Get(ctx, &lines)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	return lines, nil
}

// Upsert writes the quantity for (user, product), replacing any existing line.
func (r *repository) Upsert(ctx context.Context, userID, productID string, quantity int) (*Line, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Cart"),
		zap.String("method", "Upsert"),
		zap.String("product_id", productID),
	)

	body := map[string]any{
		"user_id":    userID,
		"product_id": productID,
		"quantity":   quantity,
	}

	var rows []Line
	if err := r.db.From(table).OnConflict("user_id", "product_id").Upsert(ctx, body, &rows, false); err != nil {
		log.Error("upsert failed", zap.Error(err))
		return nil, fmt.Errorf("upsert cart line: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrCartItemNotFound
	}
	return &rows[0], nil
}

func (r *repository) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*Line, error) {
	var rows []Line
	err := r.db.From(table).
		Eq("user_id", userID).
		Eq("product_id", productID).
		Update(ctx, map[string]any{"quantity": quantity}, &rows)
	if err != nil {
		return nil, fmt.Errorf("update cart line: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrCartItemNotFound
	}
	return &rows[0], nil
}

func (r *repository) Delete(ctx context.Context, userID, productID string) (int, error) {
	var rows []Line
	err := r.db.From(table).
		Eq("user_id", userID).
		Eq("product_id", productID).
		Delete(ctx, &rows)
	if err != nil {
		return 0, fmt.Errorf("delete cart line: %w", err)
	}
	return len(rows), nil
}

// DeleteProducts removes the user's lines for productIDs. Lines already gone
// are not an error, so the call is safe to repeat.
func (r *repository) DeleteProducts(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	err := r.db.From(table).
		Eq("user_id", userID).
		In("product_id", productIDs).
		Delete(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete cart lines: %w", err)
	}
	return nil
}
