package address

import (
	"context"
	"fmt"

	"storefront-be/internal/logger"
	"storefront-be/internal/postgrest"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const table = "addresses"

type Repository interface {
	List(ctx context.Context, userID string) ([]Address, error)
	GetByID(ctx context.Context, id string) (*Address, error)
	GetDefault(ctx context.Context, userID string) (*Address, error)
	Create(ctx context.Context, in Input) (*Address, error)
	Update(ctx context.Context, userID, id string, in Input) (*Address, error)
	Delete(ctx context.Context, userID, id string) (int, error)
	ClearDefault(ctx context.Context, userID string) error
}

type repository struct {
	db *postgrest.Client
}

func NewRepository(db *postgrest.Client) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, userID string) ([]Address, error) {
	addrs := []Address{}
	err := r.db.From(table).
		Select("*").
		Eq("user_id", userID).
		Order("is_default", true).
		Order("created_at", true).
		Get(ctx, &addrs)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	return addrs, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Address, error) {
	// Malformed ids would be rejected by the store as a 400.
	if uuid.Validate(id) != nil {
		return nil, ErrAddressNotFound
	}

	var a Address
	if err := r.db.From(table).Select("*").Eq("id", id).GetOne(ctx, &a); err != nil {
		if postgrest.IsNotFound(err) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address %s: %w", id, err)
	}
	return &a, nil
}

// GetDefault returns nil without error when the user has no default.
func (r *repository) GetDefault(ctx context.Context, userID string) (*Address, error) {
	var rows []Address
	err := r.db.From(table).
		Select("*").
		Eq("user_id", userID).
		Eq("is_default", true).
		Order("created_at", true).
		Limit(1).
		Get(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("get default address: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) Create(ctx context.Context, in Input) (*Address, error) {
	var rows []Address
	if err := r.db.From(table).Insert(ctx, in, &rows); err != nil {
		logger.FromCtx(ctx).Error("insert address failed",
			zap.String("repo", "Address"),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create address: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrAddressNotFound
	}
	return &rows[0], nil
}

// Update only touches a row owned by userID; anything else reads as not found.
func (r *repository) Update(ctx context.Context, userID, id string, in Input) (*Address, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrAddressNotFound
	}

	var rows []Address
	err := r.db.From(table).
		Eq("id", id).
		Eq("user_id", userID).
		Update(ctx, in, &rows)
	if err != nil {
		return nil, fmt.Errorf("update address %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrAddressNotFound
	}
	return &rows[0], nil
}

func (r *repository) Delete(ctx context.Context, userID, id string) (int, error) {
	if uuid.Validate(id) != nil {
		return 0, nil
	}

	var rows []Address
	err := r.db.From(table).
		Eq("id", id).
		Eq("user_id", userID).
		Delete(ctx, &rows)
	if err != nil {
		return 0, fmt.Errorf("delete address %s: %w", id, err)
	}
	return len(rows), nil
}

func (r *repository) ClearDefault(ctx context.Context, userID string) error {
	err := r.db.From(table).
		Eq("user_id", userID).
		Eq("is_default", true).
		Update(ctx, map[string]any{"is_default": false}, nil)
	if err != nil {
		return fmt.Errorf("clear default address: %w", err)
	}
	return nil
}
