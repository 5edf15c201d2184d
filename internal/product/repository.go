package product

import (
	"context"
	"fmt"

	"storefront-be/internal/logger"
	"storefront-be/internal/postgrest"

	"go.uber.org/zap"
)

const table = "products"

type Repository interface {
	List(ctx context.Context, opts ListOptions) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Upsert(ctx context.Context, in Input) (*Product, error)
	Delete(ctx context.Context, id string) (int, error)
}

type repository struct {
	db *postgrest.Client
}

func NewRepository(db *postgrest.Client) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, opts ListOptions) ([]Product, error) {
	q := r.db.From(table).Select("*")

	if opts.Search != "" {
		q = q.ILike("name", "*"+opts.Search+"*")
	}
	if opts.Brand != "" {
		q = q.Eq("brand", opts.Brand)
	}
	if opts.Category != "" {
		q = q.Eq("category", opts.Category)
	}
	if opts.MinPrice != nil {
		q = q.Gte("price", *opts.MinPrice)
	}
	if opts.MaxPrice != nil {
		q = q.Lte("price", *opts.MaxPrice)
	}
	if opts.MinRating != nil {
		q = q.Gte("rating", *opts.MinRating)
	}

	column, desc := SortColumn(opts.Sort)
	from, to := opts.Window()

	products := []Product{}
	if err := q.Order(column, desc).Range(from, to).Get(ctx, &products); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	if err := r.db.From(table).Select("*").Eq("id", id).GetOne(ctx, &p); err != nil {
		if postgrest.IsNotFound(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}

func (r *repository) GetByIDs(ctx context.Context, ids []string) ([]Product, error) {
	products := []Product{}
	if len(ids) == 0 {
		return products, nil
	}
	if err := r.db.From(table).Select("*").In("id", ids).Get(ctx, &products); err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return products, nil
}

func (r *repository) Upsert(ctx context.Context, in Input) (*Product, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "Product"),
		zap.String("method", "Upsert"),
		zap.String("product_id", in.ID),
	)

	var rows []Product
	if err := r.db.From(table).OnConflict("id").Upsert(ctx, in, &rows, false); err != nil {
		log.Error("upsert failed", zap.Error(err))
		return nil, fmt.Errorf("upsert product %s: %w", in.ID, err)
	}
	if len(rows) == 0 {
		return nil, ErrProductNotFound
	}
	return &rows[0], nil
}

func (r *repository) Delete(ctx context.Context, id string) (int, error) {
	var rows []Product
	if err := r.db.From(table).Eq("id", id).Delete(ctx, &rows); err != nil {
		return 0, fmt.Errorf("delete product %s: %w", id, err)
	}
	return len(rows), nil
}
