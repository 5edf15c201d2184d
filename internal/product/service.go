package product

import (
	"context"
	"strings"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	List(ctx context.Context, opts ListOptions) ([]Product, error)
	Search(ctx context.Context, opts ListOptions) ([]Product, error)
	Get(ctx context.Context, id string) (*Product, error)
	Upsert(ctx context.Context, in Input) (*Product, error)
	Delete(ctx context.Context, id string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func normalize(opts ListOptions) ListOptions {
	if opts.Page < 1 {
		opts.Page = DefaultPage
	}
	if opts.Limit < 1 || opts.Limit > MaxLimit {
		opts.Limit = DefaultLimit
	}
	return opts
}

func (s *service) List(ctx context.Context, opts ListOptions) ([]Product, error) {
	opts = normalize(opts)
	opts.Search = ""
	return s.repo.List(ctx, opts)
}

func (s *service) Search(ctx context.Context, opts ListOptions) ([]Product, error) {
	opts = normalize(opts)
	opts.Search = strings.TrimSpace(opts.Search)
	if opts.Search == "" {
		return nil, ErrSearchRequired
	}

	logger.FromCtx(ctx).Debug("product search",
		zap.String("service", "Product"),
		zap.String("q", opts.Search),
		zap.Int("page", opts.Page),
		zap.Int("limit", opts.Limit),
	)

	return s.repo.List(ctx, opts)
}

func (s *service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) Upsert(ctx context.Context, in Input) (*Product, error) {
	p, err := s.repo.Upsert(ctx, in)
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("product saved",
		zap.String("service", "Product"),
		zap.String("product_id", p.ID),
	)
	return p, nil
}

func (s *service) Delete(ctx context.Context, id string) error {
	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProductNotFound
	}

	logger.FromCtx(ctx).Info("product deleted",
		zap.String("service", "Product"),
		zap.String("product_id", id),
	)
	return nil
}
