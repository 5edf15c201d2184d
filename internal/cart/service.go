package cart

import (
	"context"
	"errors"

	"storefront-be/internal/logger"
	"storefront-be/internal/product"

	"go.uber.org/zap"
)

// ProductReader is the slice of the catalog the cart needs.
type ProductReader interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

type Service interface {
	List(ctx context.Context, userID string) ([]Item, error)
	Add(ctx context.Context, userID, productID string, quantity int) (*Line, error)
	Update(ctx context.Context, userID, productID string, quantity int) (*Line, error)
	Remove(ctx context.Context, userID, productID string) error
}

type service struct {
	repo     Repository
	products ProductReader
}

func NewService(repo Repository, products ProductReader) Service {
	return &service{repo: repo, products: products}
}

// List returns the user's lines joined with current product data. Lines whose
// product no longer exists are left out.
func (s *service) List(ctx context.Context, userID string) ([]Item, error) {
	lines, err := s.repo.ListLines(ctx, userID)
	if err != nil {
		return nil, err
	}

	items := []Item{}
	if len(lines) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			continue
		}
		items = append(items, Item{
			Line:   l,
			Name:   p.Name,
			Price:  p.Price,
			Brand:  p.Brand,
			Images: p.Images,
		})
	}
	return items, nil
}

func (s *service) Add(ctx context.Context, userID, productID string, quantity int) (*Line, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Cart"),
		zap.String("method", "Add"),
		zap.String("product_id", productID),
	)

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			log.Debug("product not found")
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	line, err := s.repo.Upsert(ctx, userID, productID, quantity)
	if err != nil {
		return nil, err
	}

	log.Info("cart line saved", zap.Int("quantity", quantity))
	return line, nil
}

func (s *service) Update(ctx context.Context, userID, productID string, quantity int) (*Line, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	return s.repo.UpdateQuantity(ctx, userID, productID, quantity)
}

func (s *service) Remove(ctx context.Context, userID, productID string) error {
	n, err := s.repo.Delete(ctx, userID, productID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}
