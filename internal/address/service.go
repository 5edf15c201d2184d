package address

import (
	"context"

	"storefront-be/internal/logger"

	"go.uber.org/zap"
)

type Service interface {
	List(ctx context.Context, userID string) ([]Address, error)
	Default(ctx context.Context, userID string) (*Address, error)
	Create(ctx context.Context, userID string, in Input) (*Address, error)
	Update(ctx context.Context, userID, id string, in Input) (*Address, error)
	Delete(ctx context.Context, userID, id string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, userID string) ([]Address, error) {
	return s.repo.List(ctx, userID)
}

func (s *service) Default(ctx context.Context, userID string) (*Address, error) {
	return s.repo.GetDefault(ctx, userID)
}

// Create unsets the user's current default before writing a new one. The two
// writes are separate requests, so concurrent default-sets may both win.
func (s *service) Create(ctx context.Context, userID string, in Input) (*Address, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", "Create"),
	)

	in.UserID = userID
	if in.setsDefault() {
		if err := s.repo.ClearDefault(ctx, userID); err != nil {
			log.Error("failed to clear default address", zap.Error(err))
			return nil, err
		}
	}

	addr, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	log.Info("address created", zap.String("address_id", addr.ID))
	return addr, nil
}

func (s *service) Update(ctx context.Context, userID, id string, in Input) (*Address, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Address"),
		zap.String("method", "Update"),
		zap.String("address_id", id),
	)

	// user_id is never client-writable.
	in.UserID = ""
	if in == (Input{}) {
		return nil, ErrNothingToUpdate
	}

	if in.setsDefault() {
		// Ownership first, so a foreign id cannot clear the caller's default.
		addr, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if addr.UserID != userID {
			return nil, ErrAddressNotFound
		}
		if err := s.repo.ClearDefault(ctx, userID); err != nil {
			log.Error("failed to clear default address", zap.Error(err))
			return nil, err
		}
	}

	addr, err := s.repo.Update(ctx, userID, id, in)
	if err != nil {
		return nil, err
	}

	log.Info("address updated")
	return addr, nil
}

func (s *service) Delete(ctx context.Context, userID, id string) error {
	n, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAddressNotFound
	}

	logger.FromCtx(ctx).Info("address deleted",
		zap.String("service", "Address"),
		zap.String("address_id", id),
	)
	return nil
}
