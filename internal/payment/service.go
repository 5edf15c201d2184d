package payment

import (
	"context"
	"strings"
	"time"

	"storefront-be/internal/identity"
	"storefront-be/internal/logger"
	"storefront-be/internal/order"
	"storefront-be/internal/session"

	"go.uber.org/zap"
)

type OrderReader interface {
	GetOrder(ctx context.Context, userID, orderID string) (*order.Order, error)
}

type UserLookup interface {
	GetUser(ctx context.Context, accessToken string) (*identity.User, error)
}

type Service interface {
	// CreatePaymentRedirect returns the hosted invoice URL the caller should
	// be sent to for paying orderID.
	CreatePaymentRedirect(ctx context.Context, caller *session.Identity, orderID string) (string, error)
}

type service struct {
	orders  OrderReader
	gateway Gateway
	repo    Repository
	users   UserLookup
	baseURL string
	now     func() time.Time
}

func NewService(orders OrderReader, gateway Gateway, repo Repository, users UserLookup, publicBaseURL string) Service {
	return &service{
		orders:  orders,
		gateway: gateway,
		repo:    repo,
		users:   users,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
		now:     time.Now,
	}
}

func (s *service) CreatePaymentRedirect(ctx context.Context, caller *session.Identity, orderID string) (string, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Payment"),
		zap.String("method", "CreatePaymentRedirect"),
		zap.String("order_id", orderID),
	)

	o, err := s.orders.GetOrder(ctx, caller.UserID, orderID)
	if err != nil {
		return "", err
	}
	if o.Status != order.StatusPending {
		return "", ErrOrderNotPayable
	}

	// An open invoice for the same amount is reused instead of issuing another.
	existing, err := s.repo.GetLatestByOrder(ctx, o.OrderID)
	if err != nil {
		log.Warn("failed to look up previous invoice", zap.Error(err))
	} else if existing != nil && existing.Usable(o.TotalPrice, s.now()) {
		log.Info("reusing open invoice", zap.String("invoice_id", existing.InvoiceID))
		return existing.InvoiceURL, nil
	}

	email, err := s.payerEmail(ctx, caller)
	if err != nil {
		log.Error("failed to resolve payer email", zap.Error(err))
		return "", err
	}

	detailURL := s.baseURL + "/orders/" + o.OrderID
	inv, err := s.gateway.CreateInvoice(ctx, InvoiceRequest{
		ExternalID:         o.OrderID,
		Amount:             o.TotalPrice,
		PayerEmail:         email,
		Description:        "Payment for order " + o.OrderID,
		SuccessRedirectURL: detailURL + "?from_payment=true",
		FailureRedirectURL: detailURL,
	})
	if err != nil {
		return "", err
	}

	status := inv.Status
	if status == "" {
		status = InvoicePending
	}
	record := Payment{
		InvoiceID:  inv.ID,
		OrderID:    o.OrderID,
		UserID:     caller.UserID,
		Amount:     o.TotalPrice,
		Status:     status,
		InvoiceURL: inv.InvoiceURL,
		ExpiresAt:  inv.ExpiryDate,
	}
	if err := s.repo.SavePayment(ctx, record); err != nil {
		log.Warn("invoice created but not recorded", zap.String("invoice_id", inv.ID), zap.Error(err))
	}

	return inv.InvoiceURL, nil
}

// payerEmail prefers the session; the identity provider is asked otherwise.
func (s *service) payerEmail(ctx context.Context, caller *session.Identity) (string, error) {
	if caller.Email != "" {
		return caller.Email, nil
	}
	u, err := s.users.GetUser(ctx, caller.AccessToken)
	if err != nil {
		return "", err
	}
	if u.Email == "" {
		return "", ErrNoPayerEmail
	}
	return u.Email, nil
}
