package order

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"storefront-be/internal/address"
	"storefront-be/internal/cart"
	"storefront-be/internal/logger"
	"storefront-be/internal/postgrest"
	"storefront-be/internal/product"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartStore interface {
	ListLines(ctx context.Context, userID string) ([]cart.Line, error)
	DeleteProducts(ctx context.Context, userID string, productIDs []string) error
}

type PriceReader interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

type AddressReader interface {
	GetByID(ctx context.Context, id string) (*address.Address, error)
	GetDefault(ctx context.Context, userID string) (*address.Address, error)
}

type Service interface {
	Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error)
	ListOrders(ctx context.Context, userID string) ([]Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID string, status Status) error
	ReconcilePayment(ctx context.Context, orderID string, target Status, amount *decimal.Decimal) (Outcome, error)
}

type service struct {
	repo      Repository
	carts     CartStore
	products  PriceReader
	addresses AddressReader
	locks     *keyedMutex

	// newBackOff paces retries of payment reconciliation.
	newBackOff func() backoff.BackOff
}

func NewService(repo Repository, carts CartStore, products PriceReader, addresses AddressReader) Service {
	return &service{
		repo:       repo,
		carts:      carts,
		products:   products,
		addresses:  addresses,
		locks:      newKeyedMutex(),
		newBackOff: defaultBackOff,
	}
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// Checkout turns the user's cart, or the subset named by ProductIDs, into a
// pending order. The steps are separate store writes; each is safe to repeat,
// and a retry carrying the same IdempotencyKey resumes the earlier order
// instead of creating a second one.
func (s *service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "Checkout"),
	)

	if in.IdempotencyKey != "" && uuid.Validate(in.IdempotencyKey) != nil {
		return nil, ErrInvalidIdempotencyKey
	}

	unlock, err := s.locks.Lock(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	addressID, err := s.resolveAddress(ctx, in.UserID, in.AddressID)
	if err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		existing, err := s.repo.GetByCheckoutKey(ctx, in.UserID, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			log.Info("resuming checkout", zap.String("order_id", existing.OrderID))
			return s.resume(ctx, existing, in)
		}
	}

	lines, err := s.selectLines(ctx, in)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	items, total, err := s.price(ctx, lines)
	if err != nil {
		return nil, err
	}

	newOrder := NewOrder{
		UserID:     in.UserID,
		TotalPrice: total,
		Status:     StatusPending,
		AddressID:  addressID,
		Plan:       planOf(items),
	}
	if in.IdempotencyKey != "" {
		newOrder.CheckoutKey = &in.IdempotencyKey
	}

	o, err := s.repo.Create(ctx, newOrder)
	if errors.Is(err, postgrest.ErrConflict) && in.IdempotencyKey != "" {
		// Another process won the race for this key.
		existing, getErr := s.repo.GetByCheckoutKey(ctx, in.UserID, in.IdempotencyKey)
		if getErr != nil {
			return nil, getErr
		}
		if existing != nil {
			return s.resume(ctx, existing, in)
		}
	}
	if err != nil {
		log.Error("failed to create order", zap.Error(err))
		return nil, err
	}

	for i := range items {
		items[i].OrderID = o.OrderID
	}
	if err := s.repo.InsertItems(ctx, items); err != nil {
		log.Error("order created without items", zap.String("order_id", o.OrderID), zap.Error(err))
		return nil, err
	}

	consumed := idsOf(lines, func(l cart.Line) string { return l.ProductID })
	if err := s.carts.DeleteProducts(ctx, in.UserID, consumed); err != nil {
		log.Error("order created but cart not cleared", zap.String("order_id", o.OrderID), zap.Error(err))
		return nil, err
	}

	o.Items = items
	log.Info("order created",
		zap.String("order_id", o.OrderID),
		zap.String("total", total.String()),
		zap.Int("items", len(items)),
	)
	return &CheckoutResult{Order: o, Total: total}, nil
}

// resume completes a checkout whose earlier attempt stopped part way. Only
// the lines planned at creation are inserted or cleared from the cart, and
// the order total is never touched.
func (s *service) resume(ctx context.Context, o *Order, in CheckoutInput) (*CheckoutResult, error) {
	stored, err := s.repo.ListItems(ctx, []string{o.OrderID})
	if err != nil {
		return nil, err
	}

	plan := o.Plan
	if len(plan) == 0 {
		plan = planOf(stored)
	}

	have := make(map[string]bool, len(stored))
	for _, it := range stored {
		have[it.ProductID] = true
	}
	var missing []Item
	for _, p := range plan {
		if !have[p.ProductID] {
			missing = append(missing, Item{OrderID: o.OrderID, ProductID: p.ProductID, Quantity: p.Quantity, Price: p.Price})
		}
	}

	items := stored
	if len(missing) > 0 {
		if err := s.repo.InsertItems(ctx, missing); err != nil {
			return nil, err
		}
		items = append(items, missing...)
	}

	consumed := idsOf(plan, func(p PlannedLine) string { return p.ProductID })
	if err := s.carts.DeleteProducts(ctx, in.UserID, consumed); err != nil {
		return nil, err
	}

	o.Items = items
	return &CheckoutResult{Order: o, Total: o.TotalPrice}, nil
}

func (s *service) resolveAddress(ctx context.Context, userID, addressID string) (string, error) {
	if addressID == "" {
		def, err := s.addresses.GetDefault(ctx, userID)
		if err != nil {
			return "", err
		}
		if def == nil {
			return "", ErrAddressRequired
		}
		return def.ID, nil
	}

	a, err := s.addresses.GetByID(ctx, addressID)
	if errors.Is(err, address.ErrAddressNotFound) {
		return "", ErrInvalidAddress
	}
	if err != nil {
		return "", err
	}
	if a.UserID != userID {
		return "", ErrInvalidAddress
	}
	return a.ID, nil
}

// selectLines returns the cart lines the checkout consumes.
func (s *service) selectLines(ctx context.Context, in CheckoutInput) ([]cart.Line, error) {
	lines, err := s.carts.ListLines(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if len(in.ProductIDs) == 0 {
		return lines, nil
	}

	wanted := make(map[string]bool, len(in.ProductIDs))
	for _, id := range in.ProductIDs {
		wanted[id] = true
	}
	selected := lines[:0:0]
	for _, l := range lines {
		if wanted[l.ProductID] {
			selected = append(selected, l)
		}
	}
	return selected, nil
}

func (s *service) price(ctx context.Context, lines []cart.Line) ([]Item, decimal.Decimal, error) {
	products, err := s.products.GetByIDs(ctx, idsOf(lines, func(l cart.Line) string { return l.ProductID }))
	if err != nil {
		return nil, decimal.Zero, err
	}
	return priceLines(lines, products)
}

func (s *service) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := s.repo.ListItems(ctx, idsOf(orders, func(o Order) string { return o.OrderID }))
	if err != nil {
		return nil, err
	}
	byOrder := make(map[string][]Item, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].OrderID]
		if orders[i].Items == nil {
			orders[i].Items = []Item{}
		}
	}
	return orders, nil
}

// GetOrder returns ErrOrderForbidden when the order exists but is not userID's.
func (s *service) GetOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.repo.Lookup(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderForbidden
	}

	items, err := s.repo.ListItems(ctx, []string{o.OrderID})
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// UpdateStatus is the admin override. Only paid and delivered are accepted.
func (s *service) UpdateStatus(ctx context.Context, orderID string, status Status) error {
	if status != StatusPaid && status != StatusDelivered {
		return ErrInvalidStatus
	}

	n, err := s.repo.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOrderNotFound
	}

	logger.FromCtx(ctx).Info("order status overridden",
		zap.String("service", "Order"),
		zap.String("order_id", orderID),
		zap.String("status", string(status)),
	)
	return nil
}

// allowedFrom lists the statuses a gateway callback may move an order out
// of. Automated callbacks never lower an order's rank.
var allowedFrom = map[Status][]Status{
	StatusPaid:    {StatusPending, StatusPaid},
	StatusPending: {StatusPending},
}

// ReconcilePayment applies a gateway payment result to an order. A nil
// amount skips the amount check. Store outages are retried with backoff.
func (s *service) ReconcilePayment(ctx context.Context, orderID string, target Status, amount *decimal.Decimal) (Outcome, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "Order"),
		zap.String("method", "ReconcilePayment"),
		zap.String("order_id", orderID),
		zap.String("target", string(target)),
	)

	from, ok := allowedFrom[target]
	if !ok {
		return OutcomeUnchanged, fmt.Errorf("%w: %s", ErrInvalidStatus, target)
	}

	var outcome Outcome
	var final error
	op := func() error {
		outcome, final = s.reconcile(ctx, log, orderID, target, from, amount)
		if errors.Is(final, postgrest.ErrUnavailable) {
			return final
		}
		return nil
	}

	b := backoff.WithContext(s.newBackOff(), ctx)
	if err := backoff.Retry(op, b); err != nil {
		log.Error("reconcile gave up", zap.Error(err))
		return OutcomeUnchanged, err
	}
	return outcome, final
}

func (s *service) reconcile(ctx context.Context, log *zap.Logger, orderID string, target Status, from []Status, amount *decimal.Decimal) (Outcome, error) {
	o, err := s.repo.Lookup(ctx, orderID)
	if errors.Is(err, ErrOrderNotFound) {
		log.Warn("payment callback for unknown order")
		return OutcomeNotFound, nil
	}
	if err != nil {
		return OutcomeUnchanged, err
	}

	if target == StatusPaid && amount != nil && !amount.Equal(o.TotalPrice) {
		log.Warn("payment amount does not match order total",
			zap.String("paid", amount.String()),
			zap.String("total", o.TotalPrice.String()),
		)
		return OutcomeAmountMismatch, nil
	}

	if o.Status == target {
		return OutcomeUnchanged, nil
	}
	if !slices.Contains(from, o.Status) {
		log.Warn("payment callback would regress order",
			zap.String("current", string(o.Status)),
		)
		return OutcomeUnchanged, nil
	}

	n, err := s.repo.Transition(ctx, orderID, target, from)
	if err != nil {
		return OutcomeUnchanged, err
	}
	if n == 0 {
		log.Warn("order changed before transition applied")
		return OutcomeUnchanged, nil
	}

	log.Info("order status reconciled", zap.String("previous", string(o.Status)))
	return OutcomeUpdated, nil
}
