package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"storefront-be/internal/order"
	"storefront-be/internal/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockReconciler struct{ mock.Mock }

func (m *MockReconciler) ReconcilePayment(ctx context.Context, orderID string, target order.Status, amount *decimal.Decimal) (order.Outcome, error) {
	args := m.Called(ctx, orderID, target, amount)
	return args.Get(0).(order.Outcome), args.Error(1)
}

type MockRepository struct{ mock.Mock }

func (m *MockRepository) SavePayment(ctx context.Context, p payment.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockRepository) GetLatestByOrder(ctx context.Context, orderID string) (*payment.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockRepository) UpdatePaymentStatus(ctx context.Context, invoiceID, status string, paidAt *time.Time) error {
	return m.Called(ctx, invoiceID, status, paidAt).Error(0)
}

func (m *MockRepository) SaveCallback(ctx context.Context, c payment.Callback) (int64, bool, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockRepository) MarkCallbackProcessed(ctx context.Context, id int64, outcome string) error {
	return m.Called(ctx, id, outcome).Error(0)
}

const paidBody = `{"id":"inv-1","external_id":"ord-1","status":"PAID","amount":250,"paid_at":"2025-03-01T10:00:00Z"}`

func post(h *Handler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", strings.NewReader(body))
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	w := httptest.NewRecorder()
	h.Handle(w, req)
	return w
}

func amountIs(v int64) any {
	return mock.MatchedBy(func(a *decimal.Decimal) bool {
		return a != nil && a.Equal(decimal.NewFromInt(v))
	})
}

func TestHandle_BadToken(t *testing.T) {
	orders := new(MockReconciler)
	repo := new(MockRepository)
	h := NewHandler(orders, repo, "secret")

	for _, token := range []string{"", "wrong"} {
		w := post(h, token, paidBody)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.JSONEq(t, `{"message":"Unauthorized"}`, w.Body.String())
	}

	orders.AssertNotCalled(t, "ReconcilePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "SaveCallback", mock.Anything, mock.Anything)
}

func TestHandle_PaidDeliveredTwice(t *testing.T) {
	orders := new(MockReconciler)
	repo := new(MockRepository)
	h := NewHandler(orders, repo, "secret")

	repo.On("SaveCallback", mock.Anything, mock.MatchedBy(func(c payment.Callback) bool {
		return c.InvoiceID == "inv-1" && c.ExternalID == "ord-1" && c.Status == "PAID"
	})).Return(int64(7), false, nil).Once()
	repo.On("SaveCallback", mock.Anything, mock.Anything).Return(int64(0), true, nil).Once()

	orders.On("ReconcilePayment", mock.Anything, "ord-1", order.StatusPaid, amountIs(250)).
		Return(order.OutcomeUpdated, nil).Once()
	orders.On("ReconcilePayment", mock.Anything, "ord-1", order.StatusPaid, amountIs(250)).
		Return(order.OutcomeUnchanged, nil).Once()

	repo.On("UpdatePaymentStatus", mock.Anything, "inv-1", "PAID", mock.Anything).Return(nil).Twice()
	repo.On("MarkCallbackProcessed", mock.Anything, int64(7), "updated").Return(nil).Once()

	for i := 0; i < 2; i++ {
		w := post(h, "secret", paidBody)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"message":"Webhook received"}`, w.Body.String())
	}

	orders.AssertExpectations(t)
	repo.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "MarkCallbackProcessed", 1)
}

func TestHandle_ExpiredRevertsToPending(t *testing.T) {
	orders := new(MockReconciler)
	repo := new(MockRepository)
	h := NewHandler(orders, repo, "")

	repo.On("SaveCallback", mock.Anything, mock.Anything).Return(int64(3), false, nil)
	orders.On("ReconcilePayment", mock.Anything, "ord-1", order.StatusPending, amountIs(250)).
		Return(order.OutcomeUnchanged, nil).Once()
	repo.On("UpdatePaymentStatus", mock.Anything, "inv-1", "EXPIRED", (*time.Time)(nil)).Return(nil)
	repo.On("MarkCallbackProcessed", mock.Anything, int64(3), "unchanged").Return(nil)

	w := post(h, "", `{"id":"inv-1","external_id":"ord-1","status":"EXPIRED","amount":250}`)
	assert.Equal(t, http.StatusOK, w.Code)
	orders.AssertExpectations(t)
}

func TestHandle_UnknownStatus(t *testing.T) {
	orders := new(MockReconciler)
	repo := new(MockRepository)
	h := NewHandler(orders, repo, "secret")

	repo.On("SaveCallback", mock.Anything, mock.Anything).Return(int64(4), false, nil)

	w := post(h, "secret", `{"id":"inv-1","external_id":"ord-1","status":"ACTIVE"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	orders.AssertNotCalled(t, "ReconcilePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_MalformedBody(t *testing.T) {
	orders := new(MockReconciler)
	repo := new(MockRepository)
	h := NewHandler(orders, repo, "secret")

	w := post(h, "secret", `{"id":`)
	assert.Equal(t, http.StatusOK, w.Code)
	repo.AssertNotCalled(t, "SaveCallback", mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "ReconcilePayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_ReconcileFailureStillAcknowledged(t *testing.T) {
	orders := new(MockReconciler)
	repo := new(MockRepository)
	h := NewHandler(orders, repo, "secret")

	repo.On("SaveCallback", mock.Anything, mock.Anything).Return(int64(0), false, assert.AnError)
	orders.On("ReconcilePayment", mock.Anything, "ord-1", order.StatusPaid, mock.Anything).
		Return(order.Outcome(""), assert.AnError)

	w := post(h, "secret", paidBody)
	assert.Equal(t, http.StatusOK, w.Code)
	repo.AssertNotCalled(t, "UpdatePaymentStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
