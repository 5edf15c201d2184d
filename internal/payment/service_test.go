package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-be/internal/identity"
	"storefront-be/internal/order"
	"storefront-be/internal/session"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockOrders struct{ mock.Mock }

func (m *MockOrders) GetOrder(ctx context.Context, userID, orderID string) (*order.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockGateway struct{ mock.Mock }

func (m *MockGateway) CreateInvoice(ctx context.Context, req InvoiceRequest) (*Invoice, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Invoice), args.Error(1)
}

type MockRepository struct{ mock.Mock }

func (m *MockRepository) SavePayment(ctx context.Context, p Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockRepository) GetLatestByOrder(ctx context.Context, orderID string) (*Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockRepository) UpdatePaymentStatus(ctx context.Context, invoiceID, status string, paidAt *time.Time) error {
	return m.Called(ctx, invoiceID, status, paidAt).Error(0)
}

func (m *MockRepository) SaveCallback(ctx context.Context, c Callback) (int64, bool, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(int64), args.Bool(1), args.Error(2)
}

func (m *MockRepository) MarkCallbackProcessed(ctx context.Context, id int64, outcome string) error {
	return m.Called(ctx, id, outcome).Error(0)
}

type MockUsers struct{ mock.Mock }

func (m *MockUsers) GetUser(ctx context.Context, accessToken string) (*identity.User, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

type fixture struct {
	orders  *MockOrders
	gateway *MockGateway
	repo    *MockRepository
	users   *MockUsers
	svc     *service
}

func newFixture() *fixture {
	f := &fixture{
		orders:  new(MockOrders),
		gateway: new(MockGateway),
		repo:    new(MockRepository),
		users:   new(MockUsers),
	}
	f.svc = NewService(f.orders, f.gateway, f.repo, f.users, "https://shop.test/").(*service)
	f.svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	return f
}

func pendingOrder() *order.Order {
	return &order.Order{OrderID: "ord-1", UserID: "u-1", Status: order.StatusPending, TotalPrice: decimal.NewFromInt(250)}
}

// --- Service ---

func TestCreatePaymentRedirect_Success(t *testing.T) {
	f := newFixture()
	caller := &session.Identity{UserID: "u-1", Email: "buyer@example.com"}

	f.orders.On("GetOrder", mock.Anything, "u-1", "ord-1").Return(pendingOrder(), nil).Once()
	f.repo.On("GetLatestByOrder", mock.Anything, "ord-1").Return(nil, nil).Once()
	f.gateway.On("CreateInvoice", mock.Anything, mock.MatchedBy(func(r InvoiceRequest) bool {
		return r.ExternalID == "ord-1" &&
			r.Amount.Equal(decimal.NewFromInt(250)) &&
			r.PayerEmail == "buyer@example.com" &&
			r.SuccessRedirectURL == "https://shop.test/orders/ord-1?from_payment=true" &&
			r.FailureRedirectURL == "https://shop.test/orders/ord-1"
	})).Return(&Invoice{ID: "inv-1", InvoiceURL: "https://pay/inv-1"}, nil).Once()
	f.repo.On("SavePayment", mock.Anything, mock.MatchedBy(func(p Payment) bool {
		return p.InvoiceID == "inv-1" && p.Status == InvoicePending && p.UserID == "u-1"
	})).Return(errors.New("store down")).Once()

	url, err := f.svc.CreatePaymentRedirect(context.Background(), caller, "ord-1")
	require.NoError(t, err, "recording the invoice is best effort")
	assert.Equal(t, "https://pay/inv-1", url)
	f.gateway.AssertExpectations(t)
	f.repo.AssertExpectations(t)
}

func TestCreatePaymentRedirect_ReusesOpenInvoice(t *testing.T) {
	f := newFixture()
	expires := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	f.orders.On("GetOrder", mock.Anything, "u-1", "ord-1").Return(pendingOrder(), nil).Once()
	f.repo.On("GetLatestByOrder", mock.Anything, "ord-1").Return(&Payment{
		InvoiceID: "inv-0", Status: InvoicePending, Amount: decimal.NewFromInt(250),
		InvoiceURL: "https://pay/inv-0", ExpiresAt: &expires,
	}, nil).Once()

	url, err := f.svc.CreatePaymentRedirect(context.Background(), &session.Identity{UserID: "u-1"}, "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay/inv-0", url)
	f.gateway.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything)
}

func TestCreatePaymentRedirect_EmailFromProvider(t *testing.T) {
	f := newFixture()

	f.orders.On("GetOrder", mock.Anything, "u-1", "ord-1").Return(pendingOrder(), nil).Once()
	f.repo.On("GetLatestByOrder", mock.Anything, "ord-1").Return(nil, errors.New("timeout")).Once()
	f.users.On("GetUser", mock.Anything, "at-1").Return(&identity.User{ID: "u-1", Email: "from@idp.test"}, nil).Once()
	f.gateway.On("CreateInvoice", mock.Anything, mock.MatchedBy(func(r InvoiceRequest) bool {
		return r.PayerEmail == "from@idp.test"
	})).Return(&Invoice{ID: "inv-1", InvoiceURL: "https://pay/inv-1"}, nil).Once()
	f.repo.On("SavePayment", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.svc.CreatePaymentRedirect(context.Background(), &session.Identity{UserID: "u-1", AccessToken: "at-1"}, "ord-1")
	require.NoError(t, err)
	f.users.AssertExpectations(t)
}

func TestCreatePaymentRedirect_NotPayable(t *testing.T) {
	f := newFixture()
	paid := pendingOrder()
	paid.Status = order.StatusPaid
	f.orders.On("GetOrder", mock.Anything, "u-1", "ord-1").Return(paid, nil).Once()

	_, err := f.svc.CreatePaymentRedirect(context.Background(), &session.Identity{UserID: "u-1"}, "ord-1")
	assert.ErrorIs(t, err, ErrOrderNotPayable)
}

func TestPayment_Usable(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)
	amount := decimal.NewFromInt(100)

	open := Payment{Status: InvoicePending, InvoiceURL: "u", Amount: amount, ExpiresAt: &later}
	assert.True(t, open.Usable(amount, now))

	expired := open
	expired.ExpiresAt = &earlier
	assert.False(t, expired.Usable(amount, now))

	assert.False(t, open.Usable(decimal.NewFromInt(101), now))

	settled := open
	settled.Status = InvoicePaid
	assert.False(t, settled.Usable(amount, now))
}

// --- Handler ---

func servePay(f *fixture, caller *session.Identity, orderID string) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	r.HandleFunc("/api/pay/{order_id}", NewHandler(f.svc).Pay).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/api/pay/"+orderID, nil)
	if caller != nil {
		req = req.WithContext(session.NewContext(req.Context(), caller))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandler_Pay(t *testing.T) {
	caller := &session.Identity{UserID: "u-1", Email: "buyer@example.com"}

	t.Run("Redirects", func(t *testing.T) {
		f := newFixture()
		f.orders.On("GetOrder", mock.Anything, "u-1", "ord-1").Return(pendingOrder(), nil)
		f.repo.On("GetLatestByOrder", mock.Anything, "ord-1").Return(nil, nil)
		f.gateway.On("CreateInvoice", mock.Anything, mock.Anything).Return(&Invoice{ID: "inv-1", InvoiceURL: "https://pay/inv-1"}, nil)
		f.repo.On("SavePayment", mock.Anything, mock.Anything).Return(nil)

		w := servePay(f, caller, "ord-1")
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "https://pay/inv-1", w.Header().Get("Location"))
	})

	tests := []struct {
		name     string
		orderErr error
		gwErr    error
		status   int
		code     string
	}{
		{"Unknown order", order.ErrOrderNotFound, nil, http.StatusNotFound, "NOT_FOUND"},
		{"Foreign order", order.ErrOrderForbidden, nil, http.StatusForbidden, "FORBIDDEN"},
		{"Missing key", nil, ErrNotConfigured, http.StatusInternalServerError, "CONFIG_ERROR"},
		{"Gateway rejects", nil, &GatewayError{Status: 400, Body: `{"error_code":"X"}`}, http.StatusInternalServerError, "XENDIT_ERROR"},
		{"Gateway timeout", nil, ErrGatewayUnavailable, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"Anything else", nil, errors.New("boom"), http.StatusInternalServerError, "PAYMENT_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.orderErr != nil {
				f.orders.On("GetOrder", mock.Anything, "u-1", "ord-1").Return(nil, tt.orderErr)
			} else {
				f.orders.On("GetOrder", mock.Anything, "u-1", "ord-1").Return(pendingOrder(), nil)
				f.repo.On("GetLatestByOrder", mock.Anything, "ord-1").Return(nil, nil)
				f.gateway.On("CreateInvoice", mock.Anything, mock.Anything).Return(nil, tt.gwErr)
			}

			w := servePay(f, caller, "ord-1")
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.code+`"`)
		})
	}

	t.Run("Anonymous", func(t *testing.T) {
		w := servePay(newFixture(), nil, "ord-1")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
