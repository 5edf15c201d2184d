package address

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront-be/internal/session"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) List(ctx context.Context, userID string) ([]Address, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Address), args.Error(1)
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Address, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Address), args.Error(1)
}

func (m *MockRepository) GetDefault(ctx context.Context, userID string) (*Address, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Address), args.Error(1)
}

func (m *MockRepository) Create(ctx context.Context, in Input) (*Address, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Address), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, userID, id string, in Input) (*Address, error) {
	args := m.Called(ctx, userID, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Address), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, userID, id string) (int, error) {
	args := m.Called(ctx, userID, id)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) ClearDefault(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

func ptr[T any](v T) *T { return &v }

// --- Service ---

func TestService_Create(t *testing.T) {
	t.Run("Default clears the previous one first", func(t *testing.T) {
		repo := new(MockRepository)
		var order []string
		repo.On("ClearDefault", mock.Anything, "u-1").Return(nil).
			Run(func(mock.Arguments) { order = append(order, "clear") }).Once()
		repo.On("Create", mock.Anything, mock.MatchedBy(func(in Input) bool {
			return in.UserID == "u-1" && *in.IsDefault
		})).Return(&Address{ID: "a1", IsDefault: true}, nil).
			Run(func(mock.Arguments) { order = append(order, "create") }).Once()

		addr, err := NewService(repo).Create(context.Background(), "u-1", Input{IsDefault: ptr(true)})
		require.NoError(t, err)
		assert.Equal(t, "a1", addr.ID)
		assert.Equal(t, []string{"clear", "create"}, order)
	})

	t.Run("Non-default leaves others alone", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Create", mock.Anything, mock.Anything).Return(&Address{ID: "a2"}, nil).Once()

		_, err := NewService(repo).Create(context.Background(), "u-1", Input{City: ptr("Jakarta")})
		require.NoError(t, err)
		repo.AssertNotCalled(t, "ClearDefault", mock.Anything, mock.Anything)
	})

	t.Run("Clear failure aborts", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("ClearDefault", mock.Anything, "u-1").Return(errors.New("boom")).Once()

		_, err := NewService(repo).Create(context.Background(), "u-1", Input{IsDefault: ptr(true)})
		assert.Error(t, err)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestService_Update(t *testing.T) {
	t.Run("Empty body", func(t *testing.T) {
		_, err := NewService(new(MockRepository)).Update(context.Background(), "u-1", "a1", Input{UserID: "evil"})
		assert.ErrorIs(t, err, ErrNothingToUpdate)
	})

	t.Run("Foreign address cannot steal the default", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetByID", mock.Anything, "a9").Return(&Address{ID: "a9", UserID: "u-2"}, nil).Once()

		_, err := NewService(repo).Update(context.Background(), "u-1", "a9", Input{IsDefault: ptr(true)})
		assert.ErrorIs(t, err, ErrAddressNotFound)
		repo.AssertNotCalled(t, "ClearDefault", mock.Anything, mock.Anything)
	})

	t.Run("Strips user_id", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Update", mock.Anything, "u-1", "a1", mock.MatchedBy(func(in Input) bool {
			return in.UserID == "" && *in.City == "Bogor"
		})).Return(&Address{ID: "a1", City: "Bogor"}, nil).Once()

		addr, err := NewService(repo).Update(context.Background(), "u-1", "a1", Input{UserID: "u-2", City: ptr("Bogor")})
		require.NoError(t, err)
		assert.Equal(t, "Bogor", addr.City)
	})
}

func TestService_Delete(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Delete", mock.Anything, "u-1", "a1").Return(0, nil).Once()

	assert.ErrorIs(t, NewService(repo).Delete(context.Background(), "u-1", "a1"), ErrAddressNotFound)
}

// --- Handler ---

func newRouter(h *Handler) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/address", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/address", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/address/default", h.Default).Methods(http.MethodGet)
	r.HandleFunc("/api/address/{id}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/api/address/{id}", h.Delete).Methods(http.MethodDelete)
	return r
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req = req.WithContext(session.NewContext(req.Context(), &session.Identity{UserID: "u-1"}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHandler_Create(t *testing.T) {
	t.Run("Missing required fields", func(t *testing.T) {
		router := newRouter(NewHandler(NewService(new(MockRepository))))

		w := serve(router, http.MethodPost, "/api/address", `{"street":"Jl. Merdeka 1"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "recipient_name is required")
		assert.Contains(t, w.Body.String(), "city is required")
		assert.NotContains(t, w.Body.String(), "street is required")
	})

	t.Run("Created", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("Create", mock.Anything, mock.Anything).Return(&Address{ID: "a1", UserID: "u-1"}, nil).Once()
		router := newRouter(NewHandler(NewService(repo)))

		w := serve(router, http.MethodPost, "/api/address", `{"recipient_name":"Sari","street":"Jl. Merdeka 1","city":"Jakarta"}`)
		assert.Equal(t, http.StatusCreated, w.Code)
	})
}

func TestHandler_Default(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetDefault", mock.Anything, "u-1").Return(nil, nil).Once()
	router := newRouter(NewHandler(NewService(repo)))

	w := serve(router, http.MethodGet, "/api/address/default", "")
	require.Equal(t, http.StatusOK, w.Code)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "null", string(env["data"]))
}

func TestHandler_UpdateNotOwned(t *testing.T) {
	repo := new(MockRepository)
	repo.On("Update", mock.Anything, "u-1", "a9", mock.Anything).Return(nil, ErrAddressNotFound).Once()
	router := newRouter(NewHandler(NewService(repo)))

	w := serve(router, http.MethodPut, "/api/address/a9", `{"label":"Office"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
