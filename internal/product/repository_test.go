package product

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-be/internal/postgrest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, handler http.HandlerFunc) Repository {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRepository(postgrest.New(srv.URL, "anon"))
}

func TestRepository_List(t *testing.T) {
	minPrice := 10.0
	minRating := 4.0

	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/products", r.URL.Path)
		assert.Equal(t, "ilike.*run*", q.Get("name"))
		assert.Equal(t, "eq.Acme", q.Get("brand"))
		assert.Equal(t, "gte.10", q.Get("price"))
		assert.Equal(t, "gte.4", q.Get("rating"))
		assert.Equal(t, "price.asc", q.Get("order"))
		assert.Equal(t, "20", q.Get("offset"))
		assert.Equal(t, "10", q.Get("limit"))

		_, _ = w.Write([]byte(`[{"id":"p1","name":"Runner","brand":"Acme","price":120.5,"images":["a.jpg"]}]`))
	})

	products, err := repo.List(context.Background(), ListOptions{
		Search:    "run",
		Brand:     "Acme",
		MinPrice:  &minPrice,
		MinRating: &minRating,
		Sort:      SortPriceAsc,
		Page:      3,
		Limit:     10,
	})

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, decimal.RequireFromString("120.5").Equal(products[0].Price))
	assert.Equal(t, []string{"a.jpg"}, products[0].Images)
}

func TestRepository_GetByID(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "eq.p1", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`{"id":"p1","name":"Runner","price":"100"}`))
		})

		p, err := repo.GetByID(context.Background(), "p1")
		require.NoError(t, err)
		assert.Equal(t, "Runner", p.Name)
	})

	t.Run("Missing", func(t *testing.T) {
		repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotAcceptable)
			_, _ = w.Write([]byte(`{"code":"PGRST116","message":"0 rows"}`))
		})

		_, err := repo.GetByID(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrProductNotFound)
	})
}

func TestRepository_Upsert(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "id", r.URL.Query().Get("on_conflict"))
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, map[string]any{"id": "p1", "brand": "Acme"}, body, "absent fields must not be sent")

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":"p1","name":"Runner","brand":"Acme","price":100}]`))
	})

	brand := "Acme"
	p, err := repo.Upsert(context.Background(), Input{ID: "p1", Brand: &brand})
	require.NoError(t, err)
	assert.Equal(t, "Acme", p.Brand)
}

func TestRepository_Delete(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.p1", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`[]`))
	})

	n, err := repo.Delete(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
