package cart

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"storefront-be/internal/postgrest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T, handler http.HandlerFunc) Repository {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRepository(postgrest.New(srv.URL, "anon"))
}

func TestRepository_ListLines(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cart", r.URL.Path)
		assert.Equal(t, "eq.u-1", r.URL.Query().Get("user_id"))
		_, _ = w.Write([]byte(`[{"cart_id":1,"user_id":"u-1","product_id":"p1","quantity":2}]`))
	})

	lines, err := repo.ListLines(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestRepository_Upsert(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "user_id,product_id", r.URL.Query().Get("on_conflict"))
		assert.Contains(t, r.Header.Get("Prefer"), "resolution=merge-duplicates")

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, float64(3), body["quantity"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"cart_id":7,"user_id":"u-1","product_id":"p1","quantity":3}]`))
	})

	line, err := repo.Upsert(context.Background(), "u-1", "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), line.CartID)
}

func TestRepository_UpdateQuantity(t *testing.T) {
	t.Run("No matching row", func(t *testing.T) {
		repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "eq.p1", r.URL.Query().Get("product_id"))
			_, _ = w.Write([]byte(`[]`))
		})

		_, err := repo.UpdateQuantity(context.Background(), "u-1", "p1", 2)
		assert.ErrorIs(t, err, ErrCartItemNotFound)
	})

	t.Run("Updated", func(t *testing.T) {
		repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"cart_id":1,"product_id":"p1","quantity":2}]`))
		})

		line, err := repo.UpdateQuantity(context.Background(), "u-1", "p1", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, line.Quantity)
	})
}

func TestRepository_Delete(t *testing.T) {
	repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "eq.u-1", r.URL.Query().Get("user_id"))
		_, _ = w.Write([]byte(`[{"cart_id":1}]`))
	})

	n, err := repo.Delete(context.Background(), "u-1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRepository_DeleteProducts(t *testing.T) {
	t.Run("Scoped to the given products", func(t *testing.T) {
		repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "eq.u-1", q.Get("user_id"))
			assert.Equal(t, "in.(p1,p2)", q.Get("product_id"))
			assert.Equal(t, "return=minimal", r.Header.Get("Prefer"))
			w.WriteHeader(http.StatusNoContent)
		})

		require.NoError(t, repo.DeleteProducts(context.Background(), "u-1", []string{"p1", "p2"}))
	})

	t.Run("Nothing to delete", func(t *testing.T) {
		repo := newRepo(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected request")
		})

		require.NoError(t, repo.DeleteProducts(context.Background(), "u-1", nil))
	})
}
