package wishlist_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/coupon"
	"github.com/noah-isme/toko-storefront/internal/device"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/storage"
	"github.com/noah-isme/toko-storefront/internal/wishlist"
)

type listResponse struct {
	Data []wishlist.Item `json:"data"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	products, err := catalog.DefaultProducts()
	require.NoError(t, err)
	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{Products: products})
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	locker := lock.NewLocalLocker()
	h := &wishlist.Handler{
		Svc:      &wishlist.Service{Store: store, Locker: locker, Logger: zerolog.Nop()},
		Cart:     &cart.Service{Store: store, Coupons: coupon.NewDefaultCatalog(), Locker: locker, Logger: zerolog.Nop()},
		Products: catalogSvc,
	}
	cartHandler := &cart.Handler{Svc: h.Cart, Products: catalogSvc}

	r := chi.NewRouter()
	r.Use(device.NewResolver("", "").Middleware)
	r.Get("/api/v1/wishlist", h.List)
	r.Post("/api/v1/wishlist", h.Add)
	r.Delete("/api/v1/wishlist", h.Clear)
	r.Delete("/api/v1/wishlist/{productId}", h.Remove)
	r.Post("/api/v1/wishlist/{productId}/move-to-cart", h.MoveToCart)
	r.Get("/api/v1/cart", cartHandler.Get)
	return r
}

func call(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(device.DefaultHeader, "tablet")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []wishlist.Item {
	t.Helper()
	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func TestWishlistHandlers(t *testing.T) {
	router := newRouter(t)

	rec := call(t, router, http.MethodPost, "/api/v1/wishlist", map[string]any{"productId": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(t, router, http.MethodPost, "/api/v1/wishlist", map[string]any{"productId": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = call(t, router, http.MethodPost, "/api/v1/wishlist", map[string]any{"productId": 9})
	items := decodeList(t, rec)
	require.Len(t, items, 2)
	require.Equal(t, "Mechanical Keyboard", items[0].Name)

	rec = call(t, router, http.MethodPost, "/api/v1/wishlist", map[string]any{"productId": 77})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = call(t, router, http.MethodDelete, "/api/v1/wishlist/9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decodeList(t, rec), 1)

	rec = call(t, router, http.MethodDelete, "/api/v1/wishlist/9", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, router, http.MethodDelete, "/api/v1/wishlist", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decodeList(t, rec))
}

func TestMoveToCart(t *testing.T) {
	router := newRouter(t)

	rec := call(t, router, http.MethodPost, "/api/v1/wishlist/4/move-to-cart", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_ON_WISHLIST")

	rec = call(t, router, http.MethodPost, "/api/v1/wishlist", map[string]any{"productId": 4})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, router, http.MethodPost, "/api/v1/wishlist/4/move-to-cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Cart     cart.View       `json:"cart"`
			Wishlist []wishlist.Item `json:"wishlist"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Cart.Items, 1)
	require.Equal(t, int64(4), body.Data.Cart.Items[0].ProductID)
	require.Equal(t, "29.99", body.Data.Cart.Subtotal)
	require.Empty(t, body.Data.Wishlist)

	rec = call(t, router, http.MethodGet, "/api/v1/wishlist", nil)
	require.Empty(t, decodeList(t, rec))
}
