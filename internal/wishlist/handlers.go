package wishlist

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/device"
)

// Handler exposes wishlist endpoints.
type Handler struct {
	Svc      *Service
	Cart     *cart.Service
	Products cart.ProductSource
}

type addRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
}

// List handles GET /wishlist.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.Svc.Items(r.Context(), deviceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Add handles POST /wishlist. Re-adding a saved product is a no-op.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload addRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	p, ok := h.Products.Lookup(payload.ProductID)
	if !ok {
		h.writeError(w, catalog.ErrProductNotFound)
		return
	}
	items, err := h.Svc.Mutate(r.Context(), deviceID, func(ctx context.Context, l *List) error {
		l.Add(ctx, FromProduct(p))
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Remove handles DELETE /wishlist/{productId}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, err := productIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.Svc.Mutate(r.Context(), deviceID, func(ctx context.Context, l *List) error {
		l.Remove(ctx, id)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// Clear handles DELETE /wishlist.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.Svc.Mutate(r.Context(), deviceID, func(ctx context.Context, l *List) error {
		l.Clear(ctx)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, items)
}

// MoveToCart adds the saved product to the cart with quantity 1, then drops
// it from the wishlist. The two steps are persisted separately.
func (h *Handler) MoveToCart(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, err := productIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	saved, err := h.Svc.Items(r.Context(), deviceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var entry *Item
	for i := range saved {
		if saved[i].ID == id {
			entry = &saved[i]
			break
		}
	}
	if entry == nil {
		h.writeError(w, ErrNotOnWishlist)
		return
	}
	product := cart.Product{ID: entry.ID, Name: entry.Name, Price: entry.Price, Image: entry.Image}
	if p, ok := h.Products.Lookup(id); ok {
		product = cart.FromCatalog(p)
	}

	st, err := h.Cart.Mutate(r.Context(), deviceID, func(ctx context.Context, e *cart.Engine) error {
		return e.AddItem(ctx, product, 1)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.Svc.Mutate(r.Context(), deviceID, func(ctx context.Context, l *List) error {
		l.Remove(ctx, id)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]any{
		"cart":     st.View(),
		"wishlist": items,
	})
}

func productIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ValidationError("invalid product id", map[string]string{"productId": "must be a positive integer"})
	}
	return id, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotOnWishlist):
		common.JSONError(w, http.StatusNotFound, "NOT_ON_WISHLIST", ErrNotOnWishlist.Error(), nil)
	case errors.Is(err, catalog.ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", catalog.ErrProductNotFound.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
