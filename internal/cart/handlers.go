package cart

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/coupon"
	"github.com/noah-isme/toko-storefront/internal/device"
)

// ProductSource resolves catalog products by id.
type ProductSource interface {
	Lookup(id int64) (catalog.Product, bool)
}

// FromCatalog copies the fields a line item keeps from a catalog product.
func FromCatalog(p catalog.Product) Product {
	return Product{ID: p.ID, Name: p.Name, Price: p.Price, Image: p.Image}
}

// Handler wires cart services to HTTP.
type Handler struct {
	Svc      *Service
	Products ProductSource
}

type addItemRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  *int  `json:"quantity"`
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}

// Get returns the device's cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	st, err := h.Svc.Snapshot(r.Context(), deviceID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st.View())
}

// AddItem adds a catalog product or increments its quantity. Quantity defaults to 1.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload addItemRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	qty := 1
	if payload.Quantity != nil {
		qty = *payload.Quantity
	}
	p, ok := h.Products.Lookup(payload.ProductID)
	if !ok {
		h.writeError(w, catalog.ErrProductNotFound)
		return
	}
	st, err := h.Svc.Mutate(r.Context(), deviceID, func(ctx context.Context, e *Engine) error {
		return e.AddItem(ctx, FromCatalog(p), qty)
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st.View())
}

// UpdateItem sets an item's quantity; zero or less removes it.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	productID, err := productIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload setQuantityRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	st, err := h.Svc.Mutate(r.Context(), deviceID, func(ctx context.Context, e *Engine) error {
		e.SetQuantity(ctx, productID, *payload.Quantity)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st.View())
}

// RemoveItem deletes a line item. Unknown ids succeed.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	productID, err := productIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	st, err := h.Svc.Mutate(r.Context(), deviceID, func(ctx context.Context, e *Engine) error {
		e.RemoveItem(ctx, productID)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st.View())
}

// ApplyCoupon attaches a coupon to the cart.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var payload applyCouponRequest
	if err := common.DecodeJSON(r, &payload); err != nil {
		h.writeError(w, err)
		return
	}
	st, err := h.Svc.Mutate(r.Context(), deviceID, func(ctx context.Context, e *Engine) error {
		_, err := e.ApplyCoupon(ctx, payload.Code)
		return err
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st.View())
}

// RemoveCoupon detaches the coupon.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	st, err := h.Svc.Mutate(r.Context(), deviceID, func(ctx context.Context, e *Engine) error {
		e.RemoveCoupon(ctx)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st.View())
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	st, err := h.Svc.Mutate(r.Context(), deviceID, func(ctx context.Context, e *Engine) error {
		e.Clear(ctx)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st.View())
}

// Checkout places a mock order for the authenticated user.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	deviceID, err := device.FromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "login required", nil)
		return
	}
	order, err := h.Svc.Checkout(r.Context(), deviceID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, order)
}

func productIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.ValidationError("invalid product id", map[string]string{"productId": "must be a positive integer"})
	}
	return id, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var rej *coupon.Rejection
	switch {
	case errors.As(err, &rej):
		details := map[string]any{"reason": rej.Reason, "code": rej.Code}
		if rej.Reason == coupon.ReasonBelowMinimum {
			details["minSubtotal"] = Money(rej.MinSubtotal)
		}
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_REJECTED", rej.Error(), details)
	case errors.Is(err, ErrInvalidQuantity):
		common.JSONError(w, http.StatusBadRequest, "INVALID_QUANTITY", ErrInvalidQuantity.Error(), nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "CART_EMPTY", ErrEmptyCart.Error(), nil)
	case errors.Is(err, catalog.ErrProductNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", catalog.ErrProductNotFound.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.WriteError(w, err)
	}
}
