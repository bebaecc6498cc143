package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/coupon"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
	coupons *coupon.Catalog
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
	Coupons *coupon.Catalog
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, coupons: cfg.Coupons}
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	common.Data(w, http.StatusOK, h.service.Categories())
}

// Products handles GET /api/v1/products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	params, err := h.service.ParseListParams(r.URL.Query())
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.service.ListProducts(r.Context(), params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]ProductView, 0, len(items))
	for _, p := range items {
		views = append(views, p.View())
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(views)))
	common.Data(w, http.StatusOK, views)
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, badRequest("id", "product id must be an integer"))
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, p.View())
}

// Coupons handles GET /api/v1/coupons.
func (h *Handler) Coupons(w http.ResponseWriter, r *http.Request) {
	if h.coupons == nil {
		common.Data(w, http.StatusOK, []coupon.Rule{})
		return
	}
	common.Data(w, http.StatusOK, h.coupons.List())
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err)
}
