package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// CategoryAll matches every product.
const CategoryAll = "All"

// Sort orders accepted by ListProducts.
const (
	SortDefault   = "default"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"
	SortName      = "name"
)

// ErrProductNotFound is returned when no product carries the requested id.
var ErrProductNotFound = errors.New("product not found")

// Service answers read-only catalog queries over an in-memory product list.
type Service struct {
	products   []Product
	index      map[int64]Product
	categories []string
	cache      *Cache
	latency    time.Duration
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Products []Product
	Cache    *Cache
	// Latency simulates a remote fetch before list and detail reads.
	Latency time.Duration
}

// ListParams captures filters for product listing.
type ListParams struct {
	Category string
	Query    string
	Sort     string
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if len(cfg.Products) == 0 {
		return nil, errors.New("catalog: at least one product is required")
	}
	index := make(map[int64]Product, len(cfg.Products))
	categories := []string{CategoryAll}
	seen := map[string]struct{}{CategoryAll: {}}
	for _, p := range cfg.Products {
		if _, dup := index[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %d", p.ID)
		}
		index[p.ID] = p
		if _, ok := seen[p.Category]; !ok && p.Category != "" {
			seen[p.Category] = struct{}{}
			categories = append(categories, p.Category)
		}
	}
	products := make([]Product, len(cfg.Products))
	copy(products, cfg.Products)
	return &Service{
		products:   products,
		index:      index,
		categories: categories,
		cache:      cfg.Cache,
		latency:    cfg.Latency,
	}, nil
}

// ParseListParams normalises raw query values into typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Category: strings.TrimSpace(values.Get("category")),
		Query:    strings.TrimSpace(values.Get("q")),
		Sort:     SortDefault,
	}
	if params.Category == "" {
		params.Category = CategoryAll
	}
	if v := strings.ToLower(strings.TrimSpace(values.Get("sort"))); v != "" {
		switch v {
		case SortDefault, SortPriceLow, SortPriceHigh, SortRating, SortName:
			params.Sort = v
		default:
			return params, badRequest("sort", "sort must be one of default, price-low, price-high, rating, name")
		}
	}
	return params, nil
}

// Categories lists the category names in catalog order, starting with All.
func (s *Service) Categories() []string {
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}

// ByCategory returns the products in category. All returns everything.
func (s *Service) ByCategory(category string) []Product {
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if category == "" || category == CategoryAll || p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// ListProducts filters, searches and sorts the catalog.
func (s *Service) ListProducts(ctx context.Context, params ListParams) ([]Product, error) {
	key := listCacheKey(params)
	var cached []Product
	if ok, err := s.cache.Load(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	if err := common.Pause(ctx, s.latency); err != nil {
		return nil, err
	}

	items := s.ByCategory(params.Category)
	if q := strings.ToLower(params.Query); q != "" {
		filtered := items[:0]
		for _, p := range items {
			if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q) {
				filtered = append(filtered, p)
			}
		}
		items = filtered
	}
	sortProducts(items, params.Sort)

	_ = s.cache.Store(ctx, key, items)
	return items, nil
}

// GetProduct returns the product with id.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if err := common.Pause(ctx, s.latency); err != nil {
		return Product{}, err
	}
	p, ok := s.index[id]
	if !ok {
		return Product{}, &common.AppError{Code: "NOT_FOUND", Message: "product not found", HTTPStatus: http.StatusNotFound, Err: ErrProductNotFound}
	}
	return p, nil
}

// Lookup is the non-blocking variant of GetProduct used by other services.
func (s *Service) Lookup(id int64) (Product, bool) {
	p, ok := s.index[id]
	return p, ok
}

func sortProducts(items []Product, order string) {
	switch order {
	case SortPriceLow:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price.LessThan(items[j].Price) })
	case SortPriceHigh:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price.GreaterThan(items[j].Price) })
	case SortRating:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Rating > items[j].Rating })
	case SortName:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	}
}

func listCacheKey(params ListParams) string {
	return "products:" + url.Values{
		"category": {params.Category},
		"q":        {strings.ToLower(params.Query)},
		"sort":     {params.Sort},
	}.Encode()
}

func badRequest(field, message string) *common.AppError {
	return &common.AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details: map[string]any{
			"field": field,
		},
	}
}
