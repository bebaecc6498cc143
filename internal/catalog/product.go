package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

//go:embed data/products.json
var productsJSON []byte

// Product is a catalog entry as served to the storefront.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Image         string          `json:"image"`
	Category      string          `json:"category"`
	Rating        float64         `json:"rating"`
	Reviews       int             `json:"reviews"`
	Description   string          `json:"description"`
	Features      []string        `json:"features"`
	InStock       bool            `json:"inStock"`
	StockCount    int             `json:"stockCount"`
}

// DiscountPercent is the rounded markdown from OriginalPrice to Price.
func (p Product) DiscountPercent() int {
	if !p.OriginalPrice.IsPositive() || !p.OriginalPrice.GreaterThan(p.Price) {
		return 0
	}
	off := p.OriginalPrice.Sub(p.Price).Div(p.OriginalPrice).Mul(decimal.NewFromInt(100))
	return int(off.Round(0).IntPart())
}

// ProductView adds derived fields to Product for responses.
type ProductView struct {
	Product
	DiscountPercent int `json:"discountPercent"`
}

// View returns the response shape for p.
func (p Product) View() ProductView {
	return ProductView{Product: p, DiscountPercent: p.DiscountPercent()}
}

// DefaultProducts decodes the embedded storefront catalog.
func DefaultProducts() ([]Product, error) {
	var products []Product
	if err := json.Unmarshal(productsJSON, &products); err != nil {
		return nil, fmt.Errorf("decode embedded products: %w", err)
	}
	return products, nil
}
