package cart

import (
	"github.com/shopspring/decimal"
)

// Product is the subset of catalog data the cart copies into a line item.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Image string
}

// LineItem is one product's quantity entry. Persisted as an element of the
// device's cart array.
type LineItem struct {
	ProductID int64           `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
}

// LineTotal is unit price × quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// State is the engine-owned cart. Derived fields are kept at full precision.
type State struct {
	Items           []LineItem
	CouponCode      string
	DiscountPercent int
	Subtotal        decimal.Decimal
	DiscountAmount  decimal.Decimal
	Total           decimal.Decimal
}

// ItemCount is the sum of quantities.
func (s State) ItemCount() int {
	n := 0
	for _, it := range s.Items {
		n += it.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no line items.
func (s State) IsEmpty() bool {
	return len(s.Items) == 0
}

func (s State) clone() State {
	out := s
	out.Items = make([]LineItem, len(s.Items))
	copy(out.Items, s.Items)
	return out
}

// ItemView is the presentation form of a line item.
type ItemView struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Image     string `json:"image"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"lineTotal"`
}

// View is the presentation form of State. Amounts are rounded to two decimals.
type View struct {
	Items           []ItemView `json:"items"`
	ItemCount       int        `json:"itemCount"`
	CouponCode      *string    `json:"couponCode"`
	DiscountPercent int        `json:"discountPercent"`
	Subtotal        string     `json:"subtotal"`
	Discount        string     `json:"discount"`
	Total           string     `json:"total"`
}

// Money renders d with two decimals.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// View renders s for API responses.
func (s State) View() View {
	items := make([]ItemView, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, ItemView{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     Money(it.UnitPrice),
			Image:     it.Image,
			Quantity:  it.Quantity,
			LineTotal: Money(it.LineTotal()),
		})
	}
	v := View{
		Items:           items,
		ItemCount:       s.ItemCount(),
		DiscountPercent: s.DiscountPercent,
		Subtotal:        Money(s.Subtotal),
		Discount:        Money(s.DiscountAmount),
		Total:           Money(s.Total),
	}
	if s.CouponCode != "" {
		code := s.CouponCode
		v.CouponCode = &code
	}
	return v
}
