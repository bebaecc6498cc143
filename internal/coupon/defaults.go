package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

var defaultExpiry = time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)

func rule(code string, percent int, min int64, description string) Rule {
	return Rule{
		Code:            code,
		DiscountPercent: percent,
		MinSubtotal:     decimal.NewFromInt(min),
		Description:     description,
		Expiry:          defaultExpiry,
		Active:          true,
	}
}

// DefaultRules is the fixed storefront coupon set.
func DefaultRules() []Rule {
	return []Rule{
		rule("SAVE10", 10, 50, "Get 10% off on orders above $50"),
		rule("SAVE20", 20, 100, "Get 20% off on orders above $100"),
		rule("WELCOME15", 15, 30, "Welcome offer! Get 15% off on orders above $30"),
		rule("FLAT50", 50, 200, "Flat $50 off on orders above $200"),
		rule("SUMMER25", 25, 75, "Summer special! Get 25% off on orders above $75"),
		rule("NEWUSER", 30, 50, "New user special! Get 30% off on orders above $50"),
		rule("FLASH30", 30, 150, "Flash sale! Get 30% off on orders above $150"),
		rule("BIGSAVE", 40, 250, "Big savings! Get 40% off on orders above $250"),
		rule("FIRST5", 5, 20, "Get 5% off on orders above $20"),
		rule("MEGA60", 60, 300, "Mega discount! Get 60% off on orders above $300"),
	}
}

// NewDefaultCatalog builds the catalog from DefaultRules.
func NewDefaultCatalog() *Catalog {
	return NewCatalog(DefaultRules())
}
