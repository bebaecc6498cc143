// Package coupon holds the static coupon catalog and its validation rules.
package coupon

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no rule matches the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when the rule exists but has been switched off.
	ErrInactive = errors.New("coupon not active")
	// ErrExpired is returned when the current date is after the rule's expiry date.
	ErrExpired = errors.New("coupon expired")
	// ErrBelowMinimum indicates the subtotal did not reach the rule's minimum.
	ErrBelowMinimum = errors.New("coupon minimum subtotal not met")
)

// Reason classifies why a coupon was rejected.
type Reason string

const (
	ReasonNotFound     Reason = "not-found"
	ReasonInactive     Reason = "inactive"
	ReasonExpired      Reason = "expired"
	ReasonBelowMinimum Reason = "below-minimum"
)

const dateLayout = "2006-01-02"

// Rule is one immutable catalog entry.
type Rule struct {
	Code            string
	DiscountPercent int
	MinSubtotal     decimal.Decimal
	Description     string
	Expiry          time.Time
	Active          bool
}

type ruleJSON struct {
	Code        string          `json:"code"`
	Discount    int             `json:"discount"`
	MinAmount   decimal.Decimal `json:"minAmount"`
	Description string          `json:"description"`
	Valid       bool            `json:"valid"`
	ExpiryDate  string          `json:"expiryDate"`
}

// MarshalJSON renders the rule in the checkout-facing contract shape.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(ruleJSON{
		Code:        r.Code,
		Discount:    r.DiscountPercent,
		MinAmount:   r.MinSubtotal,
		Description: r.Description,
		Valid:       r.Active,
		ExpiryDate:  r.Expiry.Format(dateLayout),
	})
}

// Discount returns subtotal × percent / 100 at full precision.
func (r Rule) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if r.DiscountPercent <= 0 || !subtotal.IsPositive() {
		return decimal.Zero
	}
	return subtotal.Mul(decimal.NewFromInt(int64(r.DiscountPercent))).Div(decimal.NewFromInt(100))
}

// Rejection is the typed failure returned by Validate.
type Rejection struct {
	Code        string
	Reason      Reason
	MinSubtotal decimal.Decimal
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonNotFound:
		return "Invalid coupon code"
	case ReasonInactive:
		return "This coupon is no longer valid"
	case ReasonExpired:
		return "This coupon has expired"
	case ReasonBelowMinimum:
		return fmt.Sprintf("Minimum order amount of $%s required for this coupon", r.MinSubtotal.String())
	default:
		return "coupon rejected"
	}
}

// Unwrap maps the reason onto the package sentinel so errors.Is works.
func (r *Rejection) Unwrap() error {
	switch r.Reason {
	case ReasonNotFound:
		return ErrNotFound
	case ReasonInactive:
		return ErrInactive
	case ReasonExpired:
		return ErrExpired
	case ReasonBelowMinimum:
		return ErrBelowMinimum
	default:
		return nil
	}
}

// Catalog is a read-only code → rule mapping.
type Catalog struct {
	rules map[string]Rule
	// Now supplies "today" for expiry checks; time.Now when nil.
	Now func() time.Time
}

// NewCatalog indexes rules by canonical code. Later duplicates win.
func NewCatalog(rules []Rule) *Catalog {
	index := make(map[string]Rule, len(rules))
	for _, r := range rules {
		r.Code = Canonical(r.Code)
		index[r.Code] = r
	}
	return &Catalog{rules: index}
}

// Canonical trims and upper-cases a code.
func Canonical(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (c *Catalog) now() time.Time {
	if c != nil && c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Lookup finds the rule for code, case-insensitively.
func (c *Catalog) Lookup(code string) (Rule, bool) {
	if c == nil {
		return Rule{}, false
	}
	r, ok := c.rules[Canonical(code)]
	return r, ok
}

// Validate checks code against subtotal. Checks run in order: existence,
// active flag, expiry date, minimum subtotal. On success the rule is returned
// unchanged; on failure the error is a *Rejection.
func (c *Catalog) Validate(code string, subtotal decimal.Decimal) (Rule, error) {
	canonical := Canonical(code)
	r, ok := c.Lookup(canonical)
	if !ok {
		return Rule{}, &Rejection{Code: canonical, Reason: ReasonNotFound}
	}
	if !r.Active {
		return Rule{}, &Rejection{Code: r.Code, Reason: ReasonInactive}
	}
	if dateOnly(c.now()).After(dateOnly(r.Expiry)) {
		return Rule{}, &Rejection{Code: r.Code, Reason: ReasonExpired}
	}
	if subtotal.LessThan(r.MinSubtotal) {
		return Rule{}, &Rejection{Code: r.Code, Reason: ReasonBelowMinimum, MinSubtotal: r.MinSubtotal}
	}
	return r, nil
}

// List returns the active rules ordered by code.
func (c *Catalog) List() []Rule {
	if c == nil {
		return nil
	}
	out := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Codes returns every known code, sorted.
func (c *Catalog) Codes() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.rules))
	for code := range c.rules {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
