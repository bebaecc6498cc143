// Package cart implements the per-device cart pricing engine: line items,
// coupon attachment and the subtotal/discount/total derivation.
package cart

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/coupon"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

var (
	// ErrInvalidQuantity is returned when addItem receives a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrInvalidInput is returned for malformed products.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyCart is returned when checkout is attempted without items.
	ErrEmptyCart = errors.New("cart is empty")
)

// CouponValidator is the coupon catalog as seen by the engine.
type CouponValidator interface {
	Validate(code string, subtotal decimal.Decimal) (coupon.Rule, error)
}

// EngineConfig groups Engine dependencies.
type EngineConfig struct {
	Coupons    CouponValidator
	Repository Repository
	Logger     zerolog.Logger
}

// Engine owns one CartState. Every mutation recomputes the subtotal,
// re-validates the attached coupon, recomputes discount and total, then
// persists the record. Persistence failures are logged, not returned.
// An Engine is not safe for concurrent use; Service serialises access.
type Engine struct {
	coupons CouponValidator
	repo    Repository
	log     zerolog.Logger
	state   State
}

// NewEngine constructs an engine with an empty cart.
func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{coupons: cfg.Coupons, repo: cfg.Repository, log: cfg.Logger}
	e.settle()
	return e
}

// LoadEngine restores the cart from the repository. A stored coupon that no
// longer validates against the restored subtotal is detached and the record
// rewritten.
func LoadEngine(ctx context.Context, cfg EngineConfig) (*Engine, error) {
	e := NewEngine(cfg)
	if e.repo == nil {
		return e, nil
	}
	rec, err := e.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	e.state.Items = normaliseItems(rec.Items)
	e.state.CouponCode = rec.CouponCode
	if e.settle() {
		e.persist(ctx)
	}
	return e, nil
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	return e.state.clone()
}

// AddItem inserts product with quantity, or increments an existing line.
func (e *Engine) AddItem(ctx context.Context, p Product, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("add item %d: %w", p.ID, ErrInvalidQuantity)
	}
	if p.ID <= 0 || p.Price.IsNegative() {
		return fmt.Errorf("add item %d: %w", p.ID, ErrInvalidInput)
	}
	if i := e.indexOf(p.ID); i >= 0 {
		if quantity > math.MaxInt-e.state.Items[i].Quantity {
			return fmt.Errorf("add item %d: %w", p.ID, ErrInvalidQuantity)
		}
		e.state.Items[i].Quantity += quantity
	} else {
		e.state.Items = append(e.state.Items, LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Image:     p.Image,
			Quantity:  quantity,
		})
	}
	e.commit(ctx, "add_item")
	return nil
}

// RemoveItem deletes the line for productID. Absent items are a no-op.
func (e *Engine) RemoveItem(ctx context.Context, productID int64) {
	if i := e.indexOf(productID); i >= 0 {
		e.state.Items = append(e.state.Items[:i], e.state.Items[i+1:]...)
	}
	e.commit(ctx, "remove_item")
}

// SetQuantity sets the exact quantity for productID. A quantity of zero or
// less removes the line; setting a quantity on an absent item does nothing.
func (e *Engine) SetQuantity(ctx context.Context, productID int64, quantity int) {
	if quantity <= 0 {
		e.RemoveItem(ctx, productID)
		return
	}
	if i := e.indexOf(productID); i >= 0 {
		e.state.Items[i].Quantity = quantity
	}
	e.commit(ctx, "set_quantity")
}

// ApplyCoupon validates code against the current subtotal and attaches it.
// On rejection the state is unchanged and a *coupon.Rejection is returned.
func (e *Engine) ApplyCoupon(ctx context.Context, code string) (coupon.Rule, error) {
	if e.coupons == nil {
		return coupon.Rule{}, errors.New("cart: coupon catalog not configured")
	}
	rule, err := e.coupons.Validate(code, e.state.Subtotal)
	if err == nil && e.state.IsEmpty() {
		err = &coupon.Rejection{Code: rule.Code, Reason: coupon.ReasonBelowMinimum, MinSubtotal: rule.MinSubtotal}
	}
	if err != nil {
		var rej *coupon.Rejection
		if errors.As(err, &rej) {
			obs.CountCouponValidation(string(rej.Reason))
		}
		return coupon.Rule{}, err
	}
	obs.CountCouponValidation("ok")
	e.state.CouponCode = rule.Code
	e.commit(ctx, "apply_coupon")
	return rule, nil
}

// RemoveCoupon detaches any coupon. It always succeeds.
func (e *Engine) RemoveCoupon(ctx context.Context) {
	e.state.CouponCode = ""
	e.commit(ctx, "remove_coupon")
}

// Clear empties the cart and deletes the durable record.
func (e *Engine) Clear(ctx context.Context) {
	e.state = State{}
	e.settle()
	obs.CountCartMutation("clear")
	if e.repo == nil {
		return
	}
	if err := e.repo.Delete(ctx); err != nil {
		e.persistFailed(err)
	}
}

func (e *Engine) commit(ctx context.Context, op string) {
	e.settle()
	obs.CountCartMutation(op)
	e.persist(ctx)
}

// settle recomputes every derived field and reports whether an attached
// coupon had to be detached.
func (e *Engine) settle() bool {
	subtotal := decimal.Zero
	for _, it := range e.state.Items {
		subtotal = subtotal.Add(it.LineTotal())
	}
	e.state.Subtotal = subtotal
	e.state.DiscountPercent = 0
	e.state.DiscountAmount = decimal.Zero

	detached := false
	if code := e.state.CouponCode; code != "" {
		var (
			rule coupon.Rule
			err  error
		)
		if e.state.IsEmpty() || e.coupons == nil {
			err = coupon.ErrBelowMinimum
		} else {
			rule, err = e.coupons.Validate(code, subtotal)
		}
		if err != nil {
			e.state.CouponCode = ""
			detached = true
			obs.CountCouponAutoDetach()
			e.log.Info().Str("code", code).Str("subtotal", subtotal.String()).Err(err).Msg("coupon detached")
		} else {
			e.state.DiscountPercent = rule.DiscountPercent
			e.state.DiscountAmount = rule.Discount(subtotal)
		}
	}
	e.state.Total = subtotal.Sub(e.state.DiscountAmount)
	return detached
}

func (e *Engine) persist(ctx context.Context) {
	if e.repo == nil {
		return
	}
	items := make([]LineItem, len(e.state.Items))
	copy(items, e.state.Items)
	if err := e.repo.Save(ctx, Record{Items: items, CouponCode: e.state.CouponCode}); err != nil {
		e.persistFailed(err)
	}
}

func (e *Engine) persistFailed(err error) {
	key := KeyItems
	var pe *PersistError
	if errors.As(err, &pe) {
		key = pe.Key
	}
	obs.CountPersistFailure(key)
	e.log.Warn().Err(err).Str("key", key).Msg("cart persist failed")
}

func (e *Engine) indexOf(productID int64) int {
	for i, it := range e.state.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// normaliseItems drops non-positive quantities and merges duplicate ids in
// first-seen order. Merged quantities saturate at math.MaxInt.
func normaliseItems(items []LineItem) []LineItem {
	out := make([]LineItem, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if i, ok := index[it.ProductID]; ok {
			if it.Quantity > math.MaxInt-out[i].Quantity {
				out[i].Quantity = math.MaxInt
			} else {
				out[i].Quantity += it.Quantity
			}
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}
