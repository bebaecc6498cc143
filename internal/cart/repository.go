package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/toko-storefront/internal/storage"
)

// Durable keys inside a device namespace.
const (
	KeyItems  = "cart"
	KeyCoupon = "cart_coupon"
)

// Record is what the repository serialises. It carries no derived fields.
type Record struct {
	Items      []LineItem
	CouponCode string
}

// Repository loads and saves cart records for one device.
type Repository interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Delete(ctx context.Context) error
}

// StoreRepository keeps the cart in a storage.Store under KeyItems and KeyCoupon.
type StoreRepository struct {
	Store storage.Store
}

// NewStoreRepository constructs a StoreRepository over store.
func NewStoreRepository(store storage.Store) *StoreRepository {
	return &StoreRepository{Store: store}
}

// Load reads the record. Missing keys yield an empty record.
func (r *StoreRepository) Load(ctx context.Context) (Record, error) {
	var rec Record
	if _, err := storage.GetJSON(ctx, r.Store, KeyItems, &rec.Items); err != nil {
		return Record{}, fmt.Errorf("load %s: %w", KeyItems, err)
	}
	if _, err := storage.GetJSON(ctx, r.Store, KeyCoupon, &rec.CouponCode); err != nil {
		return Record{}, fmt.Errorf("load %s: %w", KeyCoupon, err)
	}
	return rec, nil
}

// Save writes both keys. The coupon key is removed when no coupon is attached.
func (r *StoreRepository) Save(ctx context.Context, rec Record) error {
	items := rec.Items
	if items == nil {
		items = []LineItem{}
	}
	var errs []error
	if err := storage.SetJSON(ctx, r.Store, KeyItems, items); err != nil {
		errs = append(errs, &PersistError{Key: KeyItems, Err: err})
	}
	if rec.CouponCode == "" {
		if err := r.Store.Delete(ctx, KeyCoupon); err != nil {
			errs = append(errs, &PersistError{Key: KeyCoupon, Err: err})
		}
	} else if err := storage.SetJSON(ctx, r.Store, KeyCoupon, rec.CouponCode); err != nil {
		errs = append(errs, &PersistError{Key: KeyCoupon, Err: err})
	}
	return errors.Join(errs...)
}

// Delete removes the durable record entirely.
func (r *StoreRepository) Delete(ctx context.Context) error {
	if err := r.Store.Delete(ctx, KeyItems, KeyCoupon); err != nil {
		return &PersistError{Key: KeyItems, Err: err}
	}
	return nil
}

// PersistError names the durable key a write failed on.
type PersistError struct {
	Key string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Key, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }
