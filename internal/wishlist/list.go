// Package wishlist keeps a device's deduplicated set of saved products.
package wishlist

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/storage"
)

// Key is the durable key inside a device namespace.
const Key = "wishlist"

// Item is the product summary kept on the wishlist.
type Item struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"originalPrice"`
	Image         string          `json:"image"`
	Category      string          `json:"category"`
	Rating        float64         `json:"rating"`
}

// FromProduct summarises a catalog product.
func FromProduct(p catalog.Product) Item {
	return Item{
		ID:            p.ID,
		Name:          p.Name,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Image:         p.Image,
		Category:      p.Category,
		Rating:        p.Rating,
	}
}

// List is one device's wishlist in insertion order. Writes go straight to the
// store; failures are logged and counted, not returned.
type List struct {
	store storage.Store
	log   zerolog.Logger
	items []Item
}

// Load reads the wishlist from store.
func Load(ctx context.Context, store storage.Store, log zerolog.Logger) (*List, error) {
	l := &List{store: store, log: log}
	var stored []Item
	if _, err := storage.GetJSON(ctx, store, Key, &stored); err != nil {
		return nil, fmt.Errorf("load %s: %w", Key, err)
	}
	seen := make(map[int64]struct{}, len(stored))
	for _, it := range stored {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		l.items = append(l.items, it)
	}
	return l, nil
}

// Add inserts item unless its id is already present. It reports whether the list changed.
func (l *List) Add(ctx context.Context, item Item) bool {
	if l.Contains(item.ID) {
		return false
	}
	l.items = append(l.items, item)
	l.persist(ctx)
	return true
}

// Remove deletes id if present. It reports whether the list changed.
func (l *List) Remove(ctx context.Context, id int64) bool {
	for i, it := range l.items {
		if it.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			l.persist(ctx)
			return true
		}
	}
	return false
}

// Contains reports whether id is on the list.
func (l *List) Contains(id int64) bool {
	_, ok := l.Get(id)
	return ok
}

// Get returns the entry for id.
func (l *List) Get(id int64) (Item, bool) {
	for _, it := range l.items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

// Items returns a copy of the entries.
func (l *List) Items() []Item {
	out := make([]Item, len(l.items))
	copy(out, l.items)
	return out
}

// Clear removes every entry and deletes the durable record.
func (l *List) Clear(ctx context.Context) {
	l.items = nil
	if err := l.store.Delete(ctx, Key); err != nil {
		l.persistFailed(err)
	}
}

func (l *List) persist(ctx context.Context) {
	items := l.items
	if items == nil {
		items = []Item{}
	}
	if err := storage.SetJSON(ctx, l.store, Key, items); err != nil {
		l.persistFailed(err)
	}
}

func (l *List) persistFailed(err error) {
	obs.CountPersistFailure(Key)
	l.log.Warn().Err(err).Str("key", Key).Msg("wishlist persist failed")
}
