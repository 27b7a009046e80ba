// Package store implements the client-side state stores for cart and
// favorites: optimistic in-memory mutation, durable per-user snapshots, and
// reconciliation against the remote storefront as source of truth.
//
// Concurrency model: state is mutex-guarded and mutated before any network
// call is issued, so consumers see intent immediately. Responses replace
// state wholesale; when calls race, the last response to land wins the whole
// map. That lost-update window is an accepted tradeoff of the optimistic
// design, not a bug.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/solestoreapp/solestore-client/internal/cache"
	"github.com/solestoreapp/solestore-client/internal/client"
	"github.com/solestoreapp/solestore-client/internal/domain"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// DefaultFreshness is the window within which cached state is trusted without
// a network round trip.
const DefaultFreshness = 5 * time.Minute

// CartStore owns the user's cart lines: optimistic add/update/remove, the
// one-line-per-(shoe,size) invariant, and snapshot persistence.
type CartStore struct {
	mu          sync.Mutex
	items       []domain.CartLineItem
	lastFetched time.Time
	loading     bool
	cleared     bool

	api       client.API
	cache     *cache.Cache
	tags      client.TagInvalidator
	logger    *logger.Logger
	freshness time.Duration
	now       func() time.Time

	subMu   sync.Mutex
	subs    map[int]func()
	nextSub int
}

// CartOption configures a CartStore.
type CartOption func(*CartStore)

// WithCartFreshness overrides the freshness window.
func WithCartFreshness(d time.Duration) CartOption {
	return func(s *CartStore) { s.freshness = d }
}

// WithCartClock overrides the time source. Tests use this to cross the
// freshness boundary without sleeping.
func WithCartClock(now func() time.Time) CartOption {
	return func(s *CartStore) { s.now = now }
}

// NewCartStore creates a cart store backed by the given remote API, durable
// cache, and tag invalidator.
func NewCartStore(api client.API, c *cache.Cache, tags client.TagInvalidator, log *logger.Logger, opts ...CartOption) *CartStore {
	s := &CartStore{
		api:       api,
		cache:     c,
		tags:      tags,
		logger:    log,
		freshness: DefaultFreshness,
		now:       time.Now,
		subs:      make(map[int]func()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Items returns a copy of the current line items.
func (s *CartStore) Items() []domain.CartLineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartLineItem, len(s.items))
	copy(out, s.items)
	return out
}

// LastFetched returns when authoritative state was last loaded, zero if never.
func (s *CartStore) LastFetched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFetched
}

// IsLoading reports whether a load or mutation round trip is in flight.
func (s *CartStore) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// IsCleared reports whether the cart was intentionally emptied. A failed
// fetch resets items but leaves this false; failure is not a clear.
func (s *CartStore) IsCleared() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleared
}

// SetItems replaces the items wholesale and stamps the fetch time. With a
// user id it also signals the rendering layer that the user's cart tag is
// stale.
func (s *CartStore) SetItems(items []domain.CartLineItem, userID int64) {
	s.mu.Lock()
	s.items = items
	s.lastFetched = s.now()
	s.cleared = false
	s.mu.Unlock()

	if userID > 0 {
		s.tags.Revalidate(fmt.Sprintf("cart-%d", userID))
	}
}

// SetLoading sets the loading flag directly.
func (s *CartStore) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	s.mu.Unlock()
}

// Hydrate seeds in-memory state from the user's durable snapshot, if one
// exists and is still fresh. Called once at startup before any load; it never
// touches the network.
func (s *CartStore) Hydrate(userID int64) {
	if userID == 0 {
		return
	}

	var snap domain.CartSnapshot
	if _, err := s.cache.Get(cache.CartKey(userID), &snap); err != nil {
		return
	}
	if s.now().Sub(snap.LastFetched) >= s.freshness {
		return
	}

	s.mu.Lock()
	s.items = snap.Items
	s.lastFetched = snap.LastFetched
	s.cleared = false
	s.mu.Unlock()
	s.logger.Debug("cart hydrated from cache", "user_id", userID, "items", len(snap.Items))
}

// LoadCachedCart loads the authoritative cart unless in-memory state is still
// within the freshness window (and force is false). Fetch failures are
// absorbed: items reset to empty, cleared stays false, and the error is only
// logged.
func (s *CartStore) LoadCachedCart(ctx context.Context, userID int64, force bool) {
	s.mu.Lock()
	if !force && len(s.items) > 0 && !s.lastFetched.IsZero() && s.now().Sub(s.lastFetched) < s.freshness {
		s.mu.Unlock()
		return
	}
	s.loading = true
	s.mu.Unlock()
	defer s.SetLoading(false)

	items, err := s.api.FetchCart(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("failed to load cart")
		s.mu.Lock()
		s.items = nil
		s.lastFetched = time.Time{}
		s.cleared = false
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	s.items = items
	s.lastFetched = s.now()
	s.cleared = false
	s.mu.Unlock()

	if userID > 0 {
		s.persistSnapshot(userID)
	}
}

// AddToCart applies an optimistic add (incrementing an existing (shoe, size)
// line or appending a placeholder) and then persists it remotely. On success
// the server's authoritative list replaces local state; on failure the error
// is returned and the optimistic item stays visible - messaging is the UI's
// job, rollback is nobody's.
func (s *CartStore) AddToCart(ctx context.Context, shoeID int64, size int, userID int64) error {
	if userID == 0 {
		// Anonymous carts are out of scope; the affordance is shown but inert.
		return nil
	}

	s.SetLoading(true)
	defer s.SetLoading(false)

	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].ShoeID == shoeID && s.items[i].Size == size {
			s.items[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		now := s.now()
		s.items = append(s.items, domain.CartLineItem{
			ID:        -now.UnixMilli(), // placeholder until the server assigns one
			ShoeID:    shoeID,
			Size:      size,
			Quantity:  1,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	s.cleared = false
	s.mu.Unlock()

	items, err := s.api.AddCartItem(ctx, userID, shoeID, size, 1)
	if err != nil {
		s.logger.WithError(err).Error("add to cart failed", "shoe_id", shoeID, "size", size)
		return err
	}

	s.reconcile(items, userID)
	return nil
}

// RemoveFromCart deletes a single line item remotely, then locally. On
// failure the error is returned and the item remains present.
func (s *CartStore) RemoveFromCart(ctx context.Context, id, userID int64) error {
	if userID == 0 {
		return nil
	}

	s.SetLoading(true)
	defer s.SetLoading(false)

	if err := s.api.RemoveCartItem(ctx, userID, id); err != nil {
		s.logger.WithError(err).Error("remove from cart failed", "item_id", id)
		return err
	}

	s.mu.Lock()
	kept := s.items[:0]
	for _, item := range s.items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	s.items = kept
	s.lastFetched = s.now()
	s.cleared = false
	s.mu.Unlock()

	s.persistSnapshot(userID)
	s.tags.Revalidate(fmt.Sprintf("cart-%d", userID))
	return nil
}

// UpdateQuantity applies the quantity change locally first, then pushes it
// remotely when a user is present. A remote failure is logged and absorbed;
// the optimistic quantity is deliberately retained (stay-forward policy).
// Quantities below 1 are a no-op.
func (s *CartStore) UpdateQuantity(ctx context.Context, itemID int64, quantity int, userID int64) error {
	if quantity < 1 {
		return nil
	}

	s.mu.Lock()
	for i := range s.items {
		if s.items[i].ID == itemID {
			s.items[i].Quantity = quantity
			s.items[i].UpdatedAt = s.now()
			break
		}
	}
	s.cleared = false
	s.mu.Unlock()

	if userID == 0 {
		return nil
	}

	items, err := s.api.UpdateCartItem(ctx, userID, itemID, quantity)
	if err != nil {
		s.logger.WithError(err).Error("quantity update failed, keeping optimistic value",
			"item_id", itemID, "quantity", quantity)
		return nil
	}

	s.reconcile(items, userID)
	return nil
}

// ClearCart empties the cart remotely, then locally, deletes the user's
// durable snapshot, and notifies clear subscribers. On failure the error is
// returned and nothing local changes.
func (s *CartStore) ClearCart(ctx context.Context, userID int64) error {
	if userID == 0 {
		return nil
	}

	s.SetLoading(true)
	defer s.SetLoading(false)

	if err := s.api.ClearCart(ctx, userID); err != nil {
		s.logger.WithError(err).Error("clear cart failed")
		return err
	}

	s.mu.Lock()
	s.items = nil
	s.lastFetched = s.now()
	s.cleared = true
	s.mu.Unlock()

	if err := s.cache.Delete(cache.CartKey(userID)); err != nil {
		s.logger.WithError(err).Warn("failed to delete cart snapshot", "user_id", userID)
	}
	s.tags.Revalidate(fmt.Sprintf("cart-%d", userID))
	s.notifyCleared()
	return nil
}

// ResetCart is the logout path: purely local, wipes state and every user's
// cart snapshot, and notifies clear subscribers. No network.
func (s *CartStore) ResetCart() {
	s.mu.Lock()
	s.items = nil
	s.lastFetched = time.Time{}
	s.cleared = true
	s.mu.Unlock()

	if err := s.cache.DeletePrefix(cache.CartKeyPrefix); err != nil {
		s.logger.WithError(err).Warn("failed to wipe cart snapshots")
	}
	s.notifyCleared()
}

// SubscribeToCartClear registers a callback invoked synchronously whenever
// ClearCart or ResetCart completes. Returns an unsubscribe function.
func (s *CartStore) SubscribeToCartClear(callback func()) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = callback
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// reconcile replaces items with the server's authoritative list, persists the
// snapshot, and fires the cart tag.
func (s *CartStore) reconcile(items []domain.CartLineItem, userID int64) {
	s.mu.Lock()
	s.items = items
	s.lastFetched = s.now()
	s.cleared = false
	s.mu.Unlock()

	s.persistSnapshot(userID)
	s.tags.Revalidate(fmt.Sprintf("cart-%d", userID))
}

// persistSnapshot writes the current items to the user's durable cache entry.
func (s *CartStore) persistSnapshot(userID int64) {
	s.mu.Lock()
	snap := domain.CartSnapshot{
		Items:       append([]domain.CartLineItem(nil), s.items...),
		LastFetched: s.lastFetched,
	}
	s.mu.Unlock()

	if err := s.cache.Put(cache.CartKey(userID), &snap); err != nil {
		s.logger.WithError(err).Warn("failed to persist cart snapshot", "user_id", userID)
	}
}

// notifyCleared invokes every clear subscriber synchronously.
func (s *CartStore) notifyCleared() {
	s.subMu.Lock()
	callbacks := make([]func(), 0, len(s.subs))
	for _, cb := range s.subs {
		callbacks = append(callbacks, cb)
	}
	s.subMu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// TotalCount sums the quantities across line items. Derived by consumers,
// never stored.
func TotalCount(items []domain.CartLineItem) int {
	total := 0
	for i := range items {
		total += items[i].Quantity
	}
	return total
}

// TotalPrice sums quantity times price over items that carry a denormalized
// shoe snapshot. Items missing one contribute zero; price data being absent
// must never panic a badge render.
func TotalPrice(items []domain.CartLineItem) float64 {
	total := 0.0
	for i := range items {
		if items[i].Shoe != nil {
			total += float64(items[i].Quantity) * items[i].Shoe.Price
		}
	}
	return total
}
