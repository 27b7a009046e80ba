// Package client implements the thin REST contract the stores use to talk to
// the remote storefront: cart and favorites endpoints plus the fire-and-forget
// cache revalidation signal. The remote store is the source of truth; every
// mutating call returns the full authoritative state, not a delta.
package client

import (
	"context"

	"github.com/solestoreapp/solestore-client/internal/domain"
)

// API is the remote storefront contract. Implementations must preserve the
// wire shapes exactly; mutating cart calls return the full authoritative item
// list and favorites calls return the full favorites/likeCounts pair.
type API interface {
	// FetchCart returns the authoritative cart for the session user.
	FetchCart(ctx context.Context, userID int64) ([]domain.CartLineItem, error)

	// AddCartItem adds quantity of (shoeID, size) to the cart. The server
	// enforces the one-line-per-(shoe,size) invariant.
	AddCartItem(ctx context.Context, userID, shoeID int64, size, quantity int) ([]domain.CartLineItem, error)

	// UpdateCartItem sets the quantity of an existing line item.
	UpdateCartItem(ctx context.Context, userID, itemID int64, quantity int) ([]domain.CartLineItem, error)

	// RemoveCartItem deletes a single line item by server id.
	RemoveCartItem(ctx context.Context, userID, itemID int64) error

	// ClearCart deletes every line item in the user's cart.
	ClearCart(ctx context.Context, userID int64) error

	// FetchFavorites returns the user's favorite entries (bare array on
	// the wire, no likeCounts).
	FetchFavorites(ctx context.Context, userID int64) ([]domain.FavoriteEntry, error)

	// ToggleFavorite flips membership of one shoe and returns the
	// authoritative favorites plus recomputed like counts.
	ToggleFavorite(ctx context.Context, userID, shoeID int64) (*domain.FavoritesResult, error)

	// BatchSync sends a map of desired end states in one round trip. The
	// server recomputes, per shoe, whether the desired state differs from
	// persisted membership and only then creates or deletes; callers must
	// not assume their optimistic view matches the server's pre-sync view.
	BatchSync(ctx context.Context, userID int64, pending map[int64]bool) (*domain.FavoritesResult, error)

	// ClearFavorites removes every favorite for the user.
	ClearFavorites(ctx context.Context, userID int64) (*domain.FavoritesResult, error)
}

// TagInvalidator signals the rendering layer that cached pages for a tag are
// out of date. Best effort: failures are logged, never surfaced.
type TagInvalidator interface {
	Revalidate(tag string)
}

// NoopInvalidator discards revalidation signals. Used in tests.
type NoopInvalidator struct{}

// Revalidate implements TagInvalidator as a no-op.
func (NoopInvalidator) Revalidate(string) {}
