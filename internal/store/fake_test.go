package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/solestoreapp/solestore-client/internal/cache"
	"github.com/solestoreapp/solestore-client/internal/domain"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// fakeAPI is a scriptable client.API. Unset hooks return empty success.
type fakeAPI struct {
	mu    sync.Mutex
	calls []string

	fetchCart      func(userID int64) ([]domain.CartLineItem, error)
	addCartItem    func(userID, shoeID int64, size, quantity int) ([]domain.CartLineItem, error)
	updateCartItem func(userID, itemID int64, quantity int) ([]domain.CartLineItem, error)
	removeCartItem func(userID, itemID int64) error
	clearCart      func(userID int64) error
	fetchFavorites func(userID int64) ([]domain.FavoriteEntry, error)
	toggleFavorite func(userID, shoeID int64) (*domain.FavoritesResult, error)
	batchSync      func(userID int64, pending map[int64]bool) (*domain.FavoritesResult, error)
	clearFavorites func(userID int64) (*domain.FavoritesResult, error)

	// clearFavoritesCtx takes precedence over clearFavorites when set; used
	// to inspect the context the store passes down.
	clearFavoritesCtx func(ctx context.Context, userID int64) (*domain.FavoritesResult, error)
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeAPI) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) FetchCart(_ context.Context, userID int64) ([]domain.CartLineItem, error) {
	f.record("FetchCart")
	if f.fetchCart != nil {
		return f.fetchCart(userID)
	}
	return nil, nil
}

func (f *fakeAPI) AddCartItem(_ context.Context, userID, shoeID int64, size, quantity int) ([]domain.CartLineItem, error) {
	f.record("AddCartItem")
	if f.addCartItem != nil {
		return f.addCartItem(userID, shoeID, size, quantity)
	}
	return nil, nil
}

func (f *fakeAPI) UpdateCartItem(_ context.Context, userID, itemID int64, quantity int) ([]domain.CartLineItem, error) {
	f.record("UpdateCartItem")
	if f.updateCartItem != nil {
		return f.updateCartItem(userID, itemID, quantity)
	}
	return nil, nil
}

func (f *fakeAPI) RemoveCartItem(_ context.Context, userID, itemID int64) error {
	f.record("RemoveCartItem")
	if f.removeCartItem != nil {
		return f.removeCartItem(userID, itemID)
	}
	return nil
}

func (f *fakeAPI) ClearCart(_ context.Context, userID int64) error {
	f.record("ClearCart")
	if f.clearCart != nil {
		return f.clearCart(userID)
	}
	return nil
}

func (f *fakeAPI) FetchFavorites(_ context.Context, userID int64) ([]domain.FavoriteEntry, error) {
	f.record("FetchFavorites")
	if f.fetchFavorites != nil {
		return f.fetchFavorites(userID)
	}
	return nil, nil
}

func (f *fakeAPI) ToggleFavorite(_ context.Context, userID, shoeID int64) (*domain.FavoritesResult, error) {
	f.record("ToggleFavorite")
	if f.toggleFavorite != nil {
		return f.toggleFavorite(userID, shoeID)
	}
	return &domain.FavoritesResult{Favorites: []domain.FavoriteEntry{}, LikeCounts: domain.LikeCounts{}}, nil
}

func (f *fakeAPI) BatchSync(_ context.Context, userID int64, pending map[int64]bool) (*domain.FavoritesResult, error) {
	f.record("BatchSync")
	if f.batchSync != nil {
		return f.batchSync(userID, pending)
	}
	return &domain.FavoritesResult{Favorites: []domain.FavoriteEntry{}, LikeCounts: domain.LikeCounts{}}, nil
}

func (f *fakeAPI) ClearFavorites(ctx context.Context, userID int64) (*domain.FavoritesResult, error) {
	f.record("ClearFavorites")
	if f.clearFavoritesCtx != nil {
		return f.clearFavoritesCtx(ctx, userID)
	}
	if f.clearFavorites != nil {
		return f.clearFavorites(userID)
	}
	return &domain.FavoritesResult{Favorites: []domain.FavoriteEntry{}, LikeCounts: domain.LikeCounts{}}, nil
}

// recordingTags collects revalidated tags.
type recordingTags struct {
	mu   sync.Mutex
	tags []string
}

func (r *recordingTags) Revalidate(tag string) {
	r.mu.Lock()
	r.tags = append(r.tags, tag)
	r.mu.Unlock()
}

func (r *recordingTags) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tags...)
}

func openTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testShoe(id int64, price float64) *domain.Shoe {
	return &domain.Shoe{
		ID:    id,
		Price: price,
		Model: &domain.Model{
			Name:  "Runner",
			Brand: &domain.Brand{Name: "Solestore"},
		},
	}
}
