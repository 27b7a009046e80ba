package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solestoreapp/solestore-client/internal/domain"
	"github.com/solestoreapp/solestore-client/internal/errors"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func validShoe(id int64) *domain.Shoe {
	return &domain.Shoe{
		ID:    id,
		Price: 120,
		Model: &domain.Model{
			Name:  "Runner",
			Brand: &domain.Brand{Name: "Solestore"},
		},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := openTestCache(t)

	snap := domain.CartSnapshot{
		Items: []domain.CartLineItem{
			{ID: 1, ShoeID: 42, Size: 10, Quantity: 2, Shoe: validShoe(42)},
		},
		LastFetched: time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, c.Put(CartKey(7), &snap))

	var got domain.CartSnapshot
	writtenAt, err := c.Get(CartKey(7), &got)
	require.NoError(t, err)
	assert.Equal(t, snap.Items, got.Items)
	assert.WithinDuration(t, time.Now(), writtenAt, 5*time.Second)
}

func TestGet_Miss(t *testing.T) {
	c := openTestCache(t)

	var got domain.CartSnapshot
	_, err := c.Get(CartKey(999), &got)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestPut_OverwritesExisting(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Put("cart_1", &domain.CartSnapshot{Items: []domain.CartLineItem{{ID: 1}}}))
	require.NoError(t, c.Put("cart_1", &domain.CartSnapshot{Items: []domain.CartLineItem{{ID: 2}, {ID: 3}}}))

	var got domain.CartSnapshot
	_, err := c.Get("cart_1", &got)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
}

func TestDelete(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Put(FavoritesKey(7), &domain.FavoritesSnapshot{Timestamp: time.Now()}))
	require.NoError(t, c.Delete(FavoritesKey(7)))

	var got domain.FavoritesSnapshot
	_, err := c.Get(FavoritesKey(7), &got)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestDeletePrefix_RemovesOnlyMatchingFamily(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Put(CartKey(1), &domain.CartSnapshot{}))
	require.NoError(t, c.Put(CartKey(2), &domain.CartSnapshot{}))
	require.NoError(t, c.Put(FavoritesKey(1), &domain.FavoritesSnapshot{Timestamp: time.Now()}))

	require.NoError(t, c.DeletePrefix(CartKeyPrefix))

	var cart domain.CartSnapshot
	_, err := c.Get(CartKey(1), &cart)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	_, err = c.Get(CartKey(2), &cart)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	var favs domain.FavoritesSnapshot
	_, err = c.Get(FavoritesKey(1), &favs)
	assert.NoError(t, err)
}

func TestPut_TouchesMarkerWithWriterID(t *testing.T) {
	c := openTestCache(t)

	require.NoError(t, c.Put(FavoritesKey(7), &domain.FavoritesSnapshot{Timestamp: time.Now()}))

	content, err := os.ReadFile(filepath.Join(c.MarkerDir(), FavoritesKey(7)))
	require.NoError(t, err)
	fields := strings.Fields(string(content))
	require.Len(t, fields, 2)
	assert.Equal(t, c.WriterID(), fields[0])
}

func TestValidFavorites(t *testing.T) {
	c := openTestCache(t)

	tests := []struct {
		name string
		snap domain.FavoritesSnapshot
		want bool
	}{
		{
			name: "empty is valid",
			snap: domain.FavoritesSnapshot{},
			want: true,
		},
		{
			name: "complete entry",
			snap: domain.FavoritesSnapshot{
				Favorites: []domain.FavoriteEntry{{ID: 1, ShoeID: 42, Shoe: validShoe(42)}},
			},
			want: true,
		},
		{
			name: "missing shoe",
			snap: domain.FavoritesSnapshot{
				Favorites: []domain.FavoriteEntry{{ID: 1, ShoeID: 42}},
			},
			want: false,
		},
		{
			name: "missing brand name",
			snap: domain.FavoritesSnapshot{
				Favorites: []domain.FavoriteEntry{{
					ID: 1, ShoeID: 42,
					Shoe: &domain.Shoe{ID: 42, Model: &domain.Model{Name: "Runner", Brand: &domain.Brand{}}},
				}},
			},
			want: false,
		},
		{
			name: "missing model",
			snap: domain.FavoritesSnapshot{
				Favorites: []domain.FavoriteEntry{{ID: 1, ShoeID: 42, Shoe: &domain.Shoe{ID: 42}}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.ValidFavorites(&tt.snap))
		})
	}
}

func TestOpen_SweepsInvalidFavorites(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir, logger.Discard())
	require.NoError(t, err)

	// One structurally sound snapshot and one missing its shoe data.
	require.NoError(t, c.Put(FavoritesKey(1), &domain.FavoritesSnapshot{
		Favorites: []domain.FavoriteEntry{{ID: 1, ShoeID: 42, Shoe: validShoe(42)}},
		Timestamp: time.Now(),
	}))
	require.NoError(t, c.Put(FavoritesKey(2), &domain.FavoritesSnapshot{
		Favorites: []domain.FavoriteEntry{{ID: 2, ShoeID: 43}},
		Timestamp: time.Now(),
	}))
	require.NoError(t, c.Close())

	// Reopening runs the sweep.
	c2, err := Open(dir, logger.Discard())
	require.NoError(t, err)
	defer c2.Close()

	var snap domain.FavoritesSnapshot
	_, err = c2.Get(FavoritesKey(1), &snap)
	assert.NoError(t, err)
	_, err = c2.Get(FavoritesKey(2), &snap)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestGet_UnparseableEntryIsDropped(t *testing.T) {
	c := openTestCache(t)

	// A cart snapshot read back as a favorites snapshot with mismatched
	// field types behaves like corruption: dropped, reported as a miss.
	_, err := c.db.Exec(`INSERT INTO snapshots (key, payload, updated_at) VALUES (?, ?, ?)`,
		CartKey(5), []byte("{not json"), time.Now().UnixMilli())
	require.NoError(t, err)

	var got domain.CartSnapshot
	_, err = c.Get(CartKey(5), &got)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// The corrupt row is gone.
	var count int
	require.NoError(t, c.db.QueryRow(`SELECT COUNT(*) FROM snapshots WHERE key = ?`, CartKey(5)).Scan(&count))
	assert.Zero(t, count)
}
