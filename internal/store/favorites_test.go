package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solestoreapp/solestore-client/internal/cache"
	"github.com/solestoreapp/solestore-client/internal/domain"
	"github.com/solestoreapp/solestore-client/internal/errors"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

func newFavoritesStore(t *testing.T, api *fakeAPI, opts ...FavoritesOption) (*FavoritesStore, *cache.Cache, *recordingTags) {
	t.Helper()
	c := openTestCache(t)
	tags := &recordingTags{}
	s := NewFavoritesStore(api, c, tags, logger.Discard(), opts...)
	t.Cleanup(s.StopSync)
	return s, c, tags
}

func favoriteEntry(shoeID int64) domain.FavoriteEntry {
	return domain.FavoriteEntry{
		ID:     shoeID * 10,
		ShoeID: shoeID,
		UserID: testUser,
		Shoe:   testShoe(shoeID, 100),
	}
}

func TestToggleFavorite_OptimisticFlip(t *testing.T) {
	api := &fakeAPI{
		toggleFavorite: func(int64, int64) (*domain.FavoritesResult, error) {
			return nil, errors.Unavailable("offline")
		},
	}
	s, _, _ := newFavoritesStore(t, api)

	// Failure path keeps the optimistic state visible.
	s.ToggleFavorite(context.Background(), 42, testUser)
	assert.True(t, s.IsFavorite(42))
	assert.Equal(t, 1, s.LikeCount(42))
	assert.Equal(t, domain.PendingFavorites{"42": true}, s.Pending())

	// Toggling again flips it right back.
	s.ToggleFavorite(context.Background(), 42, testUser)
	assert.False(t, s.IsFavorite(42))
	assert.Equal(t, 0, s.LikeCount(42))
	assert.Equal(t, domain.PendingFavorites{"42": false}, s.Pending())
}

func TestToggleFavorite_SuccessAppliesAuthoritativeResult(t *testing.T) {
	api := &fakeAPI{
		toggleFavorite: func(_, shoeID int64) (*domain.FavoritesResult, error) {
			return &domain.FavoritesResult{
				Favorites:  []domain.FavoriteEntry{favoriteEntry(shoeID)},
				LikeCounts: domain.LikeCounts{shoeID: 12},
			}, nil
		},
	}
	s, c, _ := newFavoritesStore(t, api)

	s.ToggleFavorite(context.Background(), 42, testUser)

	assert.True(t, s.IsFavorite(42))
	assert.Equal(t, 12, s.LikeCount(42), "authoritative count replaces the optimistic ±1")
	assert.Empty(t, s.Pending(), "confirmed toggles leave the queue")

	var snap domain.FavoritesSnapshot
	_, err := c.Get(cache.FavoritesKey(testUser), &snap)
	require.NoError(t, err)
	require.Len(t, snap.Favorites, 1)
	assert.Equal(t, int64(42), snap.Favorites[0].ShoeID)
}

func TestToggleFavorite_AnonymousIsInert(t *testing.T) {
	api := &fakeAPI{}
	s, _, _ := newFavoritesStore(t, api)

	s.ToggleFavorite(context.Background(), 42, 0)
	assert.False(t, s.IsFavorite(42))
	assert.Zero(t, api.callCount("ToggleFavorite"))
}

func TestQueueSync_CoalescesBurstIntoOneBatch(t *testing.T) {
	var batches []map[int64]bool
	api := &fakeAPI{
		toggleFavorite: func(int64, int64) (*domain.FavoritesResult, error) {
			return nil, errors.Unavailable("offline") // keep the queue populated
		},
		batchSync: func(_ int64, pending map[int64]bool) (*domain.FavoritesResult, error) {
			batches = append(batches, pending)
			return &domain.FavoritesResult{Favorites: []domain.FavoriteEntry{}, LikeCounts: domain.LikeCounts{}}, nil
		},
	}
	s, _, _ := newFavoritesStore(t, api, WithSyncWait(20*time.Millisecond))

	s.ToggleFavorite(context.Background(), 42, testUser)
	s.ToggleFavorite(context.Background(), 43, testUser)
	s.ToggleFavorite(context.Background(), 44, testUser)

	var pendings []<-chan struct{}
	for range 3 {
		pendings = append(pendings, s.QueueSync(testUser).Done())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, done := range pendings {
		select {
		case <-done:
		case <-ctx.Done():
			t.Fatal("batch sync never fired")
		}
	}

	require.Len(t, batches, 1, "a burst of queue calls collapses into one request")
	assert.Equal(t, map[int64]bool{42: true, 43: true, 44: true}, batches[0])
	assert.Empty(t, s.Pending())
}

func TestSyncFavorites_NoOpWhenQueueEmpty(t *testing.T) {
	api := &fakeAPI{}
	s, _, _ := newFavoritesStore(t, api)

	require.NoError(t, s.SyncFavorites(context.Background(), testUser))
	assert.Zero(t, api.callCount("BatchSync"))
}

func TestSyncFavorites_NoOpWithoutUser(t *testing.T) {
	api := &fakeAPI{}
	s, _, _ := newFavoritesStore(t, api)
	s.AddPendingFavorite(42, true)

	require.NoError(t, s.SyncFavorites(context.Background(), 0))
	assert.Zero(t, api.callCount("BatchSync"))
}

func TestSyncFavorites_FiltersMalformedPendingEntries(t *testing.T) {
	var got map[int64]bool
	api := &fakeAPI{
		batchSync: func(_ int64, pending map[int64]bool) (*domain.FavoritesResult, error) {
			got = pending
			return &domain.FavoritesResult{Favorites: []domain.FavoriteEntry{}, LikeCounts: domain.LikeCounts{}}, nil
		},
	}
	s, _, _ := newFavoritesStore(t, api)

	s.SetPending(domain.PendingFavorites{
		"abc": true,  // non-numeric key
		"5":   "yes", // non-boolean value
		"7":   false, // valid
	})

	require.NoError(t, s.SyncFavorites(context.Background(), testUser))
	assert.Equal(t, map[int64]bool{7: false}, got)
}

func TestSyncFavorites_RevalidatesUserAndShoeTags(t *testing.T) {
	api := &fakeAPI{}
	s, _, tags := newFavoritesStore(t, api)

	s.AddPendingFavorite(42, true)
	s.AddPendingFavorite(43, false)

	require.NoError(t, s.SyncFavorites(context.Background(), testUser))

	all := tags.all()
	assert.Contains(t, all, "favorites-7")
	assert.Contains(t, all, "shoe-42")
	assert.Contains(t, all, "shoe-43")
}

func TestSyncFavorites_FailureKeepsQueue(t *testing.T) {
	api := &fakeAPI{
		batchSync: func(int64, map[int64]bool) (*domain.FavoritesResult, error) {
			return nil, errors.Unavailable("offline")
		},
	}
	s, _, _ := newFavoritesStore(t, api)

	s.AddPendingFavorite(42, true)
	err := s.SyncFavorites(context.Background(), testUser)
	require.Error(t, err)
	assert.Equal(t, domain.PendingFavorites{"42": true}, s.Pending(),
		"unsent toggles survive for the next attempt")
}

func TestFilterPending(t *testing.T) {
	tests := []struct {
		name    string
		pending domain.PendingFavorites
		want    map[int64]bool
	}{
		{"nil", nil, map[int64]bool{}},
		{"all valid", domain.PendingFavorites{"1": true, "2": false}, map[int64]bool{1: true, 2: false}},
		{"mixed garbage", domain.PendingFavorites{"abc": true, "5": "yes", "7": false}, map[int64]bool{7: false}},
		{"numeric-ish keys", domain.PendingFavorites{"05": true, "1.5": true}, map[int64]bool{5: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterPending(tt.pending))
		})
	}
}

func TestLoadFavorites_FreshCacheShortCircuits(t *testing.T) {
	api := &fakeAPI{}
	s, c, _ := newFavoritesStore(t, api)

	snap := domain.FavoritesSnapshot{
		Favorites:  []domain.FavoriteEntry{favoriteEntry(42)},
		LikeCounts: domain.LikeCounts{42: 9},
		Timestamp:  time.Now(),
	}
	require.NoError(t, c.Put(cache.FavoritesKey(testUser), &snap))

	s.LoadFavorites(context.Background(), testUser, false)

	assert.True(t, s.IsFavorite(42))
	assert.Equal(t, 9, s.LikeCount(42))
	assert.Zero(t, api.callCount("FetchFavorites"))
}

func TestLoadFavorites_ForceBypassesCache(t *testing.T) {
	api := &fakeAPI{
		fetchFavorites: func(int64) ([]domain.FavoriteEntry, error) {
			return []domain.FavoriteEntry{favoriteEntry(43)}, nil
		},
	}
	s, c, _ := newFavoritesStore(t, api)

	require.NoError(t, c.Put(cache.FavoritesKey(testUser), &domain.FavoritesSnapshot{
		Favorites: []domain.FavoriteEntry{favoriteEntry(42)},
		Timestamp: time.Now(),
	}))

	s.LoadFavorites(context.Background(), testUser, true)

	assert.False(t, s.IsFavorite(42))
	assert.True(t, s.IsFavorite(43))
	assert.Equal(t, 1, api.callCount("FetchFavorites"))
}

func TestLoadFavorites_StaleCacheRefetches(t *testing.T) {
	api := &fakeAPI{
		fetchFavorites: func(int64) ([]domain.FavoriteEntry, error) {
			return []domain.FavoriteEntry{favoriteEntry(43)}, nil
		},
	}
	s, c, _ := newFavoritesStore(t, api)

	require.NoError(t, c.Put(cache.FavoritesKey(testUser), &domain.FavoritesSnapshot{
		Favorites: []domain.FavoriteEntry{favoriteEntry(42)},
		Timestamp: time.Now().Add(-DefaultFreshness - time.Minute),
	}))

	s.LoadFavorites(context.Background(), testUser, false)
	assert.True(t, s.IsFavorite(43))
}

func TestLoadFavorites_FetchFailureFallsBackToStaleCache(t *testing.T) {
	api := &fakeAPI{
		fetchFavorites: func(int64) ([]domain.FavoriteEntry, error) {
			return nil, errors.Unavailable("offline")
		},
	}
	s, c, _ := newFavoritesStore(t, api)

	require.NoError(t, c.Put(cache.FavoritesKey(testUser), &domain.FavoritesSnapshot{
		Favorites: []domain.FavoriteEntry{favoriteEntry(42)},
		Timestamp: time.Now().Add(-time.Hour), // stale, but better than nothing
	}))

	s.LoadFavorites(context.Background(), testUser, false)
	assert.True(t, s.IsFavorite(42))
}

func TestLoadFavorites_FetchFailureWithoutCacheResets(t *testing.T) {
	api := &fakeAPI{
		fetchFavorites: func(int64) ([]domain.FavoriteEntry, error) {
			return nil, errors.Unavailable("offline")
		},
	}
	s, _, _ := newFavoritesStore(t, api)
	s.SetFavorites([]domain.FavoriteEntry{favoriteEntry(42)})

	s.LoadFavorites(context.Background(), testUser, false)
	assert.Empty(t, s.Favorites())
}

func TestLoadFavorites_WithoutUserResets(t *testing.T) {
	api := &fakeAPI{}
	s, _, _ := newFavoritesStore(t, api)
	s.SetFavorites([]domain.FavoriteEntry{favoriteEntry(42)})
	s.AddPendingFavorite(42, true)

	s.LoadFavorites(context.Background(), 0, false)

	assert.Empty(t, s.Favorites())
	assert.Empty(t, s.Pending())
	assert.Zero(t, api.callCount("FetchFavorites"))
}

func TestClearFavorites_NoSpeculativeMutationOnFailure(t *testing.T) {
	api := &fakeAPI{
		toggleFavorite: func(_, shoeID int64) (*domain.FavoritesResult, error) {
			return &domain.FavoritesResult{
				Favorites:  []domain.FavoriteEntry{favoriteEntry(shoeID)},
				LikeCounts: domain.LikeCounts{shoeID: 1},
			}, nil
		},
		clearFavorites: func(int64) (*domain.FavoritesResult, error) {
			return nil, errors.Timeout("deadline exceeded")
		},
	}
	s, _, _ := newFavoritesStore(t, api)
	s.ToggleFavorite(context.Background(), 42, testUser)

	err := s.ClearFavorites(context.Background(), testUser)
	require.Error(t, err)
	assert.True(t, s.IsFavorite(42), "a failed bulk clear must not empty the visible list")
}

func TestClearFavorites_SuccessReconcilesAndRevalidates(t *testing.T) {
	api := &fakeAPI{
		toggleFavorite: func(_, shoeID int64) (*domain.FavoritesResult, error) {
			return &domain.FavoritesResult{
				Favorites:  []domain.FavoriteEntry{favoriteEntry(shoeID)},
				LikeCounts: domain.LikeCounts{shoeID: 1},
			}, nil
		},
		clearFavorites: func(int64) (*domain.FavoritesResult, error) {
			return &domain.FavoritesResult{
				Favorites:  []domain.FavoriteEntry{},
				LikeCounts: domain.LikeCounts{42: 0},
			}, nil
		},
	}
	s, c, tags := newFavoritesStore(t, api)
	s.ToggleFavorite(context.Background(), 42, testUser)

	require.NoError(t, s.ClearFavorites(context.Background(), testUser))

	assert.Empty(t, s.Favorites())
	assert.Equal(t, 0, s.LikeCount(42))
	all := tags.all()
	assert.Contains(t, all, "favorites-7")
	assert.Contains(t, all, "shoe-42")

	// The snapshot now records the empty set with a fresh timestamp, so a
	// restart inside the freshness window sees the cleared state.
	var snap domain.FavoritesSnapshot
	writtenAt, err := c.Get(cache.FavoritesKey(testUser), &snap)
	require.NoError(t, err)
	assert.Empty(t, snap.Favorites)
	assert.WithinDuration(t, time.Now(), writtenAt, 5*time.Second)
	assert.WithinDuration(t, time.Now(), snap.Timestamp, 5*time.Second)
}

func TestClearFavorites_BoundedDeadline(t *testing.T) {
	var sawDeadline bool
	api := &fakeAPI{}
	api.clearFavorites = func(int64) (*domain.FavoritesResult, error) {
		return &domain.FavoritesResult{Favorites: []domain.FavoriteEntry{}, LikeCounts: domain.LikeCounts{}}, nil
	}
	s, _, _ := newFavoritesStore(t, api, WithClearTimeout(time.Minute))

	// Wrap the hook to inspect the context the store passes down.
	inner := api.clearFavorites
	api.clearFavoritesCtx = func(ctx context.Context, userID int64) (*domain.FavoritesResult, error) {
		_, sawDeadline = ctx.Deadline()
		return inner(userID)
	}

	require.NoError(t, s.ClearFavorites(context.Background(), testUser))
	assert.True(t, sawDeadline, "bulk clear must carry a deadline")
}
