package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/solestoreapp/solestore-client/internal/cache"
	"github.com/solestoreapp/solestore-client/internal/client"
	"github.com/solestoreapp/solestore-client/internal/debounce"
	"github.com/solestoreapp/solestore-client/internal/domain"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// DefaultClearTimeout bounds the bulk clear round trip. Per-item toggles ride
// on transport defaults; a hung bulk destructive call must not stall the UI.
const DefaultClearTimeout = 5 * time.Second

// DefaultSyncWait is the quiescence window for the batched favorites sync.
const DefaultSyncWait = time.Second

// FavoritesStore owns the favorite-shoe set, global like counters, and the
// pending toggle queue. Toggles mutate state optimistically and fire a
// per-item call for near-real-time counts; the debounced batch path exists to
// reconcile a burst of toggles in one network exchange.
type FavoritesStore struct {
	mu         sync.Mutex
	favorites  []domain.FavoriteEntry
	likeCounts domain.LikeCounts
	pending    domain.PendingFavorites

	api          client.API
	cache        *cache.Cache
	tags         client.TagInvalidator
	logger       *logger.Logger
	freshness    time.Duration
	clearTimeout time.Duration
	now          func() time.Time

	// syncWaitOverride holds a WithSyncWait value until the debouncer is
	// built at the end of construction.
	syncWaitOverride time.Duration

	syncer *debounce.Debouncer[int64, struct{}]
}

// FavoritesOption configures a FavoritesStore.
type FavoritesOption func(*FavoritesStore)

// WithFavoritesFreshness overrides the snapshot freshness window.
func WithFavoritesFreshness(d time.Duration) FavoritesOption {
	return func(s *FavoritesStore) { s.freshness = d }
}

// WithClearTimeout overrides the bulk clear deadline.
func WithClearTimeout(d time.Duration) FavoritesOption {
	return func(s *FavoritesStore) { s.clearTimeout = d }
}

// WithSyncWait overrides the batch sync quiescence window.
func WithSyncWait(d time.Duration) FavoritesOption {
	return func(s *FavoritesStore) { s.syncWaitOverride = d }
}

// WithFavoritesClock overrides the time source for tests.
func WithFavoritesClock(now func() time.Time) FavoritesOption {
	return func(s *FavoritesStore) { s.now = now }
}

// NewFavoritesStore creates a favorites store backed by the given remote API,
// durable cache, and tag invalidator.
func NewFavoritesStore(api client.API, c *cache.Cache, tags client.TagInvalidator, log *logger.Logger, opts ...FavoritesOption) *FavoritesStore {
	s := &FavoritesStore{
		likeCounts:   make(domain.LikeCounts),
		pending:      make(domain.PendingFavorites),
		api:          api,
		cache:        c,
		tags:         tags,
		logger:       log,
		freshness:    DefaultFreshness,
		clearTimeout: DefaultClearTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	wait := DefaultSyncWait
	if s.syncWaitOverride > 0 {
		wait = s.syncWaitOverride
	}
	s.syncer = debounce.New(wait, func(ctx context.Context, userID int64) (struct{}, error) {
		return struct{}{}, s.SyncFavorites(ctx, userID)
	})

	return s
}

// Favorites returns a copy of the current favorite entries.
func (s *FavoritesStore) Favorites() []domain.FavoriteEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.FavoriteEntry, len(s.favorites))
	copy(out, s.favorites)
	return out
}

// IsFavorite reports whether the shoe is currently in the favorite set.
func (s *FavoritesStore) IsFavorite(shoeID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isFavoriteLocked(shoeID)
}

// LikeCount returns the global like counter for the shoe, zero if unknown.
func (s *FavoritesStore) LikeCount(shoeID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.likeCounts[shoeID]
}

// Pending returns a copy of the pending toggle queue.
func (s *FavoritesStore) Pending() domain.PendingFavorites {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(domain.PendingFavorites, len(s.pending))
	for k, v := range s.pending {
		out[k] = v
	}
	return out
}

// SetFavorites replaces the favorite entries wholesale.
func (s *FavoritesStore) SetFavorites(favorites []domain.FavoriteEntry) {
	s.mu.Lock()
	s.favorites = favorites
	s.mu.Unlock()
}

// SetLikeCount sets the counter for one shoe.
func (s *FavoritesStore) SetLikeCount(shoeID int64, count int) {
	s.mu.Lock()
	s.likeCounts[shoeID] = count
	s.mu.Unlock()
}

// AddPendingFavorite records the desired end state for one shoe in the
// pending queue.
func (s *FavoritesStore) AddPendingFavorite(shoeID int64, isFavorite bool) {
	s.mu.Lock()
	s.pending[strconv.FormatInt(shoeID, 10)] = isFavorite
	s.mu.Unlock()
}

// SetPending replaces the pending queue wholesale. Low-level; used by
// hydration paths and tests.
func (s *FavoritesStore) SetPending(pending domain.PendingFavorites) {
	s.mu.Lock()
	if pending == nil {
		pending = make(domain.PendingFavorites)
	}
	s.pending = pending
	s.mu.Unlock()
}

// LoadFavorites loads the user's favorites. Without a user everything resets
// to empty. A fresh, structurally valid snapshot short-circuits the network
// (unless force is set). Fetch failures fall back to the snapshot even when
// stale, then to empty; they are logged, never surfaced.
func (s *FavoritesStore) LoadFavorites(ctx context.Context, userID int64, force bool) {
	if userID == 0 {
		s.logger.Warn("loading favorites without a user, resetting state")
		s.reset()
		return
	}

	key := cache.FavoritesKey(userID)
	var snap domain.FavoritesSnapshot
	_, cacheErr := s.cache.Get(key, &snap)
	cached := cacheErr == nil && s.cache.ValidFavorites(&snap)

	if cached && !force && s.now().Sub(snap.Timestamp) < s.freshness {
		s.logger.Debug("favorites loaded from cache", "user_id", userID)
		s.hydrate(&snap)
		return
	}

	favorites, err := s.api.FetchFavorites(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("failed to load favorites", "user_id", userID)
		if cached {
			s.logger.Warn("falling back to cached favorites", "user_id", userID)
			s.hydrate(&snap)
			return
		}
		s.reset()
		return
	}

	s.mu.Lock()
	s.favorites = favorites
	s.likeCounts = make(domain.LikeCounts)
	s.pending = make(domain.PendingFavorites)
	s.mu.Unlock()

	s.persistSnapshot(userID)
	s.logger.Debug("favorites loaded from API", "user_id", userID, "count", len(favorites))
}

// ToggleFavorite flips membership for the shoe: optimistic flip, ±1 on the
// like counter, desired state recorded in the pending queue, then a
// single-item remote call. Success reconciles against the authoritative
// response and clears the queue; failure is logged and the optimistic state
// stays (stay-forward policy).
func (s *FavoritesStore) ToggleFavorite(ctx context.Context, shoeID, userID int64) {
	if userID == 0 {
		return
	}

	s.mu.Lock()
	wasFavorite := s.isFavoriteLocked(shoeID)
	if wasFavorite {
		kept := s.favorites[:0]
		for _, fav := range s.favorites {
			if fav.ShoeID != shoeID {
				kept = append(kept, fav)
			}
		}
		s.favorites = kept
		s.likeCounts[shoeID]--
	} else {
		s.favorites = append(s.favorites, domain.FavoriteEntry{
			ID:     shoeID, // synthetic until the server confirms
			ShoeID: shoeID,
			UserID: userID,
		})
		s.likeCounts[shoeID]++
	}
	s.pending[strconv.FormatInt(shoeID, 10)] = !wasFavorite
	s.mu.Unlock()

	result, err := s.api.ToggleFavorite(ctx, userID, shoeID)
	if err != nil {
		s.logger.WithError(err).Error("toggle sync failed, keeping optimistic state",
			"shoe_id", shoeID, "user_id", userID)
		return
	}

	s.applyResult(result)
	s.persistSnapshot(userID)
}

// QueueSync schedules a batched sync one quiescence window after the last
// call. Many rapid toggles collapse into a single network exchange.
func (s *FavoritesStore) QueueSync(userID int64) *debounce.Pending[struct{}] {
	return s.syncer.Trigger(userID)
}

// FlushSync runs any scheduled batch sync immediately. Call before the
// process exits; best effort, like a page-unload handler.
func (s *FavoritesStore) FlushSync(ctx context.Context) {
	if p := s.syncer.Flush(); p != nil {
		_, _ = p.Wait(ctx)
	}
}

// StopSync cancels any scheduled batch sync.
func (s *FavoritesStore) StopSync() {
	s.syncer.Stop()
}

// SyncFavorites sends the pending queue in one batched request. A guaranteed
// no-op with no user or an empty queue, so repeated debounced firings are
// harmless. Entries that are not a numeric shoe id with a boolean desired
// state are filtered out rather than aborting the batch; the server
// recomputes per-shoe deltas, so resending an already-applied state is safe.
func (s *FavoritesStore) SyncFavorites(ctx context.Context, userID int64) error {
	s.mu.Lock()
	if userID == 0 || len(s.pending) == 0 {
		s.mu.Unlock()
		s.logger.Debug("favorites sync skipped, nothing pending")
		return nil
	}
	pending := make(domain.PendingFavorites, len(s.pending))
	for k, v := range s.pending {
		pending[k] = v
	}
	s.mu.Unlock()

	valid := FilterPending(pending)
	s.logger.Debug("syncing favorites batch", "user_id", userID, "pending", len(valid))

	result, err := s.api.BatchSync(ctx, userID, valid)
	if err != nil {
		s.logger.WithError(err).Error("batch sync failed", "user_id", userID)
		return err
	}

	s.applyResult(result)
	s.persistSnapshot(userID)

	s.tags.Revalidate(fmt.Sprintf("favorites-%d", userID))
	for shoeID := range valid {
		s.tags.Revalidate(fmt.Sprintf("shoe-%d", shoeID))
	}
	return nil
}

// ClearFavorites removes every favorite remotely under a bounded deadline.
// Unlike toggle there is no speculative local mutation: a failed bulk clear
// must not silently empty the visible list. Success reconciles, refreshes the
// snapshot, and invalidates the user tag plus each previously favorited
// shoe's tag.
func (s *FavoritesStore) ClearFavorites(ctx context.Context, userID int64) error {
	if userID == 0 {
		return nil
	}

	s.mu.Lock()
	shoeIDs := make([]int64, 0, len(s.favorites))
	for _, fav := range s.favorites {
		shoeIDs = append(shoeIDs, fav.ShoeID)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.clearTimeout)
	defer cancel()

	result, err := s.api.ClearFavorites(ctx, userID)
	if err != nil {
		s.logger.WithError(err).Error("clear favorites failed", "user_id", userID)
		return err
	}

	s.applyResult(result)
	s.persistSnapshot(userID)

	s.tags.Revalidate(fmt.Sprintf("favorites-%d", userID))
	for _, shoeID := range shoeIDs {
		s.tags.Revalidate(fmt.Sprintf("shoe-%d", shoeID))
	}
	return nil
}

// FilterPending keeps only entries whose key parses as a shoe id and whose
// value is a boolean. Anything else came in through a corrupt snapshot or a
// malformed setter and is dropped, not fatal.
func FilterPending(pending domain.PendingFavorites) map[int64]bool {
	valid := make(map[int64]bool, len(pending))
	for key, value := range pending {
		shoeID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		desired, ok := value.(bool)
		if !ok {
			continue
		}
		valid[shoeID] = desired
	}
	return valid
}

// isFavoriteLocked reports membership; callers hold s.mu.
func (s *FavoritesStore) isFavoriteLocked(shoeID int64) bool {
	for i := range s.favorites {
		if s.favorites[i].ShoeID == shoeID {
			return true
		}
	}
	return false
}

// hydrate installs a snapshot's state, resetting the pending queue.
func (s *FavoritesStore) hydrate(snap *domain.FavoritesSnapshot) {
	s.mu.Lock()
	s.favorites = snap.Favorites
	if snap.LikeCounts != nil {
		s.likeCounts = snap.LikeCounts
	} else {
		s.likeCounts = make(domain.LikeCounts)
	}
	s.pending = make(domain.PendingFavorites)
	s.mu.Unlock()
}

// applyResult replaces favorites, merges like counts, and clears the queue.
func (s *FavoritesStore) applyResult(result *domain.FavoritesResult) {
	s.mu.Lock()
	s.favorites = result.Favorites
	for shoeID, count := range result.LikeCounts {
		s.likeCounts[shoeID] = count
	}
	s.pending = make(domain.PendingFavorites)
	s.mu.Unlock()
}

// reset empties all three state maps.
func (s *FavoritesStore) reset() {
	s.mu.Lock()
	s.favorites = nil
	s.likeCounts = make(domain.LikeCounts)
	s.pending = make(domain.PendingFavorites)
	s.mu.Unlock()
}

// persistSnapshot writes the current favorites state to the user's durable
// cache entry with a fresh timestamp.
func (s *FavoritesStore) persistSnapshot(userID int64) {
	s.mu.Lock()
	snap := domain.FavoritesSnapshot{
		Favorites:  append([]domain.FavoriteEntry(nil), s.favorites...),
		LikeCounts: make(domain.LikeCounts, len(s.likeCounts)),
		Timestamp:  s.now(),
	}
	for k, v := range s.likeCounts {
		snap.LikeCounts[k] = v
	}
	s.mu.Unlock()

	if err := s.cache.Put(cache.FavoritesKey(userID), &snap); err != nil {
		s.logger.WithError(err).Warn("failed to persist favorites snapshot", "user_id", userID)
	}
}
