// Package backend implements the storefront's server-side source of truth for
// carts and favorites over BadgerDB. It exists so the client has a faithful
// collaborator to develop and test against; production deployments talk to
// the real storefront instead.
//
// The batch endpoint's contract lives here: for every (shoeId, desired) pair
// the backend recomputes whether the desired state differs from persisted
// membership and only then creates or deletes, so replaying an
// already-applied state is a no-op and like counts never drift.
package backend

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/solestoreapp/solestore-client/internal/domain"
	"github.com/solestoreapp/solestore-client/internal/errors"
	"github.com/solestoreapp/solestore-client/internal/logger"
)

// Key layout. Cart items and favorites are grouped per user; like counts are
// global per shoe.
const (
	cartPrefix  = "cart:"
	favPrefix   = "fav:"
	likesPrefix = "likes:"
	shoePrefix  = "shoe:"
	seqKey      = "seq:ids"
)

// Backend wraps a Badger database holding carts, favorites, and like counts.
type Backend struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *logger.Logger
}

// Open opens (creating if needed) the backend database at path.
func Open(path string, log *logger.Logger) (*Backend, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil      // Disable Badger's internal logging
	opts.SyncWrites = true // Survive crashes without replaying client syncs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open backend database: %w", err)
	}

	seq, err := db.GetSequence([]byte(seqKey), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open id sequence: %w", err)
	}

	return &Backend{db: db, seq: seq, logger: log}, nil
}

// Close releases the sequence and database.
func (b *Backend) Close() error {
	if err := b.seq.Release(); err != nil {
		b.logger.WithError(err).Warn("failed to release id sequence")
	}
	return b.db.Close()
}

// nextID returns a fresh positive entity id.
func (b *Backend) nextID() (int64, error) {
	n, err := b.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id: %w", err)
	}
	return int64(n) + 1, nil
}

func cartKey(userID, itemID int64) []byte {
	return fmt.Appendf(nil, "%s%d:%d", cartPrefix, userID, itemID)
}

func cartUserPrefix(userID int64) []byte {
	return fmt.Appendf(nil, "%s%d:", cartPrefix, userID)
}

func favKey(userID, shoeID int64) []byte {
	return fmt.Appendf(nil, "%s%d:%d", favPrefix, userID, shoeID)
}

func favUserPrefix(userID int64) []byte {
	return fmt.Appendf(nil, "%s%d:", favPrefix, userID)
}

func likesKey(shoeID int64) []byte {
	return fmt.Appendf(nil, "%s%d", likesPrefix, shoeID)
}

func shoeKey(shoeID int64) []byte {
	return fmt.Appendf(nil, "%s%d", shoePrefix, shoeID)
}

// PutShoe stores a catalog entry used to denormalize snapshots onto cart
// items and favorites. Mostly for seeding and tests; unknown shoes get a
// generated placeholder entry.
func (b *Backend) PutShoe(ctx context.Context, shoe *domain.Shoe) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(shoe)
	if err != nil {
		return fmt.Errorf("failed to marshal shoe: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(shoeKey(shoe.ID), data)
	})
}

// shoeFor resolves the catalog entry for shoeID within txn, generating a
// deterministic placeholder when the catalog has no entry.
func (b *Backend) shoeFor(txn *badger.Txn, shoeID int64) *domain.Shoe {
	item, err := txn.Get(shoeKey(shoeID))
	if err == nil {
		var shoe domain.Shoe
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &shoe)
		}); err == nil {
			return &shoe
		}
	}
	return &domain.Shoe{
		ID:    shoeID,
		Price: float64(50 + shoeID%200),
		Model: &domain.Model{
			Name:  fmt.Sprintf("Model %d", shoeID),
			Brand: &domain.Brand{Name: "Solestore"},
		},
	}
}

// Cart returns the user's line items ordered by id.
func (b *Backend) Cart(ctx context.Context, userID int64) ([]domain.CartLineItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var items []domain.CartLineItem
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		items, err = b.cartItems(txn, userID)
		return err
	})
	return items, err
}

// cartItems collects the user's line items within txn.
func (b *Backend) cartItems(txn *badger.Txn, userID int64) ([]domain.CartLineItem, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = cartUserPrefix(userID)
	it := txn.NewIterator(opts)
	defer it.Close()

	var items []domain.CartLineItem
	for it.Rewind(); it.Valid(); it.Next() {
		var line domain.CartLineItem
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &line)
		}); err != nil {
			return nil, err
		}
		items = append(items, line)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// AddCartItem adds quantity of (shoeID, size), merging into an existing line
// per the uniqueness invariant, and returns the full cart.
func (b *Backend) AddCartItem(ctx context.Context, userID, shoeID int64, size, quantity int) ([]domain.CartLineItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, errors.Validation("quantity must be at least 1")
	}

	var items []domain.CartLineItem
	err := b.db.Update(func(txn *badger.Txn) error {
		existing, err := b.cartItems(txn, userID)
		if err != nil {
			return err
		}

		now := time.Now()
		merged := false
		for i := range existing {
			if existing[i].ShoeID == shoeID && existing[i].Size == size {
				existing[i].Quantity += quantity
				existing[i].UpdatedAt = now
				if err := b.putCartItem(txn, userID, &existing[i]); err != nil {
					return err
				}
				merged = true
				break
			}
		}
		if !merged {
			id, err := b.nextID()
			if err != nil {
				return err
			}
			line := domain.CartLineItem{
				ID:        id,
				CartID:    userID,
				ShoeID:    shoeID,
				Size:      size,
				Quantity:  quantity,
				CreatedAt: now,
				UpdatedAt: now,
				Shoe:      b.shoeFor(txn, shoeID),
			}
			if err := b.putCartItem(txn, userID, &line); err != nil {
				return err
			}
		}

		items, err = b.cartItems(txn, userID)
		return err
	})
	return items, err
}

// UpdateCartItem sets the quantity of one line item and returns the full cart.
func (b *Backend) UpdateCartItem(ctx context.Context, userID, itemID int64, quantity int) ([]domain.CartLineItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, errors.Validation("quantity must be at least 1")
	}

	var items []domain.CartLineItem
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(cartKey(userID, itemID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.NotFoundf("cart item %d not found", itemID)
		}
		if err != nil {
			return err
		}

		var line domain.CartLineItem
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &line)
		}); err != nil {
			return err
		}

		line.Quantity = quantity
		line.UpdatedAt = time.Now()
		if err := b.putCartItem(txn, userID, &line); err != nil {
			return err
		}

		items, err = b.cartItems(txn, userID)
		return err
	})
	return items, err
}

// RemoveCartItem deletes one line item.
func (b *Backend) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		key := cartKey(userID, itemID)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return errors.NotFoundf("cart item %d not found", itemID)
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// ClearCart deletes every line item in the user's cart.
func (b *Backend) ClearCart(ctx context.Context, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return b.db.Update(func(txn *badger.Txn) error {
		items, err := b.cartItems(txn, userID)
		if err != nil {
			return err
		}
		for i := range items {
			if err := txn.Delete(cartKey(userID, items[i].ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

// putCartItem writes one line item within txn.
func (b *Backend) putCartItem(txn *badger.Txn, userID int64, line *domain.CartLineItem) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to marshal cart item: %w", err)
	}
	return txn.Set(cartKey(userID, line.ID), data)
}

// Favorites returns the user's favorite entries ordered by id.
func (b *Backend) Favorites(ctx context.Context, userID int64) ([]domain.FavoriteEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var favorites []domain.FavoriteEntry
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		favorites, err = b.favoriteEntries(txn, userID)
		return err
	})
	return favorites, err
}

// favoriteEntries collects the user's favorites within txn.
func (b *Backend) favoriteEntries(txn *badger.Txn, userID int64) ([]domain.FavoriteEntry, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = favUserPrefix(userID)
	it := txn.NewIterator(opts)
	defer it.Close()

	var favorites []domain.FavoriteEntry
	for it.Rewind(); it.Valid(); it.Next() {
		var entry domain.FavoriteEntry
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return nil, err
		}
		favorites = append(favorites, entry)
	}
	sort.Slice(favorites, func(i, j int) bool { return favorites[i].ID < favorites[j].ID })
	return favorites, nil
}

// Toggle flips membership of one shoe and returns the authoritative
// favorites plus the affected like counts.
func (b *Backend) Toggle(ctx context.Context, userID, shoeID int64) (*domain.FavoritesResult, error) {
	return b.apply(ctx, userID, func(txn *badger.Txn, current map[int64]bool) (map[int64]bool, error) {
		return map[int64]bool{shoeID: !current[shoeID]}, nil
	})
}

// ApplyBatch applies a map of desired end states. Entries already matching
// persisted membership are skipped; only actual transitions touch storage or
// like counts.
func (b *Backend) ApplyBatch(ctx context.Context, userID int64, desired map[int64]bool) (*domain.FavoritesResult, error) {
	return b.apply(ctx, userID, func(_ *badger.Txn, _ map[int64]bool) (map[int64]bool, error) {
		return desired, nil
	})
}

// ClearAll removes every favorite for the user.
func (b *Backend) ClearAll(ctx context.Context, userID int64) (*domain.FavoritesResult, error) {
	return b.apply(ctx, userID, func(_ *badger.Txn, current map[int64]bool) (map[int64]bool, error) {
		desired := make(map[int64]bool, len(current))
		for shoeID := range current {
			desired[shoeID] = false
		}
		return desired, nil
	})
}

// apply runs the delta computation: callers produce a desired-state map from
// current membership, and only differences are written. The result carries
// the full favorites list and like counts for every touched or still
// favorited shoe.
func (b *Backend) apply(ctx context.Context, userID int64, want func(*badger.Txn, map[int64]bool) (map[int64]bool, error)) (*domain.FavoritesResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &domain.FavoritesResult{LikeCounts: make(domain.LikeCounts)}
	err := b.db.Update(func(txn *badger.Txn) error {
		existing, err := b.favoriteEntries(txn, userID)
		if err != nil {
			return err
		}
		current := make(map[int64]bool, len(existing))
		for i := range existing {
			current[existing[i].ShoeID] = true
		}

		desired, err := want(txn, current)
		if err != nil {
			return err
		}

		touched := make(map[int64]struct{}, len(desired))
		for shoeID, wantFav := range desired {
			touched[shoeID] = struct{}{}
			if wantFav == current[shoeID] {
				continue // delta recomputation: already in the desired state
			}
			if wantFav {
				id, err := b.nextID()
				if err != nil {
					return err
				}
				entry := domain.FavoriteEntry{
					ID:     id,
					ShoeID: shoeID,
					UserID: userID,
					Shoe:   b.shoeFor(txn, shoeID),
				}
				data, err := json.Marshal(&entry)
				if err != nil {
					return err
				}
				if err := txn.Set(favKey(userID, shoeID), data); err != nil {
					return err
				}
				if err := b.adjustLikes(txn, shoeID, 1); err != nil {
					return err
				}
			} else {
				if err := txn.Delete(favKey(userID, shoeID)); err != nil {
					return err
				}
				if err := b.adjustLikes(txn, shoeID, -1); err != nil {
					return err
				}
			}
		}

		favorites, err := b.favoriteEntries(txn, userID)
		if err != nil {
			return err
		}
		result.Favorites = favorites
		if result.Favorites == nil {
			result.Favorites = []domain.FavoriteEntry{}
		}

		for i := range favorites {
			touched[favorites[i].ShoeID] = struct{}{}
		}
		for shoeID := range touched {
			count, err := b.likeCount(txn, shoeID)
			if err != nil {
				return err
			}
			result.LikeCounts[shoeID] = count
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// likeCount reads the global counter for one shoe within txn.
func (b *Backend) likeCount(txn *badger.Txn, shoeID int64) (int, error) {
	item, err := txn.Get(likesKey(shoeID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var count int
	err = item.Value(func(val []byte) error {
		n, err := strconv.Atoi(string(val))
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	return count, err
}

// adjustLikes moves the counter by delta, clamped at zero.
func (b *Backend) adjustLikes(txn *badger.Txn, shoeID int64, delta int) error {
	count, err := b.likeCount(txn, shoeID)
	if err != nil {
		return err
	}
	count += delta
	if count < 0 {
		count = 0
	}
	return txn.Set(likesKey(shoeID), []byte(strconv.Itoa(count)))
}
