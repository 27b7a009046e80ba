package domain

import "time"

// FavoriteEntry marks one shoe as favorited by one user. At most one entry
// exists per (userId, shoeId); toggling flips membership rather than creating
// duplicates. Entries are never updated in place.
type FavoriteEntry struct {
	// ID is assigned by the server. Before the optimistic toggle is
	// confirmed the store uses the shoe id as a synthetic local id.
	ID     int64 `json:"id"`
	ShoeID int64 `json:"shoeId"`
	UserID int64 `json:"userId"`
	Shoe   *Shoe `json:"shoe,omitempty" validate:"omitempty,required"`
}

// LikeCounts maps shoe id to the global number of favorites for that shoe,
// across all users. Kept numerically consistent with toggles (+1/-1) even
// before the authoritative recount returns.
type LikeCounts map[int64]int

// PendingFavorites is the transient queue of desired-but-unconfirmed toggle
// states, keyed by the decimal string form of the shoe id. It is keyed by
// string because it round-trips through JSON cache snapshots and the batch
// wire payload, both of which carry object keys; values are `any` for the
// same reason. The sync boundary filters entries down to numeric keys with
// boolean values and drops the rest.
type PendingFavorites map[string]any

// FavoritesSnapshot is the durable cache payload for one user's favorites.
type FavoritesSnapshot struct {
	Favorites  []FavoriteEntry `json:"favorites" validate:"dive"`
	LikeCounts LikeCounts      `json:"likeCounts,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// FavoritesResult is the authoritative state returned by the toggle, batch,
// and clear endpoints.
type FavoritesResult struct {
	Favorites  []FavoriteEntry `json:"favorites"`
	LikeCounts LikeCounts      `json:"likeCounts"`
}
