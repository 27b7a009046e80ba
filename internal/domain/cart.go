package domain

import "time"

// CartLineItem is a single line in a user's cart. Within one cart there is at
// most one line item per (shoeId, size) pair; adding the same pair again
// increments Quantity instead of creating a new row.
type CartLineItem struct {
	// ID is assigned by the server once persisted. While an optimistic add
	// is in flight the store uses a negative placeholder id, replaced by
	// the server id on reconciliation.
	ID        int64     `json:"id"`
	CartID    int64     `json:"cartId,omitempty"`
	ShoeID    int64     `json:"shoeId"`
	Size      int       `json:"size"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
	Shoe      *Shoe     `json:"shoe,omitempty"`
}

// IsPlaceholder reports whether the item is still awaiting its server id.
func (i *CartLineItem) IsPlaceholder() bool {
	return i.ID < 0
}

// CartSnapshot is the durable cache payload for one user's cart.
type CartSnapshot struct {
	Items       []CartLineItem `json:"items" validate:"dive"`
	LastFetched time.Time      `json:"lastFetched"`
}
