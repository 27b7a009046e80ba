// Package domain defines the entity types shared by the stores, the durable
// local cache, and the remote storefront contract. JSON tags mirror the wire
// shapes of the storefront API and must not be changed independently of it.
package domain

// Brand is the manufacturer of a shoe model.
type Brand struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name" validate:"required"`
}

// Model is a shoe model within a brand.
type Model struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name" validate:"required"`
	Brand *Brand `json:"brand" validate:"required"`
}

// Shoe is the denormalized snapshot attached to cart line items and favorite
// entries so cached state can render offline. Validation tags back the cache's
// structural check: a cached favorite whose shoe is missing model or brand
// names is discarded as corrupt.
type Shoe struct {
	ID       int64   `json:"id"`
	Price    float64 `json:"price"`
	ImageURL string  `json:"imageUrl,omitempty"`
	Model    *Model  `json:"model" validate:"required"`
}
