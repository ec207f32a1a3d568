package models

import "time"

// Listing status. The transition is one-way: active -> sold, never reversed.
const (
	StatusActive = "active"
	StatusSold   = "sold"
)

// DefaultCategory is assigned to listings that arrive without a known category
// (e.g. pushed in through the incoming-products endpoint).
const DefaultCategory = "hobby"

// ListingStub is the parser's view of one product card on a listing page,
// before it is reconciled against the store.
type ListingStub struct {
	ExternalID string `json:"id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	URL        string `json:"url"`
	ImageURL   string `json:"image_url"`
}

// Listing is one marketplace item tracked by the watcher, keyed by the
// site-assigned external ID.
type Listing struct {
	ID            int64      `json:"id" db:"id"`
	ExternalID    string     `json:"product_id" db:"external_id"`
	Name          string     `json:"name" db:"name"`
	Price         string     `json:"price" db:"price"`
	URL           string     `json:"url" db:"url"`
	ImageURL      string     `json:"image_url" db:"image_url"`
	Category      string     `json:"category" db:"category"`
	Status        string     `json:"status" db:"status"`
	SoldAt        *time.Time `json:"sold_at" db:"sold_at"`
	MinutesToSell *int       `json:"minutes_to_sell" db:"minutes_to_sell"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}
