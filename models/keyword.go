package models

import "time"

// ManualSourceName marks keywords added by hand through the API rather than
// extracted from a fast sale.
const ManualSourceName = "手動追加"

// Keyword is a search term derived from a fast-selling listing's name (or
// entered manually). Immutable after automatic insertion; the API may edit
// the text, exclude filter and selected flag.
type Keyword struct {
	ID                int64     `json:"id" db:"id"`
	Text              string    `json:"keyword" db:"keyword"`
	Exclude           string    `json:"exclude" db:"exclude"`
	Selected          bool      `json:"selected" db:"selected"`
	SourceListingName string    `json:"source_product_name" db:"source_listing_name"`
	SourcePrice       string    `json:"source_price" db:"source_price"`
	MinutesToSell     *int      `json:"minutes_to_sell" db:"minutes_to_sell"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// KeywordPatch carries a partial keyword update from the API. Nil fields are
// left untouched.
type KeywordPatch struct {
	Text     *string `json:"keyword"`
	Exclude  *string `json:"exclude"`
	Selected *bool   `json:"selected"`
}
