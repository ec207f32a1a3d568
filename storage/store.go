package storage

import (
	"context"
	"time"

	"offmall_watcher/models"
)

// Store is the persistent side of the watcher. SQLite is the default; a
// Postgres implementation is selected when DATABASE_URL is set. The store is
// the only resource the scan loop, the check loop and the API share.
type Store interface {
	// Begin opens a pass-scoped transaction: every write inside one scan or
	// check pass commits or rolls back together.
	Begin(ctx context.Context) (Tx, error)

	Keywords(ctx context.Context) ([]models.Keyword, error)
	SelectedKeywords(ctx context.Context) ([]models.Keyword, error)
	CreateKeyword(ctx context.Context, kw *models.Keyword) error
	UpdateKeyword(ctx context.Context, id int64, patch *models.KeywordPatch) (bool, error)
	DeleteKeyword(ctx context.Context, id int64) (bool, error)
	SetAllKeywordsSelected(ctx context.Context, selected bool) error

	FastSellers(ctx context.Context, since time.Time, limit int) ([]models.Listing, error)
	Stats(ctx context.Context) (*models.Stats, error)

	CreatePassRun(ctx context.Context, run *models.PassRun) error
	FinishPassRun(ctx context.Context, run *models.PassRun) error

	Close() error
}

// Tx is one pass's unit of atomicity.
type Tx interface {
	ListingExists(ctx context.Context, externalID string) (bool, error)
	InsertListing(ctx context.Context, l *models.Listing) error
	ActiveListings(ctx context.Context) ([]models.Listing, error)
	MarkListingSold(ctx context.Context, id int64, soldAt time.Time, minutesToSell int) error
	KeywordExists(ctx context.Context, text string) (bool, error)
	InsertKeyword(ctx context.Context, kw *models.Keyword) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
