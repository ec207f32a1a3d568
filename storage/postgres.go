package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"offmall_watcher/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id BIGSERIAL PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		price TEXT,
		url TEXT NOT NULL,
		image_url TEXT,
		category TEXT NOT NULL DEFAULT 'hobby',
		status TEXT NOT NULL DEFAULT 'active',
		sold_at TIMESTAMPTZ,
		minutes_to_sell INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS keywords (
		id BIGSERIAL PRIMARY KEY,
		keyword TEXT NOT NULL,
		exclude TEXT,
		selected BOOLEAN NOT NULL DEFAULT TRUE,
		source_listing_name TEXT,
		source_price TEXT,
		minutes_to_sell INTEGER,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS pass_runs (
		id UUID PRIMARY KEY,
		kind TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		status TEXT NOT NULL,
		processed INTEGER DEFAULT 0,
		affected INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
	CREATE INDEX IF NOT EXISTS idx_listings_sold ON listings(status, sold_at);
	CREATE INDEX IF NOT EXISTS idx_keywords_text ON keywords(keyword);
	CREATE INDEX IF NOT EXISTS idx_runs_kind ON pass_runs(kind, started_at);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &postgresTx{tx: tx}, nil
}

const pgListingColumns = `id, external_id, name, COALESCE(price, ''), url, COALESCE(image_url, ''),
	category, status, sold_at, minutes_to_sell, created_at`

const pgKeywordColumns = `id, keyword, COALESCE(exclude, ''), selected,
	COALESCE(source_listing_name, ''), COALESCE(source_price, ''), minutes_to_sell, created_at`

func scanPgListing(row pgx.Row) (*models.Listing, error) {
	var l models.Listing
	err := row.Scan(&l.ID, &l.ExternalID, &l.Name, &l.Price, &l.URL, &l.ImageURL,
		&l.Category, &l.Status, &l.SoldAt, &l.MinutesToSell, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanPgKeyword(row pgx.Row) (*models.Keyword, error) {
	var kw models.Keyword
	err := row.Scan(&kw.ID, &kw.Text, &kw.Exclude, &kw.Selected,
		&kw.SourceListingName, &kw.SourcePrice, &kw.MinutesToSell, &kw.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &kw, nil
}

func (s *PostgresStore) Keywords(ctx context.Context) ([]models.Keyword, error) {
	return s.queryKeywords(ctx, `SELECT `+pgKeywordColumns+` FROM keywords ORDER BY id DESC`)
}

func (s *PostgresStore) SelectedKeywords(ctx context.Context) ([]models.Keyword, error) {
	return s.queryKeywords(ctx, `SELECT `+pgKeywordColumns+` FROM keywords WHERE selected ORDER BY id`)
}

func (s *PostgresStore) queryKeywords(ctx context.Context, query string) ([]models.Keyword, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []models.Keyword
	for rows.Next() {
		kw, err := scanPgKeyword(rows)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, *kw)
	}
	return keywords, rows.Err()
}

func (s *PostgresStore) CreateKeyword(ctx context.Context, kw *models.Keyword) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO keywords (keyword, exclude, selected, source_listing_name, source_price, minutes_to_sell, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		kw.Text, kw.Exclude, kw.Selected, kw.SourceListingName, kw.SourcePrice, kw.MinutesToSell, kw.CreatedAt).
		Scan(&kw.ID)
}

func (s *PostgresStore) UpdateKeyword(ctx context.Context, id int64, patch *models.KeywordPatch) (bool, error) {
	var sets []string
	var args []any

	addSet := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if patch.Text != nil {
		addSet("keyword", *patch.Text)
	}
	if patch.Exclude != nil {
		addSet("exclude", *patch.Exclude)
	}
	if patch.Selected != nil {
		addSet("selected", *patch.Selected)
	}
	if len(sets) == 0 {
		var one int
		err := s.pool.QueryRow(ctx, `SELECT 1 FROM keywords WHERE id = $1`, id).Scan(&one)
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return err == nil, err
	}

	args = append(args, id)
	tag, err := s.pool.Exec(ctx,
		`UPDATE keywords SET `+strings.Join(sets, ", ")+` WHERE id = $`+strconv.Itoa(len(args)),
		args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) DeleteKeyword(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM keywords WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SetAllKeywordsSelected(ctx context.Context, selected bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE keywords SET selected = $1`, selected)
	return err
}

func (s *PostgresStore) FastSellers(ctx context.Context, since time.Time, limit int) ([]models.Listing, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgListingColumns+` FROM listings
		WHERE status = $1 AND minutes_to_sell IS NOT NULL AND sold_at >= $2
		ORDER BY minutes_to_sell ASC
		LIMIT $3`, models.StatusSold, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanPgListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) Stats(ctx context.Context) (*models.Stats, error) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := today.AddDate(0, 0, -7)

	stats := &models.Stats{}
	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.TodayScanned, `SELECT COUNT(*) FROM listings WHERE created_at >= $1`, []any{today}},
		{&stats.TodaySold, `SELECT COUNT(*) FROM listings WHERE status = $1 AND sold_at >= $2 AND minutes_to_sell IS NOT NULL`, []any{models.StatusSold, today}},
		{&stats.WeekSold, `SELECT COUNT(*) FROM listings WHERE status = $1 AND sold_at >= $2 AND minutes_to_sell IS NOT NULL`, []any{models.StatusSold, weekAgo}},
		{&stats.Pending, `SELECT COUNT(*) FROM listings WHERE status = $1`, []any{models.StatusActive}},
		{&stats.KeywordCount, `SELECT COUNT(*) FROM keywords`, nil},
		{&stats.SelectedCount, `SELECT COUNT(*) FROM keywords WHERE selected`, nil},
	}

	for _, c := range counts {
		if err := s.pool.QueryRow(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *PostgresStore) CreatePassRun(ctx context.Context, run *models.PassRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pass_runs (id, kind, started_at, status)
		VALUES ($1, $2, $3, $4)`,
		run.ID, run.Kind, run.StartedAt, run.Status)
	return err
}

func (s *PostgresStore) FinishPassRun(ctx context.Context, run *models.PassRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE pass_runs SET finished_at = $1, status = $2, processed = $3, affected = $4, errors_count = $5
		WHERE id = $6`,
		run.FinishedAt, run.Status, run.Processed, run.Affected, run.ErrorCount, run.ID)
	return err
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) ListingExists(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := t.tx.QueryRow(ctx,
		`SELECT 1 FROM listings WHERE external_id = $1 LIMIT 1`, externalID).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *postgresTx) InsertListing(ctx context.Context, l *models.Listing) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO listings (external_id, name, price, url, image_url, category, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		l.ExternalID, l.Name, l.Price, l.URL, l.ImageURL, l.Category, l.Status, l.CreatedAt).
		Scan(&l.ID)
}

func (t *postgresTx) ActiveListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+pgListingColumns+` FROM listings WHERE status = $1 ORDER BY id`,
		models.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanPgListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (t *postgresTx) MarkListingSold(ctx context.Context, id int64, soldAt time.Time, minutesToSell int) error {
	// The status guard keeps the transition one-way even if two passes race.
	_, err := t.tx.Exec(ctx, `
		UPDATE listings SET status = $1, sold_at = $2, minutes_to_sell = $3
		WHERE id = $4 AND status = $5`,
		models.StatusSold, soldAt, minutesToSell, id, models.StatusActive)
	return err
}

func (t *postgresTx) KeywordExists(ctx context.Context, text string) (bool, error) {
	var one int
	err := t.tx.QueryRow(ctx,
		`SELECT 1 FROM keywords WHERE keyword = $1 LIMIT 1`, text).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *postgresTx) InsertKeyword(ctx context.Context, kw *models.Keyword) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO keywords (keyword, exclude, selected, source_listing_name, source_price, minutes_to_sell, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		kw.Text, kw.Exclude, kw.Selected, kw.SourceListingName, kw.SourcePrice, kw.MinutesToSell, kw.CreatedAt).
		Scan(&kw.ID)
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}
