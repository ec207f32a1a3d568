package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"offmall_watcher/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listings (
		id INTEGER PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		price TEXT,
		url TEXT NOT NULL,
		image_url TEXT,
		category TEXT NOT NULL DEFAULT 'hobby',
		status TEXT NOT NULL DEFAULT 'active',
		sold_at DATETIME,
		minutes_to_sell INTEGER,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS keywords (
		id INTEGER PRIMARY KEY,
		keyword TEXT NOT NULL,
		exclude TEXT,
		selected BOOLEAN NOT NULL DEFAULT TRUE,
		source_listing_name TEXT,
		source_price TEXT,
		minutes_to_sell INTEGER,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS pass_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
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
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx}, nil
}

const listingColumns = `id, external_id, name, COALESCE(price, ''), url, COALESCE(image_url, ''),
	category, status, sold_at, minutes_to_sell, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var l models.Listing
	var soldAt sql.NullTime
	var minutes sql.NullInt64
	err := row.Scan(&l.ID, &l.ExternalID, &l.Name, &l.Price, &l.URL, &l.ImageURL,
		&l.Category, &l.Status, &soldAt, &minutes, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	if soldAt.Valid {
		t := soldAt.Time
		l.SoldAt = &t
	}
	if minutes.Valid {
		m := int(minutes.Int64)
		l.MinutesToSell = &m
	}
	return &l, nil
}

const keywordColumns = `id, keyword, COALESCE(exclude, ''), selected,
	COALESCE(source_listing_name, ''), COALESCE(source_price, ''), minutes_to_sell, created_at`

func scanKeyword(row rowScanner) (*models.Keyword, error) {
	var kw models.Keyword
	var minutes sql.NullInt64
	err := row.Scan(&kw.ID, &kw.Text, &kw.Exclude, &kw.Selected,
		&kw.SourceListingName, &kw.SourcePrice, &minutes, &kw.CreatedAt)
	if err != nil {
		return nil, err
	}
	if minutes.Valid {
		m := int(minutes.Int64)
		kw.MinutesToSell = &m
	}
	return &kw, nil
}

func (s *SQLiteStore) Keywords(ctx context.Context) ([]models.Keyword, error) {
	return s.queryKeywords(ctx, `SELECT `+keywordColumns+` FROM keywords ORDER BY id DESC`)
}

func (s *SQLiteStore) SelectedKeywords(ctx context.Context) ([]models.Keyword, error) {
	return s.queryKeywords(ctx, `SELECT `+keywordColumns+` FROM keywords WHERE selected ORDER BY id`)
}

func (s *SQLiteStore) queryKeywords(ctx context.Context, query string) ([]models.Keyword, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keywords []models.Keyword
	for rows.Next() {
		kw, err := scanKeyword(rows)
		if err != nil {
			return nil, err
		}
		keywords = append(keywords, *kw)
	}
	return keywords, rows.Err()
}

func (s *SQLiteStore) CreateKeyword(ctx context.Context, kw *models.Keyword) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO keywords (keyword, exclude, selected, source_listing_name, source_price, minutes_to_sell, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		kw.Text, kw.Exclude, kw.Selected, kw.SourceListingName, kw.SourcePrice, kw.MinutesToSell, kw.CreatedAt)
	if err != nil {
		return err
	}
	kw.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStore) UpdateKeyword(ctx context.Context, id int64, patch *models.KeywordPatch) (bool, error) {
	var sets []string
	var args []any

	if patch.Text != nil {
		sets = append(sets, "keyword = ?")
		args = append(args, *patch.Text)
	}
	if patch.Exclude != nil {
		sets = append(sets, "exclude = ?")
		args = append(args, *patch.Exclude)
	}
	if patch.Selected != nil {
		sets = append(sets, "selected = ?")
		args = append(args, *patch.Selected)
	}
	if len(sets) == 0 {
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM keywords WHERE id = ?`, id).Scan(&one)
		if err == sql.ErrNoRows {
			return false, nil
		}
		return err == nil, err
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE keywords SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (s *SQLiteStore) DeleteKeyword(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM keywords WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (s *SQLiteStore) SetAllKeywordsSelected(ctx context.Context, selected bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE keywords SET selected = ?`, selected)
	return err
}

func (s *SQLiteStore) FastSellers(ctx context.Context, since time.Time, limit int) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE status = ? AND minutes_to_sell IS NOT NULL AND sold_at >= ?
		ORDER BY minutes_to_sell ASC
		LIMIT ?`, models.StatusSold, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) Stats(ctx context.Context) (*models.Stats, error) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := today.AddDate(0, 0, -7)

	stats := &models.Stats{}
	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.TodayScanned, `SELECT COUNT(*) FROM listings WHERE created_at >= ?`, []any{today}},
		{&stats.TodaySold, `SELECT COUNT(*) FROM listings WHERE status = ? AND sold_at >= ? AND minutes_to_sell IS NOT NULL`, []any{models.StatusSold, today}},
		{&stats.WeekSold, `SELECT COUNT(*) FROM listings WHERE status = ? AND sold_at >= ? AND minutes_to_sell IS NOT NULL`, []any{models.StatusSold, weekAgo}},
		{&stats.Pending, `SELECT COUNT(*) FROM listings WHERE status = ?`, []any{models.StatusActive}},
		{&stats.KeywordCount, `SELECT COUNT(*) FROM keywords`, nil},
		{&stats.SelectedCount, `SELECT COUNT(*) FROM keywords WHERE selected`, nil},
	}

	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *SQLiteStore) CreatePassRun(ctx context.Context, run *models.PassRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pass_runs (id, kind, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.ID.String(), run.Kind, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) FinishPassRun(ctx context.Context, run *models.PassRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pass_runs SET finished_at = ?, status = ?, processed = ?, affected = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.Processed, run.Affected, run.ErrorCount, run.ID.String())
	return err
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) ListingExists(ctx context.Context, externalID string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM listings WHERE external_id = ? LIMIT 1`, externalID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *sqliteTx) InsertListing(ctx context.Context, l *models.Listing) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO listings (external_id, name, price, url, image_url, category, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ExternalID, l.Name, l.Price, l.URL, l.ImageURL, l.Category, l.Status, l.CreatedAt)
	if err != nil {
		return err
	}
	l.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) ActiveListings(ctx context.Context) ([]models.Listing, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+listingColumns+` FROM listings WHERE status = ? ORDER BY id`,
		models.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (t *sqliteTx) MarkListingSold(ctx context.Context, id int64, soldAt time.Time, minutesToSell int) error {
	// The status guard keeps the transition one-way even if two passes race.
	_, err := t.tx.ExecContext(ctx, `
		UPDATE listings SET status = ?, sold_at = ?, minutes_to_sell = ?
		WHERE id = ? AND status = ?`,
		models.StatusSold, soldAt, minutesToSell, id, models.StatusActive)
	return err
}

func (t *sqliteTx) KeywordExists(ctx context.Context, text string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx,
		`SELECT 1 FROM keywords WHERE keyword = ? LIMIT 1`, text).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *sqliteTx) InsertKeyword(ctx context.Context, kw *models.Keyword) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO keywords (keyword, exclude, selected, source_listing_name, source_price, minutes_to_sell, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		kw.Text, kw.Exclude, kw.Selected, kw.SourceListingName, kw.SourcePrice, kw.MinutesToSell, kw.CreatedAt)
	if err != nil {
		return err
	}
	kw.ID, err = res.LastInsertId()
	return err
}

func (t *sqliteTx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback(context.Context) error {
	return t.tx.Rollback()
}
