package services

import (
	"context"
	"time"

	"offmall_watcher/models"
	"offmall_watcher/storage"
)

// memStore is an in-memory Store used by the pass tests. Transactions stage
// their writes and apply them on Commit, so a rolled-back pass leaves the
// store untouched.
type memStore struct {
	listings []models.Listing
	keywords []models.Keyword
	runs     []models.PassRun
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{nextID: 1}
}

func (m *memStore) Begin(ctx context.Context) (storage.Tx, error) {
	return &memTx{store: m, sold: make(map[int64]soldMark)}, nil
}

func (m *memStore) Keywords(ctx context.Context) ([]models.Keyword, error) {
	return m.keywords, nil
}

func (m *memStore) SelectedKeywords(ctx context.Context) ([]models.Keyword, error) {
	var out []models.Keyword
	for _, kw := range m.keywords {
		if kw.Selected {
			out = append(out, kw)
		}
	}
	return out, nil
}

func (m *memStore) CreateKeyword(ctx context.Context, kw *models.Keyword) error {
	kw.ID = m.nextID
	m.nextID++
	m.keywords = append(m.keywords, *kw)
	return nil
}

func (m *memStore) UpdateKeyword(ctx context.Context, id int64, patch *models.KeywordPatch) (bool, error) {
	for i := range m.keywords {
		if m.keywords[i].ID == id {
			if patch.Text != nil {
				m.keywords[i].Text = *patch.Text
			}
			if patch.Exclude != nil {
				m.keywords[i].Exclude = *patch.Exclude
			}
			if patch.Selected != nil {
				m.keywords[i].Selected = *patch.Selected
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) DeleteKeyword(ctx context.Context, id int64) (bool, error) {
	for i := range m.keywords {
		if m.keywords[i].ID == id {
			m.keywords = append(m.keywords[:i], m.keywords[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SetAllKeywordsSelected(ctx context.Context, selected bool) error {
	for i := range m.keywords {
		m.keywords[i].Selected = selected
	}
	return nil
}

func (m *memStore) FastSellers(ctx context.Context, since time.Time, limit int) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range m.listings {
		if l.Status == models.StatusSold && l.SoldAt != nil && !l.SoldAt.Before(since) {
			out = append(out, l)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) Stats(ctx context.Context) (*models.Stats, error) {
	return &models.Stats{}, nil
}

func (m *memStore) CreatePassRun(ctx context.Context, run *models.PassRun) error {
	m.runs = append(m.runs, *run)
	return nil
}

func (m *memStore) FinishPassRun(ctx context.Context, run *models.PassRun) error {
	for i := range m.runs {
		if m.runs[i].ID == run.ID {
			m.runs[i] = *run
			return nil
		}
	}
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) activeCount() int {
	n := 0
	for _, l := range m.listings {
		if l.Status == models.StatusActive {
			n++
		}
	}
	return n
}

func (m *memStore) findListing(externalID string) *models.Listing {
	for i := range m.listings {
		if m.listings[i].ExternalID == externalID {
			return &m.listings[i]
		}
	}
	return nil
}

type soldMark struct {
	soldAt  time.Time
	minutes int
}

type memTx struct {
	store    *memStore
	inserted []models.Listing
	sold     map[int64]soldMark
	newKws   []models.Keyword
	done     bool
}

func (t *memTx) ListingExists(ctx context.Context, externalID string) (bool, error) {
	if t.store.findListing(externalID) != nil {
		return true, nil
	}
	for _, l := range t.inserted {
		if l.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertListing(ctx context.Context, l *models.Listing) error {
	l.ID = t.store.nextID
	t.store.nextID++
	t.inserted = append(t.inserted, *l)
	return nil
}

func (t *memTx) ActiveListings(ctx context.Context) ([]models.Listing, error) {
	var out []models.Listing
	for _, l := range t.store.listings {
		if l.Status == models.StatusActive {
			out = append(out, l)
		}
	}
	return out, nil
}

func (t *memTx) MarkListingSold(ctx context.Context, id int64, soldAt time.Time, minutesToSell int) error {
	t.sold[id] = soldMark{soldAt: soldAt, minutes: minutesToSell}
	return nil
}

func (t *memTx) KeywordExists(ctx context.Context, text string) (bool, error) {
	for _, kw := range t.store.keywords {
		if kw.Text == text {
			return true, nil
		}
	}
	for _, kw := range t.newKws {
		if kw.Text == text {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertKeyword(ctx context.Context, kw *models.Keyword) error {
	kw.ID = t.store.nextID
	t.store.nextID++
	t.newKws = append(t.newKws, *kw)
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	t.store.listings = append(t.store.listings, t.inserted...)
	for i := range t.store.listings {
		if mark, ok := t.sold[t.store.listings[i].ID]; ok && t.store.listings[i].Status == models.StatusActive {
			soldAt := mark.soldAt
			minutes := mark.minutes
			t.store.listings[i].Status = models.StatusSold
			t.store.listings[i].SoldAt = &soldAt
			t.store.listings[i].MinutesToSell = &minutes
		}
	}
	t.store.keywords = append(t.store.keywords, t.newKws...)
	t.done = true
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}
