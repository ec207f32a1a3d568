package scheduler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"offmall_watcher/config"
	"offmall_watcher/httputil"
	"offmall_watcher/models"
	"offmall_watcher/scraper"
	"offmall_watcher/services"
	"offmall_watcher/storage"
)

// stubStore is the minimal Store the scan pass needs; everything else returns
// zero values.
type stubStore struct {
	mu       sync.Mutex
	listings []models.Listing
}

func (s *stubStore) Begin(ctx context.Context) (storage.Tx, error) {
	return &stubTx{store: s}, nil
}

func (s *stubStore) Keywords(ctx context.Context) ([]models.Keyword, error)         { return nil, nil }
func (s *stubStore) SelectedKeywords(ctx context.Context) ([]models.Keyword, error) { return nil, nil }
func (s *stubStore) CreateKeyword(ctx context.Context, kw *models.Keyword) error    { return nil }
func (s *stubStore) UpdateKeyword(ctx context.Context, id int64, patch *models.KeywordPatch) (bool, error) {
	return false, nil
}
func (s *stubStore) DeleteKeyword(ctx context.Context, id int64) (bool, error) { return false, nil }
func (s *stubStore) SetAllKeywordsSelected(ctx context.Context, selected bool) error {
	return nil
}
func (s *stubStore) FastSellers(ctx context.Context, since time.Time, limit int) ([]models.Listing, error) {
	return nil, nil
}
func (s *stubStore) Stats(ctx context.Context) (*models.Stats, error) {
	return &models.Stats{}, nil
}
func (s *stubStore) CreatePassRun(ctx context.Context, run *models.PassRun) error { return nil }
func (s *stubStore) FinishPassRun(ctx context.Context, run *models.PassRun) error { return nil }
func (s *stubStore) Close() error                                                 { return nil }

type stubTx struct {
	store    *stubStore
	inserted []models.Listing
}

func (t *stubTx) ListingExists(ctx context.Context, externalID string) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, l := range t.store.listings {
		if l.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

func (t *stubTx) InsertListing(ctx context.Context, l *models.Listing) error {
	t.inserted = append(t.inserted, *l)
	return nil
}

func (t *stubTx) ActiveListings(ctx context.Context) ([]models.Listing, error) { return nil, nil }
func (t *stubTx) MarkListingSold(ctx context.Context, id int64, soldAt time.Time, minutesToSell int) error {
	return nil
}
func (t *stubTx) KeywordExists(ctx context.Context, text string) (bool, error) { return false, nil }
func (t *stubTx) InsertKeyword(ctx context.Context, kw *models.Keyword) error  { return nil }

func (t *stubTx) Commit(ctx context.Context) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.listings = append(t.store.listings, t.inserted...)
	return nil
}

func (t *stubTx) Rollback(ctx context.Context) error { return nil }

func TestStart_CronScheduleStillScansImmediately(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`<div><a href="/product/111/">テスト商品 サンプル</a></div>`))
	}))
	defer srv.Close()

	cfg := &config.Config{
		// Fires at most once a year; only the immediate pass can hit the server.
		ScanCron:      "0 0 1 1 *",
		CheckWarmup:   time.Hour,
		CheckInterval: time.Hour,
		Categories:    []config.Category{{Key: "hobby", Name: "ホビー", URL: srv.URL + "/cate/hobby/"}},
	}
	store := &stubStore{}
	fetcher := httputil.NewFetcher(httputil.NewClients(), "test-agent")
	scan := services.NewScanService(cfg, store, fetcher)
	check := services.NewCheckService(cfg, store, scraper.NewSoldProbe(fetcher), services.NewKeywordService())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := New(cfg, scan, check)
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer sched.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(25 * time.Millisecond)
	}
	if hits.Load() == 0 {
		t.Fatal("expected an immediate scan before the first cron firing")
	}
}

func TestStart_RejectsBadCronExpression(t *testing.T) {
	cfg := &config.Config{ScanCron: "not a schedule"}
	sched := New(cfg, nil, nil)
	if err := sched.Start(context.Background()); err == nil {
		t.Fatal("expected an error for an invalid cron expression")
	}
}
