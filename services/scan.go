package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"offmall_watcher/config"
	"offmall_watcher/httputil"
	"offmall_watcher/models"
	"offmall_watcher/scraper"
	"offmall_watcher/storage"
)

// ScanService walks every catalog category looking for newly posted items.
type ScanService struct {
	cfg     *config.Config
	store   storage.Store
	fetcher *httputil.Fetcher
}

func NewScanService(cfg *config.Config, store storage.Store, fetcher *httputil.Fetcher) *ScanService {
	return &ScanService{cfg: cfg, store: store, fetcher: fetcher}
}

// Run performs one scan pass and records it. Categories are visited in
// catalog order; a fetch failure skips that category only, while a store
// failure rolls back the whole pass.
func (s *ScanService) Run(ctx context.Context) (*models.ScanResult, error) {
	run := &models.PassRun{
		ID:        uuid.New(),
		Kind:      models.PassKindScan,
		StartedAt: time.Now(),
		Status:    models.PassStatusRunning,
	}
	if err := s.store.CreatePassRun(ctx, run); err != nil {
		log.Printf("Scan: could not record run: %v", err)
	}

	result, err := s.runPass(ctx)

	now := time.Now()
	run.FinishedAt = &now
	run.Processed = result.Scanned
	run.Affected = result.New
	run.ErrorCount = len(result.Failures)
	run.Status = models.PassStatusCompleted
	if err != nil {
		run.Status = models.PassStatusFailed
		run.ErrorCount++
	}
	if ferr := s.store.FinishPassRun(ctx, run); ferr != nil {
		log.Printf("Scan: could not finish run record: %v", ferr)
	}

	if err != nil {
		return result, err
	}
	log.Printf("Scan complete: %d listings, %d new", result.Scanned, result.New)
	return result, nil
}

func (s *ScanService) runPass(ctx context.Context) (*models.ScanResult, error) {
	result := &models.ScanResult{}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin scan pass: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, cat := range s.cfg.Categories {
		if i > 0 {
			if err := sleepCtx(ctx, s.cfg.CategoryDelay); err != nil {
				return result, err
			}
		}

		log.Printf("Scan: %s (%s)", cat.Name, cat.Key)

		// s=1 sorts newest first.
		body, err := s.fetcher.ListingPage(ctx, cat.URL+"?s=1")
		if err != nil {
			log.Printf("Scan: fetch failed for %s: %v", cat.Name, err)
			result.Failures = append(result.Failures, models.UnitError{Unit: cat.Key, Err: err.Error()})
			continue
		}

		stubs := scraper.ParseListingPage(body)
		if len(stubs) == 0 {
			log.Printf("Scan: no listings parsed for %s", cat.Name)
		}

		newCount := 0
		for _, stub := range stubs {
			exists, err := tx.ListingExists(ctx, stub.ExternalID)
			if err != nil {
				return result, fmt.Errorf("check listing %s: %w", stub.ExternalID, err)
			}
			if exists {
				continue
			}

			listing := &models.Listing{
				ExternalID: stub.ExternalID,
				Name:       stub.Name,
				Price:      stub.Price,
				URL:        stub.URL,
				ImageURL:   stub.ImageURL,
				Category:   cat.Key,
				Status:     models.StatusActive,
				CreatedAt:  time.Now(),
			}
			if err := tx.InsertListing(ctx, listing); err != nil {
				return result, fmt.Errorf("insert listing %s: %w", stub.ExternalID, err)
			}
			newCount++
		}

		result.Scanned += len(stubs)
		result.New += newCount
		log.Printf("Scan: %s: %d listings, %d new", cat.Name, len(stubs), newCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit scan pass: %w", err)
	}
	return result, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
