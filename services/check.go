package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"offmall_watcher/config"
	"offmall_watcher/models"
	"offmall_watcher/scraper"
	"offmall_watcher/storage"
)

// CheckService probes every active listing for a sold-out transition and
// harvests keywords from the fast sales.
type CheckService struct {
	cfg      *config.Config
	store    storage.Store
	probe    *scraper.SoldProbe
	keywords *KeywordService
}

func NewCheckService(cfg *config.Config, store storage.Store, probe *scraper.SoldProbe, keywords *KeywordService) *CheckService {
	return &CheckService{cfg: cfg, store: store, probe: probe, keywords: keywords}
}

// Run performs one check pass and records it. A probe failure leaves that
// listing active for the next pass; a store failure rolls back the whole
// pass.
func (s *CheckService) Run(ctx context.Context) (*models.CheckResult, error) {
	run := &models.PassRun{
		ID:        uuid.New(),
		Kind:      models.PassKindCheck,
		StartedAt: time.Now(),
		Status:    models.PassStatusRunning,
	}
	if err := s.store.CreatePassRun(ctx, run); err != nil {
		log.Printf("Check: could not record run: %v", err)
	}

	result, err := s.runPass(ctx)

	now := time.Now()
	run.FinishedAt = &now
	run.Processed = result.Checked
	run.Affected = result.Sold
	run.ErrorCount = len(result.Failures)
	run.Status = models.PassStatusCompleted
	if err != nil {
		run.Status = models.PassStatusFailed
		run.ErrorCount++
	}
	if ferr := s.store.FinishPassRun(ctx, run); ferr != nil {
		log.Printf("Check: could not finish run record: %v", ferr)
	}

	if err != nil {
		return result, err
	}
	log.Printf("Check complete: %d checked, %d sold", result.Checked, result.Sold)
	return result, nil
}

func (s *CheckService) runPass(ctx context.Context) (*models.CheckResult, error) {
	result := &models.CheckResult{}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin check pass: %w", err)
	}
	defer tx.Rollback(ctx)

	active, err := tx.ActiveListings(ctx)
	if err != nil {
		return result, fmt.Errorf("load active listings: %w", err)
	}

	// One timestamp per pass so every sale in the pass shares the same clock.
	now := time.Now()

	for i := range active {
		listing := &active[i]

		if i > 0 {
			if err := sleepCtx(ctx, s.cfg.ListingDelay); err != nil {
				return result, err
			}
		}

		sold, err := s.probe.IsSold(ctx, listing.URL)
		result.Checked++
		if err != nil {
			// Probe failure means "still active"; the next pass retries.
			log.Printf("Check: probe failed for %s: %v", listing.URL, err)
			result.Failures = append(result.Failures, models.UnitError{Unit: listing.ExternalID, Err: err.Error()})
			continue
		}
		if !sold {
			continue
		}

		minutes := minutesToSell(listing.CreatedAt, now)
		if err := tx.MarkListingSold(ctx, listing.ID, now, minutes); err != nil {
			return result, fmt.Errorf("mark sold %s: %w", listing.ExternalID, err)
		}
		listing.Status = models.StatusSold
		listing.SoldAt = &now
		listing.MinutesToSell = &minutes
		result.Sold++

		log.Printf("Check: SOLD %s (%s) after %d min", listing.ExternalID, listing.Name, minutes)

		if minutes <= s.cfg.FastSaleMinutes {
			if err := s.keywords.ExtractAndStore(ctx, tx, listing); err != nil {
				return result, fmt.Errorf("store keyword for %s: %w", listing.ExternalID, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("commit check pass: %w", err)
	}
	return result, nil
}

// minutesToSell floors the listing's time on market, clamped to zero for
// clock skew or a missing creation time.
func minutesToSell(createdAt, soldAt time.Time) int {
	if createdAt.IsZero() {
		return 0
	}
	m := int(soldAt.Sub(createdAt).Minutes())
	if m < 0 {
		m = 0
	}
	return m
}
