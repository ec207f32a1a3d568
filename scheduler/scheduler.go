package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"offmall_watcher/config"
	"offmall_watcher/services"
)

// Scheduler drives the scan and check loops. Scan runs once immediately and
// then on its interval (or cron schedule); check waits out a warmup so the
// first scan can seed the database before anything is probed.
type Scheduler struct {
	cfg    *config.Config
	scan   *services.ScanService
	check  *services.CheckService
	cron   *cron.Cron
	stopCh chan struct{}
}

func New(cfg *config.Config, scan *services.ScanService, check *services.CheckService) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		scan:   scan,
		check:  check,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.ScanCron != "" {
		log.Printf("Scheduler: scan on cron %q", s.cfg.ScanCron)
		_, err := s.cron.AddFunc(s.cfg.ScanCron, func() {
			if _, err := s.scan.Run(ctx); err != nil {
				log.Printf("Scheduled scan error: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		// The first firing may be far off; run one pass now so the check loop
		// has listings to probe after its warmup.
		go func() {
			if _, err := s.scan.Run(ctx); err != nil {
				log.Printf("Scheduled scan error: %v", err)
			}
		}()
	} else {
		log.Printf("Scheduler: scan every %s", s.cfg.ScanInterval)
		go s.scanLoop(ctx)
	}

	log.Printf("Scheduler: check every %s after %s warmup", s.cfg.CheckInterval, s.cfg.CheckWarmup)
	go s.checkLoop(ctx)

	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	close(s.stopCh)
}

func (s *Scheduler) scanLoop(ctx context.Context) {
	for {
		if _, err := s.scan.Run(ctx); err != nil {
			log.Printf("Scheduled scan error: %v", err)
		}
		if !s.wait(ctx, s.cfg.ScanInterval) {
			return
		}
	}
}

func (s *Scheduler) checkLoop(ctx context.Context) {
	if !s.wait(ctx, s.cfg.CheckWarmup) {
		return
	}
	for {
		if _, err := s.check.Run(ctx); err != nil {
			log.Printf("Scheduled check error: %v", err)
		}
		if !s.wait(ctx, s.cfg.CheckInterval) {
			return
		}
	}
}

// wait sleeps for d and reports whether the loop should keep going.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-s.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
