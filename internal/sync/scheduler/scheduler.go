package scheduler

import (
	"context"
	"log"
	"time"

	shiftusecase "locum-backend/internal/shift/usecase"
	syncusecase "locum-backend/internal/sync/usecase"
)

const (
	DefaultInterval    = time.Hour
	DefaultRenewBefore = 24 * time.Hour
)

type Config struct {
	// Interval between checks.
	Interval time.Duration
	// RenewBefore renews the watch once it expires within this window.
	RenewBefore time.Duration
	// ExtractEvery runs an extraction batch on this period. Zero disables it.
	ExtractEvery time.Duration
}

// Scheduler keeps the Gmail watch alive and optionally drains the extraction
// backlog on a timer.
type Scheduler struct {
	sync       syncusecase.SyncUsecase
	extraction shiftusecase.ExtractionUsecase
	cfg        Config
	now        func() time.Time
	lastRun    time.Time
	stopChan   chan struct{}
}

func NewScheduler(sync syncusecase.SyncUsecase, extraction shiftusecase.ExtractionUsecase, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RenewBefore <= 0 {
		cfg.RenewBefore = DefaultRenewBefore
	}
	return &Scheduler{
		sync:       sync,
		extraction: extraction,
		cfg:        cfg,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *Scheduler) Start(ctx context.Context) {
	log.Printf("[Scheduler] Starting (interval: %s, renew before: %s)", s.cfg.Interval, s.cfg.RenewBefore)

	go func() {
		// Run immediately on start
		s.tick(ctx)

		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.tick(ctx)
			case <-ctx.Done():
				log.Println("[Scheduler] Context done, scheduler stopped")
				return
			case <-s.stopChan:
				log.Println("[Scheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) tick(ctx context.Context) {
	s.renewWatchIfDue(ctx)
	s.extractIfDue(ctx)
}

// renewWatchIfDue renews when the watch is missing or expires within RenewBefore.
func (s *Scheduler) renewWatchIfDue(ctx context.Context) bool {
	status, err := s.sync.Status(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error reading sync status: %v", err)
		return false
	}
	if status == nil {
		return false
	}
	if status.WatchExpiration != nil && status.WatchExpiration.Sub(s.now()) > s.cfg.RenewBefore {
		return false
	}

	res, err := s.sync.RenewWatch(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error renewing watch: %v", err)
		return false
	}
	log.Printf("[Scheduler] Watch renewed until %v", res.Expiration)
	return true
}

func (s *Scheduler) extractIfDue(ctx context.Context) bool {
	if s.cfg.ExtractEvery <= 0 || s.extraction == nil {
		return false
	}
	now := s.now()
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.cfg.ExtractEvery {
		return false
	}
	s.lastRun = now

	summary, err := s.extraction.Run(ctx)
	if err != nil {
		log.Printf("[Scheduler] Extraction failed: %v", err)
		return true
	}
	if !summary.Skipped {
		log.Printf("[Scheduler] Extraction processed %d messages (%d new offers)", summary.Processed, summary.OffersCreated)
	}
	return true
}
