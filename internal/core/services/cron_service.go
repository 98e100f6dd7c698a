package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	sweepBatchSize   = 100
	snapshotSchedule = "@hourly"
	jobTimeout       = 5 * time.Minute
)

// CronService runs the ledger's scheduled jobs
type CronService struct {
	cron          *cron.Cron
	ledger        *LoanLedger
	stats         *StatsService
	sweepSchedule string
}

// NewCronService creates a new cron service
func NewCronService(ledger *LoanLedger, stats *StatsService, sweepSchedule string) *CronService {
	return &CronService{
		cron:          cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		ledger:        ledger,
		stats:         stats,
		sweepSchedule: sweepSchedule,
	}
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.sweepSchedule, s.runExpirySweep); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.sweepSchedule, err)
	}
	if _, err := s.cron.AddFunc(snapshotSchedule, s.runExposureSnapshot); err != nil {
		return err
	}
	s.cron.Start()

	go s.runExposureSnapshot()

	log.Printf("⏰ Cron started [expiry sweep: %s, exposure snapshot: %s]", s.sweepSchedule, snapshotSchedule)
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	log.Println("⏰ Cron stopped")
}

// SweepExpired reports every newly expired proposal, one batch per ledger call
func (s *CronService) SweepExpired(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := s.ledger.SweepExpired(ctx, sweepBatchSize)
		total += n
		if err != nil {
			return total, err
		}
		if n < sweepBatchSize {
			return total, nil
		}
	}
}

func (s *CronService) runExpirySweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.SweepExpired(ctx)
	if err != nil {
		log.Printf("❌ Expiry sweep failed after %d loans: %v", n, err)
		return
	}
	if n > 0 {
		log.Printf("✅ Expiry sweep reported %d expired loans", n)
	}
}

func (s *CronService) runExposureSnapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.stats.SnapshotExposure(ctx); err != nil {
		log.Printf("❌ Exposure snapshot failed: %v", err)
	}
}
