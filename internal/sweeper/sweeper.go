// Package sweeper removes rows the flow is done with: verification requests
// past their retention window and session codes past expiry or already
// redeemed.
package sweeper

import (
	"context"
	"log"
	"sync"
	"time"

	"authbroker-go/internal/metrics"
)

// Store is the subset of the storage layer the sweeper needs.
type Store interface {
	CleanupVerifications(ctx context.Context, retention time.Duration) (int64, error)
	CleanupSessionCodes(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically purges stale rows from the store.
type Sweeper struct {
	store     Store
	interval  time.Duration
	retention time.Duration
	logger    *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Sweeper that runs every interval and retains verification
// requests for the given retention window.
func New(store Store, interval, retention time.Duration, logger *log.Logger) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		store:     store,
		interval:  interval,
		retention: retention,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the sweep loop. The first pass runs immediately.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.sweep()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

// Stop cancels the sweep loop and waits for an in-flight pass to finish.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	verifications, err := s.store.CleanupVerifications(ctx, s.retention)
	if err != nil {
		metrics.SweepFailures.Inc()
		s.logger.Printf("sweeper: verification cleanup failed: %v", err)
	} else if verifications > 0 {
		metrics.SweptRows.WithLabelValues("verification_requests").Add(float64(verifications))
		s.logger.Printf("sweeper: removed %d stale verification requests", verifications)
	}

	codes, err := s.store.CleanupSessionCodes(ctx, time.Now())
	if err != nil {
		metrics.SweepFailures.Inc()
		s.logger.Printf("sweeper: session code cleanup failed: %v", err)
	} else if codes > 0 {
		metrics.SweptRows.WithLabelValues("session_codes").Add(float64(codes))
		s.logger.Printf("sweeper: removed %d stale session codes", codes)
	}
}
