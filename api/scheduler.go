/*
scheduler.go - Periodic stock recalculation

PURPOSE:
  Periodically runs a full aggregation pass and publishes the warehouse
  state as Prometheus gauges: equivalent stock on hand, storage cost
  projected to month end, and the number of records with issues.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Runs once immediately on Start
  - Each pass loads a fresh snapshot; nothing is carried between passes
  - A failed pass is logged and the next tick tries again

USAGE:
  scheduler := NewStockScheduler(service, metrics, time.Minute, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - obs/metrics.go: LedgerMetrics gauges
  - pallet/service.go: Summaries, StorageDetails, Projection
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/pallet-ledger/obs"
	"github.com/warp/pallet-ledger/pallet"
)

// StockScheduler refreshes ledger gauges on a fixed interval.
type StockScheduler struct {
	Service  *pallet.Service
	Metrics  *obs.LedgerMetrics
	Interval time.Duration
	Logger   zerolog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewStockScheduler creates a scheduler. A non-positive interval means one
// minute.
func NewStockScheduler(service *pallet.Service, metrics *obs.LedgerMetrics, interval time.Duration, logger zerolog.Logger) *StockScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &StockScheduler{
		Service:  service,
		Metrics:  metrics,
		Interval: interval,
		Logger:   logger,
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *StockScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		return
	}
	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.run(s.ticker, s.stop)

	s.Logger.Info().Dur("interval", s.Interval).Msg("stock scheduler started")
}

// Stop stops the scheduler and waits for a running pass to finish.
func (s *StockScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.wg.Wait()
	s.ticker = nil
	s.Logger.Info().Msg("stock scheduler stopped")
}

func (s *StockScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer s.wg.Done()

	s.refreshLogged()
	for {
		select {
		case <-ticker.C:
			s.refreshLogged()
		case <-stop:
			return
		}
	}
}

func (s *StockScheduler) refreshLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), s.Interval)
	defer cancel()
	if err := s.Refresh(ctx); err != nil {
		s.Logger.Error().Err(err).Msg("stock refresh failed")
	}
}

// Refresh runs one pass and updates the gauges.
func (s *StockScheduler) Refresh(ctx context.Context) error {
	month := s.Service.Engine.Today().MonthKey()

	sums, err := s.Service.Summaries(ctx)
	if err != nil {
		return fmt.Errorf("summaries: %w", err)
	}
	details, err := s.Service.StorageDetails(ctx, month)
	if err != nil {
		return fmt.Errorf("storage details: %w", err)
	}
	proj, err := s.Service.Projection(ctx, month)
	if err != nil {
		return fmt.Errorf("projection: %w", err)
	}
	if s.Metrics != nil {
		s.Metrics.SetStock(details, proj.ProjectedCost, time.Now())
	}

	s.Logger.Debug().
		Str("month", month.String()).
		Int("equivalent_normal", details.EquivalentNormal).
		Int("equivalent_frozen", details.EquivalentFrozen).
		Str("projected_cost", proj.ProjectedCost.String()).
		Int("issues", len(sums.Issues)).
		Msg("stock refreshed")
	return nil
}
