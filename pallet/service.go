package pallet

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pallet-ledger/generic"
)

// =============================================================================
// SERVICE - Engine bound to its collaborators
// =============================================================================

// Observer is notified after each aggregation pass. obs.LedgerMetrics implements it.
type Observer interface {
	ObserveSummaries(s Summaries, took time.Duration)
	ObserveReport(found, fallback bool)
}

// Service loads a fresh Snapshot and RateConfig at the start of every call
// and hands them to the Engine. Nothing is cached between calls, so a rate
// change is visible on the next request.
type Service struct {
	Source   RecordSource
	Rates    RateProvider
	Engine   *Engine
	Observer Observer // optional
}

// NewService wires a service.
func NewService(source RecordSource, rates RateProvider, engine *Engine) *Service {
	return &Service{Source: source, Rates: rates, Engine: engine}
}

func (s *Service) load(ctx context.Context) (Snapshot, RateConfig, error) {
	snap, err := s.Source.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, RateConfig{}, fmt.Errorf("load snapshot: %w", err)
	}
	rates, err := s.Rates.Rates(ctx)
	if err != nil {
		return Snapshot{}, RateConfig{}, fmt.Errorf("load rates: %w", err)
	}
	return snap, rates, nil
}

// Summaries runs a full aggregation pass.
func (s *Service) Summaries(ctx context.Context) (Summaries, error) {
	snap, rates, err := s.load(ctx)
	if err != nil {
		return Summaries{}, err
	}
	start := time.Now()
	sums := s.Engine.Summarize(snap, rates)
	if s.Observer != nil {
		s.Observer.ObserveSummaries(sums, time.Since(start))
	}
	return sums, nil
}

// Report builds the report of a document number. It returns
// ErrDocumentNotFound when nothing matches.
func (s *Service) Report(ctx context.Context, number string) (*Report, error) {
	snap, rates, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	rep := s.Engine.BuildReport(snap, rates, number)
	if s.Observer != nil {
		s.Observer.ObserveReport(rep != nil, rep != nil && rep.FallbackMatch)
	}
	if rep == nil {
		return nil, fmt.Errorf("%w: %q", ErrDocumentNotFound, number)
	}
	return rep, nil
}

// StorageDetails returns the stock on hand for month.
func (s *Service) StorageDetails(ctx context.Context, month generic.MonthKey) (StorageDetails, error) {
	snap, err := s.Source.Snapshot(ctx)
	if err != nil {
		return StorageDetails{}, fmt.Errorf("load snapshot: %w", err)
	}
	return s.Engine.StorageDetails(snap, month), nil
}

// StorageLines returns the per-record storage breakdown of month.
func (s *Service) StorageLines(ctx context.Context, month generic.MonthKey) ([]StorageLine, error) {
	snap, rates, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return s.Engine.StorageLines(snap, rates, month), nil
}

// Projection is the projected storage cost for the rest of month, together
// with the equivalent stock it was projected from.
type Projection struct {
	Month           generic.MonthKey
	CurrentStock    int
	DaysRemaining   int
	ProjectedCost   decimal.Decimal
	IsCurrentPeriod bool
}

// Projection projects the storage cost of the current month.
func (s *Service) Projection(ctx context.Context, month generic.MonthKey) (Projection, error) {
	snap, rates, err := s.load(ctx)
	if err != nil {
		return Projection{}, err
	}
	today := s.Engine.Today()
	p := Projection{
		Month:           month,
		ProjectedCost:   s.Engine.ProjectStorageCost(snap, rates, month),
		IsCurrentPeriod: month == today.MonthKey(),
	}
	if p.IsCurrentPeriod {
		p.CurrentStock = s.Engine.CurrentEquivalentStock(snap)
		p.DaysRemaining = month.Days() - today.Day()
	}
	return p, nil
}

// DocumentsInMonth lists documents with entries in month.
func (s *Service) DocumentsInMonth(ctx context.Context, month generic.MonthKey) ([]Document, error) {
	snap, err := s.Source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return s.Engine.DocumentsInMonth(snap, month), nil
}

// RecordsInMonth lists records entering, or exiting, in month.
func (s *Service) RecordsInMonth(ctx context.Context, month generic.MonthKey, mv Movement) ([]EntryRecord, error) {
	snap, err := s.Source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return s.Engine.RecordsInMonth(snap, month, mv), nil
}
