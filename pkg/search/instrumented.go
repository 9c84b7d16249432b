package search

import (
	"context"
	"fmt"
	"time"

	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// InstrumentedSearcher wraps an evidence searcher with observability
type InstrumentedSearcher struct {
	searcher  domain.EvidenceSearcher
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	provider  string
}

// NewInstrumentedSearcher creates a new instrumented evidence searcher.
// Metrics may be nil.
func NewInstrumentedSearcher(searcher domain.EvidenceSearcher, telemetry *observability.Telemetry, metrics *observability.Metrics, provider string) (*InstrumentedSearcher, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if telemetry == nil {
		return nil, fmt.Errorf("telemetry is required")
	}

	return &InstrumentedSearcher{
		searcher:  searcher,
		telemetry: telemetry,
		metrics:   metrics,
		provider:  provider,
	}, nil
}

// Search performs an instrumented evidence lookup
func (s *InstrumentedSearcher) Search(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
	var sources []domain.EvidenceSource

	start := time.Now()
	err := s.telemetry.InstrumentLookup(ctx, s.provider, query, func(ctx context.Context) (int, error) {
		var err error
		sources, err = s.searcher.Search(ctx, query, limit)
		return len(sources), err
	})
	if s.metrics != nil {
		s.metrics.RecordLookup(ctx, s.provider, time.Since(start), err == nil)
	}
	if err != nil {
		return nil, err
	}
	return sources, nil
}
