package verify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// Config tunes the adversarial verification pass
type Config struct {
	// Concurrency bounds the number of claims verified in parallel
	Concurrency int

	// DisputedBand is the confidence assigned to disputed claims
	DisputedBand float64

	// ConfirmedBand is the confidence assigned to corroborated claims
	ConfirmedBand float64

	// AuthorityThreshold is the minimum source authority for evidence to
	// count toward a verdict
	AuthorityThreshold float64

	// LookupTimeout bounds each evidence lookup
	LookupTimeout time.Duration
}

// DefaultConfig returns the standard verification bands
func DefaultConfig() Config {
	return Config{
		Concurrency:        4,
		DisputedBand:       0.4,
		ConfirmedBand:      0.9,
		AuthorityThreshold: 0.7,
		LookupTimeout:      30 * time.Second,
	}
}

// Verifier runs claims through adversarial verification: each claim is
// checked against independent evidence looking for contradiction before
// corroboration. Verdicts never mutate the input claims.
type Verifier struct {
	searcher domain.EvidenceSearcher
	cfg      Config
	logger   observability.Logger
	metrics  *observability.Metrics
}

// New creates a verifier. Metrics may be nil.
func New(searcher domain.EvidenceSearcher, cfg Config, logger observability.Logger, metrics *observability.Metrics) *Verifier {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Verifier{
		searcher: searcher,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// VerifyAll verifies every claim and aggregates a summary. Claims keep
// their input order in the result. Lookup failures leave the affected
// claim at its original confidence instead of failing the pass; only
// context cancellation aborts.
func (v *Verifier) VerifyAll(ctx context.Context, claims []domain.Claim) ([]domain.VerifiedClaim, domain.VerificationSummary, error) {
	verdicts := make([]domain.VerifiedClaim, len(claims))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Concurrency)

	for i, claim := range claims {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			verdicts[i] = v.verify(gctx, claim)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, domain.VerificationSummary{}, fmt.Errorf("verification aborted: %w", err)
	}

	return verdicts, v.summarize(verdicts), nil
}

// verify produces the verdict for one claim. Counter-evidence wins over
// corroboration; neither leaves the confidence unchanged.
func (v *Verifier) verify(ctx context.Context, claim domain.Claim) domain.VerifiedClaim {
	verdict := domain.VerifiedClaim{
		Claim:      claim,
		Confidence: claim.Confidence,
		VerifiedAt: time.Now(),
	}

	counter := v.lookup(ctx, claim.Text+" contradicting evidence limitations")
	support := v.lookup(ctx, claim.Text)

	var counterEvidence []domain.EvidenceSource
	for _, src := range counter {
		if src.AuthorityScore >= v.cfg.AuthorityThreshold {
			counterEvidence = append(counterEvidence, src)
		}
	}

	if len(counterEvidence) > 0 {
		verdict.Disputed = true
		verdict.Confidence = v.cfg.DisputedBand
		verdict.CounterEvidence = counterEvidence
	} else {
		for _, src := range support {
			if src.AuthorityScore >= v.cfg.AuthorityThreshold {
				verdict.Confidence = v.cfg.ConfirmedBand
				break
			}
		}
	}

	// The verdict gets its own sources slice: claims from one finding share
	// a backing array, and verify runs concurrently across claims
	sources := make([]domain.EvidenceSource, 0, len(claim.Sources)+len(support))
	sources = append(sources, claim.Sources...)
	sources = append(sources, support...)
	verdict.Claim.Sources = sources

	if v.metrics != nil {
		v.metrics.RecordVerification(ctx, verdict.Disputed)
	}

	return verdict
}

// lookup runs one evidence search, absorbing failures into an empty result
func (v *Verifier) lookup(ctx context.Context, query string) []domain.EvidenceSource {
	lctx := ctx
	if v.cfg.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, v.cfg.LookupTimeout)
		defer cancel()
	}

	sources, err := v.searcher.Search(lctx, query, 5)
	if err != nil {
		if v.logger != nil {
			v.logger.Warn(ctx, "evidence lookup failed", map[string]interface{}{
				"query": query,
				"error": err.Error(),
			})
		}
		return nil
	}
	return sources
}

// summarize aggregates verdicts into the report-facing summary
func (v *Verifier) summarize(verdicts []domain.VerifiedClaim) domain.VerificationSummary {
	summary := domain.VerificationSummary{
		TotalClaims:        len(verdicts),
		SourceDistribution: make(map[string]int),
	}

	var confidenceSum float64
	for _, verdict := range verdicts {
		confidenceSum += verdict.Confidence
		if verdict.Disputed {
			summary.DisputedClaims++
		} else if verdict.Confidence >= v.cfg.ConfirmedBand {
			summary.ConfirmedClaims++
		}

		for _, src := range verdict.Claim.Sources {
			summary.TotalSourcesUsed++
			summary.SourceDistribution[src.Type]++
		}
		for _, src := range verdict.CounterEvidence {
			summary.TotalSourcesUsed++
			summary.SourceDistribution[src.Type]++
		}
	}

	if len(verdicts) > 0 {
		summary.AverageConfidence = confidenceSum / float64(len(verdicts))
	}

	return summary
}
