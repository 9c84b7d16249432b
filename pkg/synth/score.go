package synth

import "github.com/nexus-rd/nexus/pkg/domain"

// clamp01 bounds a factor to [0, 1]. Missing factors arrive as zero and
// simply contribute nothing.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// InvestmentScore maps four normalized factors onto a 0-100 score. Each
// factor carries equal weight: 25 points at full strength.
func InvestmentScore(f domain.ScoreFactors) float64 {
	return 25 * (clamp01(f.ClaimConfidence) +
		clamp01(f.MarketImpact) +
		clamp01(f.TimingWindow) +
		clamp01(f.CompetitionGap))
}
