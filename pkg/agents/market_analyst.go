package agents

import (
	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// MarketAnalyst sizes demand, names the incumbents, and looks for segments
// the incumbents are not serving
type MarketAnalyst struct {
	*researchAgent
}

// NewMarketAnalyst creates the market research agent
func NewMarketAnalyst(engine domain.ReasoningEngine, searcher domain.EvidenceSearcher, logger observability.Logger, opts ...Option) *MarketAnalyst {
	return &MarketAnalyst{
		researchAgent: newResearchAgent(profile{
			id:   domain.AgentMarketAnalyst,
			task: "analyzing market signals",
			queryAngles: []string{
				"market size forecast",
				"competitive landscape incumbents",
				"customer demand unmet needs",
			},
			brief: "You are a market analyst. From the evidence below, estimate market size " +
				"and growth, name the dominant players, and identify customer segments or " +
				"use cases that current offerings leave unserved.",
		}, engine, searcher, logger, opts...),
	}
}
