package agents

import (
	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// TechTrend tracks the research frontier: publication momentum, maturity
// signals and the techniques about to leave the lab
type TechTrend struct {
	*researchAgent
}

// NewTechTrend creates the technology trend agent
func NewTechTrend(engine domain.ReasoningEngine, searcher domain.EvidenceSearcher, logger observability.Logger, opts ...Option) *TechTrend {
	return &TechTrend{
		researchAgent: newResearchAgent(profile{
			id:   domain.AgentTechTrend,
			task: "tracking technology trends",
			queryAngles: []string{
				"research breakthrough recent",
				"technology readiness commercialization",
				"emerging technique publications",
			},
			brief: "You are a technology scout. From the evidence below, identify which " +
				"approaches are gaining publication momentum, how mature each is, and which " +
				"are close enough to commercialization to matter for investment timing.",
		}, engine, searcher, logger, opts...),
	}
}
