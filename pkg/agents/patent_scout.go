package agents

import (
	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// PatentScout hunts patent filings and flags whitespace: areas where
// activity is thin relative to the surrounding technology
type PatentScout struct {
	*researchAgent
}

// NewPatentScout creates the patent research agent
func NewPatentScout(engine domain.ReasoningEngine, searcher domain.EvidenceSearcher, logger observability.Logger, opts ...Option) *PatentScout {
	return &PatentScout{
		researchAgent: newResearchAgent(profile{
			id:   domain.AgentPatentScout,
			task: "searching patent databases",
			queryAngles: []string{
				"patent filings",
				"patent landscape whitespace",
				"intellectual property recent grants",
			},
			brief: "You are a patent analyst. From the evidence below, identify clusters of " +
				"patent activity, who holds them, and crucially where filings are sparse " +
				"relative to the technology's trajectory. Sparse areas are candidate whitespace.",
		}, engine, searcher, logger, opts...),
	}
}
