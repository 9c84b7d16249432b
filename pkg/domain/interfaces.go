package domain

import (
	"context"
)

// ResearchService defines the external surface of the research core
type ResearchService interface {
	// CreateSession registers a new session and starts it asynchronously
	CreateSession(ctx context.Context, query ResearchQuery) (string, error)

	// GetStatus returns the latest snapshot of a session
	GetStatus(ctx context.Context, sessionID string) (*SessionSnapshot, error)

	// GetReport returns the final report of a completed session
	GetReport(ctx context.Context, sessionID string) (*Report, error)

	// Subscribe registers for status snapshots of a session
	Subscribe(ctx context.Context, sessionID string) (<-chan SessionSnapshot, func(), error)

	// Cancel requests graceful termination of a running session
	Cancel(ctx context.Context, sessionID string) error
}

// Agent is one member of the fixed research agent set. An agent either
// returns a result or an error; partial output from a failed run is
// discarded by the caller.
type Agent interface {
	// ID returns the agent's stable identifier
	ID() AgentID

	// Execute runs the agent against a query. Findings gathered so far
	// are available read-only through the view.
	Execute(ctx context.Context, query ResearchQuery, view FindingsView) (*AgentResult, error)
}

// FindingsView is the read-only window an agent gets into the session's
// accumulated findings
type FindingsView interface {
	// Findings returns a copy of all findings appended so far
	Findings() []Finding

	// FindingsByAgent returns a copy of findings produced by one agent
	FindingsByAgent(id AgentID) []Finding
}

// ReasoningEngine abstracts the language model used for analysis,
// claim extraction, and synthesis
type ReasoningEngine interface {
	// Generate produces a completion for a prompt
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateJSON produces a completion constrained to valid JSON
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// EvidenceSearcher abstracts external evidence lookup for research and
// adversarial verification
type EvidenceSearcher interface {
	// Search returns scored evidence sources for a query
	Search(ctx context.Context, query string, limit int) ([]EvidenceSource, error)
}
