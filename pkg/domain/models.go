package domain

import (
	"time"
)

// AgentStatus represents the execution state of a single agent within a session
type AgentStatus string

const (
	AgentStatusIdle      AgentStatus = "idle"
	AgentStatusRunning   AgentStatus = "running"
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusError     AgentStatus = "error"
)

// Phase represents the current phase of a research session
type Phase string

const (
	PhaseQueued         Phase = "queued"
	PhasePatentSearch   Phase = "patent_search"
	PhaseMarketAnalysis Phase = "market_analysis"
	PhaseTechTrends     Phase = "tech_trends"
	PhaseVerification   Phase = "verification"
	PhaseSynthesis      Phase = "synthesis"
	PhaseCompleted      Phase = "completed"
	PhaseFailed         Phase = "failed"
)

// Terminal reports whether the phase admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// AgentID identifies one of the fixed set of research agents
type AgentID string

const (
	AgentPatentScout   AgentID = "patent_scout"
	AgentMarketAnalyst AgentID = "market_analyst"
	AgentTechTrend     AgentID = "tech_trend"
	AgentVerifier      AgentID = "verifier"
	AgentSynthesizer   AgentID = "synthesizer"
)

// KnownAgents is the closed set of agent identifiers declared at session
// creation. Every session carries a status entry for each of these for its
// entire lifetime; the set never changes at runtime.
func KnownAgents() []AgentID {
	return []AgentID{
		AgentPatentScout,
		AgentMarketAnalyst,
		AgentTechTrend,
		AgentVerifier,
		AgentSynthesizer,
	}
}

// ResearchQuery is the immutable input that starts a session
type ResearchQuery struct {
	Query             string   `json:"query"`
	Domain            string   `json:"domain,omitempty"`
	GeographicScope   []string `json:"geographic_scope,omitempty"`
	TimeRangeYears    int      `json:"time_range_years"`
	MaxRecursionDepth int      `json:"max_recursion_depth"`
}

// AgentState tracks one agent's progress within a session
type AgentState struct {
	AgentID     AgentID     `json:"agent_id"`
	Status      AgentStatus `json:"status"`
	CurrentTask string      `json:"current_task,omitempty"`
	Progress    float64     `json:"progress"` // 0-100
	ResultCount int         `json:"result_count"`
	Error       string      `json:"error,omitempty"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Finding is a unit of raw output from an agent, tagged with its origin
// and the recursion depth at which it was produced
type Finding struct {
	ID        string                 `json:"id"`
	Agent     AgentID                `json:"agent"`
	Depth     int                    `json:"depth"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	Claims    []string               `json:"claims,omitempty"`
	Hints     []string               `json:"whitespace_hints,omitempty"`
	Sources   []EvidenceSource       `json:"sources,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// SubQuery is a follow-up query derived from a finding by the expander.
// Transient: processed into findings or discarded at the depth limit.
type SubQuery struct {
	ParentFinding string  `json:"parent_finding"`
	Query         string  `json:"query"`
	Depth         int     `json:"depth"`
	Origin        AgentID `json:"origin"`
}

// ResearchPath records a single expansion edge for report metadata
type ResearchPath struct {
	FromQuery string  `json:"from"`
	ToQuery   string  `json:"to"`
	Origin    AgentID `json:"origin"`
	Depth     int     `json:"depth"`
}

// AgentResult is what an agent returns from a successful run
type AgentResult struct {
	Findings    []Finding `json:"findings"`
	ResultCount int       `json:"result_count"`
}

// EvidenceSource references a source consulted during research or verification
type EvidenceSource struct {
	Type           string  `json:"type"` // patent, paper, web, database
	Name           string  `json:"name"`
	URL            string  `json:"url,omitempty"`
	AuthorityScore float64 `json:"authority_score"` // 0-1
	Excerpt        string  `json:"excerpt,omitempty"`
}

// Claim is an assertion extracted from findings, subject to adversarial
// verification. Verification never mutates a claim in place; it produces a
// VerifiedClaim carrying the new confidence.
type Claim struct {
	ID         string           `json:"id"`
	Text       string           `json:"text"`
	Origin     AgentID          `json:"origin"`
	Confidence float64          `json:"confidence"` // 0-1
	Sources    []EvidenceSource `json:"sources,omitempty"`
}

// VerifiedClaim is the verification verdict for a claim
type VerifiedClaim struct {
	Claim           Claim            `json:"claim"`
	Disputed        bool             `json:"disputed"`
	Confidence      float64          `json:"confidence"`
	CounterEvidence []EvidenceSource `json:"counter_evidence,omitempty"`
	VerifiedAt      time.Time        `json:"verified_at"`
}

// VerificationSummary aggregates verification outcomes for the report
type VerificationSummary struct {
	TotalClaims        int            `json:"total_claims"`
	DisputedClaims     int            `json:"disputed_claims"`
	ConfirmedClaims    int            `json:"confirmed_claims"`
	TotalSourcesUsed   int            `json:"total_sources_used"`
	SourceDistribution map[string]int `json:"source_distribution,omitempty"`
	AverageConfidence  float64        `json:"average_confidence"`
}

// ScoreFactors are the four normalized inputs of the investment score.
// A factor left at zero contributes nothing; it is never an error.
type ScoreFactors struct {
	ClaimConfidence float64 `json:"claim_confidence"`
	MarketImpact    float64 `json:"market_impact"`
	TimingWindow    float64 `json:"timing_window"`
	CompetitionGap  float64 `json:"competition_gap"`
}

// Opportunity is a synthesized, scored gap in patent/market/technology coverage
type Opportunity struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Evidence        []string `json:"evidence,omitempty"`
	Confidence      float64  `json:"confidence"`       // 0-1
	InvestmentScore float64  `json:"investment_score"` // 0-100
}

// ExecutiveSummary is the headline section of a report
type ExecutiveSummary struct {
	Headline          string   `json:"headline"`
	KeyFinding        string   `json:"key_finding"`
	TopOpportunities  []string `json:"top_opportunities"`
	NextSteps         []string `json:"next_steps,omitempty"`
	OverallConfidence float64  `json:"overall_confidence"`
}

// ReportMetadata carries processing statistics
type ReportMetadata struct {
	ElapsedSeconds       float64 `json:"elapsed_seconds"`
	TotalSourcesAnalyzed int     `json:"total_sources_analyzed"`
	TotalFindings        int     `json:"total_findings"`
	SubQueriesProcessed  int     `json:"sub_queries_processed"`
}

// Report is the terminal synthesis artifact, created exactly once when a
// session completes and immutable thereafter
type Report struct {
	ID            string              `json:"id"`
	SessionID     string              `json:"session_id"`
	Query         ResearchQuery       `json:"query"`
	Executive     ExecutiveSummary    `json:"executive_summary"`
	Opportunities []Opportunity       `json:"opportunities"`
	PatentNotes   []string            `json:"patent_notes,omitempty"`
	MarketNotes   []string            `json:"market_notes,omitempty"`
	TrendNotes    []string            `json:"trend_notes,omitempty"`
	Verification  VerificationSummary `json:"verification"`
	ResearchPaths []ResearchPath      `json:"research_paths,omitempty"`
	Metadata      ReportMetadata      `json:"metadata"`
	GeneratedAt   time.Time           `json:"generated_at"`
}

// SessionSnapshot is an immutable view of a session's state, safe to hand
// to observers. The broadcaster and the status endpoint only ever see these.
type SessionSnapshot struct {
	SessionID       string                 `json:"session_id"`
	Query           ResearchQuery          `json:"query"`
	Phase           Phase                  `json:"phase"`
	AgentStates     map[AgentID]AgentState `json:"agent_states"`
	FindingCount    int                    `json:"finding_count"`
	SourcesAnalyzed int                    `json:"sources_analyzed"`
	Error           string                 `json:"error,omitempty"`
	StartedAt       time.Time              `json:"started_at"`
	CompletedAt     *time.Time             `json:"completed_at,omitempty"`
	Sequence        uint64                 `json:"sequence"`
}
