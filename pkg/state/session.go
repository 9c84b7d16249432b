package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexus-rd/nexus/pkg/domain"
)

// phaseRank orders the session phases. Transitions may only move to a
// higher rank; failed is reachable from any non-terminal phase.
var phaseRank = map[domain.Phase]int{
	domain.PhaseQueued:         0,
	domain.PhasePatentSearch:   1,
	domain.PhaseMarketAnalysis: 2,
	domain.PhaseTechTrends:     3,
	domain.PhaseVerification:   4,
	domain.PhaseSynthesis:      5,
	domain.PhaseCompleted:      6,
}

// Session holds the complete mutable state of one research session. All
// access goes through its methods; callers never see interior pointers.
type Session struct {
	mu sync.RWMutex

	id              string
	query           domain.ResearchQuery
	phase           domain.Phase
	agents          map[domain.AgentID]domain.AgentState
	findings        []domain.Finding
	researchPaths   []domain.ResearchPath
	claims          []domain.Claim
	verified        []domain.VerifiedClaim
	verification    domain.VerificationSummary
	report          *domain.Report
	sourcesAnalyzed int
	subQueriesDone  int
	errMsg          string
	sequence        uint64
	startedAt       time.Time
	completedAt     *time.Time
}

// NewSession creates a session in the queued phase with the full agent set
// registered idle. The agent set is fixed for the session's lifetime.
func NewSession(query domain.ResearchQuery) *Session {
	now := time.Now()
	agents := make(map[domain.AgentID]domain.AgentState, len(domain.KnownAgents()))
	for _, id := range domain.KnownAgents() {
		agents[id] = domain.AgentState{
			AgentID:   id,
			Status:    domain.AgentStatusIdle,
			UpdatedAt: now,
		}
	}

	return &Session{
		id:        uuid.New().String(),
		query:     query,
		phase:     domain.PhaseQueued,
		agents:    agents,
		startedAt: now,
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Query returns the immutable research query
func (s *Session) Query() domain.ResearchQuery {
	return s.query
}

// Phase returns the current phase
func (s *Session) Phase() domain.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Transition moves the session to a later phase. Moving backwards, out of
// a terminal phase, or to an unknown phase returns a state violation.
func (s *Session) Transition(to domain.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return fmt.Errorf("%w: session %s is %s", domain.ErrStateViolation, s.id, s.phase)
	}

	if to == domain.PhaseFailed {
		s.phase = domain.PhaseFailed
		now := time.Now()
		s.completedAt = &now
		s.sequence++
		return nil
	}

	fromRank, ok := phaseRank[s.phase]
	if !ok {
		return fmt.Errorf("%w: unknown phase %s", domain.ErrStateViolation, s.phase)
	}
	toRank, ok := phaseRank[to]
	if !ok {
		return fmt.Errorf("%w: unknown phase %s", domain.ErrStateViolation, to)
	}
	if toRank <= fromRank {
		return fmt.Errorf("%w: cannot move from %s to %s", domain.ErrStateViolation, s.phase, to)
	}

	s.phase = to
	if to == domain.PhaseCompleted {
		now := time.Now()
		s.completedAt = &now
	}
	s.sequence++
	return nil
}

// Fail moves the session to the failed phase and records the cause. Failing
// an already terminal session is a no-op so late agent errors can't clobber
// a completed run.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return
	}

	s.phase = domain.PhaseFailed
	if err != nil {
		s.errMsg = err.Error()
	}
	now := time.Now()
	s.completedAt = &now
	s.sequence++
}

// UpdateAgent applies a mutation to one agent's state entry. Unknown agent
// identifiers are rejected; the agent set is closed at creation. Terminal
// sessions reject updates so a straggling run can't rewrite the record.
func (s *Session) UpdateAgent(id domain.AgentID, fn func(*domain.AgentState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return fmt.Errorf("%w: session %s is %s", domain.ErrStateViolation, s.id, s.phase)
	}

	agent, ok := s.agents[id]
	if !ok {
		return fmt.Errorf("%w: unknown agent %s", domain.ErrStateViolation, id)
	}

	fn(&agent)
	agent.AgentID = id
	agent.UpdatedAt = time.Now()
	s.agents[id] = agent
	s.sequence++
	return nil
}

// AppendFindings adds findings to the append-only log and counts their
// sources toward the monotone sources-analyzed total. Findings arriving
// after the session is terminal are discarded.
func (s *Session) AppendFindings(findings ...domain.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase.Terminal() {
		return
	}

	for _, f := range findings {
		if f.ID == "" {
			f.ID = uuid.New().String()
		}
		if f.Timestamp.IsZero() {
			f.Timestamp = time.Now()
		}
		s.findings = append(s.findings, f)
		s.sourcesAnalyzed += len(f.Sources)
	}
	s.sequence++
}

// AddSources increments the sources-analyzed counter for lookups that did
// not produce a finding (verification, discarded expansions)
func (s *Session) AddSources(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return
	}
	s.sourcesAnalyzed += n
	s.sequence++
}

// AddResearchPath records one expansion edge
func (s *Session) AddResearchPath(path domain.ResearchPath) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return
	}
	s.researchPaths = append(s.researchPaths, path)
	s.subQueriesDone++
	s.sequence++
}

// AddClaims registers claims extracted from findings for later verification
func (s *Session) AddClaims(claims ...domain.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase.Terminal() {
		return
	}
	for _, c := range claims {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		s.claims = append(s.claims, c)
	}
	s.sequence++
}

// Claims returns a copy of the registered claims
func (s *Session) Claims() []domain.Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	claims := make([]domain.Claim, len(s.claims))
	copy(claims, s.claims)
	return claims
}

// SetVerification stores the verification verdicts and their summary
func (s *Session) SetVerification(verified []domain.VerifiedClaim, summary domain.VerificationSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified = verified
	s.verification = summary
	s.sequence++
}

// VerifiedClaims returns a copy of the verification verdicts
func (s *Session) VerifiedClaims() []domain.VerifiedClaim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	verified := make([]domain.VerifiedClaim, len(s.verified))
	copy(verified, s.verified)
	return verified
}

// Verification returns the verification summary
func (s *Session) Verification() domain.VerificationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verification
}

// SetReport stores the final report. A session gets exactly one report;
// a second attempt is a state violation.
func (s *Session) SetReport(report *domain.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report != nil {
		return fmt.Errorf("%w: session %s already has a report", domain.ErrStateViolation, s.id)
	}
	s.report = report
	s.sequence++
	return nil
}

// Report returns the final report, or an error while it's not available.
// A failed session surfaces its failure instead of a missing report.
func (s *Session) Report() (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.phase == domain.PhaseFailed {
		if s.errMsg != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionFailed, s.errMsg)
		}
		return nil, domain.ErrSessionFailed
	}
	if s.report == nil {
		return nil, fmt.Errorf("%w: session %s is %s", domain.ErrNotReady, s.id, s.phase)
	}
	return s.report, nil
}

// Findings returns a copy of all findings appended so far
func (s *Session) Findings() []domain.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	findings := make([]domain.Finding, len(s.findings))
	copy(findings, s.findings)
	return findings
}

// FindingsByAgent returns a copy of findings produced by one agent
func (s *Session) FindingsByAgent(id domain.AgentID) []domain.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var findings []domain.Finding
	for _, f := range s.findings {
		if f.Agent == id {
			findings = append(findings, f)
		}
	}
	return findings
}

// ResearchPaths returns a copy of the expansion log
func (s *Session) ResearchPaths() []domain.ResearchPath {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]domain.ResearchPath, len(s.researchPaths))
	copy(paths, s.researchPaths)
	return paths
}

// SourcesAnalyzed returns the monotone sources-analyzed total
func (s *Session) SourcesAnalyzed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sourcesAnalyzed
}

// SubQueriesProcessed returns the number of expansion edges followed
func (s *Session) SubQueriesProcessed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subQueriesDone
}

// StartedAt returns the session creation time
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Snapshot returns an immutable view of the session. Agent states are
// deep-copied; the sequence number reflects every mutation so far.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agents := make(map[domain.AgentID]domain.AgentState, len(s.agents))
	for k, v := range s.agents {
		agents[k] = v
	}

	return domain.SessionSnapshot{
		SessionID:       s.id,
		Query:           s.query,
		Phase:           s.phase,
		AgentStates:     agents,
		FindingCount:    len(s.findings),
		SourcesAnalyzed: s.sourcesAnalyzed,
		Error:           s.errMsg,
		StartedAt:       s.startedAt,
		CompletedAt:     s.completedAt,
		Sequence:        s.sequence,
	}
}
