package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/expand"
	"github.com/nexus-rd/nexus/pkg/state"
	"github.com/nexus-rd/nexus/pkg/synth"
)

// taskDescriber lets the orchestrator surface an agent's own description
// of what it is doing; agents that don't implement it get a generic label
type taskDescriber interface {
	Task() string
}

func taskOf(agent domain.Agent, fallback string) string {
	if described, ok := agent.(taskDescriber); ok {
		return described.Task()
	}
	return fallback
}

// expansionBudget tracks the session-wide sub-query ceiling. Phases run
// sequentially but sub-query runs within a phase are concurrent, so the
// budget is guarded.
type expansionBudget struct {
	mu        sync.Mutex
	remaining int
	seen      map[string]struct{}
}

func newExpansionBudget(limit int, rootQuery string) *expansionBudget {
	return &expansionBudget{
		remaining: limit,
		seen:      map[string]struct{}{expand.Normalize(rootQuery): {}},
	}
}

// admit filters sub-queries against the ceiling and the session-wide seen
// set, marking admitted ones as seen. Returns admitted and dropped counts.
func (b *expansionBudget) admit(candidates []domain.SubQuery) ([]domain.SubQuery, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	admitted := make([]domain.SubQuery, 0, len(candidates))
	for _, sq := range candidates {
		if b.remaining <= 0 {
			break
		}
		key := expand.Normalize(sq.Query)
		if _, dup := b.seen[key]; dup {
			continue
		}
		b.seen[key] = struct{}{}
		b.remaining--
		admitted = append(admitted, sq)
	}
	return admitted, len(candidates) - len(admitted)
}

func (b *expansionBudget) snapshot() map[string]struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]struct{}, len(b.seen))
	for k := range b.seen {
		out[k] = struct{}{}
	}
	return out
}

// runSession drives a session from queued to a terminal phase. Agent
// failures degrade the session (error status, empty contribution); only
// cancellation and state violations fail it.
func (o *Orchestrator) runSession(ctx context.Context, sess *state.Session) {
	if o.telemetry != nil {
		var span trace.Span
		ctx, span = o.telemetry.StartSession(ctx, sess.ID(), sess.Query().Query, sess.Query().MaxRecursionDepth)
		defer span.End()
	}
	defer o.finish(ctx, sess)

	budget := newExpansionBudget(o.cfg.MaxSubQueries, sess.Query().Query)

	for _, step := range phasePlan {
		if ctx.Err() != nil {
			o.failSession(ctx, sess, ctx.Err())
			return
		}
		if err := sess.Transition(step.phase); err != nil {
			o.failSession(ctx, sess, err)
			return
		}
		o.publish(sess)

		o.instrumentPhase(ctx, sess, step.phase, func(pctx context.Context) {
			o.runResearchPhase(pctx, sess, step.agent, budget)
		})
	}

	if ctx.Err() != nil {
		o.failSession(ctx, sess, ctx.Err())
		return
	}
	if err := o.runVerification(ctx, sess); err != nil {
		o.failSession(ctx, sess, err)
		return
	}

	if ctx.Err() != nil {
		o.failSession(ctx, sess, ctx.Err())
		return
	}
	if err := o.runSynthesis(ctx, sess); err != nil {
		o.failSession(ctx, sess, err)
		return
	}

	if err := sess.Transition(domain.PhaseCompleted); err != nil {
		o.failSession(ctx, sess, err)
		return
	}
	if o.logger != nil {
		o.logger.Info(ctx, "session completed", map[string]interface{}{
			"session_id":  sess.ID(),
			"findings":    len(sess.Findings()),
			"sources":     sess.SourcesAnalyzed(),
			"sub_queries": sess.SubQueriesProcessed(),
			"duration_ms": time.Since(sess.StartedAt()).Milliseconds(),
		})
	}
}

func (o *Orchestrator) failSession(ctx context.Context, sess *state.Session, err error) {
	sess.Fail(err)
	if o.logger != nil {
		o.logger.Error(ctx, "session failed", err, map[string]interface{}{
			"session_id": sess.ID(),
			"phase":      string(sess.Phase()),
		})
	}
}

func (o *Orchestrator) instrumentPhase(ctx context.Context, sess *state.Session, phase domain.Phase, fn func(context.Context)) {
	start := time.Now()
	if o.telemetry != nil {
		_ = o.telemetry.InstrumentPhase(ctx, sess.ID(), string(phase), func(pctx context.Context) error {
			fn(pctx)
			return nil
		})
	} else {
		fn(ctx)
	}
	if o.metrics != nil {
		o.metrics.RecordPhase(ctx, string(phase), time.Since(start))
	}
}

// runResearchPhase runs the phase's agent against the root query, then
// expands its findings into sub-queries and works through them
// breadth-first, one wave of concurrent runs per depth level.
func (o *Orchestrator) runResearchPhase(ctx context.Context, sess *state.Session, agentID domain.AgentID, budget *expansionBudget) {
	agent := o.agents[agentID]

	o.setAgentRunning(ctx, sess, agentID, taskOf(agent, "researching"))

	rootFindings, err := o.runAgent(ctx, sess, agent, sess.Query(), 0)
	if err != nil {
		o.setAgentFailed(ctx, sess, agentID, err)
		return
	}
	sess.AppendFindings(rootFindings...)
	o.setAgentProgress(ctx, sess, agentID, 60, len(rootFindings))

	wave := rootFindings
	for len(wave) > 0 && ctx.Err() == nil {
		subQueries := o.expandWave(ctx, sess, wave, budget)
		if len(subQueries) == 0 {
			break
		}
		wave = o.runSubQueries(ctx, sess, agent, subQueries)
	}

	o.setAgentCompleted(ctx, sess, agentID, len(sess.FindingsByAgent(agentID)))
}

// expandWave derives sub-queries from a set of findings, applying the
// fan-out cap per finding and the session budget and dedupe across all
func (o *Orchestrator) expandWave(ctx context.Context, sess *state.Session, findings []domain.Finding, budget *expansionBudget) []domain.SubQuery {
	seen := budget.snapshot()
	maxDepth := sess.Query().MaxRecursionDepth

	var candidates []domain.SubQuery
	for _, finding := range findings {
		if finding.Depth+1 > maxDepth {
			continue
		}
		for _, sq := range o.expander.Expand(finding, seen) {
			seen[expand.Normalize(sq.Query)] = struct{}{}
			candidates = append(candidates, sq)
		}
	}

	admitted, dropped := budget.admit(candidates)
	if o.metrics != nil {
		o.metrics.RecordExpansion(ctx, len(admitted), dropped)
	}
	if dropped > 0 && o.logger != nil {
		o.logger.Debug(ctx, "sub-queries dropped at ceiling", map[string]interface{}{
			"session_id": sess.ID(),
			"dropped":    dropped,
		})
	}
	return admitted
}

// runSubQueries fans the sub-queries of one wave out concurrently. A
// failed sub-query run contributes nothing but never blocks its siblings.
func (o *Orchestrator) runSubQueries(ctx context.Context, sess *state.Session, agent domain.Agent, subQueries []domain.SubQuery) []domain.Finding {
	var (
		mu       sync.Mutex
		produced []domain.Finding
		wg       sync.WaitGroup
	)

	for _, sq := range subQueries {
		wg.Add(1)
		go func() {
			defer wg.Done()

			query := sess.Query()
			query.Query = sq.Query

			findings, err := o.runAgent(ctx, sess, agent, query, sq.Depth)
			sess.AddResearchPath(domain.ResearchPath{
				FromQuery: sq.ParentFinding,
				ToQuery:   sq.Query,
				Origin:    sq.Origin,
				Depth:     sq.Depth,
			})
			if err != nil {
				expErr := &domain.ExpansionError{Finding: sq.ParentFinding, Err: err}
				if o.logger != nil {
					o.logger.Warn(ctx, "sub-query run failed", map[string]interface{}{
						"session_id": sess.ID(),
						"agent":      string(agent.ID()),
						"sub_query":  sq.Query,
						"depth":      sq.Depth,
						"error":      expErr.Error(),
					})
				}
				return
			}
			sess.AppendFindings(findings...)

			mu.Lock()
			produced = append(produced, findings...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	o.publish(sess)
	return produced
}

// runAgent executes one agent run under the agent timeout, stamping the
// recursion depth on its findings. Partial output from failed runs is
// discarded wholesale.
func (o *Orchestrator) runAgent(ctx context.Context, sess *state.Session, agent domain.Agent, query domain.ResearchQuery, depth int) ([]domain.Finding, error) {
	runCtx := ctx
	if o.cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.AgentTimeout)
		defer cancel()
	}

	start := time.Now()
	var findings []domain.Finding

	run := func(rctx context.Context) (int, error) {
		result, err := agent.Execute(rctx, query, sess)
		if err != nil {
			return 0, err
		}
		findings = result.Findings
		return len(findings), nil
	}

	var err error
	if o.telemetry != nil {
		err = o.telemetry.InstrumentAgentRun(runCtx, string(agent.ID()), depth, run)
	} else {
		_, err = run(runCtx)
	}

	if o.metrics != nil {
		o.metrics.RecordAgentRun(ctx, string(agent.ID()), time.Since(start), err == nil)
	}
	if err != nil {
		return nil, &domain.AgentError{Agent: agent.ID(), Phase: sess.Phase(), Err: err}
	}

	for i := range findings {
		findings[i].Agent = agent.ID()
		findings[i].Depth = depth
	}
	return findings, nil
}

// runVerification extracts claims from the accumulated findings and runs
// them all through the verifier. Only cancellation can error here; weak
// evidence degrades confidence, never the session.
func (o *Orchestrator) runVerification(ctx context.Context, sess *state.Session) error {
	if err := sess.Transition(domain.PhaseVerification); err != nil {
		return err
	}
	o.setAgentRunning(ctx, sess, domain.AgentVerifier, "cross-checking claims against independent evidence")

	claims := extractClaims(sess.Findings())
	sess.AddClaims(claims...)

	var (
		verified []domain.VerifiedClaim
		summary  domain.VerificationSummary
	)
	var verifyErr error
	o.instrumentPhase(ctx, sess, domain.PhaseVerification, func(pctx context.Context) {
		verified, summary, verifyErr = o.verifier.VerifyAll(pctx, claims)
	})
	if verifyErr != nil {
		o.setAgentFailed(ctx, sess, domain.AgentVerifier, verifyErr)
		return verifyErr
	}

	sess.SetVerification(verified, summary)
	sess.AddSources(summary.TotalSourcesUsed)
	o.setAgentCompleted(ctx, sess, domain.AgentVerifier, summary.TotalClaims)
	return nil
}

// runSynthesis builds the final report and seals the session
func (o *Orchestrator) runSynthesis(ctx context.Context, sess *state.Session) error {
	if err := sess.Transition(domain.PhaseSynthesis); err != nil {
		return err
	}
	o.setAgentRunning(ctx, sess, domain.AgentSynthesizer, "building the investment report")

	var (
		report *domain.Report
		err    error
	)
	o.instrumentPhase(ctx, sess, domain.PhaseSynthesis, func(pctx context.Context) {
		report, err = o.synthesizer.Build(pctx, synth.Input{
			SessionID:     sess.ID(),
			Query:         sess.Query(),
			Findings:      sess.Findings(),
			Verified:      sess.VerifiedClaims(),
			Verification:  sess.Verification(),
			ResearchPaths: sess.ResearchPaths(),
			Sources:       sess.SourcesAnalyzed(),
			SubQueries:    sess.SubQueriesProcessed(),
			StartedAt:     sess.StartedAt(),
		})
	})
	if err != nil {
		o.setAgentFailed(ctx, sess, domain.AgentSynthesizer, err)
		return err
	}
	if err := sess.SetReport(report); err != nil {
		return err
	}
	o.setAgentCompleted(ctx, sess, domain.AgentSynthesizer, len(report.Opportunities))
	return nil
}

// extractClaims lifts claim texts off findings into standalone claims. A
// claim starts at the authority of the best source backing its finding.
func extractClaims(findings []domain.Finding) []domain.Claim {
	var claims []domain.Claim
	for _, finding := range findings {
		if len(finding.Claims) == 0 {
			continue
		}
		confidence := 0.5
		for _, src := range finding.Sources {
			if src.AuthorityScore > confidence {
				confidence = src.AuthorityScore
			}
		}
		for _, text := range finding.Claims {
			if text == "" {
				continue
			}
			claims = append(claims, domain.Claim{
				ID:         uuid.NewString(),
				Text:       text,
				Origin:     finding.Agent,
				Confidence: confidence,
				Sources:    finding.Sources,
			})
		}
	}
	return claims
}

func (o *Orchestrator) setAgentRunning(ctx context.Context, sess *state.Session, id domain.AgentID, task string) {
	_ = sess.UpdateAgent(id, func(st *domain.AgentState) {
		st.Status = domain.AgentStatusRunning
		st.CurrentTask = task
		st.Progress = 10
		st.Error = ""
	})
	o.publish(sess)
}

func (o *Orchestrator) setAgentProgress(ctx context.Context, sess *state.Session, id domain.AgentID, progress float64, results int) {
	_ = sess.UpdateAgent(id, func(st *domain.AgentState) {
		st.Progress = progress
		st.ResultCount = results
	})
	o.publish(sess)
}

func (o *Orchestrator) setAgentCompleted(ctx context.Context, sess *state.Session, id domain.AgentID, results int) {
	_ = sess.UpdateAgent(id, func(st *domain.AgentState) {
		st.Status = domain.AgentStatusCompleted
		st.CurrentTask = ""
		st.Progress = 100
		st.ResultCount = results
	})
	o.publish(sess)
}

func (o *Orchestrator) setAgentFailed(ctx context.Context, sess *state.Session, id domain.AgentID, err error) {
	_ = sess.UpdateAgent(id, func(st *domain.AgentState) {
		st.Status = domain.AgentStatusError
		st.CurrentTask = ""
		st.Error = err.Error()
	})
	o.publish(sess)
}
