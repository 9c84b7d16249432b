package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nexus-rd/nexus/pkg/broadcast"
	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/expand"
	"github.com/nexus-rd/nexus/pkg/observability"
	"github.com/nexus-rd/nexus/pkg/state"
	"github.com/nexus-rd/nexus/pkg/synth"
	"github.com/nexus-rd/nexus/pkg/verify"
)

// Config tunes session execution
type Config struct {
	// MaxRecursionDepth caps the depth a query may request
	MaxRecursionDepth int

	// ExpansionFanOut caps sub-queries derived per finding
	ExpansionFanOut int

	// MaxSubQueries is the hard per-session ceiling on expansion,
	// regardless of depth and fan-out
	MaxSubQueries int

	// AgentTimeout bounds each agent run; hitting it is an agent error
	AgentTimeout time.Duration

	// SessionTimeout bounds the whole session
	SessionTimeout time.Duration

	// MaxActiveSessions rejects new sessions past this many in flight
	MaxActiveSessions int
}

// DefaultConfig returns standard execution limits
func DefaultConfig() Config {
	return Config{
		MaxRecursionDepth: 2,
		ExpansionFanOut:   3,
		MaxSubQueries:     24,
		AgentTimeout:      3 * time.Minute,
		SessionTimeout:    15 * time.Minute,
		MaxActiveSessions: 20,
	}
}

// Deps are the collaborators a running orchestrator needs. ResearchAgents
// must cover the patent scout, market analyst and tech trend identifiers.
type Deps struct {
	ResearchAgents []domain.Agent
	Verifier       *verify.Verifier
	Synthesizer    *synth.Synthesizer
	Broadcaster    *broadcast.Broadcaster
	Store          *state.MemoryStore
	Telemetry      *observability.Telemetry
	Logger         observability.Logger
	Metrics        *observability.Metrics
}

// phasePlan binds each research phase to the agent that owns it
var phasePlan = []struct {
	phase domain.Phase
	agent domain.AgentID
}{
	{domain.PhasePatentSearch, domain.AgentPatentScout},
	{domain.PhaseMarketAnalysis, domain.AgentMarketAnalyst},
	{domain.PhaseTechTrends, domain.AgentTechTrend},
}

// Orchestrator drives research sessions through their phases. It is the
// only writer of session state; everyone else observes through snapshots.
type Orchestrator struct {
	cfg         Config
	agents      map[domain.AgentID]domain.Agent
	verifier    *verify.Verifier
	synthesizer *synth.Synthesizer
	expander    *expand.Expander
	broadcaster *broadcast.Broadcaster
	store       *state.MemoryStore
	telemetry   *observability.Telemetry
	logger      observability.Logger
	metrics     *observability.Metrics

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// New creates an orchestrator. All three research agents are required; the
// agent set of every session is fixed here, once.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Broadcaster == nil {
		return nil, fmt.Errorf("broadcaster is required")
	}
	if deps.Verifier == nil {
		return nil, fmt.Errorf("verifier is required")
	}
	if deps.Synthesizer == nil {
		return nil, fmt.Errorf("synthesizer is required")
	}

	agents := make(map[domain.AgentID]domain.Agent, len(deps.ResearchAgents))
	for _, agent := range deps.ResearchAgents {
		agents[agent.ID()] = agent
	}
	for _, step := range phasePlan {
		if _, ok := agents[step.agent]; !ok {
			return nil, fmt.Errorf("missing research agent %s", step.agent)
		}
	}

	if cfg.MaxRecursionDepth < 0 {
		cfg.MaxRecursionDepth = 0
	}
	if cfg.ExpansionFanOut < 1 {
		cfg.ExpansionFanOut = 1
	}
	if cfg.MaxSubQueries < 0 {
		cfg.MaxSubQueries = 0
	}

	return &Orchestrator{
		cfg:         cfg,
		agents:      agents,
		verifier:    deps.Verifier,
		synthesizer: deps.Synthesizer,
		expander:    expand.New(cfg.ExpansionFanOut, cfg.MaxRecursionDepth),
		broadcaster: deps.Broadcaster,
		store:       deps.Store,
		telemetry:   deps.Telemetry,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		cancels:     make(map[string]context.CancelFunc),
	}, nil
}

// CreateSession registers a session and starts it asynchronously. The
// returned ID is immediately valid for status queries and subscriptions.
func (o *Orchestrator) CreateSession(ctx context.Context, query domain.ResearchQuery) (string, error) {
	if query.Query == "" {
		return "", fmt.Errorf("research query is required")
	}
	if o.cfg.MaxActiveSessions > 0 && o.store.ActiveCount() >= o.cfg.MaxActiveSessions {
		return "", fmt.Errorf("too many active sessions (limit %d)", o.cfg.MaxActiveSessions)
	}

	if query.MaxRecursionDepth < 0 || query.MaxRecursionDepth > o.cfg.MaxRecursionDepth {
		query.MaxRecursionDepth = o.cfg.MaxRecursionDepth
	}

	sess := state.NewSession(query)
	if err := o.store.Put(sess); err != nil {
		return "", err
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if o.cfg.SessionTimeout > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), o.cfg.SessionTimeout)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}

	o.mu.Lock()
	o.cancels[sess.ID()] = cancel
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RecordSessionCreated(ctx)
	}
	if o.logger != nil {
		o.logger.Info(ctx, "session created", map[string]interface{}{
			"session_id": sess.ID(),
			"query":      query.Query,
			"max_depth":  query.MaxRecursionDepth,
		})
	}

	o.publish(sess)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.runSession(runCtx, sess)
	}()

	return sess.ID(), nil
}

// GetStatus returns the latest snapshot of a session
func (o *Orchestrator) GetStatus(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	sess, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	snapshot := sess.Snapshot()
	return &snapshot, nil
}

// GetReport returns the final report of a completed session
func (o *Orchestrator) GetReport(ctx context.Context, sessionID string) (*domain.Report, error) {
	sess, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Report()
}

// Subscribe registers for status snapshots of a session. For sessions
// already in a terminal phase the channel delivers the final snapshot and
// closes.
func (o *Orchestrator) Subscribe(ctx context.Context, sessionID string) (<-chan domain.SessionSnapshot, func(), error) {
	sess, err := o.store.Get(sessionID)
	if err != nil {
		return nil, nil, err
	}

	if sess.Phase().Terminal() {
		ch := make(chan domain.SessionSnapshot, 1)
		ch <- sess.Snapshot()
		close(ch)
		return ch, func() {}, nil
	}

	ch, cancel := o.broadcaster.Subscribe(sessionID)
	return ch, cancel, nil
}

// Cancel requests graceful termination of a running session. Cancelling a
// terminal session is a no-op.
func (o *Orchestrator) Cancel(ctx context.Context, sessionID string) error {
	if _, err := o.store.Get(sessionID); err != nil {
		return err
	}

	o.mu.Lock()
	cancel, ok := o.cancels[sessionID]
	o.mu.Unlock()

	if ok {
		cancel()
	}
	return nil
}

// Shutdown cancels all running sessions and waits for their goroutines
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, cancel := range o.cancels {
		cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// publish pushes the session's current snapshot to subscribers
func (o *Orchestrator) publish(sess *state.Session) {
	o.broadcaster.Publish(sess.Snapshot())
}

// finish moves a session to its terminal bookkeeping: metrics, cancel map
// cleanup, final snapshot, subscriber close
func (o *Orchestrator) finish(ctx context.Context, sess *state.Session) {
	o.mu.Lock()
	delete(o.cancels, sess.ID())
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.RecordSessionComplete(ctx, time.Since(sess.StartedAt()), string(sess.Phase()))
	}

	o.publish(sess)
	o.broadcaster.CloseSession(sess.ID())
}
