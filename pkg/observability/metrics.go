package observability

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	meter metric.Meter

	// Counters
	sessionsCreatedTotal   metric.Int64Counter
	sessionsCompletedTotal metric.Int64Counter
	sessionsFailedTotal    metric.Int64Counter
	agentRunsTotal         metric.Int64Counter
	agentFailuresTotal     metric.Int64Counter
	subQueriesTotal        metric.Int64Counter
	subQueriesDroppedTotal metric.Int64Counter
	claimsVerifiedTotal    metric.Int64Counter
	claimsDisputedTotal    metric.Int64Counter
	evidenceLookupsTotal   metric.Int64Counter
	snapshotsDroppedTotal  metric.Int64Counter
	llmRequestsTotal       metric.Int64Counter
	llmTokensUsedTotal     metric.Int64Counter

	// Histograms
	sessionDuration    metric.Float64Histogram
	phaseDuration      metric.Float64Histogram
	agentRunDuration   metric.Float64Histogram
	lookupDuration     metric.Float64Histogram
	llmRequestDuration metric.Float64Histogram

	// Gauges (using async instruments)
	activeSessions    metric.Int64ObservableGauge
	activeSubscribers metric.Int64ObservableGauge

	// Values for gauges (updated by the orchestrator and broadcaster)
	activeSessionCount    atomic.Int64
	activeSubscriberCount atomic.Int64
}

// NewMetrics creates and initializes all metrics
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{
		meter: meter,
	}

	var err error

	m.sessionsCreatedTotal, err = meter.Int64Counter(
		"sessions_created_total",
		metric.WithDescription("Total number of research sessions created"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.sessionsCompletedTotal, err = meter.Int64Counter(
		"sessions_completed_total",
		metric.WithDescription("Total number of sessions reaching the completed phase"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.sessionsFailedTotal, err = meter.Int64Counter(
		"sessions_failed_total",
		metric.WithDescription("Total number of sessions reaching the failed phase"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.agentRunsTotal, err = meter.Int64Counter(
		"agent_runs_total",
		metric.WithDescription("Total number of agent executions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.agentFailuresTotal, err = meter.Int64Counter(
		"agent_failures_total",
		metric.WithDescription("Total number of failed agent executions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.subQueriesTotal, err = meter.Int64Counter(
		"sub_queries_total",
		metric.WithDescription("Total number of sub-queries produced by expansion"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.subQueriesDroppedTotal, err = meter.Int64Counter(
		"sub_queries_dropped_total",
		metric.WithDescription("Sub-queries dropped by depth limit, dedupe, or ceiling"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.claimsVerifiedTotal, err = meter.Int64Counter(
		"claims_verified_total",
		metric.WithDescription("Total number of claims run through verification"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.claimsDisputedTotal, err = meter.Int64Counter(
		"claims_disputed_total",
		metric.WithDescription("Total number of claims verification marked disputed"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.evidenceLookupsTotal, err = meter.Int64Counter(
		"evidence_lookups_total",
		metric.WithDescription("Total number of external evidence lookups"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.snapshotsDroppedTotal, err = meter.Int64Counter(
		"snapshots_dropped_total",
		metric.WithDescription("Status snapshots dropped for slow subscribers"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.llmRequestsTotal, err = meter.Int64Counter(
		"llm_requests_total",
		metric.WithDescription("Total number of LLM requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.llmTokensUsedTotal, err = meter.Int64Counter(
		"llm_tokens_used_total",
		metric.WithDescription("Total number of LLM tokens used"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	m.sessionDuration, err = meter.Float64Histogram(
		"session_duration_seconds",
		metric.WithDescription("Duration of research sessions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.phaseDuration, err = meter.Float64Histogram(
		"phase_duration_seconds",
		metric.WithDescription("Duration of each session phase in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.agentRunDuration, err = meter.Float64Histogram(
		"agent_run_duration_seconds",
		metric.WithDescription("Duration of agent executions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.lookupDuration, err = meter.Float64Histogram(
		"evidence_lookup_duration_seconds",
		metric.WithDescription("Duration of evidence lookups in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.llmRequestDuration, err = meter.Float64Histogram(
		"llm_request_duration_seconds",
		metric.WithDescription("Duration of LLM requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.activeSessions, err = meter.Int64ObservableGauge(
		"active_sessions",
		metric.WithDescription("Number of sessions in a non-terminal phase"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeSessionCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	m.activeSubscribers, err = meter.Int64ObservableGauge(
		"active_subscribers",
		metric.WithDescription("Number of registered status subscribers"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeSubscriberCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordSessionCreated records a new research session
func (m *Metrics) RecordSessionCreated(ctx context.Context) {
	m.sessionsCreatedTotal.Add(ctx, 1)
	m.activeSessionCount.Add(1)
}

// RecordSessionComplete records a session reaching a terminal phase
func (m *Metrics) RecordSessionComplete(ctx context.Context, duration time.Duration, phase string) {
	if phase == "completed" {
		m.sessionsCompletedTotal.Add(ctx, 1)
	} else {
		m.sessionsFailedTotal.Add(ctx, 1)
	}

	m.sessionDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("phase", phase),
		),
	)

	m.activeSessionCount.Add(-1)
}

// RecordPhase records the duration of a completed phase
func (m *Metrics) RecordPhase(ctx context.Context, phase string, duration time.Duration) {
	m.phaseDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("phase", phase),
		),
	)
}

// RecordAgentRun records one agent execution
func (m *Metrics) RecordAgentRun(ctx context.Context, agent string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
		m.agentFailuresTotal.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("agent", agent),
			),
		)
	}

	m.agentRunsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("agent", agent),
			attribute.String("status", status),
		),
	)

	m.agentRunDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("agent", agent),
			attribute.String("status", status),
		),
	)
}

// RecordExpansion records the outcome of one expansion pass
func (m *Metrics) RecordExpansion(ctx context.Context, produced, dropped int) {
	if produced > 0 {
		m.subQueriesTotal.Add(ctx, int64(produced))
	}
	if dropped > 0 {
		m.subQueriesDroppedTotal.Add(ctx, int64(dropped))
	}
}

// RecordVerification records a verification verdict
func (m *Metrics) RecordVerification(ctx context.Context, disputed bool) {
	m.claimsVerifiedTotal.Add(ctx, 1)
	if disputed {
		m.claimsDisputedTotal.Add(ctx, 1)
	}
}

// RecordLookup records one evidence lookup
func (m *Metrics) RecordLookup(ctx context.Context, provider string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	m.evidenceLookupsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)

	m.lookupDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("provider", provider),
		),
	)
}

// RecordSnapshotDropped records a status snapshot dropped for a slow subscriber
func (m *Metrics) RecordSnapshotDropped(ctx context.Context) {
	m.snapshotsDroppedTotal.Add(ctx, 1)
}

// SubscriberAdded adjusts the subscriber gauge upward
func (m *Metrics) SubscriberAdded() {
	m.activeSubscriberCount.Add(1)
}

// SubscriberRemoved adjusts the subscriber gauge downward
func (m *Metrics) SubscriberRemoved() {
	m.activeSubscriberCount.Add(-1)
}

// RecordLLMRequest records an LLM request
func (m *Metrics) RecordLLMRequest(ctx context.Context, model string, promptTokens, completionTokens int64, duration time.Duration) {
	m.llmRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)

	m.llmTokensUsedTotal.Add(ctx, promptTokens+completionTokens,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("type", "total"),
		),
	)

	m.llmRequestDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("model", model),
		),
	)
}
