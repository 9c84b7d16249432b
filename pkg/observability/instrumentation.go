package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentPhase wraps a session phase with observability
func (t *Telemetry) InstrumentPhase(ctx context.Context, sessionID string, phase string, fn func(context.Context) error) error {
	ctx, span := t.StartSpan(ctx, fmt.Sprintf("session.phase.%s", phase),
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("phase", phase),
		),
	)
	defer span.End()

	startTime := time.Now()

	err := fn(ctx)

	duration := time.Since(startTime)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// InstrumentAgentRun wraps a single agent execution with observability
func (t *Telemetry) InstrumentAgentRun(ctx context.Context, agent string, depth int, fn func(context.Context) (findings int, err error)) error {
	ctx, span := t.StartSpan(ctx, fmt.Sprintf("agent.%s", agent),
		trace.WithAttributes(
			attribute.String("agent.id", agent),
			attribute.Int("recursion.depth", depth),
		),
	)
	defer span.End()

	startTime := time.Now()

	findings, err := fn(ctx)

	duration := time.Since(startTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(
			attribute.Int("agent.findings", findings),
		)
	}

	span.SetAttributes(
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// InstrumentLLMCall wraps an LLM call with observability
func (t *Telemetry) InstrumentLLMCall(ctx context.Context, model string, fn func(context.Context) (promptTokens, completionTokens int, err error)) error {
	ctx, span := t.StartSpan(ctx, "llm.generate",
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.String("llm.provider", "gemini"),
		),
	)
	defer span.End()

	startTime := time.Now()

	promptTokens, completionTokens, err := fn(ctx)

	duration := time.Since(startTime)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", promptTokens),
			attribute.Int("llm.completion_tokens", completionTokens),
			attribute.Int("llm.total_tokens", promptTokens+completionTokens),
		)
	}

	span.SetAttributes(
		attribute.Float64("duration.seconds", duration.Seconds()),
	)

	return err
}

// InstrumentLookup wraps an external evidence lookup with observability
func (t *Telemetry) InstrumentLookup(ctx context.Context, provider string, query string, fn func(context.Context) (results int, err error)) error {
	ctx, span := t.StartSpan(ctx, fmt.Sprintf("search.%s", provider),
		trace.WithAttributes(
			attribute.String("search.provider", provider),
			attribute.Int("query.length", len(query)),
		),
	)
	defer span.End()

	startTime := time.Now()

	results, err := fn(ctx)

	duration := time.Since(startTime)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
		span.SetAttributes(
			attribute.Int("search.results", results),
		)
	}

	span.SetAttributes(
		attribute.String("search.status", status),
		attribute.Float64("search.duration_seconds", duration.Seconds()),
	)

	return err
}

// StartSession starts a root span for a research session
func (t *Telemetry) StartSession(ctx context.Context, sessionID, query string, maxDepth int) (context.Context, trace.Span) {
	ctx, span := t.StartSpan(ctx, "research.session",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("query.length", len(query)),
			attribute.Int("recursion.max_depth", maxDepth),
		),
	)

	span.SetAttributes(
		attribute.String("query.scope", classifyQueryScope(query)),
	)

	return ctx, span
}

func classifyQueryScope(query string) string {
	if len(query) < 50 {
		return "narrow"
	} else if len(query) < 200 {
		return "moderate"
	}
	return "broad"
}
