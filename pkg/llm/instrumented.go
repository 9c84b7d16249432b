package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// usageReporter is implemented by engines that report per-call token usage
type usageReporter interface {
	GenerateWithUsage(ctx context.Context, prompt, mimeType string) (string, int, int, error)
}

// InstrumentedEngine wraps a reasoning engine with observability
type InstrumentedEngine struct {
	engine    domain.ReasoningEngine
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	model     string
}

// NewInstrumentedEngine creates a new instrumented reasoning engine
func NewInstrumentedEngine(engine domain.ReasoningEngine, telemetry *observability.Telemetry, metrics *observability.Metrics, model string) (*InstrumentedEngine, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if telemetry == nil {
		return nil, fmt.Errorf("telemetry is required")
	}

	return &InstrumentedEngine{
		engine:    engine,
		telemetry: telemetry,
		metrics:   metrics,
		model:     model,
	}, nil
}

// Generate performs an instrumented completion
func (e *InstrumentedEngine) Generate(ctx context.Context, prompt string) (string, error) {
	return e.generate(ctx, prompt, "")
}

// GenerateJSON performs an instrumented JSON completion
func (e *InstrumentedEngine) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return e.generate(ctx, prompt, "application/json")
}

func (e *InstrumentedEngine) generate(ctx context.Context, prompt, mimeType string) (string, error) {
	var (
		text                           string
		promptTokens, completionTokens int
	)

	start := time.Now()
	err := e.telemetry.InstrumentLLMCall(ctx, e.model, func(ctx context.Context) (int, int, error) {
		var err error
		if reporter, ok := e.engine.(usageReporter); ok {
			text, promptTokens, completionTokens, err = reporter.GenerateWithUsage(ctx, prompt, mimeType)
		} else if mimeType == "application/json" {
			text, err = e.engine.GenerateJSON(ctx, prompt)
		} else {
			text, err = e.engine.Generate(ctx, prompt)
		}
		return promptTokens, completionTokens, err
	})
	if err != nil {
		return "", err
	}

	if e.metrics != nil {
		e.metrics.RecordLLMRequest(ctx, e.model,
			int64(promptTokens),
			int64(completionTokens),
			time.Since(start))
	}

	return text, nil
}
