package testutil

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nexus-rd/nexus/pkg/domain"
	"github.com/nexus-rd/nexus/pkg/observability"
)

// TestTimeout provides a standard timeout for test contexts
const TestTimeout = 5 * time.Second

// NewTestContext creates a context with standard test timeout
func NewTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	t.Cleanup(cancel)
	return ctx
}

// NewTestQuery creates a test research query
func NewTestQuery(query string) domain.ResearchQuery {
	return domain.ResearchQuery{
		Query:             query,
		Domain:            "energy-storage",
		TimeRangeYears:    5,
		MaxRecursionDepth: 1,
	}
}

// NewTestFinding creates a finding attributed to an agent at a depth
func NewTestFinding(agent domain.AgentID, depth int, title string) domain.Finding {
	return domain.Finding{
		ID:      "test-finding-" + title,
		Agent:   agent,
		Depth:   depth,
		Title:   title,
		Content: "test content for " + title,
		Sources: []domain.EvidenceSource{
			{Type: "web", Name: "test-source", AuthorityScore: 0.5},
		},
		Timestamp: time.Now(),
	}
}

// NewTestClaim creates a claim with a baseline confidence
func NewTestClaim(id, text string, confidence float64) domain.Claim {
	return domain.Claim{
		ID:         id,
		Text:       text,
		Origin:     domain.AgentPatentScout,
		Confidence: confidence,
	}
}

// AssertEqual checks if two values are equal
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertNoError checks if error is nil
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertError checks if error is not nil
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error but got nil", msg)
	}
}

// SetupTestTelemetry creates test telemetry with span recorder and metric reader
func SetupTestTelemetry(spanRecorder *tracetest.SpanRecorder, metricReader metric.Reader) *observability.Telemetry {
	tracerProvider := trace.NewTracerProvider(
		trace.WithSpanProcessor(spanRecorder),
	)
	otel.SetTracerProvider(tracerProvider)

	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metricReader),
	)
	otel.SetMeterProvider(meterProvider)

	config := &observability.TelemetryConfig{
		ServiceName:    "test-service",
		ServiceVersion: "test",
		Environment:    "test",
		EnableTracing:  true,
		EnableMetrics:  true,
		EnableLogging:  true,
		SamplingRate:   1.0,
	}

	telemetry, _ := observability.NewTelemetry(config)
	return telemetry
}
