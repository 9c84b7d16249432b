package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexus-rd/nexus/pkg/domain"
)

// MockEngine is a mock implementation of ReasoningEngine for testing
type MockEngine struct {
	mu           sync.Mutex
	Responses    map[string]string
	CallCount    int
	LastPrompt   string
	ShouldError  bool
	ErrorMessage string
	// GenerateFunc allows custom behavior for tests
	GenerateFunc func(ctx context.Context, prompt string) (string, error)
}

// NewMockEngine creates a new mock reasoning engine
func NewMockEngine() *MockEngine {
	return &MockEngine{
		Responses: make(map[string]string),
	}
}

// Generate implements domain.ReasoningEngine
func (m *MockEngine) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastPrompt = prompt
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldError {
		return "", fmt.Errorf("%s", m.ErrorMessage)
	}

	if resp, ok := m.Responses[prompt]; ok {
		return resp, nil
	}
	if resp, ok := m.Responses["default"]; ok {
		return resp, nil
	}
	return "mock response", nil
}

// GenerateJSON implements domain.ReasoningEngine
func (m *MockEngine) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	return m.Generate(ctx, prompt)
}

// GetCallCount returns the number of Generate calls made
func (m *MockEngine) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockSearcher is a mock implementation of EvidenceSearcher
type MockSearcher struct {
	mu           sync.Mutex
	Results      map[string][]domain.EvidenceSource
	CallCount    int
	LastQuery    string
	ShouldError  bool
	ErrorMessage string
	// SearchFunc allows custom behavior for tests
	SearchFunc func(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error)
}

// NewMockSearcher creates a new mock evidence searcher
func NewMockSearcher() *MockSearcher {
	return &MockSearcher{
		Results: make(map[string][]domain.EvidenceSource),
	}
}

// Search implements domain.EvidenceSearcher
func (m *MockSearcher) Search(ctx context.Context, query string, limit int) ([]domain.EvidenceSource, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastQuery = query
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldError {
		return nil, fmt.Errorf("%s", m.ErrorMessage)
	}

	if results, ok := m.Results[query]; ok {
		return results, nil
	}
	if results, ok := m.Results["default"]; ok {
		return results, nil
	}
	return []domain.EvidenceSource{
		{Type: "web", Name: "mock-source", URL: "https://example.com", AuthorityScore: 0.5},
	}, nil
}

// GetCallCount returns the number of Search calls made
func (m *MockSearcher) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockAgent is a configurable agent for orchestrator tests
type MockAgent struct {
	mu           sync.Mutex
	AgentID      domain.AgentID
	FindingsOut  []domain.Finding
	CallCount    int
	ShouldError  bool
	ErrorMessage string
	// ExecuteFunc allows custom behavior for tests
	ExecuteFunc func(ctx context.Context, query domain.ResearchQuery, view domain.FindingsView) (*domain.AgentResult, error)
}

// ID implements domain.Agent
func (a *MockAgent) ID() domain.AgentID {
	return a.AgentID
}

// Execute implements domain.Agent
func (a *MockAgent) Execute(ctx context.Context, query domain.ResearchQuery, view domain.FindingsView) (*domain.AgentResult, error) {
	a.mu.Lock()
	a.CallCount++
	a.mu.Unlock()

	if a.ExecuteFunc != nil {
		return a.ExecuteFunc(ctx, query, view)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ShouldError {
		return nil, fmt.Errorf("%s", a.ErrorMessage)
	}

	findings := make([]domain.Finding, len(a.FindingsOut))
	copy(findings, a.FindingsOut)
	for i := range findings {
		findings[i].Agent = a.AgentID
	}

	return &domain.AgentResult{
		Findings:    findings,
		ResultCount: len(findings),
	}, nil
}

// GetCallCount returns the number of Execute calls made
func (a *MockAgent) GetCallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.CallCount
}
