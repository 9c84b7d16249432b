package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the service surface. Callers distinguish them with
// errors.Is; everything else is an internal failure.
var (
	// ErrNotFound indicates an unknown session identifier
	ErrNotFound = errors.New("session not found")

	// ErrNotReady indicates a report was requested before synthesis finished
	ErrNotReady = errors.New("report not ready")

	// ErrSessionFailed indicates the session ended in the failed phase
	ErrSessionFailed = errors.New("session failed")

	// ErrStateViolation indicates an invalid phase transition was attempted
	ErrStateViolation = errors.New("state violation")
)

// AgentError wraps a failure from a single agent run. It carries the agent
// identity so the session can mark the right status entry; it never
// escalates to a session failure on its own.
type AgentError struct {
	Agent AgentID
	Phase Phase
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s failed during %s: %v", e.Agent, e.Phase, e.Err)
}

func (e *AgentError) Unwrap() error {
	return e.Err
}

// ExpansionError wraps a failure during sub-query derivation. Expansion
// failures degrade to zero sub-queries; the finding that triggered them
// is kept.
type ExpansionError struct {
	Finding string
	Err     error
}

func (e *ExpansionError) Error() string {
	return fmt.Sprintf("expansion failed for finding %s: %v", e.Finding, e.Err)
}

func (e *ExpansionError) Unwrap() error {
	return e.Err
}
