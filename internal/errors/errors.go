// Package errors provides centralized error definitions and error handling
// utilities for the quorum codebase. It defines domain-specific errors,
// sentinel errors, constructors with context wrapping, and classification
// helpers.
//
// # Error Types
//
//   - RoundError: errors scoped to a whole coordination round
//   - WorkerError: errors raised by (or on behalf of) one agent's worker
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewWorkerError("backend call failed", cause).WithAgentID("agent_2")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrNoUsableAnswer) { ... }
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Round-related sentinel errors
var (
	// ErrNoUsableAnswer indicates a round ended with zero committed answers.
	// This is the only round-level fatal condition.
	ErrNoUsableAnswer = New("no usable answer produced")
	// ErrRoundAlreadyRun indicates an Orchestrator was reused for a second round.
	ErrRoundAlreadyRun = New("round already run")
	// ErrNoAgents indicates a round was configured with an empty agent set.
	ErrNoAgents = New("no agents configured")
)

// Worker-related sentinel errors
var (
	// ErrRetryBudgetExhausted indicates an agent failed more times than its
	// retry budget allows and is excluded from the rest of the round.
	ErrRetryBudgetExhausted = New("retry budget exhausted")
	// ErrUnknownVoteTarget indicates a vote named an agent that does not exist.
	ErrUnknownVoteTarget = New("vote references unknown agent")
	// ErrEmptyCompletion indicates a worker finished without producing an
	// answer, a vote, or an error.
	ErrEmptyCompletion = New("worker finished without producing anything")
)

// protocolViolations are worker faults caused by a misbehaving external
// collaborator rather than the coordination core. They share the worker-error
// recovery path.
var protocolViolations = []error{ErrUnknownVoteTarget, ErrEmptyCompletion}

// RoundError represents an error scoped to a whole coordination round.
type RoundError struct {
	RoundID string
	message string
	cause   error
}

// NewRoundError creates a RoundError wrapping an optional cause.
func NewRoundError(message string, cause error) *RoundError {
	return &RoundError{message: message, cause: cause}
}

// WithRoundID adds the round ID to the error context.
func (e *RoundError) WithRoundID(id string) *RoundError {
	e.RoundID = id
	return e
}

// Error returns the formatted error message.
func (e *RoundError) Error() string {
	prefix := "round error"
	if e.RoundID != "" {
		prefix = fmt.Sprintf("round error [round=%s]", e.RoundID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying error.
func (e *RoundError) Unwrap() error { return e.cause }

// WorkerError represents an error raised by (or on behalf of) one agent's
// worker. Worker errors are recoverable: the orchestrator retries the agent
// until its retry budget is exhausted.
type WorkerError struct {
	AgentID string
	Attempt int
	message string
	cause   error
}

// NewWorkerError creates a WorkerError wrapping an optional cause.
func NewWorkerError(message string, cause error) *WorkerError {
	return &WorkerError{message: message, cause: cause}
}

// WithAgentID adds the agent ID to the error context.
func (e *WorkerError) WithAgentID(id string) *WorkerError {
	e.AgentID = id
	return e
}

// WithAttempt records which attempt produced the error.
func (e *WorkerError) WithAttempt(n int) *WorkerError {
	e.Attempt = n
	return e
}

// Error returns the formatted error message.
func (e *WorkerError) Error() string {
	var parts []string
	if e.AgentID != "" {
		parts = append(parts, fmt.Sprintf("agent=%s", e.AgentID))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}

	prefix := "worker error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("worker error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Unwrap returns the underlying error.
func (e *WorkerError) Unwrap() error { return e.cause }

// IsRetryable reports whether the error is transient from the round's point
// of view: worker errors (including protocol violations) are retried within
// the agent's budget; round-level errors are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrRetryBudgetExhausted) {
		return false
	}
	var workerErr *WorkerError
	if As(err, &workerErr) {
		return true
	}
	return IsProtocolViolation(err)
}

// IsProtocolViolation reports whether the error was caused by a worker
// breaking the event contract rather than failing internally.
func IsProtocolViolation(err error) bool {
	for _, sentinel := range protocolViolations {
		if Is(err, sentinel) {
			return true
		}
	}
	return false
}
