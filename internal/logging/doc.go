// Package logging provides structured logging for quorum coordination rounds.
//
// It wraps Go's log/slog to produce JSON-formatted logs suitable for
// post-hoc analysis of a round: every entry can carry the round ID, the
// agent ID and the component that produced it, so a single round's log is
// filterable by agent or by subsystem.
//
// # Context Propagation
//
// Child loggers carry persistent attributes:
//
//	roundLogger := logger.WithRound("round-abc123")
//	agentLogger := roundLogger.WithAgent("agent_1")
//	loopLogger := roundLogger.WithComponent("orchestrator")
//
// All entries from agentLogger include round_id and agent_id.
//
// # Testing
//
// Use [NopLogger] to discard output in tests.
package logging
