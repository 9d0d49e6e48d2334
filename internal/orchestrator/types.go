package orchestrator

import (
	"time"

	"quorum/internal/agent"
	"quorum/internal/event"
	"quorum/internal/logging"
	"quorum/internal/ratelimit"
)

// Default bounds applied when the corresponding Config field is zero.
const (
	DefaultMaxDuration         = 10 * time.Minute
	DefaultMaxDebateRounds     = 8
	DefaultRetryBudget         = 2
	DefaultPresentationTimeout = 2 * time.Minute
)

// AgentConfig binds one configured agent to its worker and rate-limit key.
type AgentConfig struct {
	// ID is the agent's stable identifier, unique within the round.
	ID string

	// ResourceKey names the rate-limit budget this agent draws from,
	// typically a provider+model pair. Agents sharing a key share a quota.
	ResourceKey string

	// Worker produces this agent's answers and votes. Run is called once
	// per (re)start.
	Worker agent.Worker
}

// Config describes one coordination round.
type Config struct {
	// Task is the shared task description all agents work on.
	Task string

	// Context is the initial conversation context passed to every worker.
	Context string

	// Agents is the configured agent set. At least one agent is required
	// and IDs must be unique.
	Agents []AgentConfig

	// ConsensusThreshold is the vote weight required to declare a winner
	// before all agents have voted. Values in (0, 1] are a fraction of the
	// configured agents; values above 1 are an absolute vote count. Zero
	// disables early termination: the round waits for every votable agent.
	ConsensusThreshold float64

	// MaxDuration is the wall-clock deadline for the whole round.
	MaxDuration time.Duration

	// MaxDebateRounds caps how many restart cascades may occur before
	// resolution is forced on the current state. Zero means the default;
	// negative removes the cap.
	MaxDebateRounds int

	// RetryBudget is the number of failed invocations each agent may
	// accumulate and still be restarted. An agent exceeding it is excluded
	// from the vote-completion check for the rest of the round. Zero means
	// the default; negative disables retries.
	RetryBudget int

	// PresentationTimeout bounds the final presentation invocation.
	PresentationTimeout time.Duration

	// Limiter admits agent (re)starts. Optional; a fresh unlimited limiter
	// is used when nil. Pass a shared process-wide limiter so rounds share
	// provider quotas.
	Limiter *ratelimit.Limiter

	// Bus receives ordered telemetry for every coordination event plus raw
	// content passthrough. Optional.
	Bus *event.Bus

	// Logger receives structured logs. Optional; defaults to a nop logger.
	Logger *logging.Logger
}

// TerminationReason explains how a round ended.
type TerminationReason string

const (
	// ReasonConsensus means the vote-completion condition was met.
	ReasonConsensus TerminationReason = "consensus"
	// ReasonDeadline means the wall-clock deadline expired first.
	ReasonDeadline TerminationReason = "deadline"
	// ReasonDebateCap means the restart-cascade cap forced resolution.
	ReasonDebateCap TerminationReason = "debate_cap_exceeded"
	// ReasonFailed means no usable answer existed when the round ended.
	ReasonFailed TerminationReason = "failed"
)

// Result is the public outcome of a round.
type Result struct {
	RoundID           string
	WinnerAgentID     string
	FinalAnswer       string
	VotesByAgent      map[string]string // voter -> target, fresh votes only
	Iterations        int
	DebateRounds      int
	TerminationReason TerminationReason
}

// envelope is one worker event stamped with its agent of origin, as carried
// on the merged stream.
type envelope struct {
	agentID string
	ev      agent.WorkerEvent
}

// invocation tracks one live worker task.
type invocation struct {
	token *agent.RestartToken
	// produced is set once the invocation emits an answer, a vote, or an
	// error; a completed invocation that produced nothing is a protocol
	// violation.
	produced bool
}
