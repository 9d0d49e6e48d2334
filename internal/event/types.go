package event

import "time"

// Event type identifiers, "category.action" convention.
const (
	TypeRoundStarted     = "round.started"
	TypeRoundCompleted   = "round.completed"
	TypeRestartSignaled  = "round.restart_signaled"
	TypeAnswerCommitted  = "agent.answered"
	TypeVoteCast         = "agent.voted"
	TypeRestartCompleted = "agent.restart_completed"
	TypeAgentErrored     = "agent.errored"
	TypeContent          = "agent.content"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "agent.answered").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// RoundStartedEvent is emitted once when a coordination round begins.
type RoundStartedEvent struct {
	baseEvent
	RoundID  string
	Task     string
	AgentIDs []string
}

// NewRoundStartedEvent creates a RoundStartedEvent.
func NewRoundStartedEvent(roundID, task string, agentIDs []string) RoundStartedEvent {
	return RoundStartedEvent{
		baseEvent: newBaseEvent(TypeRoundStarted),
		RoundID:   roundID,
		Task:      task,
		AgentIDs:  agentIDs,
	}
}

// AnswerCommittedEvent is emitted when an agent commits a new answer.
// Every committed answer triggers a restart cascade.
type AnswerCommittedEvent struct {
	baseEvent
	RoundID   string
	AgentID   string
	Seq       int // per-agent answer sequence number
	Iteration int
	Content   string
}

// NewAnswerCommittedEvent creates an AnswerCommittedEvent.
func NewAnswerCommittedEvent(roundID, agentID string, seq, iteration int, content string) AnswerCommittedEvent {
	return AnswerCommittedEvent{
		baseEvent: newBaseEvent(TypeAnswerCommitted),
		RoundID:   roundID,
		AgentID:   agentID,
		Seq:       seq,
		Iteration: iteration,
		Content:   content,
	}
}

// VoteCastEvent is emitted when an agent submits a vote. Stale votes
// (computed against an answer set that was invalidated before the vote was
// processed) are still emitted, flagged, for audit purposes.
type VoteCastEvent struct {
	baseEvent
	RoundID   string
	AgentID   string
	TargetID  string
	Iteration int
	Stale     bool // true if the vote was discarded as stale
}

// NewVoteCastEvent creates a VoteCastEvent.
func NewVoteCastEvent(roundID, agentID, targetID string, iteration int, stale bool) VoteCastEvent {
	return VoteCastEvent{
		baseEvent: newBaseEvent(TypeVoteCast),
		RoundID:   roundID,
		AgentID:   agentID,
		TargetID:  targetID,
		Iteration: iteration,
		Stale:     stale,
	}
}

// RestartSignaledEvent is emitted when a new answer invalidates all
// outstanding votes and signals every agent to restart. It names the full
// set of agents the cascade applies to.
type RestartSignaledEvent struct {
	baseEvent
	RoundID        string
	TriggerAgentID string
	TriggerSeq     int
	AffectedAgents []string
	Iteration      int
	DebateRound    int // 1-based index of this cascade
}

// NewRestartSignaledEvent creates a RestartSignaledEvent.
func NewRestartSignaledEvent(roundID, triggerAgentID string, triggerSeq int, affected []string, iteration, debateRound int) RestartSignaledEvent {
	return RestartSignaledEvent{
		baseEvent:      newBaseEvent(TypeRestartSignaled),
		RoundID:        roundID,
		TriggerAgentID: triggerAgentID,
		TriggerSeq:     triggerSeq,
		AffectedAgents: affected,
		Iteration:      iteration,
		DebateRound:    debateRound,
	}
}

// RestartCompletedEvent is emitted when an agent's worker is (re)started
// after a restart signal, with the restart flag cleared.
type RestartCompletedEvent struct {
	baseEvent
	RoundID   string
	AgentID   string
	Iteration int
}

// NewRestartCompletedEvent creates a RestartCompletedEvent.
func NewRestartCompletedEvent(roundID, agentID string, iteration int) RestartCompletedEvent {
	return RestartCompletedEvent{
		baseEvent: newBaseEvent(TypeRestartCompleted),
		RoundID:   roundID,
		AgentID:   agentID,
		Iteration: iteration,
	}
}

// AgentErroredEvent is emitted when an agent's worker invocation fails,
// including protocol violations reclassified as worker errors.
type AgentErroredEvent struct {
	baseEvent
	RoundID   string
	AgentID   string
	Attempt   int // 1-based attempt number that failed
	Iteration int
	Error     string
	Exhausted bool // true if the retry budget is now exhausted
}

// NewAgentErroredEvent creates an AgentErroredEvent.
func NewAgentErroredEvent(roundID, agentID string, attempt, iteration int, errMsg string, exhausted bool) AgentErroredEvent {
	return AgentErroredEvent{
		baseEvent: newBaseEvent(TypeAgentErrored),
		RoundID:   roundID,
		AgentID:   agentID,
		Attempt:   attempt,
		Iteration: iteration,
		Error:     errMsg,
		Exhausted: exhausted,
	}
}

// ContentEvent is raw streamed output passed through for display. It never
// mutates coordination state.
type ContentEvent struct {
	baseEvent
	RoundID string
	AgentID string
	Content string
}

// NewContentEvent creates a ContentEvent.
func NewContentEvent(roundID, agentID, content string) ContentEvent {
	return ContentEvent{
		baseEvent: newBaseEvent(TypeContent),
		RoundID:   roundID,
		AgentID:   agentID,
		Content:   content,
	}
}

// RoundCompletedEvent is emitted once when a round resolves (or fails).
type RoundCompletedEvent struct {
	baseEvent
	RoundID       string
	WinnerAgentID string
	Reason        string // consensus | deadline | debate_cap_exceeded | failed
	Iterations    int
	DebateRounds  int
}

// NewRoundCompletedEvent creates a RoundCompletedEvent.
func NewRoundCompletedEvent(roundID, winnerAgentID, reason string, iterations, debateRounds int) RoundCompletedEvent {
	return RoundCompletedEvent{
		baseEvent:     newBaseEvent(TypeRoundCompleted),
		RoundID:       roundID,
		WinnerAgentID: winnerAgentID,
		Reason:        reason,
		Iterations:    iterations,
		DebateRounds:  debateRounds,
	}
}
