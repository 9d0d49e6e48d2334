package coordination

import (
	"time"

	"quorum/internal/event"
)

// EventType identifies a recorded coordination event.
type EventType string

// Event types persisted in the round log.
const (
	EventAnswer          EventType = "answer"
	EventVote            EventType = "vote"
	EventRestartSignal   EventType = "restart_signal"
	EventRestartComplete EventType = "restart_complete"
	EventError           EventType = "error"
)

// Event is one entry in the round's append-only log.
type Event struct {
	Seq       int       // 1-based position in the log
	Type      EventType // what happened
	AgentID   string    // acting agent; the trigger agent for restart signals
	Iteration int       // control loop iteration at record time
	Timestamp time.Time
	Payload   map[string]any // type-specific detail, JSON-serializable
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithBus attaches an event bus. Every recorded event (plus content
// passthrough) is published synchronously in record order.
func WithBus(bus *event.Bus) Option {
	return func(t *Tracker) { t.bus = bus }
}

// Tracker is the append-only event log for one round. It is owned by the
// orchestrator's control loop: all methods must be called from that single
// goroutine, which is what makes the log order authoritative.
type Tracker struct {
	roundID   string
	bus       *event.Bus
	events    []Event
	iteration int
	cascades  int
}

// NewTracker creates an empty Tracker for one round.
func NewTracker(roundID string, opts ...Option) *Tracker {
	t := &Tracker{roundID: roundID}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundID returns the round this tracker records.
func (t *Tracker) RoundID() string { return t.roundID }

// BeginIteration increments and returns the iteration counter. The
// orchestrator calls it each time the loop re-evaluates the start-eligible
// step, so restart cascades caused by the same triggering answer group
// under one iteration for diagnostics.
func (t *Tracker) BeginIteration() int {
	t.iteration++
	return t.iteration
}

// Iteration returns the current iteration count.
func (t *Tracker) Iteration() int { return t.iteration }

// Cascades returns how many restart cascades have been signaled.
func (t *Tracker) Cascades() int { return t.cascades }

// RecordAnswer appends an answer event.
func (t *Tracker) RecordAnswer(agentID string, seq int, content string) {
	t.append(Event{
		Type:    EventAnswer,
		AgentID: agentID,
		Payload: map[string]any{"seq": seq, "content": content},
	})
	if t.bus != nil {
		t.bus.Publish(event.NewAnswerCommittedEvent(t.roundID, agentID, seq, t.iteration, content))
	}
}

// RecordVote appends a vote event. Stale votes (discarded because a restart
// was signaled after the vote was computed) are recorded too, flagged, so
// the log explains why they had no effect.
func (t *Tracker) RecordVote(agentID, targetID string, stale bool) {
	t.append(Event{
		Type:    EventVote,
		AgentID: agentID,
		Payload: map[string]any{"target": targetID, "stale": stale},
	})
	if t.bus != nil {
		t.bus.Publish(event.NewVoteCastEvent(t.roundID, agentID, targetID, t.iteration, stale))
	}
}

// RecordRestartSignal appends a restart_signal event naming the full set of
// agents the cascade applies to, and returns the 1-based cascade number.
func (t *Tracker) RecordRestartSignal(triggerAgent string, triggerSeq int, affected []string) int {
	t.cascades++
	names := make([]string, len(affected))
	copy(names, affected)
	t.append(Event{
		Type:    EventRestartSignal,
		AgentID: triggerAgent,
		Payload: map[string]any{
			"trigger_seq":  triggerSeq,
			"affected":     names,
			"debate_round": t.cascades,
		},
	})
	if t.bus != nil {
		t.bus.Publish(event.NewRestartSignaledEvent(t.roundID, triggerAgent, triggerSeq, names, t.iteration, t.cascades))
	}
	return t.cascades
}

// RecordRestartComplete appends a restart_complete event for one agent.
func (t *Tracker) RecordRestartComplete(agentID string) {
	t.append(Event{
		Type:    EventRestartComplete,
		AgentID: agentID,
		Payload: map[string]any{},
	})
	if t.bus != nil {
		t.bus.Publish(event.NewRestartCompletedEvent(t.roundID, agentID, t.iteration))
	}
}

// RecordError appends an error event.
func (t *Tracker) RecordError(agentID string, attempt int, errMsg string, exhausted bool) {
	t.append(Event{
		Type:    EventError,
		AgentID: agentID,
		Payload: map[string]any{"attempt": attempt, "error": errMsg, "exhausted": exhausted},
	})
	if t.bus != nil {
		t.bus.Publish(event.NewAgentErroredEvent(t.roundID, agentID, attempt, t.iteration, errMsg, exhausted))
	}
}

// PassThroughContent forwards raw streamed output to telemetry consumers
// without appending to the log: content never mutates coordination state,
// so it is not part of the system of record.
func (t *Tracker) PassThroughContent(agentID, content string) {
	if t.bus != nil {
		t.bus.Publish(event.NewContentEvent(t.roundID, agentID, content))
	}
}

// Events returns a copy of the log in record order.
func (t *Tracker) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// EventsOfType returns the log entries of one type, in record order.
func (t *Tracker) EventsOfType(typ EventType) []Event {
	var out []Event
	for _, e := range t.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func (t *Tracker) append(e Event) {
	e.Seq = len(t.events) + 1
	e.Iteration = t.iteration
	e.Timestamp = time.Now()
	t.events = append(t.events, e)
}
