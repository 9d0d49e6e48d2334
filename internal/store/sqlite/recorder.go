package sqlite

import (
	"context"
	"sync"

	"quorum/internal/event"
	"quorum/internal/logging"
)

// Recorder subscribes to a bus and mirrors telemetry into the store. Bus
// dispatch is synchronous from the control loop, so rows land in delivery
// order; the recorder only adds a per-round sequence number on the way down.
//
// Persistence is best-effort: a write failure is logged and the round keeps
// going. The in-memory tracker remains the system of record.
type Recorder struct {
	store      *Store
	log        *logging.Logger
	maxContent int

	mu  sync.Mutex
	seq map[string]int
}

// NewRecorder creates a Recorder writing to store. Content passthrough
// events are truncated to maxContentChars; zero drops them entirely.
func NewRecorder(store *Store, log *logging.Logger, maxContentChars int) *Recorder {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Recorder{
		store:      store,
		log:        log.WithComponent("recorder"),
		maxContent: maxContentChars,
		seq:        make(map[string]int),
	}
}

// Attach subscribes the recorder to the bus and returns the subscription ID.
func (r *Recorder) Attach(bus *event.Bus) string {
	return bus.SubscribeAll(r.handle)
}

func (r *Recorder) handle(e event.Event) {
	ctx := context.Background()

	switch ev := e.(type) {
	case event.RoundStartedEvent:
		if err := r.store.CreateRound(ctx, Round{
			ID:        ev.RoundID,
			Task:      ev.Task,
			StartedAt: ev.Timestamp(),
		}); err != nil {
			r.log.Error("persist round start failed", "round_id", ev.RoundID, "error", err.Error())
		}

	case event.RoundCompletedEvent:
		if err := r.store.CompleteRound(ctx, ev.RoundID, ev.WinnerAgentID, ev.Reason,
			ev.Iterations, ev.DebateRounds, ev.Timestamp()); err != nil {
			r.log.Error("persist round completion failed", "round_id", ev.RoundID, "error", err.Error())
		}
		r.mu.Lock()
		delete(r.seq, ev.RoundID)
		r.mu.Unlock()

	case event.AnswerCommittedEvent:
		r.append(ev.RoundID, Event{
			Type:      ev.EventType(),
			AgentID:   ev.AgentID,
			Iteration: ev.Iteration,
			Payload:   map[string]any{"seq": ev.Seq, "content": r.truncate(ev.Content)},
			CreatedAt: ev.Timestamp(),
		})

	case event.VoteCastEvent:
		r.append(ev.RoundID, Event{
			Type:      ev.EventType(),
			AgentID:   ev.AgentID,
			Iteration: ev.Iteration,
			Payload:   map[string]any{"target": ev.TargetID, "stale": ev.Stale},
			CreatedAt: ev.Timestamp(),
		})

	case event.RestartSignaledEvent:
		r.append(ev.RoundID, Event{
			Type:      ev.EventType(),
			AgentID:   ev.TriggerAgentID,
			Iteration: ev.Iteration,
			Payload: map[string]any{
				"trigger_seq":  ev.TriggerSeq,
				"affected":     ev.AffectedAgents,
				"debate_round": ev.DebateRound,
			},
			CreatedAt: ev.Timestamp(),
		})

	case event.RestartCompletedEvent:
		r.append(ev.RoundID, Event{
			Type:      ev.EventType(),
			AgentID:   ev.AgentID,
			Iteration: ev.Iteration,
			Payload:   map[string]any{},
			CreatedAt: ev.Timestamp(),
		})

	case event.AgentErroredEvent:
		r.append(ev.RoundID, Event{
			Type:      ev.EventType(),
			AgentID:   ev.AgentID,
			Iteration: ev.Iteration,
			Payload:   map[string]any{"attempt": ev.Attempt, "error": ev.Error, "exhausted": ev.Exhausted},
			CreatedAt: ev.Timestamp(),
		})

	case event.ContentEvent:
		if r.maxContent == 0 {
			return
		}
		r.append(ev.RoundID, Event{
			Type:      ev.EventType(),
			AgentID:   ev.AgentID,
			Payload:   map[string]any{"content": r.truncate(ev.Content)},
			CreatedAt: ev.Timestamp(),
		})
	}
}

func (r *Recorder) append(roundID string, e Event) {
	r.mu.Lock()
	r.seq[roundID]++
	e.Seq = r.seq[roundID]
	r.mu.Unlock()

	e.RoundID = roundID
	if err := r.store.AppendEvent(context.Background(), e); err != nil {
		r.log.Error("persist event failed",
			"round_id", roundID, "type", e.Type, "seq", e.Seq, "error", err.Error())
	}
}

func (r *Recorder) truncate(s string) string {
	if r.maxContent <= 0 || len(s) <= r.maxContent {
		return s
	}
	return s[:r.maxContent]
}
