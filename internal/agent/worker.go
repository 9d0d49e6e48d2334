package agent

import (
	"context"
	"sync"
)

// EventKind identifies the kind of a streamed worker event.
type EventKind int

const (
	// KindContent is raw streamed output. It never mutates coordination state.
	KindContent EventKind = iota
	// KindAnswer commits a new candidate answer and triggers a restart cascade.
	KindAnswer
	// KindVote endorses another agent's (or the worker's own) current answer.
	KindVote
	// KindError reports a failed invocation. Terminal.
	KindError
	// KindDone reports the end of an invocation. Terminal.
	KindDone
)

// String returns a human-readable name for an event kind.
func (k EventKind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindAnswer:
		return "answer"
	case KindVote:
		return "vote"
	case KindError:
		return "error"
	case KindDone:
		return "done"
	default:
		return "unknown"
	}
}

// DoneReason distinguishes how an invocation ended.
type DoneReason string

const (
	// DoneCompleted means the worker finished its turn normally.
	DoneCompleted DoneReason = "completed"
	// DoneRestarted means the worker yielded in response to a restart signal
	// without committing an answer or vote for this invocation.
	DoneRestarted DoneReason = "restarted"
)

// WorkerEvent is one element of a worker's event stream.
//
// Exactly one terminal event (KindDone or KindError) must end every
// invocation. A KindDone with reason DoneCompleted that was not preceded by
// an answer, a vote, or an error within the same invocation is a protocol
// violation.
type WorkerEvent struct {
	Kind    EventKind
	Content string     // KindContent: output delta; KindAnswer: full answer text
	Target  string     // KindVote: agent ID being voted for
	Err     error      // KindError
	Reason  DoneReason // KindDone
}

// Invocation carries everything a worker needs for one turn.
type Invocation struct {
	// Task is the shared task description for the round.
	Task string

	// Context is the initial conversation context supplied by the caller.
	Context string

	// PeerAnswers is a snapshot of every agent's current committed answer
	// (including this agent's own), keyed by agent ID, taken at the moment
	// the restart flag was cleared. Workers may rely on it being the full
	// answer set as of this (re)start, never a partially-updated view.
	PeerAnswers map[string]Answer

	// Presentation is true for the single post-consensus invocation of the
	// winning agent. Presentation turns carry no vote or restart semantics.
	Presentation bool

	// Restart is the cooperative cancellation token for this invocation.
	// Workers must poll it at their checkpoints and yield with
	// Done(DoneRestarted) when it is signaled. Nil on presentation turns.
	Restart *RestartToken

	// Emit delivers one event to the orchestrator's merged stream. It may
	// block while the control loop is busy; that blocking is a worker
	// suspension point.
	Emit func(WorkerEvent)
}

// Worker is one independently-executing agent. The orchestrator calls Run
// once per (re)start; Run must not return until it has emitted its terminal
// event. The orchestrator never force-kills a worker: cancellation of ctx
// means the whole round is being abandoned, while the restart token only
// invalidates the current turn.
type Worker interface {
	Run(ctx context.Context, inv Invocation)
}

// RestartToken signals a worker that its in-flight turn has been invalidated
// by a peer's new answer. Signal is idempotent and safe to call concurrently
// with polling.
type RestartToken struct {
	once sync.Once
	ch   chan struct{}
}

// NewRestartToken creates an unsignaled token.
func NewRestartToken() *RestartToken {
	return &RestartToken{ch: make(chan struct{})}
}

// Signal marks the token. Idempotent.
func (t *RestartToken) Signal() {
	t.once.Do(func() { close(t.ch) })
}

// Signaled reports whether the token has been signaled.
func (t *RestartToken) Signaled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the token is signaled, for workers that
// want to select on it alongside their backend I/O.
func (t *RestartToken) Done() <-chan struct{} {
	return t.ch
}
