package agent

import "time"

// Status is the lifecycle state of one agent within a round.
type Status string

const (
	// StatusIdle means no worker invocation is live and the agent is
	// eligible for (re)start.
	StatusIdle Status = "idle"
	// StatusStreaming means a worker invocation is live and has not yet
	// committed an answer this turn.
	StatusStreaming Status = "streaming"
	// StatusAnswered means the live invocation committed an answer.
	StatusAnswered Status = "answered"
	// StatusVoted means the agent's vote against the current answer set has
	// been applied.
	StatusVoted Status = "voted"
	// StatusErrored means the last invocation failed. The agent remains
	// eligible for restart until its retry budget is exhausted.
	StatusErrored Status = "errored"
)

// Answer is a candidate solution with its per-agent sequence number.
// Seq increases monotonically across an agent's committed answers within a
// round, so a higher Seq is always a more recent answer from that agent.
type Answer struct {
	Content     string
	Seq         int
	CommittedAt time.Time
}

// State is the mutable per-agent record. It is owned exclusively by the
// orchestrator's control loop: workers never read or write it.
type State struct {
	ID             string
	Status         Status
	Answer         *Answer // nil until the first committed answer
	VoteTarget     string  // set only while HasVoted
	HasVoted       bool
	RestartPending bool
	LastError      error
	Attempts       int // failed invocation count, compared against the retry budget
}

// NewState creates an Idle state for one configured agent.
func NewState(id string) *State {
	return &State{
		ID:     id,
		Status: StatusIdle,
	}
}

// CommitAnswer records a new answer, bumping the sequence number.
func (s *State) CommitAnswer(content string, at time.Time) Answer {
	seq := 1
	if s.Answer != nil {
		seq = s.Answer.Seq + 1
	}
	s.Answer = &Answer{Content: content, Seq: seq, CommittedAt: at}
	s.Status = StatusAnswered
	return *s.Answer
}

// ClearVote invalidates any outstanding vote. Called for every agent when
// any agent commits a new answer.
func (s *State) ClearVote() {
	s.HasVoted = false
	s.VoteTarget = ""
}

// ApplyVote records a fresh vote against the current answer set.
func (s *State) ApplyVote(target string) {
	s.VoteTarget = target
	s.HasVoted = true
	s.Status = StatusVoted
}

// Snapshot is an immutable copy of a State used for winner resolution and
// telemetry. It carries everything resolution needs and nothing it could
// mutate.
type Snapshot struct {
	ID         string
	Status     Status
	Answer     *Answer // copied; nil if no committed answer
	VoteTarget string
	HasVoted   bool
	Attempts   int
}

// Snapshot returns a defensive copy of the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		ID:         s.ID,
		Status:     s.Status,
		VoteTarget: s.VoteTarget,
		HasVoted:   s.HasVoted,
		Attempts:   s.Attempts,
	}
	if s.Answer != nil {
		answer := *s.Answer
		snap.Answer = &answer
	}
	return snap
}
