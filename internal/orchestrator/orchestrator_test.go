package orchestrator

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"quorum/internal/agent"
	"quorum/internal/coordination"
	"quorum/internal/errors"
	"quorum/internal/event"
)

// consensusWorker commits one answer, then on restart votes for the lexically
// smallest peer with a committed answer. Every round built from these workers
// converges because votes only settle once the answer set stops changing.
type consensusWorker struct {
	id     string
	answer string
	// present overrides the default presentation behavior when set.
	present func(inv agent.Invocation)
}

func (w *consensusWorker) Run(ctx context.Context, inv agent.Invocation) {
	if inv.Presentation {
		if w.present != nil {
			w.present(inv)
			return
		}
		inv.Emit(agent.WorkerEvent{Kind: agent.KindAnswer, Content: "polished: " + w.answer})
		inv.Emit(agent.WorkerEvent{Kind: agent.KindDone, Reason: agent.DoneCompleted})
		return
	}

	if _, answered := inv.PeerAnswers[w.id]; !answered {
		inv.Emit(agent.WorkerEvent{Kind: agent.KindContent, Content: "drafting..."})
		inv.Emit(agent.WorkerEvent{Kind: agent.KindAnswer, Content: w.answer})
		inv.Emit(agent.WorkerEvent{Kind: agent.KindDone, Reason: agent.DoneCompleted})
		return
	}

	ids := make([]string, 0, len(inv.PeerAnswers))
	for id := range inv.PeerAnswers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	inv.Emit(agent.WorkerEvent{Kind: agent.KindVote, Target: ids[0]})
	inv.Emit(agent.WorkerEvent{Kind: agent.KindDone, Reason: agent.DoneCompleted})
}

// silentWorker answers once, then stalls until the turn is invalidated or the
// round is abandoned. It never votes.
type silentWorker struct {
	id     string
	answer string
}

func (w *silentWorker) Run(ctx context.Context, inv agent.Invocation) {
	if _, answered := inv.PeerAnswers[w.id]; !answered && !inv.Presentation {
		inv.Emit(agent.WorkerEvent{Kind: agent.KindAnswer, Content: w.answer})
		inv.Emit(agent.WorkerEvent{Kind: agent.KindDone, Reason: agent.DoneCompleted})
		return
	}

	var restart <-chan struct{}
	if inv.Restart != nil {
		restart = inv.Restart.Done()
	}
	select {
	case <-ctx.Done():
	case <-restart:
	}
	inv.Emit(agent.WorkerEvent{Kind: agent.KindDone, Reason: agent.DoneRestarted})
}

// failingWorker fails every invocation.
type failingWorker struct{}

func (failingWorker) Run(ctx context.Context, inv agent.Invocation) {
	inv.Emit(agent.WorkerEvent{Kind: agent.KindError, Err: errors.New("backend unavailable")})
}

// recoveringWorker fails its first failures invocations, then behaves like a
// consensusWorker. Invocations of one agent are serial, so the counter needs
// no lock.
type recoveringWorker struct {
	consensusWorker
	failures int
}

func (w *recoveringWorker) Run(ctx context.Context, inv agent.Invocation) {
	if !inv.Presentation && w.failures > 0 {
		w.failures--
		inv.Emit(agent.WorkerEvent{Kind: agent.KindError, Err: errors.New("backend unavailable")})
		return
	}
	w.consensusWorker.Run(ctx, inv)
}

// emptyWorker completes without producing anything, violating the contract.
type emptyWorker struct{}

func (emptyWorker) Run(ctx context.Context, inv agent.Invocation) {
	inv.Emit(agent.WorkerEvent{Kind: agent.KindDone, Reason: agent.DoneCompleted})
}

// ghostVoter answers once, then votes for an agent that does not exist.
type ghostVoter struct {
	id     string
	answer string
}

func (w *ghostVoter) Run(ctx context.Context, inv agent.Invocation) {
	if _, answered := inv.PeerAnswers[w.id]; !answered && !inv.Presentation {
		inv.Emit(agent.WorkerEvent{Kind: agent.KindAnswer, Content: w.answer})
		inv.Emit(agent.WorkerEvent{Kind: agent.KindDone, Reason: agent.DoneCompleted})
		return
	}
	inv.Emit(agent.WorkerEvent{Kind: agent.KindVote, Target: "ghost"})
	inv.Emit(agent.WorkerEvent{Kind: agent.KindDone, Reason: agent.DoneCompleted})
}

func TestRoundReachesConsensus(t *testing.T) {
	bus := event.NewBus()
	var published []string
	bus.SubscribeAll(func(e event.Event) {
		published = append(published, e.EventType())
	})

	o, err := New(Config{
		Task: "pick the best greeting",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "alpha"}},
			{ID: "agent_2", Worker: &consensusWorker{id: "agent_2", answer: "beta"}},
			{ID: "agent_3", Worker: &consensusWorker{id: "agent_3", answer: "gamma"}},
		},
		MaxDuration: 5 * time.Second,
		Bus:         bus,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.WinnerAgentID != "agent_1" {
		t.Errorf("winner = %q, want agent_1", res.WinnerAgentID)
	}
	if res.TerminationReason != ReasonConsensus {
		t.Errorf("reason = %q, want %q", res.TerminationReason, ReasonConsensus)
	}
	if res.FinalAnswer != "polished: alpha" {
		t.Errorf("final answer = %q, want presentation output", res.FinalAnswer)
	}
	if len(res.VotesByAgent) != 3 {
		t.Errorf("votes = %v, want all three agents voting", res.VotesByAgent)
	}
	for voter, target := range res.VotesByAgent {
		if target != "agent_1" {
			t.Errorf("vote %s -> %s, want agent_1", voter, target)
		}
	}
	// Each of the three answers triggers exactly one cascade.
	if res.DebateRounds != 3 {
		t.Errorf("debate rounds = %d, want 3", res.DebateRounds)
	}

	if len(published) == 0 {
		t.Fatal("no events published")
	}
	if published[0] != event.TypeRoundStarted {
		t.Errorf("first event = %q, want %q", published[0], event.TypeRoundStarted)
	}
	if published[len(published)-1] != event.TypeRoundCompleted {
		t.Errorf("last event = %q, want %q", published[len(published)-1], event.TypeRoundCompleted)
	}
}

func TestSingleAgentRound(t *testing.T) {
	o, err := New(Config{
		Task: "solo",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "only"}},
		},
		MaxDuration: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.WinnerAgentID != "agent_1" {
		t.Errorf("winner = %q, want agent_1", res.WinnerAgentID)
	}
	if res.VotesByAgent["agent_1"] != "agent_1" {
		t.Errorf("votes = %v, want self-vote", res.VotesByAgent)
	}
}

func TestDeadlineForcesResolution(t *testing.T) {
	o, err := New(Config{
		Task: "stall",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &silentWorker{id: "agent_1", answer: "alpha"}},
			{ID: "agent_2", Worker: &silentWorker{id: "agent_2", answer: "beta"}},
		},
		MaxDuration:         150 * time.Millisecond,
		PresentationTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.TerminationReason != ReasonDeadline {
		t.Errorf("reason = %q, want %q", res.TerminationReason, ReasonDeadline)
	}
	// No votes: the fallback comparator picks the lexically smallest agent.
	if res.WinnerAgentID != "agent_1" {
		t.Errorf("winner = %q, want agent_1", res.WinnerAgentID)
	}
	if len(res.VotesByAgent) != 0 {
		t.Errorf("votes = %v, want none", res.VotesByAgent)
	}
	// Presentation stalls too, so the committed answer is surfaced verbatim.
	if res.FinalAnswer != "alpha" {
		t.Errorf("final answer = %q, want committed answer fallback", res.FinalAnswer)
	}
}

func TestDebateCapForcesResolution(t *testing.T) {
	o, err := New(Config{
		Task: "argue",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "alpha"}},
			{ID: "agent_2", Worker: &consensusWorker{id: "agent_2", answer: "beta"}},
		},
		MaxDuration:     5 * time.Second,
		MaxDebateRounds: 1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.TerminationReason != ReasonDebateCap {
		t.Errorf("reason = %q, want %q", res.TerminationReason, ReasonDebateCap)
	}
	if res.DebateRounds != 1 {
		t.Errorf("debate rounds = %d, want 1", res.DebateRounds)
	}
	// Both answers commit; the capped second answer must not be lost.
	answers := o.Tracker().EventsOfType(coordination.EventAnswer)
	if len(answers) != 2 {
		t.Errorf("answer events = %d, want 2", len(answers))
	}
	if res.WinnerAgentID != "agent_1" {
		t.Errorf("winner = %q, want agent_1", res.WinnerAgentID)
	}
}

func TestRetryBudgetExhaustion(t *testing.T) {
	o, err := New(Config{
		Task: "survive a flaky peer",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "alpha"}},
			{ID: "agent_2", Worker: &consensusWorker{id: "agent_2", answer: "beta"}},
			{ID: "agent_3", Worker: failingWorker{}},
		},
		MaxDuration: 5 * time.Second,
		RetryBudget: 1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.TerminationReason != ReasonConsensus {
		t.Errorf("reason = %q, want %q", res.TerminationReason, ReasonConsensus)
	}
	if res.WinnerAgentID != "agent_1" {
		t.Errorf("winner = %q, want agent_1", res.WinnerAgentID)
	}
	if _, voted := res.VotesByAgent["agent_3"]; voted {
		t.Error("exhausted agent_3 should not have a vote")
	}

	// Budget 1 allows exactly one retry: two failed attempts, the second
	// marked exhausted.
	errs := o.Tracker().EventsOfType(coordination.EventError)
	if len(errs) != 2 {
		t.Fatalf("error events = %d, want 2", len(errs))
	}
	if errs[0].Payload["exhausted"] != false {
		t.Error("first failure marked exhausted")
	}
	if errs[1].Payload["exhausted"] != true {
		t.Error("second failure not marked exhausted")
	}
}

func TestWorkerRecoversWithinRetryBudget(t *testing.T) {
	o, err := New(Config{
		Task: "recover from transient failures",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "alpha"}},
			{ID: "agent_2", Worker: &consensusWorker{id: "agent_2", answer: "beta"}},
			{ID: "agent_3", Worker: &recoveringWorker{
				consensusWorker: consensusWorker{id: "agent_3", answer: "gamma"},
				failures:        2,
			}},
		},
		MaxDuration: 5 * time.Second,
		RetryBudget: 2,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.TerminationReason != ReasonConsensus {
		t.Errorf("reason = %q, want %q", res.TerminationReason, ReasonConsensus)
	}
	if res.WinnerAgentID != "agent_1" {
		t.Errorf("winner = %q, want agent_1", res.WinnerAgentID)
	}
	if res.VotesByAgent["agent_3"] != "agent_1" {
		t.Errorf("agent_3 vote = %q, want agent_1", res.VotesByAgent["agent_3"])
	}

	// The third attempt succeeds: two error events, then an answer, for the
	// flaky agent — in that order.
	var types []coordination.EventType
	for _, e := range o.Tracker().Events() {
		if e.AgentID != "agent_3" {
			continue
		}
		if e.Type == coordination.EventError || e.Type == coordination.EventAnswer {
			types = append(types, e.Type)
		}
	}
	want := []coordination.EventType{
		coordination.EventError, coordination.EventError, coordination.EventAnswer,
	}
	if len(types) != len(want) {
		t.Fatalf("agent_3 error/answer events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("agent_3 error/answer events = %v, want %v", types, want)
		}
	}
}

func TestAllAgentsFailing(t *testing.T) {
	o, err := New(Config{
		Task: "doomed",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: failingWorker{}},
			{ID: "agent_2", Worker: failingWorker{}},
		},
		MaxDuration: 5 * time.Second,
		RetryBudget: -1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = o.Run(context.Background())
	if !errors.Is(err, errors.ErrNoUsableAnswer) {
		t.Errorf("Run() error = %v, want ErrNoUsableAnswer", err)
	}
}

func TestEmptyCompletionIsWorkerFailure(t *testing.T) {
	o, err := New(Config{
		Task: "tolerate a mute peer",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "alpha"}},
			{ID: "agent_2", Worker: emptyWorker{}},
		},
		MaxDuration: 5 * time.Second,
		RetryBudget: -1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.WinnerAgentID != "agent_1" {
		t.Errorf("winner = %q, want agent_1", res.WinnerAgentID)
	}

	errs := o.Tracker().EventsOfType(coordination.EventError)
	if len(errs) != 1 {
		t.Fatalf("error events = %d, want 1", len(errs))
	}
	msg, _ := errs[0].Payload["error"].(string)
	if !strings.Contains(msg, errors.ErrEmptyCompletion.Error()) {
		t.Errorf("error payload = %q, want empty-completion violation", msg)
	}
}

func TestUnknownVoteTargetIsWorkerFailure(t *testing.T) {
	o, err := New(Config{
		Task: "tolerate a confused peer",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "alpha"}},
			{ID: "agent_2", Worker: &ghostVoter{id: "agent_2", answer: "beta"}},
		},
		MaxDuration: 5 * time.Second,
		RetryBudget: -1,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.WinnerAgentID != "agent_1" {
		t.Errorf("winner = %q, want agent_1", res.WinnerAgentID)
	}

	errs := o.Tracker().EventsOfType(coordination.EventError)
	if len(errs) != 1 {
		t.Fatalf("error events = %d, want 1", len(errs))
	}
	msg, _ := errs[0].Payload["error"].(string)
	if !strings.Contains(msg, errors.ErrUnknownVoteTarget.Error()) {
		t.Errorf("error payload = %q, want unknown-target violation", msg)
	}
}

func TestPresentationErrorFallsBack(t *testing.T) {
	presentFail := func(inv agent.Invocation) {
		inv.Emit(agent.WorkerEvent{Kind: agent.KindError, Err: errors.New("render failed")})
	}
	o, err := New(Config{
		Task: "present",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "alpha", present: presentFail}},
		},
		MaxDuration: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.FinalAnswer != "alpha" {
		t.Errorf("final answer = %q, want committed answer fallback", res.FinalAnswer)
	}
}

// Stale classification happens at dequeue time, inside the loop. Drive the
// handler directly so the race is deterministic.
func TestStaleVoteDiscarded(t *testing.T) {
	o, err := New(Config{
		Task: "stale",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "alpha"}},
			{ID: "agent_2", Worker: &consensusWorker{id: "agent_2", answer: "beta"}},
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	o.tracker.BeginIteration()
	o.states["agent_1"].CommitAnswer("alpha", time.Now())
	o.states["agent_2"].RestartPending = true
	o.live["agent_2"] = &invocation{token: agent.NewRestartToken()}

	o.handle(envelope{agentID: "agent_2", ev: agent.WorkerEvent{Kind: agent.KindVote, Target: "agent_1"}})

	if o.states["agent_2"].HasVoted {
		t.Error("stale vote was applied")
	}
	votes := o.Tracker().EventsOfType(coordination.EventVote)
	if len(votes) != 1 {
		t.Fatalf("vote events = %d, want 1", len(votes))
	}
	if votes[0].Payload["stale"] != true {
		t.Error("discarded vote not flagged stale in the log")
	}
}

func TestAnswerTriggersFullCascade(t *testing.T) {
	o, err := New(Config{
		Task: "cascade",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "alpha"}},
			{ID: "agent_2", Worker: &consensusWorker{id: "agent_2", answer: "beta"}},
			{ID: "agent_3", Worker: &consensusWorker{id: "agent_3", answer: "gamma"}},
		},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	o.tracker.BeginIteration()
	o.states["agent_2"].ApplyVote("agent_3")
	tok := agent.NewRestartToken()
	o.live["agent_3"] = &invocation{token: tok}
	o.live["agent_1"] = &invocation{token: agent.NewRestartToken()}

	o.handle(envelope{agentID: "agent_1", ev: agent.WorkerEvent{Kind: agent.KindAnswer, Content: "alpha"}})

	for _, id := range []string{"agent_1", "agent_2", "agent_3"} {
		st := o.states[id]
		if st.HasVoted {
			t.Errorf("%s still has a vote after cascade", id)
		}
		if !st.RestartPending {
			t.Errorf("%s not flagged for restart", id)
		}
	}
	if !tok.Signaled() {
		t.Error("live invocation token not signaled")
	}
	signals := o.Tracker().EventsOfType(coordination.EventRestartSignal)
	if len(signals) != 1 {
		t.Fatalf("restart signals = %d, want 1", len(signals))
	}
	affected, _ := signals[0].Payload["affected"].([]string)
	if len(affected) != 3 {
		t.Errorf("affected = %v, want all three agents", affected)
	}
}

func TestRunIsSingleUse(t *testing.T) {
	o, err := New(Config{
		Task: "once",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "only"}},
		},
		MaxDuration: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := o.Run(context.Background()); !errors.Is(err, errors.ErrRoundAlreadyRun) {
		t.Errorf("second Run() error = %v, want ErrRoundAlreadyRun", err)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no agents", Config{Task: "t"}},
		{"duplicate IDs", Config{Agents: []AgentConfig{
			{ID: "a", Worker: emptyWorker{}},
			{ID: "a", Worker: emptyWorker{}},
		}}},
		{"empty ID", Config{Agents: []AgentConfig{{ID: "", Worker: emptyWorker{}}}}},
		{"nil worker", Config{Agents: []AgentConfig{{ID: "a"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() succeeded, want error")
			}
		})
	}
}

func TestConsensusThresholdEarlyExit(t *testing.T) {
	// Threshold 0.5 of 3 agents = 2 votes. agent_3 stalls after answering,
	// so the round can only end through the early-exit path.
	o, err := New(Config{
		Task: "early",
		Agents: []AgentConfig{
			{ID: "agent_1", Worker: &consensusWorker{id: "agent_1", answer: "alpha"}},
			{ID: "agent_2", Worker: &consensusWorker{id: "agent_2", answer: "beta"}},
			{ID: "agent_3", Worker: &silentWorker{id: "agent_3", answer: "gamma"}},
		},
		ConsensusThreshold:  0.5,
		MaxDuration:         5 * time.Second,
		PresentationTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.TerminationReason != ReasonConsensus {
		t.Errorf("reason = %q, want %q", res.TerminationReason, ReasonConsensus)
	}
	if res.WinnerAgentID != "agent_1" {
		t.Errorf("winner = %q, want agent_1", res.WinnerAgentID)
	}
}
