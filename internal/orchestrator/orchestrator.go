package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"quorum/internal/agent"
	"quorum/internal/coordination"
	"quorum/internal/errors"
	"quorum/internal/event"
	"quorum/internal/logging"
	"quorum/internal/ratelimit"
)

// Orchestrator runs one coordination round. It is single-use: create a new
// Orchestrator for every round.
type Orchestrator struct {
	cfg     Config
	limiter *ratelimit.Limiter
	log     *logging.Logger

	roundID string
	tracker *coordination.Tracker

	// Control-loop-owned state. Nothing below is touched outside the loop
	// goroutine once Run starts.
	order    []string
	states   map[string]*agent.State
	workers  map[string]agent.Worker
	resource map[string]string
	live     map[string]*invocation

	events      chan envelope
	loopDone    chan struct{}
	wg          sync.WaitGroup
	votesNeeded int
	capHit      bool

	ran atomic.Bool
}

// New validates the configuration and prepares a round.
func New(cfg Config) (*Orchestrator, error) {
	if len(cfg.Agents) == 0 {
		return nil, errors.ErrNoAgents
	}

	seen := make(map[string]bool, len(cfg.Agents))
	for _, ac := range cfg.Agents {
		if ac.ID == "" {
			return nil, errors.NewRoundError("agent with empty ID", nil)
		}
		if seen[ac.ID] {
			return nil, errors.NewRoundError(fmt.Sprintf("duplicate agent ID %q", ac.ID), nil)
		}
		if ac.Worker == nil {
			return nil, errors.NewRoundError(fmt.Sprintf("agent %q has no worker", ac.ID), nil)
		}
		seen[ac.ID] = true
	}

	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.MaxDebateRounds == 0 {
		cfg.MaxDebateRounds = DefaultMaxDebateRounds
	}
	switch {
	case cfg.RetryBudget == 0:
		cfg.RetryBudget = DefaultRetryBudget
	case cfg.RetryBudget < 0:
		cfg.RetryBudget = 0
	}
	if cfg.PresentationTimeout <= 0 {
		cfg.PresentationTimeout = DefaultPresentationTimeout
	}

	o := &Orchestrator{
		cfg:      cfg,
		limiter:  cfg.Limiter,
		log:      cfg.Logger,
		roundID:  uuid.NewString(),
		states:   make(map[string]*agent.State, len(cfg.Agents)),
		workers:  make(map[string]agent.Worker, len(cfg.Agents)),
		resource: make(map[string]string, len(cfg.Agents)),
		live:     make(map[string]*invocation),
		events:   make(chan envelope),
		loopDone: make(chan struct{}),
	}
	if o.limiter == nil {
		o.limiter = ratelimit.NewLimiter()
	}
	if o.log == nil {
		o.log = logging.NopLogger()
	}
	o.log = o.log.WithComponent("orchestrator").WithRound(o.roundID)

	for _, ac := range cfg.Agents {
		o.order = append(o.order, ac.ID)
		o.states[ac.ID] = agent.NewState(ac.ID)
		o.workers[ac.ID] = ac.Worker
		o.resource[ac.ID] = ac.ResourceKey
	}

	switch t := cfg.ConsensusThreshold; {
	case t <= 0:
		o.votesNeeded = 0
	case t <= 1:
		o.votesNeeded = int(math.Ceil(t * float64(len(cfg.Agents))))
	default:
		o.votesNeeded = int(math.Ceil(t))
	}

	o.tracker = coordination.NewTracker(o.roundID, coordination.WithBus(cfg.Bus))
	return o, nil
}

// RoundID returns the round's unique identifier, assigned at construction.
func (o *Orchestrator) RoundID() string { return o.roundID }

// Run executes the round to completion and returns the outcome. It blocks
// until every worker goroutine has returned. Run may be called once; a
// second call returns ErrRoundAlreadyRun.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if !o.ran.CompareAndSwap(false, true) {
		return nil, errors.ErrRoundAlreadyRun
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.MaxDuration)
	defer cancel()

	o.log.Info("round started",
		"agents", len(o.order),
		"max_duration", o.cfg.MaxDuration.String(),
		"max_debate_rounds", o.cfg.MaxDebateRounds,
		"retry_budget", o.cfg.RetryBudget)
	if o.cfg.Bus != nil {
		ids := make([]string, len(o.order))
		copy(ids, o.order)
		o.cfg.Bus.Publish(event.NewRoundStartedEvent(o.roundID, o.cfg.Task, ids))
	}

	reason := o.loop(ctx)

	// Release workers blocked in Emit, then wind down the ones still live.
	close(o.loopDone)
	for _, inv := range o.live {
		inv.token.Signal()
	}
	o.wg.Wait()

	snaps := make([]agent.Snapshot, 0, len(o.states))
	for _, id := range o.order {
		snaps = append(snaps, o.states[id].Snapshot())
	}

	winner, tally, err := ResolveWinner(snaps)
	if err != nil {
		o.log.Error("round failed", "reason", string(ReasonFailed), "error", err.Error())
		if o.cfg.Bus != nil {
			o.cfg.Bus.Publish(event.NewRoundCompletedEvent(
				o.roundID, "", string(ReasonFailed), o.tracker.Iteration(), o.tracker.Cascades()))
		}
		return nil, errors.NewRoundError("round produced no winner", err).WithRoundID(o.roundID)
	}

	final := o.present(ctx, winner)

	votes := make(map[string]string)
	for _, s := range snaps {
		if s.HasVoted {
			votes[s.ID] = s.VoteTarget
		}
	}

	o.log.Info("round completed",
		"winner", winner,
		"reason", string(reason),
		"votes", tally[winner],
		"iterations", o.tracker.Iteration(),
		"debate_rounds", o.tracker.Cascades())
	if o.cfg.Bus != nil {
		o.cfg.Bus.Publish(event.NewRoundCompletedEvent(
			o.roundID, winner, string(reason), o.tracker.Iteration(), o.tracker.Cascades()))
	}

	return &Result{
		RoundID:           o.roundID,
		WinnerAgentID:     winner,
		FinalAnswer:       final,
		VotesByAgent:      votes,
		Iterations:        o.tracker.Iteration(),
		DebateRounds:      o.tracker.Cascades(),
		TerminationReason: reason,
	}, nil
}

// Tracker exposes the round's event log after (or during, from the loop's
// own goroutine only) a run. Callers use it for audit export.
func (o *Orchestrator) Tracker() *coordination.Tracker { return o.tracker }

// loop is the single-writer control loop. All state mutation happens here.
func (o *Orchestrator) loop(ctx context.Context) TerminationReason {
	for {
		if reason, done := o.checkTermination(); done {
			return reason
		}

		o.tracker.BeginIteration()
		o.startEligible(ctx)

		select {
		case env := <-o.events:
			o.handle(env)
		case <-ctx.Done():
			o.log.Warn("deadline reached", "live_agents", len(o.live))
			return ReasonDeadline
		}
	}
}

// checkTermination evaluates the exit conditions against current state.
func (o *Orchestrator) checkTermination() (TerminationReason, bool) {
	if o.capHit {
		return ReasonDebateCap, true
	}

	votable, voted := 0, 0
	for _, st := range o.states {
		if st.Attempts > o.cfg.RetryBudget {
			continue
		}
		votable++
		if st.HasVoted {
			voted++
		}
	}
	// Exhausted agents drop out of the completion condition entirely; when
	// every agent is exhausted the condition holds vacuously and resolution
	// decides whether any usable answer remains.
	if votable == voted {
		return ReasonConsensus, true
	}

	if o.votesNeeded > 0 {
		tally := make(map[string]int)
		for _, st := range o.states {
			if st.HasVoted {
				tally[st.VoteTarget]++
			}
		}
		for _, n := range tally {
			if n >= o.votesNeeded {
				return ReasonConsensus, true
			}
		}
	}

	return "", false
}

// startEligible (re)starts every agent that should be running.
func (o *Orchestrator) startEligible(ctx context.Context) {
	for _, id := range o.order {
		st := o.states[id]
		if _, running := o.live[id]; running {
			continue
		}
		if st.HasVoted || st.Attempts > o.cfg.RetryBudget {
			continue
		}
		// A pending restart overrides status: an agent whose invocation
		// settled as answered or voted before the cascade reached it still
		// owes a fresh turn.
		if !st.RestartPending && st.Status != agent.StatusIdle && st.Status != agent.StatusErrored {
			continue
		}
		o.startWorker(ctx, id)
	}
}

// startWorker launches one invocation. The restart flag is cleared and
// restart_complete recorded here, at dispatch, so the log shows exactly when
// each agent rejoined after a cascade. Peer answers are snapshotted in the
// loop goroutine, which guarantees the worker sees the full answer set as of
// this start.
func (o *Orchestrator) startWorker(ctx context.Context, id string) {
	st := o.states[id]
	if st.RestartPending {
		st.RestartPending = false
		o.tracker.RecordRestartComplete(id)
	}
	st.Status = agent.StatusStreaming

	peers := make(map[string]agent.Answer)
	for pid, ps := range o.states {
		if ps.Answer != nil {
			peers[pid] = *ps.Answer
		}
	}

	inv := &invocation{token: agent.NewRestartToken()}
	o.live[id] = inv

	emit := func(ev agent.WorkerEvent) {
		select {
		case o.events <- envelope{agentID: id, ev: ev}:
		case <-o.loopDone:
		}
	}

	worker := o.workers[id]
	key := o.resource[id]
	run := agent.Invocation{
		Task:        o.cfg.Task,
		Context:     o.cfg.Context,
		PeerAnswers: peers,
		Restart:     inv.token,
		Emit:        emit,
	}

	o.log.Debug("starting agent", "agent_id", id, "resource_key", key, "peer_answers", len(peers))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.limiter.Acquire(ctx, key); err != nil {
			// Only happens when the round is being abandoned.
			emit(agent.WorkerEvent{Kind: agent.KindError, Err: err})
			return
		}
		worker.Run(ctx, run)
	}()
}

// handle applies one worker event. Called only from the loop goroutine.
func (o *Orchestrator) handle(env envelope) {
	inv, ok := o.live[env.agentID]
	if !ok {
		// Event after a terminal event: the worker broke the contract, but
		// the invocation is already settled.
		o.log.Warn("event from settled invocation dropped",
			"agent_id", env.agentID, "kind", env.ev.Kind.String())
		return
	}

	st := o.states[env.agentID]
	switch env.ev.Kind {
	case agent.KindContent:
		o.tracker.PassThroughContent(env.agentID, env.ev.Content)

	case agent.KindAnswer:
		inv.produced = true
		o.handleAnswer(st, env.ev.Content)

	case agent.KindVote:
		inv.produced = true
		o.handleVote(st, env.ev.Target)

	case agent.KindError:
		inv.produced = true
		delete(o.live, env.agentID)
		o.applyWorkerFailure(st, env.ev.Err)

	case agent.KindDone:
		delete(o.live, env.agentID)
		o.handleDone(st, inv, env.ev.Reason)
	}
}

// handleAnswer commits the answer and, unless the debate cap has been
// reached, triggers the restart cascade: every vote is invalidated, every
// agent is flagged for restart, and every live invocation is signaled.
func (o *Orchestrator) handleAnswer(st *agent.State, content string) {
	ans := st.CommitAnswer(content, time.Now())
	o.tracker.RecordAnswer(st.ID, ans.Seq, ans.Content)
	o.log.Info("answer committed", "agent_id", st.ID, "seq", ans.Seq)

	if o.cfg.MaxDebateRounds >= 0 && o.tracker.Cascades() >= o.cfg.MaxDebateRounds {
		// The answer stands, but it may not trigger another debate round.
		o.capHit = true
		o.log.Warn("debate cap reached, forcing resolution",
			"agent_id", st.ID, "debate_rounds", o.tracker.Cascades())
		return
	}

	for _, id := range o.order {
		ps := o.states[id]
		ps.ClearVote()
		ps.RestartPending = true
		if _, running := o.live[id]; running {
			o.live[id].token.Signal()
		} else if ps.Status != agent.StatusErrored {
			ps.Status = agent.StatusIdle
		}
	}

	cascade := o.tracker.RecordRestartSignal(st.ID, ans.Seq, o.order)
	o.log.Info("restart cascade signaled",
		"trigger_agent", st.ID, "trigger_seq", ans.Seq, "debate_round", cascade)
}

// handleVote applies or rejects one vote.
func (o *Orchestrator) handleVote(st *agent.State, target string) {
	tgt, ok := o.states[target]
	if !ok {
		o.applyWorkerFailure(st, errors.NewWorkerError(
			fmt.Sprintf("vote for %q", target), errors.ErrUnknownVoteTarget))
		return
	}
	if tgt.Answer == nil {
		o.applyWorkerFailure(st, errors.NewWorkerError(
			fmt.Sprintf("vote for %q, which has no committed answer", target),
			errors.ErrUnknownVoteTarget))
		return
	}

	// Staleness is decided at dequeue time: a restart flagged before this
	// vote was processed means the vote was computed against an invalidated
	// answer set.
	if st.RestartPending {
		o.tracker.RecordVote(st.ID, target, true)
		o.log.Info("stale vote discarded", "agent_id", st.ID, "target", target)
		return
	}

	st.ApplyVote(target)
	o.tracker.RecordVote(st.ID, target, false)
	o.log.Info("vote applied", "agent_id", st.ID, "target", target)
}

// handleDone settles a completed invocation.
func (o *Orchestrator) handleDone(st *agent.State, inv *invocation, reason agent.DoneReason) {
	switch {
	case reason == agent.DoneRestarted:
		if st.Status != agent.StatusErrored {
			st.Status = agent.StatusIdle
		}
	case !inv.produced:
		o.applyWorkerFailure(st, errors.NewWorkerError(
			"completed without answer, vote, or error", errors.ErrEmptyCompletion))
	case st.Status == agent.StatusStreaming:
		// Produced something, but nothing was applied: the stale-vote case.
		// Back to idle so the restart actually happens.
		st.Status = agent.StatusIdle
	}
}

// applyWorkerFailure charges one failed attempt against the agent's budget.
// Protocol violations and internal worker errors share this path.
func (o *Orchestrator) applyWorkerFailure(st *agent.State, cause error) {
	st.Attempts++
	exhausted := st.Attempts > o.cfg.RetryBudget

	msg := "unknown worker error"
	if cause != nil {
		msg = cause.Error()
	}
	st.Status = agent.StatusErrored
	st.LastError = errors.NewWorkerError("invocation failed", cause).
		WithAgentID(st.ID).
		WithAttempt(st.Attempts)

	o.tracker.RecordError(st.ID, st.Attempts, msg, exhausted)
	if exhausted {
		o.log.Warn("agent retry budget exhausted",
			"agent_id", st.ID, "attempts", st.Attempts, "error", msg)
	} else {
		o.log.Warn("agent errored, will retry",
			"agent_id", st.ID, "attempt", st.Attempts, "error", msg)
	}
}
