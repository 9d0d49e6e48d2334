package orchestrator

import (
	"quorum/internal/agent"
	"quorum/internal/errors"
)

// ResolveWinner picks the winning agent from the final state snapshots.
//
// Candidates are the agents with a committed answer. Fresh votes naming a
// candidate are tallied; the winner is the candidate with the most votes,
// ties broken by the higher answer sequence number (the more recent answer),
// then by the lexically smaller agent ID. With zero votes the same
// comparator runs over the candidates alone, so the most recent answer wins.
//
// The returned tally maps candidate ID to fresh vote count. ResolveWinner is
// a pure function of its input: the same snapshots always produce the same
// winner regardless of slice order.
func ResolveWinner(snaps []agent.Snapshot) (string, map[string]int, error) {
	candidates := make(map[string]agent.Snapshot)
	for _, s := range snaps {
		if s.Answer != nil {
			candidates[s.ID] = s
		}
	}
	if len(candidates) == 0 {
		return "", nil, errors.ErrNoUsableAnswer
	}

	tally := make(map[string]int, len(candidates))
	for id := range candidates {
		tally[id] = 0
	}
	for _, s := range snaps {
		if !s.HasVoted {
			continue
		}
		if _, ok := candidates[s.VoteTarget]; ok {
			tally[s.VoteTarget]++
		}
	}

	var winner string
	for id := range candidates {
		if winner == "" || beats(candidates[id], candidates[winner], tally) {
			winner = id
		}
	}
	return winner, tally, nil
}

// beats reports whether candidate a outranks candidate b.
func beats(a, b agent.Snapshot, tally map[string]int) bool {
	if tally[a.ID] != tally[b.ID] {
		return tally[a.ID] > tally[b.ID]
	}
	if a.Answer.Seq != b.Answer.Seq {
		return a.Answer.Seq > b.Answer.Seq
	}
	return a.ID < b.ID
}
