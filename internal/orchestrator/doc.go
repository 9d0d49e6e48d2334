// Package orchestrator implements the coordination core: a single control
// loop that drives N agent workers to consensus under the
// restart/invalidation protocol.
//
// The loop owns every per-agent state record and the coordination tracker.
// Workers run as goroutines and communicate exclusively by emitting events
// into one merged channel; they never touch shared state. This single-writer
// discipline is what makes vote staleness classification unambiguous: the
// restart flag is always set strictly before any later event from the same
// agent is dequeued.
//
// Within a round the loop:
//
//  1. starts or restarts every eligible agent, admitting each start through
//     the shared rate limiter inside the spawned worker task,
//  2. applies answer, vote, error and completion events in arrival order,
//  3. invalidates all outstanding votes and signals a cooperative restart of
//     every agent whenever any agent commits a new answer,
//  4. resolves a winner when all votable agents have voted, or when the
//     deadline or the debate-round cap forces resolution, and
//  5. re-invokes the winning agent once in presentation mode.
package orchestrator
